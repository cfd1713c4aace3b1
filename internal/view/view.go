// Package view builds the client facing entity of one container: its
// nodes with their execution states and allowed actions, its connections,
// annotations, port bars and metadata. The entity is what snapshots hold
// and patches describe.
package view

import (
	"slices"

	"github.com/specialistvlad/wfengine/internal/legality"
	"github.com/specialistvlad/wfengine/internal/nodeid"
	"github.com/specialistvlad/wfengine/internal/nodestore"
	"github.com/specialistvlad/wfengine/internal/workflow"
)

// ContainerType tells what kind of node a workflow entity belongs to.
type ContainerType string

const (
	TypeProject   ContainerType = "project"
	TypeMetanode  ContainerType = "metanode"
	TypeComponent ContainerType = "component"
)

// States reads execution state. *execstate.Machine implements it.
type States interface {
	legality.States
	Loop(id nodeid.ID) nodestore.LoopInfo
	Failure(id nodeid.ID) error
}

// History reports undo availability. *commands.Engine implements it.
type History interface {
	CanUndo(container nodeid.ID) bool
	CanRedo(container nodeid.ID) bool
}

// Info describes the container itself.
type Info struct {
	Name          string                 `json:"name"`
	ContainerType ContainerType          `json:"containerType"`
	Locked        bool                   `json:"locked,omitempty"`
	Link          *workflow.TemplateLink `json:"link,omitempty"`
}

// Port is a node port together with the connections attached to it.
type Port struct {
	workflow.Port
	ConnectedVia []string `json:"connectedVia"`
}

// Node is one child of the container.
type Node struct {
	ID             nodeid.ID              `json:"id"`
	Kind           workflow.Kind          `json:"kind"`
	Position       workflow.Position      `json:"position"`
	Label          string                 `json:"annotation,omitempty"`
	InPorts        []Port                 `json:"inPorts"`
	OutPorts       []Port                 `json:"outPorts"`
	State          nodestore.State        `json:"state"`
	Message        string                 `json:"message,omitempty"`
	Loop           *nodestore.LoopInfo    `json:"loopInfo,omitempty"`
	FactoryKey     string                 `json:"factoryKey,omitempty"`
	Groups         []workflow.PortGroup   `json:"portGroups,omitempty"`
	Name           string                 `json:"name,omitempty"`
	Locked         bool                   `json:"locked,omitempty"`
	Link           *workflow.TemplateLink `json:"link,omitempty"`
	AllowedActions legality.NodeActions   `json:"allowedActions"`
}

// ConnectionActions lists what the client may currently do with a
// connection.
type ConnectionActions struct {
	CanDelete bool `json:"canDelete"`
}

// Connection is one edge of the container.
type Connection struct {
	ID             string                  `json:"id"`
	Kind           workflow.ConnectionKind `json:"kind"`
	Source         nodeid.ID               `json:"sourceNode"`
	SourcePort     int                     `json:"sourcePort"`
	Dest           nodeid.ID               `json:"destNode"`
	DestPort       int                     `json:"destPort"`
	Bendpoints     []workflow.Position     `json:"bendpoints,omitempty"`
	AllowedActions ConnectionActions       `json:"allowedActions"`
}

// Workflow is the entity of one container.
type Workflow struct {
	ID                nodeid.ID                   `json:"id"`
	Info              Info                        `json:"info"`
	Nodes             map[nodeid.ID]*Node         `json:"nodes"`
	Connections       map[string]*Connection      `json:"connections"`
	Annotations       []*workflow.Annotation      `json:"workflowAnnotations"`
	MetaInPorts       []Port                      `json:"metaInPorts,omitempty"`
	MetaOutPorts      []Port                      `json:"metaOutPorts,omitempty"`
	InPortsBar        *workflow.Bounds            `json:"inPortsBar,omitempty"`
	OutPortsBar       *workflow.Bounds            `json:"outPortsBar,omitempty"`
	ProjectMetadata   *workflow.Metadata          `json:"projectMetadata,omitempty"`
	ComponentMetadata *workflow.ComponentMetadata `json:"componentMetadata,omitempty"`
	AllowedActions    legality.WorkflowActions    `json:"allowedActions"`
}

// Builder builds workflow entities of one project.
type Builder struct {
	// ProjectName names the root container.
	ProjectName string
	States      States
	// History is optional; without it undo and redo are never allowed.
	History History
}

// Build returns the entity of container. The caller must hold the
// workflow's lock for the duration of the call.
func (b Builder) Build(g *workflow.Graph, container nodeid.ID) (*Workflow, error) {
	level, err := g.Level(container)
	if err != nil {
		return nil, err
	}
	gate := legality.New(g, b.States)
	w := &Workflow{
		ID:          container,
		Info:        Info{Name: b.ProjectName, ContainerType: TypeProject},
		Nodes:       make(map[nodeid.ID]*Node),
		Connections: make(map[string]*Connection, len(level.Connections)),
		Annotations: make([]*workflow.Annotation, len(level.Annotations)),
	}
	for i, a := range level.Annotations {
		w.Annotations[i] = a.Clone()
	}

	wires := make(wiring)
	for _, c := range g.Connections(container) {
		id := c.ID().String()
		w.Connections[id] = &Connection{
			ID:             id,
			Kind:           c.Kind(container),
			Source:         c.Source,
			SourcePort:     c.SourcePort,
			Dest:           c.Dest,
			DestPort:       c.DestPort,
			Bendpoints:     slices.Clone(c.Bendpoints),
			AllowedActions: ConnectionActions{CanDelete: gate.CanDeleteConnection(container, c.ID())},
		}
		wires.add(c.Source, workflow.SideOut, c.SourcePort, id)
		wires.add(c.Dest, workflow.SideIn, c.DestPort, id)
	}

	for _, n := range g.Children(container) {
		w.Nodes[n.ID] = b.node(g, gate, n, wires)
	}

	if cn := g.ContainerNode(container); cn != nil {
		w.Info = Info{
			Name:          cn.Container.Name,
			ContainerType: TypeMetanode,
			Locked:        cn.Container.Locked,
		}
		if cn.Kind == workflow.KindComponent {
			w.Info.ContainerType = TypeComponent
			w.Info.Link = cloneLink(cn.Container.Link)
			if md := cn.Container.Metadata; md != nil {
				c := *md
				c.Tags = slices.Clone(md.Tags)
				c.Links = slices.Clone(md.Links)
				w.ComponentMetadata = &c
			}
		}
		// Inside the container its inputs leave the in bar and its outputs
		// enter the out bar.
		w.MetaInPorts = ports(cn.InPorts, wires.of(container, workflow.SideOut))
		w.MetaOutPorts = ports(cn.OutPorts, wires.of(container, workflow.SideIn))
		w.InPortsBar = cloneBounds(level.InBar)
		w.OutPortsBar = cloneBounds(level.OutBar)
	}
	if level.Project != nil {
		md := *level.Project
		md.Tags = slices.Clone(level.Project.Tags)
		md.Links = slices.Clone(level.Project.Links)
		w.ProjectMetadata = &md
	}

	w.AllowedActions = gate.Workflow(container)
	if b.History != nil {
		w.AllowedActions.CanUndo = b.History.CanUndo(container)
		w.AllowedActions.CanRedo = b.History.CanRedo(container)
	}
	return w, nil
}

func (b Builder) node(g *workflow.Graph, gate legality.Gate, n *workflow.Node, wires wiring) *Node {
	v := &Node{
		ID:             n.ID,
		Kind:           n.Kind,
		Position:       n.Position,
		Label:          n.Label,
		InPorts:        ports(n.InPorts, wires.of(n.ID, workflow.SideIn)),
		OutPorts:       ports(n.OutPorts, wires.of(n.ID, workflow.SideOut)),
		State:          b.States.State(g, n.ID),
		AllowedActions: gate.Node(n),
	}
	switch n.Kind {
	case workflow.KindNative:
		v.FactoryKey = n.Native.FactoryKey
		for _, pg := range n.Native.Groups {
			pg.Types = slices.Clone(pg.Types)
			v.Groups = append(v.Groups, pg)
		}
		if err := b.States.Failure(n.ID); err != nil {
			v.Message = err.Error()
		}
		if n.IsLoopEnd() {
			info := b.States.Loop(n.ID)
			if info.Status == "" {
				info.Status = nodestore.LoopNone
			}
			v.Loop = &info
		}
	default:
		v.Name = n.Container.Name
		v.Locked = n.Container.Locked
		v.Link = cloneLink(n.Container.Link)
	}
	return v
}

// wiring maps node ports to the ids of the connections attached to them.
type wiring map[nodeid.ID]map[workflow.Side]map[int][]string

func (w wiring) add(id nodeid.ID, side workflow.Side, port int, conn string) {
	sides, ok := w[id]
	if !ok {
		sides = make(map[workflow.Side]map[int][]string)
		w[id] = sides
	}
	if sides[side] == nil {
		sides[side] = make(map[int][]string)
	}
	sides[side][port] = append(sides[side][port], conn)
}

func (w wiring) of(id nodeid.ID, side workflow.Side) map[int][]string {
	return w[id][side]
}

func ports(in []workflow.Port, conns map[int][]string) []Port {
	out := make([]Port, len(in))
	for i, p := range in {
		via := slices.Clone(conns[p.Index])
		slices.Sort(via)
		if via == nil {
			via = []string{}
		}
		out[i] = Port{Port: p, ConnectedVia: via}
	}
	return out
}

func cloneLink(l *workflow.TemplateLink) *workflow.TemplateLink {
	if l == nil {
		return nil
	}
	c := *l
	return &c
}

func cloneBounds(b *workflow.Bounds) *workflow.Bounds {
	if b == nil {
		return nil
	}
	c := *b
	return &c
}
