package workflow

import (
	"slices"

	"github.com/specialistvlad/wfengine/internal/nodeid"
)

// Position is a point on the canvas.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Add returns p translated by d.
func (p Position) Add(d Position) Position {
	return Position{X: p.X + d.X, Y: p.Y + d.Y}
}

// Sub returns p translated by -d.
func (p Position) Sub(d Position) Position {
	return Position{X: p.X - d.X, Y: p.Y - d.Y}
}

// IsZero reports whether p is the origin.
func (p Position) IsZero() bool {
	return p.X == 0 && p.Y == 0
}

// Bounds is an axis aligned rectangle.
type Bounds struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Translate returns b moved by d.
func (b Bounds) Translate(d Position) Bounds {
	b.X += d.X
	b.Y += d.Y
	return b
}

// PortType identifies the kind of data flowing through a port.
type PortType string

const (
	TypeTable        PortType = "table"
	TypeModel        PortType = "model"
	TypeImage        PortType = "image"
	TypeFlowVariable PortType = "flowvariable"
	// TypeObject is a generic input accepting any data port.
	TypeObject PortType = "object"
)

// Accepts reports whether a destination port of type t can consume src.
func (t PortType) Accepts(src PortType) bool {
	if t == src {
		return true
	}
	return t == TypeObject && src != TypeFlowVariable
}

// Side selects the input or output ports of a node.
type Side string

const (
	SideIn  Side = "in"
	SideOut Side = "out"
)

// Port is one input or output of a node.
type Port struct {
	Index  int      `json:"index"`
	Name   string   `json:"name"`
	Type   PortType `json:"typeId"`
	Group  string   `json:"group,omitempty"`
	Hidden bool     `json:"hidden,omitempty"`
}

// PortGroup declares a named run of ports on one side of a native node.
// Fixed groups carry exactly one port per declared type; extendable groups
// carry between Min and Max ports (Max zero means unbounded) of any of Types.
type PortGroup struct {
	Name       string     `json:"name"`
	Side       Side       `json:"side"`
	Extendable bool       `json:"extendable,omitempty"`
	Types      []PortType `json:"types"`
	Min        int        `json:"min,omitempty"`
	Max        int        `json:"max,omitempty"`
}

// Supports reports whether the group accepts ports of type t.
func (pg PortGroup) Supports(t PortType) bool {
	return slices.Contains(pg.Types, t)
}

// Kind discriminates the node union.
type Kind string

const (
	KindNative    Kind = "native"
	KindMetanode  Kind = "metanode"
	KindComponent Kind = "component"
)

// LoopRole marks natives that start or end a loop body.
type LoopRole string

const (
	LoopNone  LoopRole = ""
	LoopStart LoopRole = "start"
	LoopEnd   LoopRole = "end"
)

// Native is the payload of leaf nodes backed by a catalog factory.
type Native struct {
	FactoryKey string      `json:"factoryKey"`
	Settings   string      `json:"settings,omitempty"`
	Groups     []PortGroup `json:"portGroups,omitempty"`
	Loop       LoopRole    `json:"loop,omitempty"`
	Iterations int         `json:"iterations,omitempty"`
}

// Link is a hyperlink attached to metadata.
type Link struct {
	URL  string `json:"url"`
	Text string `json:"text"`
}

// Metadata describes a project or component.
type Metadata struct {
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Links       []Link   `json:"links,omitempty"`
}

// ComponentMetadata extends Metadata with component specific fields.
type ComponentMetadata struct {
	Metadata
	Type string `json:"type,omitempty"`
	Icon string `json:"icon,omitempty"`
}

// TemplateLink ties a component to a shared template.
type TemplateLink struct {
	URI     string `json:"uri"`
	Version int    `json:"version"`
}

// Container is the payload of metanodes and components.
type Container struct {
	Name     string             `json:"name"`
	Locked   bool               `json:"locked,omitempty"`
	Metadata *ComponentMetadata `json:"metadata,omitempty"`
	Link     *TemplateLink      `json:"link,omitempty"`
}

// Node is either a native leaf or a container. Exactly one of Native and
// Container is set, matching Kind.
type Node struct {
	ID        nodeid.ID  `json:"id"`
	Kind      Kind       `json:"kind"`
	Position  Position   `json:"position"`
	Label     string     `json:"label,omitempty"`
	InPorts   []Port     `json:"inPorts"`
	OutPorts  []Port     `json:"outPorts"`
	Native    *Native    `json:"native,omitempty"`
	Container *Container `json:"container,omitempty"`
}

// IsContainer reports whether n owns a nested level.
func (n *Node) IsContainer() bool {
	return n.Kind == KindMetanode || n.Kind == KindComponent
}

// IsLoopEnd reports whether n is a native loop end.
func (n *Node) IsLoopEnd() bool {
	return n.Kind == KindNative && n.Native != nil && n.Native.Loop == LoopEnd
}

// Ports returns the ports on the given side.
func (n *Node) Ports(side Side) []Port {
	if side == SideIn {
		return n.InPorts
	}
	return n.OutPorts
}

func (n *Node) setPorts(side Side, ports []Port) {
	for i := range ports {
		ports[i].Index = i
	}
	if side == SideIn {
		n.InPorts = ports
	} else {
		n.OutPorts = ports
	}
}

// Clone returns a deep copy of n.
func (n *Node) Clone() *Node {
	c := *n
	c.InPorts = slices.Clone(n.InPorts)
	c.OutPorts = slices.Clone(n.OutPorts)
	if n.Native != nil {
		nat := *n.Native
		nat.Groups = make([]PortGroup, len(n.Native.Groups))
		for i, g := range n.Native.Groups {
			g.Types = slices.Clone(g.Types)
			nat.Groups[i] = g
		}
		if n.Native.Groups == nil {
			nat.Groups = nil
		}
		c.Native = &nat
	}
	if n.Container != nil {
		con := *n.Container
		if n.Container.Metadata != nil {
			md := n.Container.Metadata.clone()
			con.Metadata = &md
		}
		if n.Container.Link != nil {
			l := *n.Container.Link
			con.Link = &l
		}
		c.Container = &con
	}
	return &c
}

func (m Metadata) clone() Metadata {
	m.Tags = slices.Clone(m.Tags)
	m.Links = slices.Clone(m.Links)
	return m
}

func (m ComponentMetadata) clone() ComponentMetadata {
	m.Metadata = m.Metadata.clone()
	return m
}

// flowVariablePort is port 0 of natives and components.
func flowVariablePort() Port {
	return Port{Name: "Variable", Type: TypeFlowVariable, Hidden: true}
}

// NewNative builds an unplaced native node. A hidden flow variable port is
// prepended on both sides; ports from extendable groups start at their minimum.
func NewNative(factoryKey, settings string, groups []PortGroup, loop LoopRole, iterations int) *Node {
	n := &Node{
		Kind: KindNative,
		Native: &Native{
			FactoryKey: factoryKey,
			Settings:   settings,
			Groups:     groups,
			Loop:       loop,
			Iterations: iterations,
		},
	}
	for _, side := range []Side{SideIn, SideOut} {
		ports := []Port{flowVariablePort()}
		for _, g := range groups {
			if g.Side != side {
				continue
			}
			if g.Extendable {
				for i := 0; i < g.Min; i++ {
					ports = append(ports, Port{Name: g.Name, Type: g.Types[0], Group: g.Name})
				}
				continue
			}
			for _, t := range g.Types {
				ports = append(ports, Port{Name: g.Name, Type: t, Group: g.Name})
			}
		}
		n.setPorts(side, ports)
	}
	return n
}

// NewContainer builds an unplaced, empty metanode or component with the
// given data port types.
func NewContainer(kind Kind, name string, in, out []PortType) *Node {
	n := &Node{Kind: kind, Container: &Container{Name: name}}
	if kind == KindComponent {
		n.Container.Metadata = &ComponentMetadata{}
	}
	for _, side := range []Side{SideIn, SideOut} {
		types := in
		if side == SideOut {
			types = out
		}
		var ports []Port
		if kind == KindComponent {
			ports = append(ports, flowVariablePort())
		}
		for _, t := range types {
			ports = append(ports, Port{Name: "Port", Type: t})
		}
		n.setPorts(side, ports)
	}
	return n
}
