package workflow

import (
	"maps"
	"slices"
	"sync"

	"github.com/specialistvlad/wfengine/internal/nodeid"
	"github.com/specialistvlad/wfengine/internal/wferr"
)

// Workflow guards a Graph for concurrent use.
type Workflow struct {
	mu sync.RWMutex
	g  *Graph
}

// New creates a workflow with an empty project level.
func New() *Workflow {
	return &Workflow{g: NewGraph()}
}

// Read runs fn with shared access to the graph.
func (w *Workflow) Read(fn func(g *Graph) error) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return fn(w.g)
}

// Write runs fn with exclusive access to the graph. No reader observes the
// graph while fn runs.
func (w *Workflow) Write(fn func(g *Graph) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return fn(w.g)
}

// Graph is the unsynchronized arena of nodes and container levels.
type Graph struct {
	nodes  map[nodeid.ID]*Node
	levels map[nodeid.ID]*Level
}

// NewGraph returns a graph holding only the project level.
func NewGraph() *Graph {
	root := newLevel(nodeid.Root)
	root.Project = &Metadata{}
	return &Graph{
		nodes:  make(map[nodeid.ID]*Node),
		levels: map[nodeid.ID]*Level{nodeid.Root: root},
	}
}

// Node resolves a node by id.
func (g *Graph) Node(id nodeid.ID) (*Node, error) {
	n, ok := g.nodes[id]
	if !ok {
		return nil, wferr.NotFound("workflow.Node", "Node not found: %s", id)
	}
	return n, nil
}

// HasNode reports whether id resolves to a node.
func (g *Graph) HasNode(id nodeid.ID) bool {
	_, ok := g.nodes[id]
	return ok
}

// Level resolves the content of a container. Root and every metanode and
// component have one.
func (g *Graph) Level(id nodeid.ID) (*Level, error) {
	l, ok := g.levels[id]
	if !ok {
		if n, isNode := g.nodes[id]; isNode && !n.IsContainer() {
			return nil, wferr.NotFound("workflow.Level", "Node %s is not a metanode or component", id)
		}
		return nil, wferr.NotFound("workflow.Level", "Workflow not found: %s", id)
	}
	return l, nil
}

// ContainerNode returns the node that owns level id, or nil for the root.
func (g *Graph) ContainerNode(id nodeid.ID) *Node {
	if id.IsRoot() {
		return nil
	}
	return g.nodes[id]
}

// Children returns the direct children of a container ordered by id.
func (g *Graph) Children(container nodeid.ID) []*Node {
	var out []*Node
	for id, n := range g.nodes {
		if id.Parent() == container && !id.IsRoot() {
			out = append(out, n)
		}
	}
	slices.SortFunc(out, func(a, b *Node) int { return nodeid.Compare(a.ID, b.ID) })
	return out
}

// ChildIDs returns the ids of the direct children of a container.
func (g *Graph) ChildIDs(container nodeid.ID) []nodeid.ID {
	children := g.Children(container)
	ids := make([]nodeid.ID, len(children))
	for i, n := range children {
		ids[i] = n.ID
	}
	return ids
}

// Descendants returns the ids of every node strictly below id.
func (g *Graph) Descendants(id nodeid.ID) []nodeid.ID {
	var out []nodeid.ID
	for nid := range g.nodes {
		if id.IsAncestorOf(nid) {
			out = append(out, nid)
		}
	}
	nodeid.Sort(out)
	return out
}

// NativeDescendants returns the native nodes strictly below id.
func (g *Graph) NativeDescendants(id nodeid.ID) []nodeid.ID {
	var out []nodeid.ID
	for _, nid := range g.Descendants(id) {
		if g.nodes[nid].Kind == KindNative {
			out = append(out, nid)
		}
	}
	return out
}

// IsContainer reports whether id is the root or a container node.
func (g *Graph) IsContainer(id nodeid.ID) bool {
	_, ok := g.levels[id]
	return ok
}

// Connection resolves a connection within a container.
func (g *Graph) Connection(container nodeid.ID, id ConnectionID) (*Connection, error) {
	l, err := g.Level(container)
	if err != nil {
		return nil, err
	}
	c, ok := l.Connections[id]
	if !ok {
		return nil, wferr.NotFound("workflow.Connection", "Connection not found: %s", id)
	}
	return c, nil
}

// Connections returns all connections of a container ordered by id.
func (g *Graph) Connections(container nodeid.ID) []*Connection {
	l, ok := g.levels[container]
	if !ok {
		return nil
	}
	return l.sortedConnections()
}

// Annotation resolves a workflow annotation.
func (g *Graph) Annotation(id AnnotationID) (*Annotation, error) {
	l, ok := g.levels[id.Container]
	if ok {
		if i := l.annotationIndex(id); i >= 0 {
			return l.Annotations[i], nil
		}
	}
	return nil, wferr.NotFound("workflow.Annotation", "Workflow annotation not found: %s", id)
}

// Annotations returns a container's annotations in z-order.
func (g *Graph) Annotations(container nodeid.ID) []*Annotation {
	l, ok := g.levels[container]
	if !ok {
		return nil
	}
	return slices.Clone(l.Annotations)
}

// Upstream returns the nodes whose outputs id consumes directly. An input
// fed through the enclosing container's in bar resolves to that container's
// own upstream.
func (g *Graph) Upstream(id nodeid.ID) []nodeid.ID {
	set := make(map[nodeid.ID]struct{})
	g.collectUpstream(id, set)
	return sortedIDs(set)
}

func (g *Graph) collectUpstream(id nodeid.ID, set map[nodeid.ID]struct{}) {
	if id.IsRoot() {
		return
	}
	parent := id.Parent()
	l, ok := g.levels[parent]
	if !ok {
		return
	}
	for _, c := range l.Connections {
		if c.Dest != id {
			continue
		}
		if c.Source == parent {
			g.collectUpstream(parent, set)
			continue
		}
		set[c.Source] = struct{}{}
	}
}

// Downstream returns the nodes consuming id's outputs directly. An output
// leaving through the enclosing container's out bar resolves to that
// container's own downstream.
func (g *Graph) Downstream(id nodeid.ID) []nodeid.ID {
	set := make(map[nodeid.ID]struct{})
	g.collectDownstream(id, set)
	return sortedIDs(set)
}

func (g *Graph) collectDownstream(id nodeid.ID, set map[nodeid.ID]struct{}) {
	if id.IsRoot() {
		return
	}
	parent := id.Parent()
	l, ok := g.levels[parent]
	if !ok {
		return
	}
	for _, c := range l.Connections {
		if c.Source != id {
			continue
		}
		if c.Dest == parent {
			g.collectDownstream(parent, set)
			continue
		}
		set[c.Dest] = struct{}{}
	}
}

// Successors returns every node reachable downstream of id, transitively.
func (g *Graph) Successors(id nodeid.ID) []nodeid.ID {
	seen := make(map[nodeid.ID]struct{})
	queue := []nodeid.ID{id}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, d := range g.Downstream(cur) {
			if _, ok := seen[d]; ok {
				continue
			}
			seen[d] = struct{}{}
			queue = append(queue, d)
		}
	}
	delete(seen, id)
	return sortedIDs(seen)
}

func sortedIDs(set map[nodeid.ID]struct{}) []nodeid.ID {
	ids := slices.Collect(maps.Keys(set))
	nodeid.Sort(ids)
	return ids
}
