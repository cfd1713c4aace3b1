package workflow

import (
	"maps"
	"slices"

	"github.com/specialistvlad/wfengine/internal/nodeid"
)

// Memento is a restorable copy of one container level: its own node record,
// its level, its direct children and the full subtrees of selected child
// containers. Nested containers outside the selection keep their content,
// so their histories stay independent.
type Memento struct {
	container nodeid.ID
	self      *Node
	level     *Level
	children  map[nodeid.ID]*Node
	deep      []nodeid.ID
	subtree   map[nodeid.ID]*Node
	levels    map[nodeid.ID]*Level
}

// Container returns the level the memento belongs to.
func (m *Memento) Container() nodeid.ID { return m.container }

// Capture copies the state of container, including the complete content of
// the listed child containers.
func (g *Graph) Capture(container nodeid.ID, deep ...nodeid.ID) *Memento {
	m := &Memento{
		container: container,
		children:  make(map[nodeid.ID]*Node),
		subtree:   make(map[nodeid.ID]*Node),
		levels:    make(map[nodeid.ID]*Level),
	}
	if n := g.ContainerNode(container); n != nil {
		m.self = n.Clone()
	}
	if l, ok := g.levels[container]; ok {
		m.level = l.Clone()
	}
	for _, n := range g.Children(container) {
		m.children[n.ID] = n.Clone()
	}
	for _, id := range deep {
		if id.Parent() != container || !g.IsContainer(id) || slices.Contains(m.deep, id) {
			continue
		}
		m.deep = append(m.deep, id)
		m.levels[id] = g.levels[id].Clone()
		for _, d := range g.Descendants(id) {
			m.subtree[d] = g.nodes[d].Clone()
			if l, ok := g.levels[d]; ok {
				m.levels[d] = l.Clone()
			}
		}
	}
	return m
}

// CaptureAfter copies the state of container after a change whose pre-state
// is before. Child containers that did not exist before are copied in full,
// as are those copied in full by before.
func (g *Graph) CaptureAfter(before *Memento) *Memento {
	deep := slices.Clone(before.deep)
	for _, n := range g.Children(before.container) {
		if _, existed := before.children[n.ID]; !existed && n.IsContainer() {
			deep = append(deep, n.ID)
		}
	}
	return g.Capture(before.container, deep...)
}

// Nested returns the child containers whose content the memento copies in
// full.
func (m *Memento) Nested() []nodeid.ID { return slices.Clone(m.deep) }

// Region returns the node ids a memento covers.
func (m *Memento) Region() []nodeid.ID {
	ids := slices.Collect(maps.Keys(m.children))
	ids = append(ids, slices.Collect(maps.Keys(m.subtree))...)
	nodeid.Sort(ids)
	return ids
}

// Restore puts the graph back into the captured state and returns the ids
// of nodes that were dropped or replaced wholesale.
func (g *Graph) Restore(m *Memento) []nodeid.ID {
	var dropped []nodeid.ID
	for _, n := range g.Children(m.container) {
		if _, keep := m.children[n.ID]; !keep {
			dropped = append(dropped, g.dropSubtree(n.ID)...)
		}
	}
	for _, id := range m.deep {
		for _, d := range g.Descendants(id) {
			delete(g.nodes, d)
			delete(g.levels, d)
			dropped = append(dropped, d)
		}
		delete(g.levels, id)
	}
	if m.self != nil {
		g.nodes[m.container] = m.self.Clone()
	}
	if m.level != nil {
		g.levels[m.container] = m.level.Clone()
	}
	for id, n := range m.children {
		g.nodes[id] = n.Clone()
		if _, ok := g.levels[id]; !ok && n.IsContainer() {
			g.levels[id] = newLevel(id)
		}
	}
	for id, n := range m.subtree {
		g.nodes[id] = n.Clone()
	}
	for id, l := range m.levels {
		g.levels[id] = l.Clone()
	}
	nodeid.Sort(dropped)
	return dropped
}
