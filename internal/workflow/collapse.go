package workflow

import (
	"cmp"
	"maps"
	"slices"

	"github.com/specialistvlad/wfengine/internal/nodeid"
	"github.com/specialistvlad/wfengine/internal/wferr"
)

// DefaultName returns the name given to containers created by collapse.
func DefaultName(kind Kind) string {
	if kind == KindComponent {
		return "Component"
	}
	return "Metanode"
}

type portKey struct {
	node nodeid.ID
	port int
}

func comparePortKeys(a, b portKey) int {
	if c := nodeid.Compare(a.node, b.node); c != 0 {
		return c
	}
	return cmp.Compare(a.port, b.port)
}

// Collapse moves the selected nodes and annotations of container into a new
// container node placed at the selection's top left corner. Every
// connection crossing the selection boundary is routed through a boundary
// port; crossings sharing a source share a port. Ports are numbered by
// source node, then source port.
func (g *Graph) Collapse(container nodeid.ID, p Parts, kind Kind) (nodeid.ID, error) {
	const op = "workflow.Collapse"
	if p.Empty() {
		return "", wferr.NotAllowed(op, "No nodes or workflow annotations selected")
	}
	if kind != KindMetanode && kind != KindComponent {
		return "", wferr.InvalidInput(op, "Cannot collapse into a node of kind '%s'", kind)
	}
	if err := g.CheckParts(container, Parts{Nodes: p.Nodes, Annotations: p.Annotations}); err != nil {
		return "", err
	}
	if between := g.Between(container, p.Nodes); len(between) > 0 {
		return "", wferr.NotAllowed(op, "Cannot collapse the selection: node %s lies on a path between selected nodes", between[0])
	}
	outer := g.levels[container]

	selected := make(map[nodeid.ID]bool, len(p.Nodes))
	for _, id := range p.Nodes {
		selected[id] = true
	}
	nodes := slices.SortedFunc(maps.Keys(selected), nodeid.Compare)
	annSelected := make(map[AnnotationID]bool, len(p.Annotations))
	for _, id := range p.Annotations {
		annSelected[id] = true
	}

	corner := g.selectionCorner(nodes, outer, annSelected)

	var internal []*Connection
	inbound := make(map[portKey][]*Connection)
	outbound := make(map[portKey][]*Connection)
	for _, c := range outer.sortedConnections() {
		srcIn, dstIn := selected[c.Source], selected[c.Dest]
		switch {
		case srcIn && dstIn:
			internal = append(internal, c)
		case dstIn:
			k := portKey{c.Source, c.SourcePort}
			inbound[k] = append(inbound[k], c)
		case srcIn:
			k := portKey{c.Source, c.SourcePort}
			outbound[k] = append(outbound[k], c)
		default:
			continue
		}
		delete(outer.Connections, c.ID())
	}
	inKeys := slices.SortedFunc(maps.Keys(inbound), comparePortKeys)
	outKeys := slices.SortedFunc(maps.Keys(outbound), comparePortKeys)

	portType := func(k portKey) PortType {
		ports, _ := g.SourcePorts(container, k.node)
		return ports[k.port].Type
	}
	inTypes := make([]PortType, len(inKeys))
	for i, k := range inKeys {
		inTypes[i] = portType(k)
	}
	outTypes := make([]PortType, len(outKeys))
	for i, k := range outKeys {
		outTypes[i] = portType(k)
	}

	cn := NewContainer(kind, DefaultName(kind), inTypes, outTypes)
	cn.Position = corner
	newID, err := g.InsertNode(container, cn)
	if err != nil {
		return "", err
	}
	inner := g.levels[newID]
	offset := 0
	if kind == KindComponent {
		offset = 1
	}

	moved := make(map[nodeid.ID]nodeid.ID, len(nodes))
	for i, id := range nodes {
		target := newID.Child(i + 1)
		g.rebaseSubtree(id, target)
		n := g.nodes[target]
		n.Position = n.Position.Sub(corner)
		moved[id] = target
	}
	inner.NextNode = len(nodes) + 1

	add := func(l *Level, c *Connection) { l.Connections[c.ID()] = c }
	for _, c := range internal {
		c.Source, c.Dest = moved[c.Source], moved[c.Dest]
		add(inner, c)
	}
	for i, k := range inKeys {
		port := offset + i
		add(outer, &Connection{Source: k.node, SourcePort: k.port, Dest: newID, DestPort: port})
		for _, c := range inbound[k] {
			add(inner, &Connection{Source: newID, SourcePort: port, Dest: moved[c.Dest], DestPort: c.DestPort})
		}
	}
	for i, k := range outKeys {
		port := offset + i
		add(inner, &Connection{Source: moved[k.node], SourcePort: k.port, Dest: newID, DestPort: port})
		for _, c := range outbound[k] {
			add(outer, &Connection{Source: newID, SourcePort: port, Dest: c.Dest, DestPort: c.DestPort})
		}
	}

	g.moveAnnotations(outer, inner, annSelected, corner, -1)
	return newID, nil
}

// Between returns the unselected nodes of container that lie on a path
// leading from one selected node to another. Collapsing a selection with
// such nodes would close a cycle through the new container.
func (g *Graph) Between(container nodeid.ID, ids []nodeid.ID) []nodeid.ID {
	l, ok := g.levels[container]
	if !ok {
		return nil
	}
	selected := make(map[nodeid.ID]bool, len(ids))
	for _, id := range ids {
		selected[id] = true
	}
	from := l.reachOutside(container, selected, func(c *Connection) (nodeid.ID, nodeid.ID) { return c.Source, c.Dest })
	to := l.reachOutside(container, selected, func(c *Connection) (nodeid.ID, nodeid.ID) { return c.Dest, c.Source })
	var out []nodeid.ID
	for id := range from {
		if to[id] {
			out = append(out, id)
		}
	}
	nodeid.Sort(out)
	return out
}

// reachOutside walks the level's connections away from the selected nodes,
// in the direction given by step, and returns the unselected nodes reached
// without passing through a selected one.
func (l *Level) reachOutside(container nodeid.ID, selected map[nodeid.ID]bool, step func(*Connection) (nodeid.ID, nodeid.ID)) map[nodeid.ID]bool {
	seen := make(map[nodeid.ID]bool)
	var queue []nodeid.ID
	for id := range selected {
		queue = append(queue, id)
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, c := range l.Connections {
			at, next := step(c)
			if at != cur || next == container || selected[next] || seen[next] {
				continue
			}
			seen[next] = true
			queue = append(queue, next)
		}
	}
	return seen
}

// selectionCorner returns the top left corner of the selected nodes and
// annotations.
func (g *Graph) selectionCorner(nodes []nodeid.ID, l *Level, annSelected map[AnnotationID]bool) Position {
	first := true
	var corner Position
	consider := func(p Position) {
		if first {
			corner, first = p, false
			return
		}
		corner.X = min(corner.X, p.X)
		corner.Y = min(corner.Y, p.Y)
	}
	for _, id := range nodes {
		consider(g.nodes[id].Position)
	}
	for _, a := range l.Annotations {
		if annSelected[a.ID] {
			consider(Position{X: a.Bounds.X, Y: a.Bounds.Y})
		}
	}
	return corner
}

// moveAnnotations transfers the selected annotations from one level to the
// top of another, keeping their z-order. Bounds move by sign*offset and the
// annotations receive ids of the destination level.
func (g *Graph) moveAnnotations(from, to *Level, selected map[AnnotationID]bool, offset Position, sign int) []AnnotationID {
	var ids []AnnotationID
	from.Annotations = slices.DeleteFunc(from.Annotations, func(a *Annotation) bool {
		if !selected[a.ID] {
			return false
		}
		a.ID = AnnotationID{Container: to.ID, Index: to.NextAnnotation}
		to.NextAnnotation++
		a.Bounds = a.Bounds.Translate(Position{X: sign * offset.X, Y: sign * offset.Y})
		to.Annotations = append(to.Annotations, a)
		ids = append(ids, a.ID)
		return true
	})
	return ids
}
