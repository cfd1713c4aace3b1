package workflow

import (
	"github.com/specialistvlad/wfengine/internal/nodeid"
	"github.com/specialistvlad/wfengine/internal/wferr"
)

// Expanded lists the elements an expand promoted into the parent level.
type Expanded struct {
	Nodes       []nodeid.ID
	Annotations []AnnotationID
}

// Expand dissolves container node id into its parent. Children and
// annotations are promoted with new ids at their absolute positions and
// boundary connections are joined with the matching outer connections.
func (g *Graph) Expand(id nodeid.ID) (Expanded, error) {
	n, err := g.Node(id)
	if err != nil {
		return Expanded{}, err
	}
	if !n.IsContainer() {
		return Expanded{}, wferr.NotAllowed("workflow.Expand", "Node %s is neither a metanode nor a component", id)
	}
	parent := id.Parent()
	outer, inner := g.levels[parent], g.levels[id]

	incoming := make(map[int]*Connection)
	outgoing := make(map[int][]*Connection)
	for _, c := range outer.sortedConnections() {
		switch {
		case c.Dest == id:
			incoming[c.DestPort] = c
		case c.Source == id:
			outgoing[c.SourcePort] = append(outgoing[c.SourcePort], c)
		default:
			continue
		}
		delete(outer.Connections, c.ID())
	}
	innerConns := inner.sortedConnections()

	var res Expanded
	promoted := make(map[nodeid.ID]nodeid.ID)
	for _, child := range g.ChildIDs(id) {
		target := parent.Child(outer.NextNode)
		outer.NextNode++
		g.rebaseSubtree(child, target)
		cn := g.nodes[target]
		cn.Position = cn.Position.Add(n.Position)
		promoted[child] = target
		res.Nodes = append(res.Nodes, target)
	}

	add := func(c *Connection) { outer.Connections[c.ID()] = c }
	for _, c := range innerConns {
		switch c.Kind(id) {
		case ConnStandard:
			c.Source, c.Dest = promoted[c.Source], promoted[c.Dest]
			add(c)
		case ConnBoundaryIn:
			if in := incoming[c.SourcePort]; in != nil {
				add(&Connection{Source: in.Source, SourcePort: in.SourcePort, Dest: promoted[c.Dest], DestPort: c.DestPort})
			}
		case ConnBoundaryOut:
			for _, out := range outgoing[c.DestPort] {
				add(&Connection{Source: promoted[c.Source], SourcePort: c.SourcePort, Dest: out.Dest, DestPort: out.DestPort})
			}
		case ConnThrough:
			if in := incoming[c.SourcePort]; in != nil {
				for _, out := range outgoing[c.DestPort] {
					add(&Connection{Source: in.Source, SourcePort: in.SourcePort, Dest: out.Dest, DestPort: out.DestPort})
				}
			}
		}
	}

	all := make(map[AnnotationID]bool, len(inner.Annotations))
	for _, a := range inner.Annotations {
		all[a.ID] = true
	}
	res.Annotations = g.moveAnnotations(inner, outer, all, n.Position, 1)

	delete(g.nodes, id)
	delete(g.levels, id)
	return res, nil
}
