package workflow

import (
	"maps"
	"slices"

	"github.com/specialistvlad/wfengine/internal/nodeid"
	"github.com/specialistvlad/wfengine/internal/wferr"
)

// Fragment is a detached piece of a workflow: a set of sibling nodes with
// their nested content, the connections among them and some annotations.
// Ids stay those of the origin container until the fragment is
// instantiated somewhere.
type Fragment struct {
	Origin      nodeid.ID     `json:"origin"`
	Nodes       []*Node       `json:"nodes"`
	Levels      []*Level      `json:"levels,omitempty"`
	Connections []*Connection `json:"connections,omitempty"`
	Annotations []*Annotation `json:"annotations,omitempty"`
}

// Extract copies the named parts of container into a fragment. Only
// connections with both ends inside the selection are kept.
func (g *Graph) Extract(container nodeid.ID, p Parts) (*Fragment, error) {
	if err := g.CheckParts(container, Parts{Nodes: p.Nodes, Annotations: p.Annotations}); err != nil {
		return nil, err
	}
	f := &Fragment{Origin: container}
	selected := make(map[nodeid.ID]bool)
	for _, id := range p.Nodes {
		selected[id] = true
	}
	for _, id := range slices.SortedFunc(maps.Keys(selected), nodeid.Compare) {
		f.Nodes = append(f.Nodes, g.nodes[id].Clone())
		if l, ok := g.levels[id]; ok {
			f.Levels = append(f.Levels, l.Clone())
		}
		for _, d := range g.Descendants(id) {
			f.Nodes = append(f.Nodes, g.nodes[d].Clone())
			if l, ok := g.levels[d]; ok {
				f.Levels = append(f.Levels, l.Clone())
			}
		}
	}
	for _, c := range g.levels[container].sortedConnections() {
		if selected[c.Source] && selected[c.Dest] {
			f.Connections = append(f.Connections, c.Clone())
		}
	}
	wanted := make(map[AnnotationID]bool)
	for _, id := range p.Annotations {
		wanted[id] = true
	}
	for _, a := range g.levels[container].Annotations {
		if wanted[a.ID] {
			f.Annotations = append(f.Annotations, a.Clone())
		}
	}
	return f, nil
}

// Corner returns the top left corner of the fragment's top level nodes and
// annotations.
func (f *Fragment) Corner() Position {
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
	for _, n := range f.Nodes {
		if n.ID.Parent() == f.Origin {
			consider(n.Position)
		}
	}
	for _, a := range f.Annotations {
		consider(Position{X: a.Bounds.X, Y: a.Bounds.Y})
	}
	return corner
}

// Validate checks the structural integrity of a fragment: nodes sit below
// the origin with consistent kinds, every connection joins existing ports of
// compatible types without closing a cycle, and the id counters of every
// level lie beyond the ids already in use.
func (f *Fragment) Validate() error {
	const op = "workflow.Fragment"
	if f.Origin == "" {
		return wferr.InvalidInput(op, "Fragment has no origin")
	}
	ids := make(map[nodeid.ID]*Node, len(f.Nodes))
	for _, n := range f.Nodes {
		if n == nil || !f.Origin.IsAncestorOf(n.ID) {
			return wferr.InvalidInput(op, "Fragment node outside of origin %s", f.Origin)
		}
		if (n.Kind == KindNative) == (n.Native == nil) || n.IsContainer() == (n.Container == nil) {
			return wferr.InvalidInput(op, "Fragment node %s has an inconsistent kind", n.ID)
		}
		if _, dup := ids[n.ID]; dup {
			return wferr.InvalidInput(op, "Fragment node %s appears twice", n.ID)
		}
		ids[n.ID] = n
	}
	maxChild := make(map[nodeid.ID]int)
	for _, n := range f.Nodes {
		p := n.ID.Parent()
		if p != f.Origin {
			if pn, ok := ids[p]; !ok || !pn.IsContainer() {
				return wferr.InvalidInput(op, "Fragment node %s has no parent", n.ID)
			}
		}
		maxChild[p] = max(maxChild[p], n.ID.Index())
	}

	levels := make(map[nodeid.ID]*Level, len(f.Levels))
	for _, l := range f.Levels {
		if l == nil {
			return wferr.InvalidInput(op, "Fragment contains an empty level")
		}
		if n, ok := ids[l.ID]; !ok || !n.IsContainer() {
			return wferr.InvalidInput(op, "Fragment level %s has no container", l.ID)
		}
		if _, dup := levels[l.ID]; dup {
			return wferr.InvalidInput(op, "Fragment level %s appears twice", l.ID)
		}
		levels[l.ID] = l
		if l.NextNode <= maxChild[l.ID] || l.NextNode < 1 {
			return wferr.InvalidInput(op, "Fragment level %s allocates node ids already in use", l.ID)
		}
		seen := make(map[int]bool, len(l.Annotations))
		for _, a := range l.Annotations {
			if a == nil || a.ID.Container != l.ID || a.ID.Index < 0 || a.ID.Index >= l.NextAnnotation || seen[a.ID.Index] {
				return wferr.InvalidInput(op, "Fragment level %s has inconsistent workflow annotations", l.ID)
			}
			seen[a.ID.Index] = true
		}
		if err := f.checkConnections(ids, l.ID, l.sortedConnections()); err != nil {
			return err
		}
	}
	for p := range maxChild {
		if _, ok := levels[p]; !ok && p != f.Origin {
			return wferr.InvalidInput(op, "Fragment container %s has children but no level", p)
		}
	}

	if err := f.checkConnections(ids, f.Origin, f.Connections); err != nil {
		return err
	}
	for _, a := range f.Annotations {
		if a == nil {
			return wferr.InvalidInput(op, "Fragment contains an empty annotation")
		}
	}
	return nil
}

// checkConnections validates the connections of one fragment level. The
// level's own id stands for its port bars.
func (f *Fragment) checkConnections(ids map[nodeid.ID]*Node, level nodeid.ID, conns []*Connection) error {
	const op = "workflow.Fragment"
	ports := func(id nodeid.ID, side Side) ([]Port, bool) {
		if id == level {
			n, ok := ids[level]
			if !ok {
				return nil, false
			}
			if side == SideOut {
				return n.InPorts, true
			}
			return n.OutPorts, true
		}
		n, ok := ids[id]
		if !ok || id.Parent() != level {
			return nil, false
		}
		return n.Ports(side), true
	}
	taken := make(map[ConnectionID]bool, len(conns))
	next := make(map[nodeid.ID][]nodeid.ID)
	for _, c := range conns {
		if c == nil {
			return wferr.InvalidInput(op, "Fragment contains an empty connection")
		}
		src, okSrc := ports(c.Source, SideOut)
		dst, okDst := ports(c.Dest, SideIn)
		if !okSrc || !okDst {
			return wferr.InvalidInput(op, "Fragment connection with unknown endpoints in %s", level)
		}
		if c.SourcePort < 0 || c.SourcePort >= len(src) || c.DestPort < 0 || c.DestPort >= len(dst) {
			return wferr.InvalidInput(op, "Fragment connection %s refers to a missing port", c.ID())
		}
		if !dst[c.DestPort].Type.Accepts(src[c.SourcePort].Type) {
			return wferr.InvalidInput(op, "Fragment connection %s joins incompatible ports", c.ID())
		}
		if taken[c.ID()] {
			return wferr.InvalidInput(op, "Fragment connection %s appears twice", c.ID())
		}
		taken[c.ID()] = true
		if c.Source != level && c.Dest != level {
			next[c.Source] = append(next[c.Source], c.Dest)
		}
	}
	if id, ok := cycleIn(next); ok {
		return wferr.InvalidInput(op, "Fragment connections form a cycle through %s", id)
	}
	return nil
}

// cycleIn reports a node on a cycle of the adjacency map, if any.
func cycleIn(next map[nodeid.ID][]nodeid.ID) (nodeid.ID, bool) {
	const (
		visiting = 1
		done     = 2
	)
	mark := make(map[nodeid.ID]int)
	var visit func(id nodeid.ID) (nodeid.ID, bool)
	visit = func(id nodeid.ID) (nodeid.ID, bool) {
		mark[id] = visiting
		for _, d := range next[id] {
			switch mark[d] {
			case visiting:
				return d, true
			case 0:
				if at, ok := visit(d); ok {
					return at, true
				}
			}
		}
		mark[id] = done
		return "", false
	}
	for _, id := range slices.SortedFunc(maps.Keys(next), nodeid.Compare) {
		if mark[id] == 0 {
			if at, ok := visit(id); ok {
				return at, true
			}
		}
	}
	return "", false
}

// Instantiated lists the ids created by Instantiate.
type Instantiated struct {
	Nodes       []nodeid.ID
	Annotations []AnnotationID
}

// Instantiate adds a copy of the fragment to container with fresh ids,
// translated by delta.
func (g *Graph) Instantiate(container nodeid.ID, f *Fragment, delta Position) (Instantiated, error) {
	if err := f.Validate(); err != nil {
		return Instantiated{}, err
	}
	l, err := g.Level(container)
	if err != nil {
		return Instantiated{}, err
	}
	var res Instantiated
	renamed := make(map[nodeid.ID]nodeid.ID)
	var tops []nodeid.ID
	for _, n := range f.Nodes {
		if n.ID.Parent() == f.Origin {
			tops = append(tops, n.ID)
		}
	}
	nodeid.Sort(tops)
	for _, id := range tops {
		renamed[id] = container.Child(l.NextNode)
		l.NextNode++
		res.Nodes = append(res.Nodes, renamed[id])
	}
	rebase := func(id nodeid.ID) nodeid.ID {
		for from, to := range renamed {
			if id.Within(from) {
				return id.Rebase(from, to)
			}
		}
		return id
	}
	for _, n := range f.Nodes {
		nc := n.Clone()
		nc.ID = rebase(n.ID)
		if nc.ID.Parent() == container {
			nc.Position = nc.Position.Add(delta)
		}
		g.nodes[nc.ID] = nc
	}
	for _, lv := range f.Levels {
		lc := lv.Clone()
		for from, to := range renamed {
			if lc.ID.Within(from) {
				lc.rebase(from, to)
				break
			}
		}
		g.levels[lc.ID] = lc
	}
	for _, n := range f.Nodes {
		id := rebase(n.ID)
		if _, ok := g.levels[id]; !ok && n.IsContainer() {
			g.levels[id] = newLevel(id)
		}
	}
	for _, c := range f.Connections {
		cc := c.Clone()
		cc.Source, cc.Dest = renamed[c.Source], renamed[c.Dest]
		for i := range cc.Bendpoints {
			cc.Bendpoints[i] = cc.Bendpoints[i].Add(delta)
		}
		l.Connections[cc.ID()] = cc
	}
	for _, a := range f.Annotations {
		ac := a.Clone()
		ac.Bounds = ac.Bounds.Translate(delta)
		id, _ := g.AddAnnotation(container, ac)
		res.Annotations = append(res.Annotations, id)
	}
	return res, nil
}

// ReplaceContent swaps the nested content and ports of container node id
// for those of the single container in f. Position, label and link of id
// are kept; outer connections whose port vanished or became incompatible
// are removed and returned.
func (g *Graph) ReplaceContent(id nodeid.ID, f *Fragment) ([]*Connection, error) {
	const op = "workflow.ReplaceContent"
	if err := f.Validate(); err != nil {
		return nil, err
	}
	n, err := g.Node(id)
	if err != nil {
		return nil, err
	}
	var top *Node
	for _, fn := range f.Nodes {
		if fn.ID.Parent() == f.Origin {
			if top != nil {
				return nil, wferr.InvalidInput(op, "Template must contain exactly one component")
			}
			top = fn
		}
	}
	if top == nil || !top.IsContainer() || !n.IsContainer() {
		return nil, wferr.InvalidInput(op, "Template must contain exactly one component")
	}
	for _, d := range g.Descendants(id) {
		delete(g.nodes, d)
		delete(g.levels, d)
	}
	for _, fn := range f.Nodes {
		if fn == top {
			continue
		}
		nc := fn.Clone()
		nc.ID = nc.ID.Rebase(top.ID, id)
		g.nodes[nc.ID] = nc
	}
	g.levels[id] = newLevel(id)
	for _, lv := range f.Levels {
		lc := lv.Clone()
		lc.rebase(top.ID, id)
		g.levels[lc.ID] = lc
	}
	n.Kind = top.Kind
	n.InPorts = slices.Clone(top.InPorts)
	n.OutPorts = slices.Clone(top.OutPorts)
	link := n.Container.Link
	con := top.Clone().Container
	con.Link = link
	n.Container = con

	outer := g.levels[id.Parent()]
	var removed []*Connection
	for _, c := range outer.sortedConnections() {
		if c.Source != id && c.Dest != id {
			continue
		}
		if err := g.ValidateConnection(id.Parent(), c); err != nil {
			delete(outer.Connections, c.ID())
			removed = append(removed, c)
		}
	}
	return removed, nil
}
