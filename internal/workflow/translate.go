package workflow

import (
	"fmt"
	"slices"
	"strings"

	"github.com/specialistvlad/wfengine/internal/nodeid"
	"github.com/specialistvlad/wfengine/internal/wferr"
)

// Parts names workflow elements within one container.
type Parts struct {
	Nodes       []nodeid.ID
	Annotations []AnnotationID
	Connections []ConnectionID
	// Bendpoints maps a connection to the indices of the bendpoints to move.
	Bendpoints map[ConnectionID][]int
	InBar      bool
	OutBar     bool
}

// Empty reports whether no node or annotation is named.
func (p Parts) Empty() bool {
	return len(p.Nodes) == 0 && len(p.Annotations) == 0
}

// MissingParts describes every named element that does not exist in
// container, grouped by element type, e.g.
// "nodes (root:9), connections (root:8_1)". It is empty when all exist.
func (g *Graph) MissingParts(container nodeid.ID, p Parts) (string, error) {
	l, err := g.Level(container)
	if err != nil {
		return "", err
	}
	var nodes, annotations, conns, bends []string
	for _, id := range p.Nodes {
		if id.Parent() != container || !g.HasNode(id) || id.IsRoot() {
			nodes = append(nodes, id.String())
		}
	}
	for _, id := range p.Annotations {
		if id.Container != container || l.annotationIndex(id) < 0 {
			annotations = append(annotations, id.String())
		}
	}
	for _, cid := range p.Connections {
		if _, ok := l.Connections[cid]; !ok {
			conns = append(conns, cid.String())
		}
	}
	for _, cid := range sortedConnKeys(p.Bendpoints) {
		c, ok := l.Connections[cid]
		if !ok {
			conns = append(conns, cid.String())
			continue
		}
		for _, i := range p.Bendpoints[cid] {
			if i < 0 || i >= len(c.Bendpoints) {
				bends = append(bends, fmt.Sprintf("%s[%d]", cid, i))
			}
		}
	}
	var parts []string
	for _, group := range []struct {
		name string
		ids  []string
	}{
		{"nodes", nodes},
		{"connections", conns},
		{"workflow-annotations", annotations},
		{"bendpoints", bends},
	} {
		if len(group.ids) > 0 {
			parts = append(parts, fmt.Sprintf("%s (%s)", group.name, strings.Join(group.ids, ", ")))
		}
	}
	return strings.Join(parts, ", "), nil
}

// CheckParts verifies that every named element exists in container. The
// error lists all missing elements at once.
func (g *Graph) CheckParts(container nodeid.ID, p Parts) error {
	missing, err := g.MissingParts(container, p)
	if err != nil {
		return err
	}
	if missing != "" {
		return wferr.NotAllowed("workflow.CheckParts",
			"Failed to execute command. Workflow parts not found: %s", missing)
	}
	return nil
}

// Translate moves exactly the named parts by delta. Bendpoints follow only
// when named.
func (g *Graph) Translate(container nodeid.ID, p Parts, delta Position) (bool, error) {
	if err := g.CheckParts(container, p); err != nil {
		return false, err
	}
	if delta.IsZero() {
		return false, nil
	}
	changed := false
	nodes := slices.Clone(p.Nodes)
	nodeid.Sort(nodes)
	for _, id := range slices.Compact(nodes) {
		n := g.nodes[id]
		n.Position = n.Position.Add(delta)
		changed = true
	}
	seen := make(map[AnnotationID]bool)
	for _, id := range p.Annotations {
		if seen[id] {
			continue
		}
		seen[id] = true
		a, _ := g.Annotation(id)
		a.Bounds = a.Bounds.Translate(delta)
		changed = true
	}
	l := g.levels[container]
	for cid, idx := range p.Bendpoints {
		c := l.Connections[cid]
		for _, i := range uniqueInts(idx) {
			c.Bendpoints[i] = c.Bendpoints[i].Add(delta)
			changed = true
		}
	}
	for _, bar := range []struct {
		on bool
		b  *Bounds
	}{{p.InBar, l.InBar}, {p.OutBar, l.OutBar}} {
		if bar.on && bar.b != nil {
			*bar.b = bar.b.Translate(delta)
			changed = true
		}
	}
	return changed, nil
}

// AlignDirection selects the axis nodes are lined up on.
type AlignDirection string

const (
	AlignHorizontal AlignDirection = "horizontal"
	AlignVertical   AlignDirection = "vertical"
)

// Align lines the nodes up with the first of them. Horizontal alignment
// shares the y coordinate, vertical alignment the x coordinate.
func (g *Graph) Align(container nodeid.ID, ids []nodeid.ID, dir AlignDirection) (bool, error) {
	if err := g.CheckParts(container, Parts{Nodes: ids}); err != nil {
		return false, err
	}
	if len(ids) < 2 {
		return false, nil
	}
	ref := g.nodes[ids[0]].Position
	changed := false
	for _, id := range ids[1:] {
		n := g.nodes[id]
		pos := n.Position
		switch dir {
		case AlignHorizontal:
			pos.Y = ref.Y
		case AlignVertical:
			pos.X = ref.X
		default:
			return false, wferr.InvalidInput("workflow.Align", "Unknown alignment direction '%s'", dir)
		}
		if pos != n.Position {
			n.Position = pos
			changed = true
		}
	}
	return changed, nil
}

// AddBendpoint inserts a bendpoint at index on a connection.
func (g *Graph) AddBendpoint(container nodeid.ID, id ConnectionID, index int, pos Position) error {
	c, err := g.Connection(container, id)
	if err != nil {
		return err
	}
	if index < 0 || index > len(c.Bendpoints) {
		return wferr.NotAllowed("workflow.AddBendpoint", "Bendpoint index %d out of range for connection %s", index, id)
	}
	c.Bendpoints = slices.Insert(c.Bendpoints, index, pos)
	return nil
}

// RemoveBendpoint deletes the bendpoint at index from a connection.
func (g *Graph) RemoveBendpoint(container nodeid.ID, id ConnectionID, index int) error {
	c, err := g.Connection(container, id)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(c.Bendpoints) {
		return wferr.NotAllowed("workflow.RemoveBendpoint", "Bendpoint index %d out of range for connection %s", index, id)
	}
	c.Bendpoints = slices.Delete(c.Bendpoints, index, index+1)
	if len(c.Bendpoints) == 0 {
		c.Bendpoints = nil
	}
	return nil
}

func sortedConnKeys[V any](m map[ConnectionID]V) []ConnectionID {
	keys := make([]ConnectionID, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareConnectionIDs)
	return keys
}

func uniqueInts(in []int) []int {
	out := slices.Clone(in)
	slices.Sort(out)
	return slices.Compact(out)
}
