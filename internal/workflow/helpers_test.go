package workflow

import (
	"fmt"
	"maps"
	"slices"
	"testing"

	"github.com/specialistvlad/wfengine/internal/nodeid"
	"github.com/stretchr/testify/require"
)

var root = nodeid.Root

// tableNode builds a native with one fixed table input and output.
func tableNode(label string, x, y int) *Node {
	n := NewNative("test.table", "", []PortGroup{
		{Name: "Input", Side: SideIn, Types: []PortType{TypeTable}},
		{Name: "Output", Side: SideOut, Types: []PortType{TypeTable}},
	}, LoopNone, 0)
	n.Label = label
	n.Position = Position{X: x, Y: y}
	return n
}

func insert(t *testing.T, g *Graph, container nodeid.ID, n *Node) nodeid.ID {
	t.Helper()
	id, err := g.InsertNode(container, n)
	require.NoError(t, err)
	return id
}

func connect(t *testing.T, g *Graph, container, src nodeid.ID, sp int, dst nodeid.ID, dp int) ConnectionID {
	t.Helper()
	c := &Connection{Source: src, SourcePort: sp, Dest: dst, DestPort: dp}
	_, err := g.AddConnection(container, c)
	require.NoError(t, err)
	return c.ID()
}

// label names a node by its label, or "bar" for the container's own bars.
func label(g *Graph, container, id nodeid.ID) string {
	if id == container {
		return "bar"
	}
	return g.nodes[id].Label
}

// wiring describes a level's connections by node labels, sorted.
func wiring(g *Graph, container nodeid.ID) []string {
	var out []string
	for _, c := range g.Connections(container) {
		out = append(out, fmt.Sprintf("%s:%d->%s:%d",
			label(g, container, c.Source), c.SourcePort, label(g, container, c.Dest), c.DestPort))
	}
	slices.Sort(out)
	return out
}

// positions maps labels of a container's children to their positions.
func positions(g *Graph, container nodeid.ID) map[string]Position {
	out := make(map[string]Position)
	for _, n := range g.Children(container) {
		out[n.Label] = n.Position
	}
	return out
}

// cloneGraph deep copies a graph for later comparison.
func cloneGraph(g *Graph) *Graph {
	c := &Graph{nodes: make(map[nodeid.ID]*Node), levels: make(map[nodeid.ID]*Level)}
	for id, n := range g.nodes {
		c.nodes[id] = n.Clone()
	}
	for id, l := range g.levels {
		c.levels[id] = l.Clone()
	}
	return c
}

func nodeIDs(g *Graph) []nodeid.ID {
	return slices.SortedFunc(maps.Keys(g.nodes), nodeid.Compare)
}
