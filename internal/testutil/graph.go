package testutil

import (
	"testing"

	"github.com/specialistvlad/wfengine/internal/nodeid"
	"github.com/specialistvlad/wfengine/internal/workflow"
	"github.com/stretchr/testify/require"
)

// TableNode builds a native with one fixed table input and output.
func TableNode(label string, x, y int) *workflow.Node {
	n := workflow.NewNative("test.table", "", []workflow.PortGroup{
		{Name: "Input", Side: workflow.SideIn, Types: []workflow.PortType{workflow.TypeTable}},
		{Name: "Output", Side: workflow.SideOut, Types: []workflow.PortType{workflow.TypeTable}},
	}, workflow.LoopNone, 0)
	n.Label = label
	n.Position = workflow.Position{X: x, Y: y}
	return n
}

// LoopEndNode builds a loop end native with a table input and output.
func LoopEndNode(label string, iterations int) *workflow.Node {
	n := workflow.NewNative("test.loop.end", "", []workflow.PortGroup{
		{Name: "Input", Side: workflow.SideIn, Types: []workflow.PortType{workflow.TypeTable}},
		{Name: "Output", Side: workflow.SideOut, Types: []workflow.PortType{workflow.TypeTable}},
	}, workflow.LoopEnd, iterations)
	n.Label = label
	return n
}

// Insert adds n to a container and returns its id.
func Insert(t *testing.T, g *workflow.Graph, container nodeid.ID, n *workflow.Node) nodeid.ID {
	t.Helper()
	id, err := g.InsertNode(container, n)
	require.NoError(t, err)
	return id
}

// Connect wires src:sp to dst:dp inside a container.
func Connect(t *testing.T, g *workflow.Graph, container, src nodeid.ID, sp int, dst nodeid.ID, dp int) workflow.ConnectionID {
	t.Helper()
	c := &workflow.Connection{Source: src, SourcePort: sp, Dest: dst, DestPort: dp}
	_, err := g.AddConnection(container, c)
	require.NoError(t, err)
	return c.ID()
}

// Chain inserts n table nodes at the root, wired one after the other through
// their first data ports, and returns their ids in order.
func Chain(t *testing.T, g *workflow.Graph, labels ...string) []nodeid.ID {
	t.Helper()
	ids := make([]nodeid.ID, len(labels))
	for i, l := range labels {
		ids[i] = Insert(t, g, nodeid.Root, TableNode(l, i*100, 0))
		if i > 0 {
			Connect(t, g, nodeid.Root, ids[i-1], 1, ids[i], 1)
		}
	}
	return ids
}
