package legality

import (
	"testing"

	"github.com/specialistvlad/wfengine/internal/execstate"
	"github.com/specialistvlad/wfengine/internal/nodeid"
	"github.com/specialistvlad/wfengine/internal/nodestore"
	"github.com/specialistvlad/wfengine/internal/testutil"
	"github.com/specialistvlad/wfengine/internal/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStates stores native states and derives container states the way the
// execution machine does.
type fakeStates map[nodeid.ID]nodestore.State

func (f fakeStates) native(id nodeid.ID) nodestore.State {
	if s, ok := f[id]; ok {
		return s
	}
	return nodestore.StateConfigured
}

func (f fakeStates) State(topo execstate.Topology, id nodeid.ID) nodestore.State {
	n, err := topo.Node(id)
	if err != nil || !n.IsContainer() {
		return f.native(id)
	}
	natives := topo.NativeDescendants(id)
	executed := 0
	for _, nid := range natives {
		switch f.native(nid) {
		case nodestore.StateExecuting:
			return nodestore.StateExecuting
		case nodestore.StateExecuted:
			executed++
		}
	}
	if len(natives) > 0 && executed == len(natives) {
		return nodestore.StateExecuted
	}
	return nodestore.StateConfigured
}

func TestDeleteAndCollapse(t *testing.T) {
	g := workflow.NewGraph()
	ids := testutil.Chain(t, g, "A", "B", "C")
	a, b, c := ids[0], ids[1], ids[2]
	spare := testutil.Insert(t, g, nodeid.Root, testutil.TableNode("D", 0, 200))

	tests := []struct {
		name     string
		states   fakeStates
		sel      []nodeid.ID
		delete   bool
		collapse Tri
	}{
		{"idle node", fakeStates{}, []nodeid.ID{spare}, true, True},
		{"empty selection", fakeStates{}, nil, true, False},
		{"executed node", fakeStates{a: nodestore.StateExecuted}, []nodeid.ID{a}, true, ResetRequired},
		{"executing successor outside", fakeStates{a: nodestore.StateExecuted, b: nodestore.StateExecuting}, []nodeid.ID{a}, false, False},
		{"executing member", fakeStates{a: nodestore.StateExecuted, b: nodestore.StateExecuting}, []nodeid.ID{a, b}, false, False},
		{"downstream of executing", fakeStates{a: nodestore.StateExecuted, b: nodestore.StateExecuting}, []nodeid.ID{c}, true, True},
		{"gap in the chain", fakeStates{}, []nodeid.ID{a, c}, true, False},
		{"whole chain", fakeStates{}, []nodeid.ID{a, b, c}, true, True},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gt := New(g, tt.states)
			assert.Equal(t, tt.delete, gt.CanDelete(tt.sel))
			assert.Equal(t, tt.collapse, gt.CanCollapse(tt.sel))
		})
	}
}

func TestExpand(t *testing.T) {
	g := workflow.NewGraph()
	meta := testutil.Insert(t, g, nodeid.Root, workflow.NewContainer(workflow.KindMetanode, "M", nil, []workflow.PortType{workflow.TypeTable}))
	inner := testutil.Insert(t, g, meta, testutil.TableNode("X", 0, 0))
	after := testutil.Insert(t, g, nodeid.Root, testutil.TableNode("B", 200, 0))
	testutil.Connect(t, g, meta, inner, 1, meta, 0)
	testutil.Connect(t, g, nodeid.Root, meta, 0, after, 1)
	native := testutil.Insert(t, g, nodeid.Root, testutil.TableNode("N", 0, 300))

	assert.Equal(t, True, New(g, fakeStates{}).CanExpand(meta))
	assert.Equal(t, False, New(g, fakeStates{}).CanExpand(native))
	assert.Equal(t, ResetRequired, New(g, fakeStates{inner: nodestore.StateExecuted}).CanExpand(meta))
	assert.Equal(t, False, New(g, fakeStates{inner: nodestore.StateExecuting}).CanExpand(meta))
	assert.Equal(t, False, New(g, fakeStates{inner: nodestore.StateExecuted, after: nodestore.StateExecuting}).CanExpand(meta))

	n, err := g.Node(meta)
	require.NoError(t, err)
	n.Container.Locked = true
	assert.Equal(t, False, New(g, fakeStates{}).CanExpand(meta))
}

func TestConnect(t *testing.T) {
	g := workflow.NewGraph()
	ids := testutil.Chain(t, g, "A", "B")
	free := testutil.Insert(t, g, nodeid.Root, testutil.TableNode("C", 0, 200))

	ok, reason := New(g, fakeStates{}).CanConnect(nodeid.Root, &workflow.Connection{Source: ids[0], SourcePort: 1, Dest: free, DestPort: 1})
	assert.True(t, ok)
	assert.Empty(t, reason)

	ok, reason = New(g, fakeStates{}).CanConnect(nodeid.Root, &workflow.Connection{Source: ids[1], SourcePort: 1, Dest: ids[0], DestPort: 1})
	assert.False(t, ok)
	assert.Contains(t, reason, "cycle")

	ok, reason = New(g, fakeStates{free: nodestore.StateExecuting}).CanConnect(nodeid.Root, &workflow.Connection{Source: ids[0], SourcePort: 1, Dest: free, DestPort: 1})
	assert.False(t, ok)
	assert.Contains(t, reason, "executing")

	conn := workflow.ConnectionID{Dest: ids[1], Port: 1}
	assert.True(t, New(g, fakeStates{ids[1]: nodestore.StateExecuted}).CanDeleteConnection(nodeid.Root, conn))
	assert.False(t, New(g, fakeStates{ids[1]: nodestore.StateExecuting}).CanDeleteConnection(nodeid.Root, conn))
	assert.False(t, New(g, fakeStates{}).CanDeleteConnection(nodeid.Root, workflow.ConnectionID{Dest: free, Port: 1}))
}

func TestPorts(t *testing.T) {
	g := workflow.NewGraph()
	concat := workflow.NewNative("test.concat", "", []workflow.PortGroup{
		{Name: "Inputs", Side: workflow.SideIn, Extendable: true, Types: []workflow.PortType{workflow.TypeTable}, Min: 1, Max: 3},
		{Name: "Output", Side: workflow.SideOut, Types: []workflow.PortType{workflow.TypeTable}},
	}, workflow.LoopNone, 0)
	id := testutil.Insert(t, g, nodeid.Root, concat)
	next := testutil.Insert(t, g, nodeid.Root, testutil.TableNode("B", 200, 0))
	testutil.Connect(t, g, nodeid.Root, id, 1, next, 1)
	idle := New(g, fakeStates{})

	assert.True(t, idle.CanAddPort(id, workflow.SideIn, "Inputs", workflow.TypeTable))
	assert.False(t, idle.CanAddPort(id, workflow.SideIn, "Inputs", workflow.TypeModel))
	assert.False(t, idle.CanAddPort(id, workflow.SideOut, "Output", workflow.TypeTable))
	assert.False(t, idle.CanRemovePort(id, workflow.SideIn, 0), "flow variable port")
	assert.False(t, idle.CanRemovePort(id, workflow.SideIn, 1), "group at its minimum")
	assert.False(t, idle.CanRemovePort(id, workflow.SideOut, 1), "fixed port")

	_, err := g.AddPort(id, workflow.SideIn, "Inputs", workflow.TypeTable)
	require.NoError(t, err)
	assert.True(t, idle.CanRemovePort(id, workflow.SideIn, 2))
	assert.False(t, New(g, fakeStates{id: nodestore.StateExecuted, next: nodestore.StateExecuting}).CanRemovePort(id, workflow.SideIn, 2))
	assert.False(t, New(g, fakeStates{id: nodestore.StateExecuting}).CanAddPort(id, workflow.SideIn, "Inputs", workflow.TypeTable))
}

func TestNodeActions(t *testing.T) {
	g := workflow.NewGraph()
	ids := testutil.Chain(t, g, "A", "B")
	meta := testutil.Insert(t, g, nodeid.Root, workflow.NewContainer(workflow.KindMetanode, "M", nil, nil))
	testutil.Insert(t, g, meta, testutil.TableNode("X", 0, 0))
	gt := New(g, fakeStates{ids[0]: nodestore.StateExecuted, ids[1]: nodestore.StateExecuting})

	a, err := g.Node(ids[0])
	require.NoError(t, err)
	assert.Equal(t, NodeActions{
		CanExecute:  false,
		CanReset:    false,
		CanCancel:   false,
		CanDelete:   false,
		CanReplace:  false,
		CanCollapse: False,
	}, gt.Node(a))

	b, err := g.Node(ids[1])
	require.NoError(t, err)
	assert.True(t, gt.Node(b).CanCancel)

	m, err := g.Node(meta)
	require.NoError(t, err)
	assert.Equal(t, NodeActions{
		CanExecute:  true,
		CanDelete:   true,
		CanCollapse: True,
		CanExpand:   True,
		CanRename:   true,
	}, gt.Node(m))

	assert.Equal(t, WorkflowActions{CanExecute: true, CanCancel: true}, gt.Workflow(nodeid.Root))
}
