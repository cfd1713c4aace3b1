package workflow

import (
	"testing"

	"github.com/specialistvlad/wfengine/internal/nodeid"
	"github.com/specialistvlad/wfengine/internal/wferr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertNodeAllocatesIDs(t *testing.T) {
	g := NewGraph()
	a := insert(t, g, root, tableNode("A", 0, 0))
	b := insert(t, g, root, tableNode("B", 0, 0))
	m := insert(t, g, root, NewContainer(KindMetanode, "M", nil, nil))
	x := insert(t, g, m, tableNode("X", 0, 0))

	assert.Equal(t, nodeid.ID("root:1"), a)
	assert.Equal(t, nodeid.ID("root:2"), b)
	assert.Equal(t, nodeid.ID("root:3"), m)
	assert.Equal(t, nodeid.ID("root:3:1"), x)
	assert.True(t, g.IsContainer(m))
	assert.Equal(t, []nodeid.ID{a, b, m}, g.ChildIDs(root))

	_, err := g.RemoveNode(b)
	require.NoError(t, err)
	c := insert(t, g, root, tableNode("C", 0, 0))
	assert.Equal(t, nodeid.ID("root:4"), c, "ids are never reused")
}

func TestRemoveNodeCascades(t *testing.T) {
	g := NewGraph()
	a := insert(t, g, root, tableNode("A", 0, 0))
	m := insert(t, g, root, NewContainer(KindMetanode, "M", []PortType{TypeTable}, nil))
	x := insert(t, g, m, tableNode("X", 0, 0))
	connect(t, g, root, a, 1, m, 0)
	connect(t, g, m, m, 0, x, 1)

	removed, err := g.RemoveNode(m)
	require.NoError(t, err)
	assert.Equal(t, []nodeid.ID{m, x}, removed)
	assert.Empty(t, g.Connections(root))
	assert.False(t, g.HasNode(x))
	_, err = g.Level(m)
	assert.ErrorIs(t, err, wferr.ErrNotFound)

	_, err = g.RemoveNode(m)
	assert.ErrorIs(t, err, wferr.ErrNotFound)
}

func TestUpstreamDownstreamAcrossBoundaries(t *testing.T) {
	g := NewGraph()
	a := insert(t, g, root, tableNode("A", 0, 0))
	b := insert(t, g, root, tableNode("B", 0, 0))
	m := insert(t, g, root, NewContainer(KindMetanode, "M", []PortType{TypeTable}, []PortType{TypeTable}))
	x := insert(t, g, m, tableNode("X", 0, 0))
	connect(t, g, root, a, 1, m, 0)
	connect(t, g, root, m, 0, b, 1)
	connect(t, g, m, m, 0, x, 1)
	connect(t, g, m, x, 1, m, 0)

	assert.Equal(t, []nodeid.ID{a}, g.Upstream(x))
	assert.Equal(t, []nodeid.ID{b}, g.Downstream(x))
	assert.Equal(t, []nodeid.ID{m}, g.Downstream(a))
	assert.Equal(t, []nodeid.ID{a}, g.Upstream(m))
	assert.Equal(t, []nodeid.ID{b, m}, g.Successors(a))
	assert.Empty(t, g.Upstream(a))
}

func TestLookupsReportNotFound(t *testing.T) {
	g := NewGraph()
	a := insert(t, g, root, tableNode("A", 0, 0))

	_, err := g.Node("root:7")
	assert.ErrorIs(t, err, wferr.ErrNotFound)
	_, err = g.Level(a)
	assert.ErrorIs(t, err, wferr.ErrNotFound)
	assert.ErrorContains(t, err, "not a metanode or component")
	_, err = g.Connection(root, ConnectionID{Dest: a, Port: 1})
	assert.ErrorIs(t, err, wferr.ErrNotFound)
	_, err = g.Annotation(AnnotationID{Container: root, Index: 0})
	assert.ErrorIs(t, err, wferr.ErrNotFound)
}

func TestWorkflowReadWrite(t *testing.T) {
	w := New()
	require.NoError(t, w.Write(func(g *Graph) error {
		_, err := g.InsertNode(root, tableNode("A", 0, 0))
		return err
	}))
	var count int
	require.NoError(t, w.Read(func(g *Graph) error {
		count = len(g.Children(root))
		return nil
	}))
	assert.Equal(t, 1, count)
}

func TestSetName(t *testing.T) {
	g := NewGraph()
	a := insert(t, g, root, tableNode("A", 0, 0))
	m := insert(t, g, root, NewContainer(KindMetanode, "M", nil, nil))

	changed, err := g.SetName(m, "Preprocessing")
	require.NoError(t, err)
	assert.True(t, changed)
	changed, err = g.SetName(m, "Preprocessing")
	require.NoError(t, err)
	assert.False(t, changed)

	_, err = g.SetName(m, "   ")
	assert.ErrorIs(t, err, wferr.ErrInvalidInput)
	_, err = g.SetName(a, "x")
	assert.ErrorIs(t, err, wferr.ErrOperationNotAllowed)
}
