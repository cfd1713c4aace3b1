package workflow

import (
	"testing"

	"github.com/specialistvlad/wfengine/internal/nodeid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAutoConnect(t *testing.T) {
	tests := []struct {
		name  string
		setup func(g *Graph, ids []nodeid.ID)
		order []int
		opts  AutoConnectOptions
		guard ConnectGuard
		want  []string
	}{
		{
			name:  "chains visible ports in selection order",
			order: []int{0, 1, 2},
			want:  []string{"A:1->B:1", "B:1->C:1"},
		},
		{
			name:  "selection order decides direction",
			order: []int{2, 0},
			want:  []string{"C:1->A:1"},
		},
		{
			name:  "flow variables only",
			order: []int{0, 1},
			opts:  AutoConnectOptions{FlowVariablesOnly: true},
			want:  []string{"A:0->B:0"},
		},
		{
			name: "occupied visible port falls back to flow variables",
			setup: func(g *Graph, ids []nodeid.ID) {
				g.levels[root].Connections[ConnectionID{Dest: ids[1], Port: 1}] =
					&Connection{Source: ids[2], SourcePort: 1, Dest: ids[1], DestPort: 1}
			},
			order: []int{0, 1},
			want:  []string{"A:0->B:0", "C:1->B:1"},
		},
		{
			name: "pair closing a cycle is skipped",
			setup: func(g *Graph, ids []nodeid.ID) {
				g.levels[root].Connections[ConnectionID{Dest: ids[1], Port: 1}] =
					&Connection{Source: ids[0], SourcePort: 1, Dest: ids[1], DestPort: 1}
			},
			order: []int{1, 0},
			want:  []string{"A:1->B:1"},
		},
		{
			name:  "guard vetoes",
			order: []int{0, 1},
			guard: func(*Connection) bool { return false },
			want:  nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGraph()
			ids := []nodeid.ID{
				insert(t, g, root, tableNode("A", 0, 0)),
				insert(t, g, root, tableNode("B", 0, 0)),
				insert(t, g, root, tableNode("C", 0, 0)),
			}
			if tt.setup != nil {
				tt.setup(g, ids)
			}
			var sel []nodeid.ID
			for _, i := range tt.order {
				sel = append(sel, ids[i])
			}
			_, err := g.AutoConnect(root, sel, tt.opts, tt.guard)
			require.NoError(t, err)
			assert.Equal(t, tt.want, wiring(g, root))
		})
	}
}

func TestAutoConnectIsIdempotent(t *testing.T) {
	g := NewGraph()
	a := insert(t, g, root, tableNode("A", 0, 0))
	b := insert(t, g, root, tableNode("B", 0, 0))

	res, err := g.AutoConnect(root, []nodeid.ID{a, b}, AutoConnectOptions{}, nil)
	require.NoError(t, err)
	assert.Len(t, res.Added, 1)

	res, err = g.AutoConnect(root, []nodeid.ID{a, b}, AutoConnectOptions{}, nil)
	require.NoError(t, err)
	assert.Empty(t, res.Added)
	assert.Len(t, g.Connections(root), 1)
}

func TestAutoConnectPortBars(t *testing.T) {
	g := NewGraph()
	m := insert(t, g, root, NewContainer(KindMetanode, "M", []PortType{TypeTable}, []PortType{TypeTable}))
	x := insert(t, g, m, tableNode("X", 0, 0))

	res, err := g.AutoConnect(m, []nodeid.ID{x}, AutoConnectOptions{InBar: true, OutBar: true}, nil)
	require.NoError(t, err)
	assert.Len(t, res.Added, 2)
	assert.Equal(t, []string{"X:1->bar:0", "bar:0->X:1"}, wiring(g, m))

	_, err = g.AutoConnect(m, []nodeid.ID{x}, AutoConnectOptions{}, nil)
	assert.Error(t, err, "a single node without bars cannot be chained")
}
