package registry

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/specialistvlad/wfengine/internal/catalog"
	"github.com/specialistvlad/wfengine/internal/commands"
	"github.com/specialistvlad/wfengine/internal/execstate"
	"github.com/specialistvlad/wfengine/internal/nodeid"
	"github.com/specialistvlad/wfengine/internal/patch"
	"github.com/specialistvlad/wfengine/internal/snapshot"
	"github.com/specialistvlad/wfengine/internal/testutil"
	"github.com/specialistvlad/wfengine/internal/wferr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var instant = execstate.RunnerFunc(func(context.Context, execstate.Task) error { return nil })

func newRegistry(t *testing.T) *Registry {
	t.Helper()
	logger, _ := testutil.Logger(t)
	cat, err := catalog.Builtin(context.Background())
	require.NoError(t, err)
	r := New(Options{
		Catalog:     cat,
		Workers:     2,
		Runner:      instant,
		BatchWindow: 10 * time.Millisecond,
		Logger:      logger,
	})
	t.Cleanup(r.Close)
	return r
}

func TestRegistryLifecycle(t *testing.T) {
	r := newRegistry(t)
	ctx := context.Background()

	_, err := r.Open(ctx, "   ")
	assert.ErrorIs(t, err, wferr.ErrInvalidInput)

	p, err := r.Open(ctx, "demo")
	require.NoError(t, err)
	got, err := r.Get(p.ID)
	require.NoError(t, err)
	assert.Same(t, p, got)

	second, err := r.Open(ctx, "other")
	require.NoError(t, err)
	list := r.List()
	require.Len(t, list, 2)
	assert.Equal(t, "demo", list[0].Name)
	assert.Equal(t, second.ID, list[1].ID)

	require.NoError(t, r.CloseProject(p.ID))
	_, err = r.Get(p.ID)
	assert.ErrorIs(t, err, wferr.ErrNotFound)
	assert.ErrorIs(t, r.CloseProject(p.ID), wferr.ErrNotFound)

	r.Close()
	assert.Empty(t, r.List())
	_, err = r.Open(ctx, "late")
	assert.ErrorIs(t, err, wferr.ErrOperationNotAllowed)
}

// nodeOps returns the operations touching the nodes map.
func nodeOps(p patch.Patch) patch.Patch {
	var out patch.Patch
	for _, op := range p {
		if strings.HasPrefix(op.Path, "/nodes/") {
			out = append(out, op)
		}
	}
	return out
}

func TestCommandsAdvanceSnapshots(t *testing.T) {
	r := newRegistry(t)
	ctx := context.Background()
	p, err := r.Open(ctx, "demo")
	require.NoError(t, err)

	_, base, err := p.State(ctx, nodeid.Root)
	require.NoError(t, err)
	assert.Equal(t, "0", base)

	res, err := p.Execute(ctx, nodeid.Root, &commands.AddNode{FactoryKey: "table.reader"})
	require.NoError(t, err)
	assert.Equal(t, "1", commands.SnapshotID(res))
	added := res.(*commands.AddNodeResult).NewNodeID

	diff, id, err := p.Diff(ctx, nodeid.Root, base)
	require.NoError(t, err)
	assert.Equal(t, "1", id)
	ops := nodeOps(diff)
	require.Len(t, ops, 1, "a new node is a single add")
	assert.Equal(t, patch.OpAdd, ops[0].Op)
	assert.Equal(t, "/nodes/"+added.String(), ops[0].Path)

	undone, err := p.Undo(ctx, nodeid.Root)
	require.NoError(t, err)
	assert.Equal(t, "2", undone.SnapshotID)
	redone, err := p.Redo(ctx, nodeid.Root)
	require.NoError(t, err)
	assert.Equal(t, "3", redone.SnapshotID)

	_, _, err = p.Diff(ctx, nodeid.Root, "17")
	assert.ErrorIs(t, err, wferr.ErrNotFound)

	tree, _, err := p.State(ctx, nodeid.Root)
	require.NoError(t, err)
	entity := tree.(map[string]any)
	assert.Equal(t, "demo", entity["info"].(map[string]any)["name"])
	assert.Contains(t, entity["nodes"], added.String())
}

// events collects delivered events.
type events struct {
	mu  sync.Mutex
	all []snapshot.Event
}

func (e *events) listen(_ context.Context, ev snapshot.Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.all = append(e.all, ev)
	return nil
}

func (e *events) has(op patch.Op) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, ev := range e.all {
		for _, o := range ev.Patch {
			if o.Op == op.Op && o.Path == op.Path && o.Value == op.Value {
				return true
			}
		}
	}
	return false
}

func TestExecutionIsPublished(t *testing.T) {
	r := newRegistry(t)
	ctx := context.Background()
	p, err := r.Open(ctx, "demo")
	require.NoError(t, err)

	res, err := p.Execute(ctx, nodeid.Root, &commands.AddNode{FactoryKey: "table.reader"})
	require.NoError(t, err)
	id := res.(*commands.AddNodeResult).NewNodeID

	var ev events
	sub, err := p.Subscribe(ctx, nodeid.Root, ev.listen)
	require.NoError(t, err)
	defer p.Unsubscribe(sub)

	h, err := p.ChangeNodeState(ctx, nodeid.Root, nil, execstate.ActionExecute)
	require.NoError(t, err)
	waitCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	require.NoError(t, h.Wait(waitCtx))

	want := patch.Op{Op: patch.OpReplace, Path: "/nodes/" + id.String() + "/state", Value: "EXECUTED"}
	require.Eventually(t, func() bool { return ev.has(want) }, 2*time.Second, 10*time.Millisecond)
}

func TestChangeStateErrors(t *testing.T) {
	r := newRegistry(t)
	ctx := context.Background()
	p, err := r.Open(ctx, "demo")
	require.NoError(t, err)
	res, err := p.Execute(ctx, nodeid.Root, &commands.AddNode{FactoryKey: "table.reader"})
	require.NoError(t, err)
	id := res.(*commands.AddNodeResult).NewNodeID

	_, err = p.ChangeNodeState(ctx, nodeid.FromPath(7), nil, execstate.ActionExecute)
	assert.ErrorIs(t, err, wferr.ErrNotFound)
	_, err = p.ChangeNodeState(ctx, nodeid.Root, []nodeid.ID{id}, "explode")
	assert.ErrorIs(t, err, wferr.ErrOperationNotAllowed)
	_, err = p.ChangeLoopState(ctx, id, "step")
	assert.ErrorIs(t, err, wferr.ErrOperationNotAllowed)
}
