package execstate

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/specialistvlad/wfengine/internal/inmemorystore"
	"github.com/specialistvlad/wfengine/internal/nodeid"
	"github.com/specialistvlad/wfengine/internal/nodestore"
	"github.com/specialistvlad/wfengine/internal/testutil"
	"github.com/specialistvlad/wfengine/internal/wferr"
	"github.com/specialistvlad/wfengine/internal/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitFor = 2 * time.Second

func newMachine(t *testing.T, r Runner) *Machine {
	t.Helper()
	logger, _ := testutil.Logger(t)
	m := New(inmemorystore.New(), Options{Workers: 2, Runner: r, Logger: logger})
	t.Cleanup(m.Close)
	return m
}

func wait(t *testing.T, h *Handle) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	return h.Wait(ctx)
}

// recorder is a runner that remembers the order in which nodes ran.
type recorder struct {
	mu   sync.Mutex
	ran  []nodeid.ID
	fail map[nodeid.ID]error
}

func (r *recorder) Run(_ context.Context, t Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ran = append(r.ran, t.NodeID)
	return r.fail[t.NodeID]
}

func (r *recorder) order() []nodeid.ID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]nodeid.ID(nil), r.ran...)
}

// blocker holds every node until its context is canceled.
var blocker = RunnerFunc(func(ctx context.Context, _ Task) error {
	<-ctx.Done()
	return ctx.Err()
})

func TestExecuteRunsUpstreamFirst(t *testing.T) {
	g := workflow.NewGraph()
	ids := testutil.Chain(t, g, "A", "B", "C")
	rec := &recorder{}
	m := newMachine(t, rec)

	h, err := m.Execute(g, ids[2])
	require.NoError(t, err)
	require.NoError(t, wait(t, h))

	assert.Equal(t, ids, rec.order())
	for _, id := range ids {
		assert.Equal(t, nodestore.StateExecuted, m.State(g, id))
	}
	assert.Equal(t, nodestore.StateExecuted, m.State(g, nodeid.Root))
}

func TestExecuteSkipsExecutedNodes(t *testing.T) {
	g := workflow.NewGraph()
	ids := testutil.Chain(t, g, "A", "B")
	rec := &recorder{}
	m := newMachine(t, rec)

	h, err := m.Execute(g, ids[0])
	require.NoError(t, err)
	require.NoError(t, wait(t, h))
	h, err = m.Execute(g, ids[1])
	require.NoError(t, err)
	require.NoError(t, wait(t, h))

	assert.Equal(t, ids, rec.order())

	h, err = m.Execute(g, ids[1])
	require.NoError(t, err)
	require.NoError(t, wait(t, h))
	assert.Len(t, rec.order(), 2, "executed nodes are not run again")
}

func TestExecuteFailureSkipsDependents(t *testing.T) {
	g := workflow.NewGraph()
	ids := testutil.Chain(t, g, "A", "B", "C")
	boom := errors.New("boom")
	m := newMachine(t, &recorder{fail: map[nodeid.ID]error{ids[1]: boom}})

	h, err := m.Execute(g, ids[2])
	require.NoError(t, err)
	err = wait(t, h)
	require.ErrorIs(t, err, boom)

	assert.Equal(t, nodestore.StateExecuted, m.State(g, ids[0]))
	assert.Equal(t, nodestore.StateConfigured, m.State(g, ids[1]))
	assert.Equal(t, nodestore.StateConfigured, m.State(g, ids[2]))
	assert.ErrorIs(t, m.Failure(ids[1]), boom)
	require.Error(t, m.Failure(ids[2]))
	assert.Contains(t, m.Failure(ids[2]).Error(), "skipped due to upstream failure")
	assert.Equal(t, nodestore.StateConfigured, m.State(g, nodeid.Root))
}

func TestResetCascadesDownstream(t *testing.T) {
	g := workflow.NewGraph()
	ids := testutil.Chain(t, g, "A", "B", "C")
	m := newMachine(t, &recorder{})

	h, err := m.Execute(g, ids[2])
	require.NoError(t, err)
	require.NoError(t, wait(t, h))

	require.NoError(t, m.Reset(g, ids[1]))
	assert.Equal(t, nodestore.StateExecuted, m.State(g, ids[0]))
	assert.Equal(t, nodestore.StateConfigured, m.State(g, ids[1]))
	assert.Equal(t, nodestore.StateConfigured, m.State(g, ids[2]))
}

func TestResetRejectsExecutingSuccessor(t *testing.T) {
	g := workflow.NewGraph()
	ids := testutil.Chain(t, g, "A", "B")
	m := newMachine(t, blocker)

	_, err := m.Execute(g, ids[1])
	require.NoError(t, err)

	err = m.Reset(g, ids[0])
	require.ErrorIs(t, err, wferr.ErrOperationNotAllowed)
	assert.Contains(t, err.Error(), "wrong state of node or successors")
	assert.Equal(t, nodestore.StateExecuting, m.State(g, ids[0]))
}

func TestCancelCascadesDownstream(t *testing.T) {
	g := workflow.NewGraph()
	ids := testutil.Chain(t, g, "A", "B")
	m := newMachine(t, blocker)

	var mu sync.Mutex
	var changed []nodeid.ID
	m.OnChange(func(ids []nodeid.ID) {
		mu.Lock()
		changed = append(changed, ids...)
		mu.Unlock()
	})

	h, err := m.Execute(g, ids[1])
	require.NoError(t, err)
	assert.Equal(t, nodestore.StateExecuting, m.State(g, ids[0]))
	assert.Equal(t, nodestore.StateExecuting, m.State(g, ids[1]))

	require.NoError(t, m.Cancel(g, ids[0]))
	assert.Equal(t, nodestore.StateConfigured, m.State(g, ids[0]))
	assert.Equal(t, nodestore.StateConfigured, m.State(g, ids[1]))
	assert.ErrorIs(t, wait(t, h), context.Canceled)
	assert.Nil(t, m.Failure(ids[0]), "cancellation is not a failure")

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, changed, ids[0])
	assert.Contains(t, changed, ids[1])
}

func TestHandleCancel(t *testing.T) {
	g := workflow.NewGraph()
	ids := testutil.Chain(t, g, "A")
	m := newMachine(t, blocker)

	h, err := m.Execute(g, ids[0])
	require.NoError(t, err)
	assert.Nil(t, h.Err())
	h.Cancel()
	assert.ErrorIs(t, wait(t, h), context.Canceled)
	assert.Equal(t, nodestore.StateConfigured, m.State(g, ids[0]))
}

func TestWaitTimesOut(t *testing.T) {
	g := workflow.NewGraph()
	ids := testutil.Chain(t, g, "A")
	m := newMachine(t, blocker)

	h, err := m.Execute(g, ids[0])
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, h.Wait(ctx), wferr.ErrTimeout)
}

func TestContainerStateIsDerived(t *testing.T) {
	g := workflow.NewGraph()
	meta := testutil.Insert(t, g, nodeid.Root, workflow.NewContainer(workflow.KindMetanode, "M", nil, nil))
	inner := testutil.Insert(t, g, meta, testutil.TableNode("X", 0, 0))
	empty := testutil.Insert(t, g, nodeid.Root, workflow.NewContainer(workflow.KindMetanode, "E", nil, nil))
	m := newMachine(t, &recorder{})

	assert.Equal(t, nodestore.StateConfigured, m.State(g, meta))
	h, err := m.Execute(g, meta)
	require.NoError(t, err)
	require.NoError(t, wait(t, h))

	assert.Equal(t, nodestore.StateExecuted, m.State(g, inner))
	assert.Equal(t, nodestore.StateExecuted, m.State(g, meta))
	assert.Equal(t, nodestore.StateConfigured, m.State(g, empty))
}

func TestExecuteThroughContainerBoundary(t *testing.T) {
	g := workflow.NewGraph()
	src := testutil.Insert(t, g, nodeid.Root, testutil.TableNode("A", 0, 0))
	meta := testutil.Insert(t, g, nodeid.Root, workflow.NewContainer(workflow.KindMetanode, "M", []workflow.PortType{workflow.TypeTable}, nil))
	inner := testutil.Insert(t, g, meta, testutil.TableNode("X", 0, 0))
	testutil.Connect(t, g, nodeid.Root, src, 1, meta, 0)
	testutil.Connect(t, g, meta, meta, 0, inner, 1)
	rec := &recorder{}
	m := newMachine(t, rec)

	h, err := m.Execute(g, inner)
	require.NoError(t, err)
	require.NoError(t, wait(t, h))
	assert.Equal(t, []nodeid.ID{src, inner}, rec.order())

	require.NoError(t, m.Reset(g, src))
	assert.Equal(t, nodestore.StateConfigured, m.State(g, inner))
}

func TestChangeState(t *testing.T) {
	g := workflow.NewGraph()
	ids := testutil.Chain(t, g, "A", "B")
	m := newMachine(t, &recorder{})

	t.Run("unknown action", func(t *testing.T) {
		_, err := m.ChangeState(g, nodeid.Root, ids, "explode")
		require.ErrorIs(t, err, wferr.ErrOperationNotAllowed)
		assert.EqualError(t, err, "Unknown action 'explode'")
	})

	t.Run("blank action", func(t *testing.T) {
		h, err := m.ChangeState(g, nodeid.Root, ids, " ")
		require.NoError(t, err)
		require.NoError(t, wait(t, h))
		assert.Equal(t, nodestore.StateConfigured, m.State(g, ids[0]))
	})

	t.Run("foreign node", func(t *testing.T) {
		_, err := m.ChangeState(g, ids[0], ids, ActionExecute)
		assert.ErrorIs(t, err, wferr.ErrNotFound)
	})

	t.Run("execute and reset whole container", func(t *testing.T) {
		h, err := m.ChangeState(g, nodeid.Root, nil, ActionExecute)
		require.NoError(t, err)
		require.NoError(t, wait(t, h))
		assert.Equal(t, nodestore.StateExecuted, m.State(g, nodeid.Root))

		_, err = m.ChangeState(g, nodeid.Root, nil, ActionReset)
		require.NoError(t, err)
		assert.Equal(t, nodestore.StateConfigured, m.State(g, ids[0]))
		assert.Equal(t, nodestore.StateConfigured, m.State(g, ids[1]))
	})
}

func TestLoopStepPauseResume(t *testing.T) {
	g := workflow.NewGraph()
	loop := testutil.Insert(t, g, nodeid.Root, testutil.LoopEndNode("L", 3))
	rec := &recorder{}
	m := newMachine(t, rec)

	loopIs := func(want nodestore.LoopInfo) {
		t.Helper()
		require.Eventually(t, func() bool { return m.Loop(loop) == want }, waitFor, 5*time.Millisecond)
	}

	assert.Equal(t, nodestore.LoopNone, m.Loop(loop).Status)

	h, err := m.ChangeLoopState(g, loop, ActionStep)
	require.NoError(t, err)
	loopIs(nodestore.LoopInfo{Status: nodestore.LoopPaused, Iteration: 1, Total: 3})
	assert.Equal(t, nodestore.StateExecuting, m.State(g, loop))

	_, err = m.ChangeLoopState(g, loop, ActionStep)
	require.NoError(t, err)
	loopIs(nodestore.LoopInfo{Status: nodestore.LoopPaused, Iteration: 2, Total: 3})

	_, err = m.ChangeLoopState(g, loop, ActionResume)
	require.NoError(t, err)
	require.NoError(t, wait(t, h))
	assert.Equal(t, nodestore.LoopInfo{Status: nodestore.LoopFinished, Iteration: 3, Total: 3}, m.Loop(loop))
	assert.Equal(t, nodestore.StateExecuted, m.State(g, loop))
	assert.Len(t, rec.order(), 3)

	require.NoError(t, m.Reset(g, loop))
	assert.Equal(t, nodestore.LoopNone, m.Loop(loop).Status)
}

func TestLoopPauseWhileRunning(t *testing.T) {
	g := workflow.NewGraph()
	loop := testutil.Insert(t, g, nodeid.Root, testutil.LoopEndNode("L", 2))
	release := make(chan struct{})
	m := newMachine(t, RunnerFunc(func(ctx context.Context, task Task) error {
		if task.Iteration == 1 {
			select {
			case <-release:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	}))

	h, err := m.Execute(g, loop)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return m.Loop(loop).Status == nodestore.LoopRunning }, waitFor, 5*time.Millisecond)

	_, err = m.ChangeLoopState(g, loop, ActionPause)
	require.NoError(t, err)
	close(release)
	require.Eventually(t, func() bool { return m.Loop(loop).Status == nodestore.LoopPaused }, waitFor, 5*time.Millisecond)

	_, err = m.ChangeLoopState(g, loop, ActionResume)
	require.NoError(t, err)
	require.NoError(t, wait(t, h))
	assert.Equal(t, nodestore.LoopFinished, m.Loop(loop).Status)
}

func TestChangeLoopStateRejects(t *testing.T) {
	g := workflow.NewGraph()
	ids := testutil.Chain(t, g, "A")
	loop := testutil.Insert(t, g, nodeid.Root, testutil.LoopEndNode("L", 2))
	m := newMachine(t, &recorder{})

	_, err := m.ChangeLoopState(g, ids[0], ActionStep)
	require.ErrorIs(t, err, wferr.ErrOperationNotAllowed)
	assert.Contains(t, err.Error(), "Not a loop end node.")

	_, err = m.ChangeLoopState(g, loop, "rewind")
	require.ErrorIs(t, err, wferr.ErrOperationNotAllowed)
	assert.EqualError(t, err, "Unknown action 'rewind'")

	_, err = m.ChangeLoopState(g, nodeid.FromPath(42), ActionStep)
	assert.ErrorIs(t, err, wferr.ErrNotFound)

	h, err := m.ChangeLoopState(g, loop, "")
	require.NoError(t, err)
	require.NoError(t, wait(t, h))
	assert.Equal(t, nodestore.LoopNone, m.Loop(loop).Status)
}

func TestForget(t *testing.T) {
	g := workflow.NewGraph()
	ids := testutil.Chain(t, g, "A")
	m := newMachine(t, blocker)

	h, err := m.Execute(g, ids[0])
	require.NoError(t, err)
	m.Forget(ids)
	assert.ErrorIs(t, wait(t, h), context.Canceled)
	assert.Equal(t, nodestore.StateConfigured, m.NativeState(ids[0]))
}
