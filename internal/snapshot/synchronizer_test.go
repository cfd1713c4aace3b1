package snapshot

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/specialistvlad/wfengine/internal/nodeid"
	"github.com/specialistvlad/wfengine/internal/patch"
	"github.com/specialistvlad/wfengine/internal/wferr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// docs is a Source serving mutable per container trees.
type docs struct {
	mu    sync.Mutex
	trees map[nodeid.ID]any
	err   error
}

func (d *docs) set(container nodeid.ID, tree any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.trees[container] = tree
}

func (d *docs) Content(_ context.Context, container nodeid.ID) (any, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	return d.trees[container], nil
}

func newDocs() *docs {
	return &docs{trees: map[nodeid.ID]any{nodeid.Root: map[string]any{"nodes": map[string]any{}}}}
}

func nodes(ids ...string) map[string]any {
	m := make(map[string]any)
	for _, id := range ids {
		m[id] = map[string]any{"id": id, "position": map[string]any{"x": 0.0, "y": 0.0}}
	}
	return map[string]any{"nodes": m}
}

func TestCommitOnlyOnChange(t *testing.T) {
	d := newDocs()
	s := New(d, Options{})
	defer s.Close()
	ctx := context.Background()

	id, err := s.Commit(ctx, nodeid.Root)
	require.NoError(t, err)
	assert.Equal(t, "0", id)

	id, err = s.Commit(ctx, nodeid.Root)
	require.NoError(t, err)
	assert.Equal(t, "0", id, "unchanged content keeps the snapshot")

	d.set(nodeid.Root, nodes("root:1"))
	id, err = s.Commit(ctx, nodeid.Root)
	require.NoError(t, err)
	assert.Equal(t, "1", id)

	tree, id, err := s.State(ctx, nodeid.Root)
	require.NoError(t, err)
	assert.Equal(t, "1", id)
	assert.Equal(t, nodes("root:1"), tree)

	other := nodeid.FromPath(1)
	d.set(other, nodes())
	id, err = s.Commit(ctx, other)
	require.NoError(t, err)
	assert.Equal(t, "0", id, "every container counts on its own")
}

// ticking is a Source whose content changes on every read. Reads pause
// before returning so that concurrent commits interleave.
type ticking struct {
	n atomic.Int64
}

func (tk *ticking) Content(context.Context, nodeid.ID) (any, error) {
	n := tk.n.Add(1)
	time.Sleep(time.Duration(n%3) * time.Millisecond)
	return map[string]any{"n": float64(n)}, nil
}

func TestConcurrentCommitsKeepReadOrder(t *testing.T) {
	s := New(&ticking{}, Options{})
	defer s.Close()

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Commit(context.Background(), nodeid.Root)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	s.mu.Lock()
	versions := append([]version(nil), s.histories[nodeid.Root].versions...)
	s.mu.Unlock()
	require.Len(t, versions, 20)
	for i := 1; i < len(versions); i++ {
		prev := versions[i-1].tree.(map[string]any)["n"].(float64)
		cur := versions[i].tree.(map[string]any)["n"].(float64)
		assert.Less(t, prev, cur, "snapshot %s holds older content than %s", versions[i].id, versions[i-1].id)
		assert.Equal(t, strconv.Itoa(i), versions[i].id)
	}
}

func TestDiffAddsNewNodeOnce(t *testing.T) {
	d := newDocs()
	d.set(nodeid.Root, nodes("root:1"))
	s := New(d, Options{})
	defer s.Close()
	ctx := context.Background()

	base, err := s.Commit(ctx, nodeid.Root)
	require.NoError(t, err)
	d.set(nodeid.Root, nodes("root:1", "root:2"))

	p, id, err := s.Diff(ctx, nodeid.Root, base)
	require.NoError(t, err)
	assert.Equal(t, "1", id)
	want := patch.Patch{{
		Op:    patch.OpAdd,
		Path:  "/nodes/root:2",
		Value: map[string]any{"id": "root:2", "position": map[string]any{"x": 0.0, "y": 0.0}},
	}}
	if diff := cmp.Diff(want, p); diff != "" {
		t.Errorf("Diff() mismatch (-want +got):\n%s", diff)
	}

	p, id, err = s.Diff(ctx, nodeid.Root, id)
	require.NoError(t, err)
	assert.Equal(t, "1", id)
	assert.Empty(t, p)
}

func TestDiffUnknownBase(t *testing.T) {
	d := newDocs()
	s := New(d, Options{Retain: 2})
	defer s.Close()
	ctx := context.Background()

	for i := range 4 {
		d.set(nodeid.Root, map[string]any{"n": float64(i)})
		_, err := s.Commit(ctx, nodeid.Root)
		require.NoError(t, err)
	}
	for _, base := range []string{"0", "1", "42"} {
		_, _, err := s.Diff(ctx, nodeid.Root, base)
		assert.ErrorIs(t, err, wferr.ErrNotFound, base)
	}
	p, id, err := s.Diff(ctx, nodeid.Root, "2")
	require.NoError(t, err)
	assert.Equal(t, "3", id)
	assert.Equal(t, patch.Patch{{Op: patch.OpReplace, Path: "/n", Value: float64(3)}}, p)
}

func TestSourceErrorsPropagate(t *testing.T) {
	d := newDocs()
	d.err = wferr.NotFound("test", "Workflow not found")
	s := New(d, Options{})
	defer s.Close()

	_, err := s.Commit(context.Background(), nodeid.Root)
	assert.ErrorIs(t, err, wferr.ErrNotFound)
	_, _, err = s.Diff(context.Background(), nodeid.Root, "0")
	assert.ErrorIs(t, err, wferr.ErrNotFound)
}

// recorder collects events and can be told to fail.
type recorder struct {
	mu     sync.Mutex
	events []Event
	fail   int
}

func (r *recorder) listen(_ context.Context, ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail > 0 {
		r.fail--
		return errors.New("client went away")
	}
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) snapshot() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func TestSubscribersReceiveBatches(t *testing.T) {
	d := newDocs()
	s := New(d, Options{BatchWindow: 30 * time.Millisecond})
	defer s.Close()
	ctx := context.Background()

	var r recorder
	_, err := s.Subscribe(ctx, nodeid.Root, r.listen)
	require.NoError(t, err)

	d.set(nodeid.Root, nodes("root:1"))
	_, err = s.Commit(ctx, nodeid.Root)
	require.NoError(t, err)
	d.set(nodeid.Root, nodes("root:1", "root:2"))
	_, err = s.Commit(ctx, nodeid.Root)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(r.snapshot()) == 1 }, 2*time.Second, 5*time.Millisecond)
	ev := r.snapshot()[0]
	assert.Equal(t, nodeid.Root, ev.ContainerID)
	assert.Equal(t, "0", ev.PreviousSnapshotID)
	assert.Equal(t, "2", ev.SnapshotID)

	got, err := patch.Apply(map[string]any{"nodes": map[string]any{}}, ev.Patch)
	require.NoError(t, err)
	assert.Equal(t, nodes("root:1", "root:2"), got)
}

func TestFailedDeliveryIsRetried(t *testing.T) {
	d := newDocs()
	s := New(d, Options{BatchWindow: 10 * time.Millisecond})
	defer s.Close()
	ctx := context.Background()

	r := recorder{fail: 2}
	_, err := s.Subscribe(ctx, nodeid.Root, r.listen)
	require.NoError(t, err)
	d.set(nodeid.Root, nodes("root:1"))
	_, err = s.Commit(ctx, nodeid.Root)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(r.snapshot()) == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, "0", r.snapshot()[0].PreviousSnapshotID)
	assert.Equal(t, "1", r.snapshot()[0].SnapshotID)
}

func TestUnsubscribe(t *testing.T) {
	d := newDocs()
	s := New(d, Options{BatchWindow: 10 * time.Millisecond})
	defer s.Close()
	ctx := context.Background()

	var r recorder
	id, err := s.Subscribe(ctx, nodeid.Root, r.listen)
	require.NoError(t, err)
	assert.True(t, s.Unsubscribe(id))
	assert.False(t, s.Unsubscribe(id))

	d.set(nodeid.Root, nodes("root:1"))
	_, err = s.Commit(ctx, nodeid.Root)
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, r.snapshot())
}

func TestSubscribeAfterClose(t *testing.T) {
	s := New(newDocs(), Options{})
	s.Close()
	s.Close()
	_, err := s.Subscribe(context.Background(), nodeid.Root, func(context.Context, Event) error { return nil })
	assert.ErrorIs(t, err, wferr.ErrOperationNotAllowed)
}
