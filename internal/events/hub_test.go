package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/specialistvlad/wfengine/internal/catalog"
	"github.com/specialistvlad/wfengine/internal/commands"
	"github.com/specialistvlad/wfengine/internal/execstate"
	"github.com/specialistvlad/wfengine/internal/nodeid"
	"github.com/specialistvlad/wfengine/internal/registry"
	"github.com/specialistvlad/wfengine/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type emitted struct {
	event string
	data  map[string]any
}

// recorder is an Emitter remembering what was sent.
type recorder struct {
	mu     sync.Mutex
	events []emitted
}

func (r *recorder) Emit(event string, args ...any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	data, _ := args[0].(map[string]any)
	r.events = append(r.events, emitted{event: event, data: data})
	return nil
}

func (r *recorder) named(event string) []map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []map[string]any
	for _, e := range r.events {
		if e.event == event {
			out = append(out, e.data)
		}
	}
	return out
}

func newHub(t *testing.T) (*Hub, *registry.Project) {
	t.Helper()
	logger, _ := testutil.Logger(t)
	cat, err := catalog.Builtin(context.Background())
	require.NoError(t, err)
	reg := registry.New(registry.Options{
		Catalog:     cat,
		Runner:      execstate.RunnerFunc(func(context.Context, execstate.Task) error { return nil }),
		BatchWindow: 10 * time.Millisecond,
		Logger:      logger,
	})
	t.Cleanup(reg.Close)
	p, err := reg.Open(context.Background(), "demo")
	require.NoError(t, err)
	return NewHub(reg, logger), p
}

func TestSubscribeStreamsPatches(t *testing.T) {
	hub, p := newHub(t)
	ctx := context.Background()
	var out recorder

	hub.Subscribe(ctx, "c1", &out, map[string]any{"projectId": p.ID, "workflowId": "root"})
	subscribed := out.named(EventSubscribed)
	require.Len(t, subscribed, 1)
	assert.Equal(t, "0", subscribed[0]["snapshotId"])
	assert.Equal(t, "root", subscribed[0]["workflowId"])
	assert.Contains(t, subscribed[0]["workflow"], "nodes")
	assert.Equal(t, 1, hub.Subscriptions("c1"))

	_, err := p.Execute(ctx, nodeid.Root, &commands.AddNode{FactoryKey: "table.reader"})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(out.named(EventPatch)) > 0 }, 2*time.Second, 10*time.Millisecond)
	ev := out.named(EventPatch)[0]
	assert.Equal(t, "0", ev["previousSnapshotId"])
	assert.NotEqual(t, "0", ev["snapshotId"])
	assert.Equal(t, "root", ev["containerId"])
	assert.NotEmpty(t, ev["patch"])
}

func TestUnsubscribeAndDrop(t *testing.T) {
	hub, p := newHub(t)
	ctx := context.Background()
	var out recorder

	hub.Subscribe(ctx, "c1", &out, map[string]any{"projectId": p.ID})
	hub.Subscribe(ctx, "c1", &out, map[string]any{"projectId": p.ID})
	require.Equal(t, 2, hub.Subscriptions("c1"))

	id := out.named(EventSubscribed)[0]["subscriptionId"]
	hub.Unsubscribe("c1", &out, map[string]any{"subscriptionId": id})
	assert.Equal(t, 1, hub.Subscriptions("c1"))
	require.Len(t, out.named(EventUnsubscribed), 1)

	hub.Unsubscribe("c1", &out, map[string]any{"subscriptionId": id})
	failures := out.named(EventSubscribeError)
	require.Len(t, failures, 1)
	assert.Equal(t, "not_found", failures[0]["kind"])

	hub.Drop("c1")
	assert.Zero(t, hub.Subscriptions("c1"))
}

func TestSubscribeFailures(t *testing.T) {
	hub, p := newHub(t)
	testCases := []struct {
		name     string
		payload  any
		wantKind string
	}{
		{"unknown project", map[string]any{"projectId": "nope"}, "not_found"},
		{"unknown workflow", map[string]any{"projectId": p.ID, "workflowId": "root:4"}, "not_found"},
		{"malformed workflow id", map[string]any{"projectId": p.ID, "workflowId": "banana"}, "invalid_input"},
		{"malformed payload", "just a string", "invalid_input"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var out recorder
			hub.Subscribe(context.Background(), "c1", &out, tc.payload)
			failures := out.named(EventSubscribeError)
			require.Len(t, failures, 1)
			assert.Equal(t, tc.wantKind, failures[0]["kind"])
			assert.Empty(t, out.named(EventSubscribed))
		})
	}
	assert.Zero(t, hub.Subscriptions("c1"))
}
