package inmemorystore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/specialistvlad/wfengine/internal/nodeid"
	"github.com/specialistvlad/wfengine/internal/nodestore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetAndGetState(t *testing.T) {
	s := New()
	ctx := context.Background()
	id := nodeid.MustParse("root:1:2")

	// Nodes start out configured
	state, err := s.GetState(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, nodestore.StateConfigured, state)

	require.NoError(t, s.SetState(ctx, id, nodestore.StateExecuting))

	state, err = s.GetState(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, nodestore.StateExecuting, state)
}

func TestSetAndGetLoop(t *testing.T) {
	s := New()
	ctx := context.Background()
	id := nodeid.MustParse("root:3")

	info, err := s.GetLoop(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, nodestore.LoopNone, info.Status)

	want := nodestore.LoopInfo{Status: nodestore.LoopPaused, Iteration: 1, Total: 3}
	require.NoError(t, s.SetLoop(ctx, id, want))
	info, err = s.GetLoop(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, want, info)
}

func TestSetAndGetError(t *testing.T) {
	s := New()
	ctx := context.Background()
	id := nodeid.MustParse("root:1")

	retrievedErr, err := s.GetError(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, retrievedErr)

	expectedErr := errors.New("a test error occurred")
	require.NoError(t, s.SetError(ctx, id, expectedErr))
	retrievedErr, err = s.GetError(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, expectedErr, retrievedErr)

	// A nil error clears the record
	require.NoError(t, s.SetError(ctx, id, nil))
	retrievedErr, err = s.GetError(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, retrievedErr)
}

func TestDelete(t *testing.T) {
	s := New()
	ctx := context.Background()
	id := nodeid.MustParse("root:5")
	require.NoError(t, s.SetState(ctx, id, nodestore.StateExecuted))
	require.NoError(t, s.SetLoop(ctx, id, nodestore.LoopInfo{Status: nodestore.LoopFinished}))
	require.NoError(t, s.SetError(ctx, id, errors.New("boom")))

	require.NoError(t, s.Delete(ctx, id))

	state, _ := s.GetState(ctx, id)
	assert.Equal(t, nodestore.StateConfigured, state)
	info, _ := s.GetLoop(ctx, id)
	assert.Equal(t, nodestore.LoopNone, info.Status)
	nodeErr, _ := s.GetError(ctx, id)
	assert.Nil(t, nodeErr)
}

// TestStore_ConcurrentAccess verifies that the store can be safely accessed by
// multiple goroutines simultaneously without data races or lost writes.
func TestStore_ConcurrentAccess(t *testing.T) {
	s := New()
	ctx := context.Background()
	numGoroutines := 100
	var wg sync.WaitGroup

	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func(i int) {
			defer wg.Done()
			id := nodeid.FromPath(i + 1)
			s.SetState(ctx, id, nodestore.StateExecuted)
			s.SetLoop(ctx, id, nodestore.LoopInfo{Status: nodestore.LoopRunning, Iteration: i})
			s.SetError(ctx, id, fmt.Errorf("error for node %d", i))
		}(i)
	}
	wg.Wait()

	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func(i int) {
			defer wg.Done()
			id := nodeid.FromPath(i + 1)

			state, err := s.GetState(ctx, id)
			assert.NoError(t, err)
			assert.Equal(t, nodestore.StateExecuted, state, "mismatched state for node %d", i)

			info, err := s.GetLoop(ctx, id)
			assert.NoError(t, err)
			assert.Equal(t, i, info.Iteration, "mismatched loop for node %d", i)

			nodeErr, err := s.GetError(ctx, id)
			assert.NoError(t, err)
			assert.EqualError(t, nodeErr, fmt.Sprintf("error for node %d", i))
		}(i)
	}
	wg.Wait()
}
