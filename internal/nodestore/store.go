// Package nodestore defines the interface for storing and retrieving the
// mutable execution state of native nodes.
//
// # Why Node Store Exists
//
// The node store separates **mutable execution state** (state, loop
// progress, last failure) from the **workflow structure** held by package
// workflow. Structure changes only through commands under a per-container
// lock; execution state changes continuously from worker goroutines. Keeping
// the two apart means:
//   - **Concurrency:** workers record progress without touching the graph lock
//   - **Undo:** restoring a structural memento never rewinds execution state
//   - **Flexibility:** the in-memory backend can be swapped for another one
//
// # What Is Stored
//
// Only native nodes have a stored state. The state of a metanode or
// component is derived from its native descendants by the execution state
// machine and is never written here.
//
// # State Transitions
//
// Natives follow this lifecycle:
//
//	CONFIGURED → EXECUTING → EXECUTED
//	     ↑            │           │
//	     └── cancel ──┘── reset ──┘
//
// A node never goes from EXECUTED to EXECUTING directly; it must be reset
// first.
package nodestore

import (
	"context"

	"github.com/specialistvlad/wfengine/internal/nodeid"
)

// State is the execution state of a node.
type State string

const (
	StateConfigured State = "CONFIGURED"
	StateExecuting  State = "EXECUTING"
	StateExecuted   State = "EXECUTED"
)

// LoopStatus is the progress of a loop end node.
type LoopStatus string

const (
	LoopNone     LoopStatus = "NONE"
	LoopRunning  LoopStatus = "RUNNING"
	LoopPaused   LoopStatus = "PAUSED"
	LoopFinished LoopStatus = "FINISHED"
)

// LoopInfo describes where a loop end node is in its iterations.
type LoopInfo struct {
	Status    LoopStatus `json:"status"`
	Iteration int        `json:"iteration"`
	Total     int        `json:"total"`
}

// Store is the interface for managing the execution state of natives.
//
// # Thread-Safety Requirements
//
// Implementations MUST be safe for concurrent use: worker goroutines write
// states while command handlers and view builders read them.
//
// # Typical Implementation
//
// See internal/inmemorystore for the reference implementation using
// sync.Map for fine-grained concurrent access.
type Store interface {
	// SetState records the execution state of a native.
	SetState(ctx context.Context, id nodeid.ID, state State) error

	// GetState returns the recorded state of a native, or StateConfigured
	// if nothing was recorded yet.
	GetState(ctx context.Context, id nodeid.ID) (State, error)

	// SetLoop records the loop progress of a loop end node.
	SetLoop(ctx context.Context, id nodeid.ID, info LoopInfo) error

	// GetLoop returns the loop progress of a node. Nodes that never looped
	// report LoopNone.
	GetLoop(ctx context.Context, id nodeid.ID) (LoopInfo, error)

	// SetError records why the last execution of a node failed. A nil error
	// clears it.
	SetError(ctx context.Context, id nodeid.ID, nodeErr error) error

	// GetError returns the recorded failure of a node, or nil.
	GetError(ctx context.Context, id nodeid.ID) (error, error)

	// Delete forgets everything recorded for a node. Used when nodes leave
	// the workflow.
	Delete(ctx context.Context, id nodeid.ID) error
}
