package execstate

import (
	"context"
	"time"

	"github.com/specialistvlad/wfengine/internal/nodeid"
)

// Task is one unit of work handed to a Runner.
type Task struct {
	NodeID     nodeid.ID
	FactoryKey string
	Settings   string
	// Iteration is the 1-based iteration of a loop end, zero otherwise.
	Iteration  int
	Iterations int
}

// Runner performs the computation of a native node. Implementations must
// return promptly once ctx is canceled.
type Runner interface {
	Run(ctx context.Context, t Task) error
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context, t Task) error

// Run calls f.
func (f RunnerFunc) Run(ctx context.Context, t Task) error {
	return f(ctx, t)
}

// DelayRunner stands in for real node computations by sleeping.
type DelayRunner struct {
	Delay time.Duration
}

// Run sleeps for the configured delay or until ctx is done.
func (r DelayRunner) Run(ctx context.Context, t Task) error {
	if r.Delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(r.Delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
