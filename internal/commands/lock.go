package commands

import (
	"context"
	"sync"
	"time"

	"github.com/specialistvlad/wfengine/internal/nodeid"
	"github.com/specialistvlad/wfengine/internal/wferr"
)

// locks hands out one exclusive section per container. Each section is a
// channel semaphore so that waiting honors context cancellation.
type locks struct {
	mu   sync.Mutex
	sems map[nodeid.ID]chan struct{}
}

func newLocks() *locks {
	return &locks{sems: make(map[nodeid.ID]chan struct{})}
}

func (l *locks) sem(container nodeid.ID) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.sems[container]
	if !ok {
		s = make(chan struct{}, 1)
		l.sems[container] = s
	}
	return s
}

// acquire enters the exclusive section of container, waiting at most
// timeout (if positive) and never longer than ctx allows.
func (l *locks) acquire(ctx context.Context, container nodeid.ID, timeout time.Duration) (func(), error) {
	s := l.sem(container)
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	select {
	case s <- struct{}{}:
		return func() { <-s }, nil
	case <-ctx.Done():
		return nil, wferr.Wrap(wferr.KindTimeout, "commands.lock", ctx.Err(),
			"Workflow %s is busy with another command", container)
	}
}
