package execstate

import (
	"context"

	"github.com/specialistvlad/wfengine/internal/wferr"
)

// Handle is the future of an execution request.
type Handle struct {
	done   chan struct{}
	err    error
	cancel func()
}

func newHandle() *Handle {
	return &Handle{done: make(chan struct{}), cancel: func() {}}
}

// resolvedHandle returns a handle that is already complete.
func resolvedHandle(err error) *Handle {
	h := newHandle()
	h.resolve(err)
	return h
}

// resolve must be called exactly once.
func (h *Handle) resolve(err error) {
	h.err = err
	close(h.done)
}

// Done is closed once every node of the request has left EXECUTING.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Err returns the first failure of the request. It is nil while the request
// is still running.
func (h *Handle) Err() error {
	select {
	case <-h.done:
		return h.err
	default:
		return nil
	}
}

// Wait blocks until the request completes or ctx is done.
func (h *Handle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return h.err
	case <-ctx.Done():
		return wferr.Wrap(wferr.KindTimeout, "execstate.Wait", ctx.Err(), "Execution did not finish in time")
	}
}

// Cancel cancels every node of the request that has not finished yet.
func (h *Handle) Cancel() {
	h.cancel()
}
