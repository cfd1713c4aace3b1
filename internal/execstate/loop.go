package execstate

import (
	"context"
	"strings"

	"github.com/specialistvlad/wfengine/internal/nodeid"
	"github.com/specialistvlad/wfengine/internal/nodestore"
	"github.com/specialistvlad/wfengine/internal/wferr"
)

// Loop actions.
const (
	ActionStep   = "step"
	ActionPause  = "pause"
	ActionResume = "resume"
)

// loopControl steers a running loop end between iterations. Guarded by
// Machine.mu except for wake.
type loopControl struct {
	pause bool
	steps int
	wake  chan struct{}
}

func (c *loopControl) signal() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// ChangeLoopState applies a loop action to a loop end node. A blank action
// does nothing. The returned handle completes when a step started from a
// non executing loop has finished its job.
func (m *Machine) ChangeLoopState(topo Topology, id nodeid.ID, action string) (*Handle, error) {
	const op = "execstate.ChangeLoopState"
	n, err := topo.Node(id)
	if err != nil {
		return nil, err
	}
	if !n.IsLoopEnd() {
		return nil, wferr.NotAllowed(op, "The action to change the loop state is not applicable for %s. Not a loop end node.", id)
	}

	action = strings.TrimSpace(action)
	switch action {
	case "":
		return resolvedHandle(nil), nil
	case ActionPause, ActionResume, ActionStep:
	default:
		return nil, wferr.NotAllowed(op, "Unknown action '%s'", action)
	}

	m.mu.Lock()
	ctl, running := m.loops[id]
	paused := running && m.Loop(id).Status == nodestore.LoopPaused
	switch {
	case action == ActionPause && running:
		ctl.pause = true
	case action == ActionResume && paused:
		ctl.pause = false
		ctl.signal()
	case action == ActionStep && paused:
		ctl.steps++
		ctl.signal()
	case action == ActionStep && !running && m.NativeState(id) == nodestore.StateConfigured:
		m.mu.Unlock()
		m.logger.Debug("Stepping into loop.", "nodeID", id)
		return m.execute(topo, []nodeid.ID{id}, id)
	}
	m.mu.Unlock()
	return resolvedHandle(nil), nil
}

// runLoop performs the iterations of a loop end, stopping at checkpoints
// between iterations while the loop is paused.
func (m *Machine) runLoop(ctx context.Context, t *task) error {
	m.mu.Lock()
	ctl := m.loops[t.id]
	m.mu.Unlock()
	if ctl == nil {
		ctl = &loopControl{wake: make(chan struct{}, 1)}
	}

	total := t.spec.Iterations
	m.progress(t, nodestore.LoopInfo{Status: nodestore.LoopRunning, Total: total})
	for i := 1; i <= total; i++ {
		spec := t.spec
		spec.Iteration = i
		if err := m.runner.Run(ctx, spec); err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if i == total {
			break
		}
		if err := m.checkpoint(ctx, t, ctl, nodestore.LoopInfo{Iteration: i, Total: total}); err != nil {
			return err
		}
	}
	m.progress(t, nodestore.LoopInfo{Status: nodestore.LoopFinished, Iteration: total, Total: total})
	return nil
}

// checkpoint blocks between two iterations until the loop may continue.
func (m *Machine) checkpoint(ctx context.Context, t *task, ctl *loopControl, info nodestore.LoopInfo) error {
	for {
		m.mu.Lock()
		if t.status == taskDone {
			m.mu.Unlock()
			return context.Canceled
		}
		proceed := !ctl.pause || ctl.steps > 0
		if proceed {
			if ctl.steps > 0 {
				ctl.steps--
			}
			info.Status = nodestore.LoopRunning
		} else {
			info.Status = nodestore.LoopPaused
		}
		m.setLoop(t.id, info)
		m.mu.Unlock()
		m.notify([]nodeid.ID{t.id})
		if proceed {
			return nil
		}

		select {
		case <-ctl.wake:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// progress records loop progress unless the task was already aborted.
func (m *Machine) progress(t *task, info nodestore.LoopInfo) {
	m.mu.Lock()
	if t.status == taskDone {
		m.mu.Unlock()
		return
	}
	m.setLoop(t.id, info)
	m.mu.Unlock()
	m.notify([]nodeid.ID{t.id})
}
