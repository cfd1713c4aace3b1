package execstate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/specialistvlad/wfengine/internal/nodeid"
	"github.com/specialistvlad/wfengine/internal/nodestore"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type taskStatus int

const (
	taskPending taskStatus = iota
	taskRunning
	taskDone
)

// task is the scheduled execution of one native. Fields other than depCount
// are guarded by Machine.mu.
type task struct {
	id         nodeid.ID
	spec       Task
	ctx        context.Context
	cancel     context.CancelFunc
	depCount   atomic.Int32
	dependents []*task
	status     taskStatus
	// jobs are the requests waiting for this task; the first one created it.
	jobs []*job
}

type job struct {
	tasks   []*task
	pending int
	err     error
	handle  *Handle
}

// enqueue hands a ready task to the pool without blocking the caller.
func (m *Machine) enqueue(t *task) {
	select {
	case m.ready <- t:
	default:
		go func() {
			select {
			case m.ready <- t:
			case <-m.stop:
			}
		}()
	}
}

// worker is the processing loop of a single pool goroutine.
func (m *Machine) worker(workerID int) {
	defer m.wg.Done()
	logger := m.logger.With("workerID", workerID)
	logger.Debug("Worker started.")
	for {
		select {
		case <-m.stop:
			logger.Debug("Worker finished.")
			return
		case t := <-m.ready:
			m.run(logger.With("nodeID", t.id), t)
		}
	}
}

func (m *Machine) run(logger *slog.Logger, t *task) {
	m.mu.Lock()
	if t.status != taskPending {
		m.mu.Unlock()
		return
	}
	t.status = taskRunning
	m.mu.Unlock()

	ctx, span := tracer.Start(t.ctx, "execstate.Task",
		trace.WithAttributes(
			attribute.String("node.id", t.id.String()),
			attribute.String("node.factory", t.spec.FactoryKey),
		),
	)
	logger.Debug("Worker picked up node for execution.")
	start := time.Now()
	var err error
	if t.spec.Iterations > 0 {
		err = m.runLoop(ctx, t)
	} else {
		err = m.runner.Run(ctx, t.spec)
	}
	if err == nil {
		err = t.ctx.Err()
	}
	m.metrics.record(t.ctx, err, time.Since(start))
	switch {
	case err == nil:
		logger.Debug("Node execution succeeded.")
		span.SetStatus(codes.Ok, "")
	case errors.Is(err, context.Canceled):
		logger.Debug("Node execution canceled.")
		span.SetStatus(codes.Error, "canceled")
	default:
		logger.Error("Node execution failed.", "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
	m.complete(t, err)
}

// complete records the outcome of a task that ran on the pool.
func (m *Machine) complete(t *task, err error) {
	m.mu.Lock()
	if t.status == taskDone {
		// Canceled while running; the cancel already reverted it.
		m.mu.Unlock()
		return
	}
	var changed []nodeid.ID
	if err != nil {
		changed = m.abortLocked(t, err)
	} else {
		m.setState(t.id, nodestore.StateExecuted)
		m.setFailure(t.id, nil)
		changed = append(changed, t.id)
		m.finishLocked(t, nil)
		for _, d := range t.dependents {
			if d.depCount.Add(-1) == 0 && d.status == taskPending {
				m.enqueue(d)
			}
		}
	}
	m.mu.Unlock()
	m.notify(changed)
}

// abortLocked reverts a task that failed or was canceled to CONFIGURED and
// skips everything waiting on it. It returns the natives that changed.
func (m *Machine) abortLocked(t *task, cause error) []nodeid.ID {
	if t.status == taskDone {
		return nil
	}
	m.setState(t.id, nodestore.StateConfigured)
	if !errors.Is(cause, context.Canceled) {
		m.setFailure(t.id, cause)
	}
	if t.spec.Iterations > 0 {
		m.setLoop(t.id, nodestore.LoopInfo{Status: nodestore.LoopNone})
	}
	m.finishLocked(t, cause)
	changed := []nodeid.ID{t.id}
	changed = append(changed, m.skipDependents(t, cause)...)
	return changed
}

// skipDependents recursively aborts every task waiting on t.
func (m *Machine) skipDependents(t *task, cause error) []nodeid.ID {
	var changed []nodeid.ID
	for _, d := range t.dependents {
		if d.status == taskDone {
			continue
		}
		skip := cause
		if !errors.Is(cause, context.Canceled) {
			m.logger.Warn("Skipping dependent node due to upstream failure.", "nodeID", d.id, "dependency", t.id)
			skip = fmt.Errorf("skipped due to upstream failure of '%s'", t.id)
		}
		changed = append(changed, m.abortLocked(d, skip)...)
	}
	return changed
}

// finishLocked marks t done and settles the requests waiting on it.
func (m *Machine) finishLocked(t *task, cause error) {
	t.status = taskDone
	t.cancel()
	if m.tasks[t.id] == t {
		delete(m.tasks, t.id)
	}
	if t.spec.Iterations > 0 {
		delete(m.loops, t.id)
	}
	for _, j := range t.jobs {
		if cause != nil && j.err == nil {
			j.err = cause
		}
		j.pending--
		if j.pending == 0 {
			j.handle.resolve(j.err)
		}
	}
}
