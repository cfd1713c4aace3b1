package commands

import (
	"context"
	"log/slog"
	"time"

	"github.com/specialistvlad/wfengine/internal/catalog"
	"github.com/specialistvlad/wfengine/internal/execstate"
	"github.com/specialistvlad/wfengine/internal/legality"
	"github.com/specialistvlad/wfengine/internal/nodeid"
	"github.com/specialistvlad/wfengine/internal/wferr"
	"github.com/specialistvlad/wfengine/internal/workflow"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Committer publishes the state of a container after a command and returns
// the id of the resulting snapshot.
type Committer interface {
	Commit(ctx context.Context, container nodeid.ID) (string, error)
}

// Options configure an Engine.
type Options struct {
	ProjectID string
	// MaxHistory bounds each container's undo stack.
	MaxHistory int
	// Timeout bounds the wait for a container's exclusive section and for
	// template lookups. Zero leaves the bound to the caller's context.
	Timeout   time.Duration
	Catalog   *catalog.Catalog
	Templates Repository
	Committer Committer
	Logger    *slog.Logger
}

// Engine applies commands to the containers of one project. Commands on the
// same container are serialized; each one is applied within a single write
// section of the workflow so readers never see it half done.
type Engine struct {
	wf        *workflow.Workflow
	machine   *execstate.Machine
	catalog   *catalog.Catalog
	templates Repository
	committer Committer
	logger    *slog.Logger
	project   string
	timeout   time.Duration

	history *history
	locks   *locks
	metrics instruments
}

// New returns an engine for the workflow whose execution state machine is
// given.
func New(wf *workflow.Workflow, machine *execstate.Machine, opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	templates := opts.Templates
	if templates == nil {
		templates = NewTemplates()
	}
	e := &Engine{
		wf:        wf,
		machine:   machine,
		catalog:   opts.Catalog,
		templates: templates,
		committer: opts.Committer,
		logger:    logger.With("component", "commands"),
		project:   opts.ProjectID,
		timeout:   opts.Timeout,
		history:   newHistory(opts.MaxHistory),
		locks:     newLocks(),
	}
	e.metrics.init(e.logger)
	return e
}

// Execute applies cmd to container. A command without net effect is applied
// but not recorded for undo.
func (e *Engine) Execute(ctx context.Context, container nodeid.ID, cmd Command) (Result, error) {
	if cmd == nil {
		return nil, wferr.InvalidInput("commands.Execute", "No command given")
	}
	ctx, span := tracer.Start(ctx, "commands.Execute", trace.WithAttributes(
		attribute.String("command.kind", string(cmd.Kind())),
		attribute.String("container.id", container.String()),
		attribute.String("project.id", e.project),
	))
	defer span.End()

	start := time.Now()
	res, changed, err := e.execute(ctx, container, cmd)
	e.metrics.command(ctx, cmd.Kind(), outcome(err, changed), time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.logger.Debug("Command rejected.", "kind", cmd.Kind(), "container", container, "error", err)
		return nil, err
	}
	e.logger.Debug("Command applied.", "kind", cmd.Kind(), "container", container, "changed", changed)
	return res, nil
}

func (e *Engine) execute(ctx context.Context, container nodeid.ID, cmd Command) (Result, bool, error) {
	if err := Validate(cmd); err != nil {
		return nil, false, err
	}
	unlock, err := e.locks.acquire(ctx, container, e.timeout)
	if err != nil {
		return nil, false, err
	}
	defer unlock()

	var (
		res     Result
		changed bool
	)
	err = e.wf.Write(func(g *workflow.Graph) error {
		if _, err := g.Level(container); err != nil {
			return err
		}
		s := &session{
			ctx:       ctx,
			e:         e,
			g:         g,
			gate:      legality.New(g, e.machine),
			container: container,
		}
		r, ok, err := s.apply(cmd)
		if err != nil {
			if s.before != nil {
				e.machine.Forget(g.Restore(s.before))
			}
			return err
		}
		res = r
		if !ok || s.before == nil {
			return nil
		}
		changed = true
		after := g.CaptureAfter(s.before)
		e.history.push(container, entry{kind: cmd.Kind(), before: s.before, after: after})
		gone := missing(s.before.Region(), after.Region())
		e.machine.Forget(gone)
		e.history.drop(append(gone, s.before.Nested()...))
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	res.outcome().SnapshotID = e.commit(ctx, container)
	return res, changed, nil
}

// Undo reverts the most recent command of container.
func (e *Engine) Undo(ctx context.Context, container nodeid.ID) (*Outcome, error) {
	return e.travel(ctx, container, true)
}

// Redo reapplies the most recently undone command of container.
func (e *Engine) Redo(ctx context.Context, container nodeid.ID) (*Outcome, error) {
	return e.travel(ctx, container, false)
}

func (e *Engine) travel(ctx context.Context, container nodeid.ID, undo bool) (*Outcome, error) {
	op, verb := "commands.Redo", "redo"
	if undo {
		op, verb = "commands.Undo", "undo"
	}
	ctx, span := tracer.Start(ctx, op, trace.WithAttributes(
		attribute.String("container.id", container.String()),
		attribute.String("project.id", e.project),
	))
	defer span.End()

	out, err := e.doTravel(ctx, container, undo, op, verb)
	e.metrics.travel(ctx, undo, outcome(err, true))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return out, nil
}

func (e *Engine) doTravel(ctx context.Context, container nodeid.ID, undo bool, op, verb string) (*Outcome, error) {
	unlock, err := e.locks.acquire(ctx, container, e.timeout)
	if err != nil {
		return nil, err
	}
	defer unlock()

	err = e.wf.Write(func(g *workflow.Graph) error {
		en, ok := e.history.peek(container, undo)
		if !ok {
			return wferr.NotAllowed(op, "No command to %s", verb)
		}
		target, current := en.after, en.before
		if undo {
			target, current = en.before, en.after
		}
		gate := legality.New(g, e.machine)
		if gate.AnyExecuting(present(g, en.before.Region(), en.after.Region())) {
			return wferr.NotAllowed(op, "Cannot %s %s while nodes in workflow %s are executing", verb, en.kind, container)
		}
		dropped := g.Restore(target)
		e.machine.Forget(dropped)
		e.history.shift(container, undo)
		nested := append(current.Nested(), target.Nested()...)
		e.history.drop(append(dropped, nested...))
		e.logger.Debug("Command reverted.", "verb", verb, "kind", en.kind, "container", container)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &Outcome{SnapshotID: e.commit(ctx, container)}, nil
}

// CanUndo reports whether container has a command to undo.
func (e *Engine) CanUndo(container nodeid.ID) bool {
	n, _ := e.history.depth(container)
	return n > 0
}

// CanRedo reports whether container has a command to redo.
func (e *Engine) CanRedo(container nodeid.ID) bool {
	_, n := e.history.depth(container)
	return n > 0
}

// Dispose forgets all histories. The engine stays usable.
func (e *Engine) Dispose() {
	e.history.clear()
}

func (e *Engine) commit(ctx context.Context, container nodeid.ID) string {
	if e.committer == nil {
		return ""
	}
	id, err := e.committer.Commit(ctx, container)
	if err != nil {
		e.logger.Warn("Failed to commit snapshot.", "container", container, "error", err)
	}
	return id
}

// missing returns the ids of before that are absent from after.
func missing(before, after []nodeid.ID) []nodeid.ID {
	keep := make(map[nodeid.ID]bool, len(after))
	for _, id := range after {
		keep[id] = true
	}
	var out []nodeid.ID
	for _, id := range before {
		if !keep[id] {
			out = append(out, id)
		}
	}
	return out
}

// present returns the ids of the lists that exist in g, without duplicates.
func present(g *workflow.Graph, lists ...[]nodeid.ID) []nodeid.ID {
	seen := make(map[nodeid.ID]bool)
	var out []nodeid.ID
	for _, l := range lists {
		for _, id := range l {
			if !seen[id] && g.HasNode(id) {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	return out
}
