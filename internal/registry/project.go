package registry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/specialistvlad/wfengine/internal/commands"
	"github.com/specialistvlad/wfengine/internal/execstate"
	"github.com/specialistvlad/wfengine/internal/inmemorystore"
	"github.com/specialistvlad/wfengine/internal/nodeid"
	"github.com/specialistvlad/wfengine/internal/patch"
	"github.com/specialistvlad/wfengine/internal/snapshot"
	"github.com/specialistvlad/wfengine/internal/view"
	"github.com/specialistvlad/wfengine/internal/workflow"
)

// Project is one open workflow with everything needed to edit, execute
// and observe it.
type Project struct {
	ID     string
	Name   string
	opened time.Time
	logger *slog.Logger

	wf      *workflow.Workflow
	machine *execstate.Machine
	engine  *commands.Engine
	snaps   *snapshot.Synchronizer
	builder view.Builder

	mu      sync.Mutex
	pending map[nodeid.ID]struct{}
	kick    chan struct{}
	done    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
}

func newProject(ctx context.Context, id, name string, opts Options) *Project {
	logger := opts.Logger.With("project", id)
	p := &Project{
		ID:      id,
		Name:    name,
		opened:  time.Now(),
		logger:  logger,
		wf:      workflow.New(),
		pending: make(map[nodeid.ID]struct{}),
		kick:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	p.machine = execstate.New(inmemorystore.New(), execstate.Options{
		Workers: opts.Workers,
		Runner:  opts.Runner,
		Logger:  logger.With("component", "execstate"),
	})
	p.snaps = snapshot.New(snapshot.SourceFunc(p.content), snapshot.Options{
		Retain:      opts.Retain,
		BatchWindow: opts.BatchWindow,
		Logger:      logger,
	})
	p.engine = commands.New(p.wf, p.machine, commands.Options{
		ProjectID:  id,
		MaxHistory: opts.MaxHistory,
		Timeout:    opts.CommandTimeout,
		Catalog:    opts.Catalog,
		Templates:  opts.Templates,
		Committer:  p,
		Logger:     logger,
	})
	p.builder = view.Builder{ProjectName: name, States: p.machine, History: p.engine}

	p.machine.OnChange(p.statesChanged)
	p.wg.Add(1)
	go p.commitLoop()

	if _, err := p.snaps.Commit(ctx, nodeid.Root); err != nil {
		logger.Warn("Failed to commit initial snapshot.", "error", err)
	}
	return p
}

// Info summarizes the project.
func (p *Project) Info() Info {
	return Info{ID: p.ID, Name: p.Name, Opened: p.opened}
}

// Workflow exposes the project's graph for reading.
func (p *Project) Workflow() *workflow.Workflow { return p.wf }

// Execute applies a command to container.
func (p *Project) Execute(ctx context.Context, container nodeid.ID, cmd commands.Command) (commands.Result, error) {
	return p.engine.Execute(ctx, container, cmd)
}

// Undo reverts the last command of container.
func (p *Project) Undo(ctx context.Context, container nodeid.ID) (*commands.Outcome, error) {
	return p.engine.Undo(ctx, container)
}

// Redo reapplies the last undone command of container.
func (p *Project) Redo(ctx context.Context, container nodeid.ID) (*commands.Outcome, error) {
	return p.engine.Redo(ctx, container)
}

// ChangeNodeState requests an execution state action for nodes of
// container. It returns once the request was accepted.
func (p *Project) ChangeNodeState(_ context.Context, container nodeid.ID, ids []nodeid.ID, action string) (*execstate.Handle, error) {
	var h *execstate.Handle
	err := p.wf.Read(func(g *workflow.Graph) error {
		if _, err := g.Level(container); err != nil {
			return err
		}
		var err error
		h, err = p.machine.ChangeState(g, container, ids, action)
		return err
	})
	return h, err
}

// ChangeLoopState requests a loop action for a loop end node.
func (p *Project) ChangeLoopState(_ context.Context, id nodeid.ID, action string) (*execstate.Handle, error) {
	var h *execstate.Handle
	err := p.wf.Read(func(g *workflow.Graph) error {
		var err error
		h, err = p.machine.ChangeLoopState(g, id, action)
		return err
	})
	return h, err
}

// State returns the current entity of container and its snapshot id.
func (p *Project) State(ctx context.Context, container nodeid.ID) (any, string, error) {
	return p.snaps.State(ctx, container)
}

// Diff returns the changes of container since snapshot base.
func (p *Project) Diff(ctx context.Context, container nodeid.ID, base string) (patch.Patch, string, error) {
	return p.snaps.Diff(ctx, container, base)
}

// Subscribe registers l for patch events of container.
func (p *Project) Subscribe(ctx context.Context, container nodeid.ID, l snapshot.Listener) (string, error) {
	return p.snaps.Subscribe(ctx, container, l)
}

// Unsubscribe removes a subscription.
func (p *Project) Unsubscribe(id string) bool {
	return p.snaps.Unsubscribe(id)
}

// Commit snapshots container and every container above it, whose views
// show the container's ports and state. It returns the snapshot id of
// container.
func (p *Project) Commit(ctx context.Context, container nodeid.ID) (string, error) {
	id, err := p.snaps.Commit(ctx, container)
	if err != nil {
		return "", err
	}
	for c := container; !c.IsRoot(); {
		c = c.Parent()
		if _, err := p.snaps.Commit(ctx, c); err != nil {
			p.logger.Warn("Failed to commit enclosing workflow.", "container", c, "error", err)
		}
	}
	return id, nil
}

func (p *Project) content(_ context.Context, container nodeid.ID) (any, error) {
	var tree any
	err := p.wf.Read(func(g *workflow.Graph) error {
		w, err := p.builder.Build(g, container)
		if err != nil {
			return err
		}
		tree, err = patch.Tree(w)
		return err
	})
	return tree, err
}

// statesChanged marks the containers showing the changed natives. It can
// run inside a command's write section, so committing happens elsewhere.
func (p *Project) statesChanged(ids []nodeid.ID) {
	p.mu.Lock()
	for _, id := range ids {
		for c := id.Parent(); ; c = c.Parent() {
			p.pending[c] = struct{}{}
			if c.IsRoot() {
				break
			}
		}
	}
	p.mu.Unlock()
	select {
	case p.kick <- struct{}{}:
	default:
	}
}

func (p *Project) commitLoop() {
	defer p.wg.Done()
	for {
		select {
		case <-p.done:
			return
		case <-p.kick:
		}
		p.mu.Lock()
		batch := p.pending
		p.pending = make(map[nodeid.ID]struct{})
		p.mu.Unlock()

		for c := range batch {
			if _, err := p.snaps.Commit(context.Background(), c); err != nil {
				// Containers removed since the change have nothing to commit.
				p.logger.Debug("Skipped state commit.", "container", c, "error", err)
				p.snaps.Forget(c)
			}
		}
	}
}

func (p *Project) close() {
	p.once.Do(func() {
		p.machine.OnChange(nil)
		close(p.done)
		p.wg.Wait()
		p.machine.Close()
		p.snaps.Close()
		p.engine.Dispose()
		p.logger.Info("📁 Project closed.", "name", p.Name)
	})
}
