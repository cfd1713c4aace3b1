package registry

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/specialistvlad/wfengine/internal/catalog"
	"github.com/specialistvlad/wfengine/internal/commands"
	"github.com/specialistvlad/wfengine/internal/execstate"
	"github.com/specialistvlad/wfengine/internal/wferr"
)

// Options configure every project a Registry opens.
type Options struct {
	Catalog *catalog.Catalog
	// Templates is shared by all projects so that components shared in one
	// can be linked in another. Defaults to an in-memory repository.
	Templates commands.Repository

	Workers        int
	Runner         execstate.Runner
	MaxHistory     int
	CommandTimeout time.Duration
	Retain         int
	BatchWindow    time.Duration

	Logger *slog.Logger
}

// Info summarizes an open project.
type Info struct {
	ID     string    `json:"projectId"`
	Name   string    `json:"name"`
	Opened time.Time `json:"opened"`
}

// Registry tracks open projects.
type Registry struct {
	opts   Options
	logger *slog.Logger

	mu       sync.RWMutex
	projects map[string]*Project
	closed   bool
}

// New returns an empty registry.
func New(opts Options) *Registry {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Templates == nil {
		opts.Templates = commands.NewTemplates()
	}
	return &Registry{
		opts:     opts,
		logger:   opts.Logger,
		projects: make(map[string]*Project),
	}
}

// Open creates an empty project and registers it.
func (r *Registry) Open(ctx context.Context, name string) (*Project, error) {
	const op = "registry.Open"
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, wferr.InvalidInput(op, "Project name must not be blank")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, wferr.NotAllowed(op, "Registry is closed")
	}
	p := newProject(ctx, uuid.NewString(), name, r.opts)
	r.projects[p.ID] = p
	p.logger.Info("📂 Project opened.", "name", name)
	return p, nil
}

// Get returns an open project.
func (r *Registry) Get(id string) (*Project, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.projects[id]
	if !ok {
		return nil, wferr.NotFound("registry.Get", "Project not found: %s", id)
	}
	return p, nil
}

// List returns the open projects ordered by opening time.
func (r *Registry) List() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Info, 0, len(r.projects))
	for _, id := range slices.Sorted(maps.Keys(r.projects)) {
		out = append(out, r.projects[id].Info())
	}
	slices.SortStableFunc(out, func(a, b Info) int { return a.Opened.Compare(b.Opened) })
	return out
}

// CloseProject stops a project and forgets it.
func (r *Registry) CloseProject(id string) error {
	r.mu.Lock()
	p, ok := r.projects[id]
	delete(r.projects, id)
	r.mu.Unlock()
	if !ok {
		return wferr.NotFound("registry.CloseProject", "Project not found: %s", id)
	}
	p.close()
	return nil
}

// Close stops every open project. The registry refuses to open new ones
// afterwards.
func (r *Registry) Close() {
	r.mu.Lock()
	r.closed = true
	open := slices.Collect(maps.Values(r.projects))
	r.projects = make(map[string]*Project)
	r.mu.Unlock()

	for _, p := range open {
		p.close()
	}
	if len(open) > 0 {
		r.logger.Info("🗂️ All projects closed.", "count", len(open))
	}
}
