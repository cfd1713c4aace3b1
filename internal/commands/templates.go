package commands

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/specialistvlad/wfengine/internal/wferr"
	"github.com/specialistvlad/wfengine/internal/workflow"
)

// LinkVariant selects how a linked component refers to its template.
type LinkVariant string

const (
	LinkNone     LinkVariant = "none"
	LinkAbsolute LinkVariant = "absolute"
	LinkIDBased  LinkVariant = "idBased"
)

// Collision decides what ShareComponent does when the destination name is
// taken.
type Collision string

const (
	CollisionNoop       Collision = "noop"
	CollisionOverwrite  Collision = "overwrite"
	CollisionAutorename Collision = "autorename"
)

const (
	uriScheme    = "wfe://"
	uriIDPrefix  = "wfe:id:"
	DefaultSpace = "local"
)

// Template is a shared component. Fragment holds exactly one component node
// together with its content.
type Template struct {
	ID       string
	Space    string
	Name     string
	Version  int
	Fragment *workflow.Fragment
}

// URI returns the address of t in the given variant.
func (t *Template) URI(v LinkVariant) string {
	if v == LinkIDBased {
		return uriIDPrefix + t.ID
	}
	return uriScheme + t.Space + "/" + t.Name
}

// Repository stores component templates.
type Repository interface {
	// Get resolves a template URI of any variant.
	Get(ctx context.Context, uri string) (*Template, error)
	// Exists reports whether space already holds a template called name.
	Exists(ctx context.Context, space, name string) (bool, error)
	// Put stores a template, bumping the version of an existing one.
	Put(ctx context.Context, space, name string, f *workflow.Fragment) (*Template, error)
}

// Templates is an in-memory Repository.
type Templates struct {
	mu     sync.RWMutex
	byID   map[string]*Template
	byPath map[string]*Template
}

// NewTemplates returns an empty repository.
func NewTemplates() *Templates {
	return &Templates{
		byID:   make(map[string]*Template),
		byPath: make(map[string]*Template),
	}
}

func ctxErr(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return wferr.Wrap(wferr.KindTimeout, op, err, "Template repository did not answer in time")
	}
	return nil
}

func (r *Templates) Get(ctx context.Context, uri string) (*Template, error) {
	const op = "commands.Templates.Get"
	if err := ctxErr(ctx, op); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var t *Template
	switch {
	case strings.HasPrefix(uri, uriIDPrefix):
		t = r.byID[strings.TrimPrefix(uri, uriIDPrefix)]
	case strings.HasPrefix(uri, uriScheme):
		t = r.byPath[strings.TrimPrefix(uri, uriScheme)]
	default:
		return nil, wferr.InvalidInput(op, "Not a template URI: %s", uri)
	}
	if t == nil {
		return nil, wferr.NotFound(op, "Template not found: %s", uri)
	}
	c := *t
	return &c, nil
}

func (r *Templates) Exists(ctx context.Context, space, name string) (bool, error) {
	if err := ctxErr(ctx, "commands.Templates.Exists"); err != nil {
		return false, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byPath[space+"/"+name]
	return ok, nil
}

func (r *Templates) Put(ctx context.Context, space, name string, f *workflow.Fragment) (*Template, error) {
	const op = "commands.Templates.Put"
	if err := ctxErr(ctx, op); err != nil {
		return nil, err
	}
	if strings.ContainsAny(space, "/") || strings.TrimSpace(name) == "" || strings.Contains(name, "/") {
		return nil, wferr.InvalidInput(op, "Invalid template location %q/%q", space, name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	path := space + "/" + name
	t, ok := r.byPath[path]
	if !ok {
		t = &Template{ID: uuid.NewString(), Space: space, Name: name}
		r.byPath[path] = t
		r.byID[t.ID] = t
	}
	t.Version++
	t.Fragment = f
	c := *t
	return &c, nil
}

// freeName returns name, or name with the lowest free numeric suffix when
// name is taken in space.
func freeName(ctx context.Context, repo Repository, space, name string) (string, error) {
	candidate := name
	for i := 1; ; i++ {
		taken, err := repo.Exists(ctx, space, candidate)
		if err != nil || !taken {
			return candidate, err
		}
		candidate = fmt.Sprintf("%s (%d)", name, i)
	}
}
