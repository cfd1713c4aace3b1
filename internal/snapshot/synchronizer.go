// Package snapshot versions the content of containers and turns the
// difference between two versions into a patch.
//
// Every container has its own sequence of snapshots with ids "0", "1", ...
// A new snapshot is only stored when the content actually changed, so ids
// of unchanged containers stay put. Only the most recent snapshots are
// retained; asking for a diff against an evicted or unknown one fails with
// wferr.ErrNotFound.
//
// Subscribers register per container and receive batched events: changes
// committed within one batch window reach a subscriber as a single patch.
// Delivery is at least once; a listener returning an error sees the same
// changes again in a later batch.
package snapshot

import (
	"context"
	"log/slog"
	"reflect"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/specialistvlad/wfengine/internal/nodeid"
	"github.com/specialistvlad/wfengine/internal/patch"
	"github.com/specialistvlad/wfengine/internal/wferr"
)

const (
	// DefaultRetain is the number of snapshots kept per container when
	// Options leave it unset.
	DefaultRetain = 64
	// DefaultBatchWindow is the debounce window of subscriber events.
	DefaultBatchWindow = 50 * time.Millisecond
)

// Source produces the current content of a container as a generic JSON
// tree (see patch.Tree).
type Source interface {
	Content(ctx context.Context, container nodeid.ID) (any, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, container nodeid.ID) (any, error)

// Content implements Source.
func (f SourceFunc) Content(ctx context.Context, container nodeid.ID) (any, error) {
	return f(ctx, container)
}

// Event tells a subscriber how its container changed since the previous
// event.
type Event struct {
	ContainerID        nodeid.ID   `json:"containerId"`
	SnapshotID         string      `json:"snapshotId"`
	PreviousSnapshotID string      `json:"previousSnapshotId"`
	Patch              patch.Patch `json:"patch"`
}

// Listener receives events. Returning an error asks for redelivery.
type Listener func(ctx context.Context, ev Event) error

// Options configure a Synchronizer.
type Options struct {
	Retain      int
	BatchWindow time.Duration
	Logger      *slog.Logger
}

type version struct {
	id   string
	tree any
}

type history struct {
	next     int
	versions []version
}

func (h *history) latest() (version, bool) {
	if len(h.versions) == 0 {
		return version{}, false
	}
	return h.versions[len(h.versions)-1], true
}

func (h *history) find(id string) (version, bool) {
	for _, v := range h.versions {
		if v.id == id {
			return v, true
		}
	}
	return version{}, false
}

// Synchronizer keeps the snapshot histories of one project.
type Synchronizer struct {
	src    Source
	retain int
	window time.Duration
	logger *slog.Logger

	mu         sync.Mutex
	histories  map[nodeid.ID]*history
	commits    map[nodeid.ID]*sync.Mutex
	subs       map[string]*subscription
	publishers map[nodeid.ID]*publisher
	closed     bool

	done    chan struct{}
	wg      sync.WaitGroup
	metrics instruments
}

// New returns a synchronizer reading container content from src.
func New(src Source, opts Options) *Synchronizer {
	if opts.Retain <= 0 {
		opts.Retain = DefaultRetain
	}
	if opts.BatchWindow <= 0 {
		opts.BatchWindow = DefaultBatchWindow
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	s := &Synchronizer{
		src:        src,
		retain:     opts.Retain,
		window:     opts.BatchWindow,
		logger:     opts.Logger.With("component", "snapshot"),
		histories:  make(map[nodeid.ID]*history),
		commits:    make(map[nodeid.ID]*sync.Mutex),
		subs:       make(map[string]*subscription),
		publishers: make(map[nodeid.ID]*publisher),
		done:       make(chan struct{}),
	}
	s.metrics.init(s.logger)
	return s
}

// Commit records the current content of container and returns the id of
// the latest snapshot, which is the previous one when nothing changed.
func (s *Synchronizer) Commit(ctx context.Context, container nodeid.ID) (string, error) {
	v, err := s.commit(ctx, container)
	return v.id, err
}

// commit reads and stores the content of container. Commits of one container
// are serialized from the read to the append, so versions are stored in the
// order their content was read.
func (s *Synchronizer) commit(ctx context.Context, container nodeid.ID) (version, error) {
	cmu := s.commitLock(container)
	cmu.Lock()
	defer cmu.Unlock()

	tree, err := s.src.Content(ctx, container)
	if err != nil {
		return version{}, err
	}

	s.mu.Lock()
	h, ok := s.histories[container]
	if !ok {
		h = &history{}
		s.histories[container] = h
	}
	if last, ok := h.latest(); ok && reflect.DeepEqual(last.tree, tree) {
		s.mu.Unlock()
		return last, nil
	}
	v := version{id: strconv.Itoa(h.next), tree: tree}
	h.next++
	h.versions = append(h.versions, v)
	if len(h.versions) > s.retain {
		h.versions = h.versions[len(h.versions)-s.retain:]
	}
	p := s.publishers[container]
	s.mu.Unlock()

	s.metrics.snapshot(ctx)
	s.logger.Debug("Snapshot stored.", "container", container, "snapshotID", v.id)
	if p != nil {
		p.kick()
	}
	return v, nil
}

func (s *Synchronizer) commitLock(container nodeid.ID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.commits[container]
	if !ok {
		m = &sync.Mutex{}
		s.commits[container] = m
	}
	return m
}

// State returns the current content of container and its snapshot id. The
// returned tree is shared and must not be modified.
func (s *Synchronizer) State(ctx context.Context, container nodeid.ID) (any, string, error) {
	v, err := s.commit(ctx, container)
	if err != nil {
		return nil, "", err
	}
	return v.tree, v.id, nil
}

// Diff returns the patch from snapshot base to the current content of
// container, together with the current snapshot id.
func (s *Synchronizer) Diff(ctx context.Context, container nodeid.ID, base string) (patch.Patch, string, error) {
	cur, err := s.commit(ctx, container)
	if err != nil {
		return nil, "", err
	}
	var (
		from version
		ok   bool
	)
	s.mu.Lock()
	if h := s.histories[container]; h != nil {
		from, ok = h.find(base)
	}
	s.mu.Unlock()
	if !ok {
		return nil, "", wferr.NotFound("snapshot.Diff", "No snapshot with id %s for workflow %s", base, container)
	}
	return patch.Diff(from.tree, cur.tree), cur.id, nil
}

// Forget drops the histories of containers that no longer exist.
func (s *Synchronizer) Forget(ids ...nodeid.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.histories, id)
	}
}

// Subscribe registers l for events of container and returns the
// subscription id. Events describe changes relative to the content at the
// time of subscribing.
func (s *Synchronizer) Subscribe(ctx context.Context, container nodeid.ID, l Listener) (string, error) {
	v, err := s.commit(ctx, container)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", wferr.NotAllowed("snapshot.Subscribe", "Synchronizer is closed")
	}
	sub := &subscription{id: uuid.NewString(), container: container, listener: l, last: v}
	s.subs[sub.id] = sub
	if _, ok := s.publishers[container]; !ok {
		p := newPublisher(s, container)
		s.publishers[container] = p
		s.wg.Add(1)
		go p.run()
	}
	s.logger.Debug("Subscriber added.", "container", container, "subscription", sub.id)
	return sub.id, nil
}

// Unsubscribe removes a subscription. It reports whether id was known.
func (s *Synchronizer) Unsubscribe(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subs[id]; !ok {
		return false
	}
	delete(s.subs, id)
	s.logger.Debug("Subscriber removed.", "subscription", id)
	return true
}

// Close stops every publisher and drops all subscriptions. Pending events
// are not delivered.
func (s *Synchronizer) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.subs = make(map[string]*subscription)
	close(s.done)
	s.mu.Unlock()
	s.wg.Wait()
}
