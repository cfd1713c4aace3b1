package execstate

import (
	"context"
	"log/slog"
	"sync"

	"github.com/specialistvlad/wfengine/internal/nodeid"
	"github.com/specialistvlad/wfengine/internal/nodestore"
	"github.com/specialistvlad/wfengine/internal/workflow"
)

// DefaultWorkers is the size of the worker pool when Options leave it unset.
const DefaultWorkers = 4

// Topology is the structural view the machine reads. *workflow.Graph
// implements it.
type Topology interface {
	Node(id nodeid.ID) (*workflow.Node, error)
	Upstream(id nodeid.ID) []nodeid.ID
	Downstream(id nodeid.ID) []nodeid.ID
	NativeDescendants(id nodeid.ID) []nodeid.ID
}

// Listener is told which natives changed state or loop progress. It is
// never called with the machine's lock held.
type Listener func(ids []nodeid.ID)

// Options configure a Machine.
type Options struct {
	Workers int
	Runner  Runner
	Logger  *slog.Logger
}

// Machine owns the execution state of one project's natives.
type Machine struct {
	store  nodestore.Store
	runner Runner
	logger *slog.Logger

	mu       sync.Mutex
	tasks    map[nodeid.ID]*task
	loops    map[nodeid.ID]*loopControl
	listener Listener

	ready     chan *task
	stop      chan struct{}
	base      context.Context
	cancelAll context.CancelFunc
	closeOnce sync.Once
	wg        sync.WaitGroup

	metrics instruments
}

// New starts a machine and its worker pool.
func New(store nodestore.Store, opts Options) *Machine {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.Runner == nil {
		opts.Runner = DelayRunner{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	base, cancel := context.WithCancel(context.Background())
	m := &Machine{
		store:     store,
		runner:    opts.Runner,
		logger:    opts.Logger,
		tasks:     make(map[nodeid.ID]*task),
		loops:     make(map[nodeid.ID]*loopControl),
		ready:     make(chan *task, opts.Workers),
		stop:      make(chan struct{}),
		base:      base,
		cancelAll: cancel,
	}
	m.metrics.init(m.logger)

	m.logger.Debug("Starting worker pool.", "workers", opts.Workers)
	m.wg.Add(opts.Workers)
	for i := 0; i < opts.Workers; i++ {
		go m.worker(i)
	}
	return m
}

// Close cancels everything in flight and stops the worker pool.
func (m *Machine) Close() {
	m.closeOnce.Do(func() {
		m.mu.Lock()
		for _, t := range m.tasks {
			m.abortLocked(t, context.Canceled)
		}
		m.mu.Unlock()
		m.cancelAll()
		close(m.stop)
		m.wg.Wait()
		m.logger.Debug("Worker pool stopped.")
	})
}

// OnChange registers the listener for state changes, replacing any previous
// one.
func (m *Machine) OnChange(l Listener) {
	m.mu.Lock()
	m.listener = l
	m.mu.Unlock()
}

func (m *Machine) notify(ids []nodeid.ID) {
	if len(ids) == 0 {
		return
	}
	m.mu.Lock()
	l := m.listener
	m.mu.Unlock()
	if l != nil {
		l(ids)
	}
}

// NativeState returns the last known state of a native.
func (m *Machine) NativeState(id nodeid.ID) nodestore.State {
	s, err := m.store.GetState(context.Background(), id)
	if err != nil {
		m.logger.Warn("Failed to read node state.", "nodeID", id, "error", err)
		return nodestore.StateConfigured
	}
	return s
}

// State returns the last known state of any node. Containers report
// EXECUTING while any native descendant executes and EXECUTED once all of
// them have executed.
func (m *Machine) State(topo Topology, id nodeid.ID) nodestore.State {
	if !id.IsRoot() {
		n, err := topo.Node(id)
		if err != nil || !n.IsContainer() {
			return m.NativeState(id)
		}
	}
	natives := topo.NativeDescendants(id)
	if len(natives) == 0 {
		return nodestore.StateConfigured
	}
	executed := 0
	for _, nid := range natives {
		switch m.NativeState(nid) {
		case nodestore.StateExecuting:
			return nodestore.StateExecuting
		case nodestore.StateExecuted:
			executed++
		}
	}
	if executed == len(natives) {
		return nodestore.StateExecuted
	}
	return nodestore.StateConfigured
}

// Loop returns the loop progress of a node.
func (m *Machine) Loop(id nodeid.ID) nodestore.LoopInfo {
	info, err := m.store.GetLoop(context.Background(), id)
	if err != nil {
		m.logger.Warn("Failed to read loop state.", "nodeID", id, "error", err)
	}
	return info
}

// Failure returns why the last execution of a native failed, or nil.
func (m *Machine) Failure(id nodeid.ID) error {
	nodeErr, err := m.store.GetError(context.Background(), id)
	if err != nil {
		m.logger.Warn("Failed to read node failure.", "nodeID", id, "error", err)
		return nil
	}
	return nodeErr
}

// Forget drops everything known about nodes that left the workflow.
func (m *Machine) Forget(ids []nodeid.ID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		if t, ok := m.tasks[id]; ok {
			m.abortLocked(t, context.Canceled)
		}
		delete(m.loops, id)
		if err := m.store.Delete(context.Background(), id); err != nil {
			m.logger.Warn("Failed to forget node.", "nodeID", id, "error", err)
		}
	}
}

func (m *Machine) setState(id nodeid.ID, s nodestore.State) {
	if err := m.store.SetState(context.Background(), id, s); err != nil {
		m.logger.Warn("Failed to record node state.", "nodeID", id, "state", s, "error", err)
	}
}

func (m *Machine) setLoop(id nodeid.ID, info nodestore.LoopInfo) {
	if err := m.store.SetLoop(context.Background(), id, info); err != nil {
		m.logger.Warn("Failed to record loop state.", "nodeID", id, "error", err)
	}
}

func (m *Machine) setFailure(id nodeid.ID, nodeErr error) {
	if err := m.store.SetError(context.Background(), id, nodeErr); err != nil {
		m.logger.Warn("Failed to record node failure.", "nodeID", id, "error", err)
	}
}

// natives expands id to the natives it stands for: itself, or every native
// below a container.
func natives(topo Topology, id nodeid.ID) ([]nodeid.ID, error) {
	if id.IsRoot() {
		return topo.NativeDescendants(id), nil
	}
	n, err := topo.Node(id)
	if err != nil {
		return nil, err
	}
	if n.IsContainer() {
		return topo.NativeDescendants(id), nil
	}
	return []nodeid.ID{id}, nil
}

// predecessors returns the natives whose output id consumes directly.
func predecessors(topo Topology, id nodeid.ID) []nodeid.ID {
	var out []nodeid.ID
	for _, u := range topo.Upstream(id) {
		ids, err := natives(topo, u)
		if err != nil {
			continue
		}
		out = append(out, ids...)
	}
	return out
}

// successors returns every native downstream of id, transitively.
func successors(topo Topology, id nodeid.ID) []nodeid.ID {
	seen := map[nodeid.ID]bool{id: true}
	queue := []nodeid.ID{id}
	var out []nodeid.ID
	visit := func(nid nodeid.ID, native bool) {
		if seen[nid] {
			return
		}
		seen[nid] = true
		queue = append(queue, nid)
		if native {
			out = append(out, nid)
		}
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, d := range topo.Downstream(cur) {
			n, err := topo.Node(d)
			if err != nil {
				continue
			}
			if !n.IsContainer() {
				visit(d, true)
				continue
			}
			visit(d, false)
			for _, inner := range topo.NativeDescendants(d) {
				visit(inner, true)
			}
		}
	}
	nodeid.Sort(out)
	return out
}
