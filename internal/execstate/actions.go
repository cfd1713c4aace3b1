package execstate

import (
	"context"
	"slices"
	"strings"

	"github.com/specialistvlad/wfengine/internal/nodeid"
	"github.com/specialistvlad/wfengine/internal/nodestore"
	"github.com/specialistvlad/wfengine/internal/wferr"
)

// Node state actions.
const (
	ActionExecute = "execute"
	ActionReset   = "reset"
	ActionCancel  = "cancel"
)

// ChangeState applies action to the given nodes of a container. An empty id
// list addresses the whole container and a blank action does nothing.
func (m *Machine) ChangeState(topo Topology, container nodeid.ID, ids []nodeid.ID, action string) (*Handle, error) {
	const op = "execstate.ChangeState"
	for _, id := range ids {
		if id.Parent() != container || id.IsRoot() {
			return nil, wferr.NotFound(op, "Node %s is not part of workflow %s", id, container)
		}
	}
	switch strings.TrimSpace(action) {
	case "":
		return resolvedHandle(nil), nil
	case ActionExecute:
		if len(ids) == 0 {
			ids = []nodeid.ID{container}
		}
		return m.Execute(topo, ids...)
	case ActionReset:
		if len(ids) == 0 {
			return resolvedHandle(nil), m.resetResettable(topo, container)
		}
		return resolvedHandle(nil), m.Reset(topo, ids...)
	case ActionCancel:
		if len(ids) == 0 {
			ids = []nodeid.ID{container}
		}
		return resolvedHandle(nil), m.Cancel(topo, ids...)
	default:
		return nil, wferr.NotAllowed(op, "Unknown action '%s'", action)
	}
}

// Execute runs the given nodes together with every upstream native that has
// not executed yet. All of them are EXECUTING when Execute returns.
func (m *Machine) Execute(topo Topology, ids ...nodeid.ID) (*Handle, error) {
	return m.execute(topo, ids, "")
}

// execute schedules a job. pauseLoop names a loop end that should pause after
// its first iteration.
func (m *Machine) execute(topo Topology, ids []nodeid.ID, pauseLoop nodeid.ID) (*Handle, error) {
	members, err := upstreamClosure(topo, ids)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	j := &job{handle: newHandle()}
	fresh := make(map[nodeid.ID]*task)
	for _, id := range members {
		switch m.NativeState(id) {
		case nodestore.StateExecuted:
			continue
		case nodestore.StateExecuting:
			if t, ok := m.tasks[id]; ok {
				t.jobs = append(t.jobs, j)
				j.pending++
			}
			continue
		}
		n, err := topo.Node(id)
		if err != nil {
			m.mu.Unlock()
			return nil, err
		}
		t := &task{
			id:   id,
			spec: Task{NodeID: id, FactoryKey: n.Native.FactoryKey, Settings: n.Native.Settings},
			jobs: []*job{j},
		}
		if n.IsLoopEnd() {
			t.spec.Iterations = max(n.Native.Iterations, 1)
			m.loops[id] = &loopControl{pause: id == pauseLoop, wake: make(chan struct{}, 1)}
		}
		t.ctx, t.cancel = context.WithCancel(m.base)
		fresh[id] = t
		j.tasks = append(j.tasks, t)
		j.pending++
	}

	for _, t := range j.tasks {
		for _, p := range predecessors(topo, t.id) {
			dep, ok := fresh[p]
			if !ok {
				dep, ok = m.tasks[p]
			}
			if !ok || dep.status == taskDone || slices.Contains(dep.dependents, t) {
				continue
			}
			dep.dependents = append(dep.dependents, t)
			t.depCount.Add(1)
		}
	}

	changed := make([]nodeid.ID, 0, len(j.tasks))
	for _, t := range j.tasks {
		m.tasks[t.id] = t
		m.setState(t.id, nodestore.StateExecuting)
		m.setFailure(t.id, nil)
		changed = append(changed, t.id)
	}
	for _, t := range j.tasks {
		if t.depCount.Load() == 0 {
			m.enqueue(t)
		}
	}
	j.handle.cancel = func() { m.cancelJob(j) }
	if j.pending == 0 {
		j.handle.resolve(nil)
	}
	m.mu.Unlock()

	m.logger.Debug("Execution scheduled.", "targets", ids, "nodes", len(changed))
	m.notify(changed)
	return j.handle, nil
}

// upstreamClosure expands ids to natives and adds every native they depend
// on, transitively.
func upstreamClosure(topo Topology, ids []nodeid.ID) ([]nodeid.ID, error) {
	seen := make(map[nodeid.ID]bool)
	var queue []nodeid.ID
	for _, id := range ids {
		ns, err := natives(topo, id)
		if err != nil {
			return nil, err
		}
		for _, n := range ns {
			if !seen[n] {
				seen[n] = true
				queue = append(queue, n)
			}
		}
	}
	for i := 0; i < len(queue); i++ {
		for _, p := range predecessors(topo, queue[i]) {
			if !seen[p] {
				seen[p] = true
				queue = append(queue, p)
			}
		}
	}
	nodeid.Sort(queue)
	return queue, nil
}

func (m *Machine) cancelJob(j *job) {
	m.mu.Lock()
	var changed []nodeid.ID
	for _, t := range j.tasks {
		changed = append(changed, m.abortLocked(t, context.Canceled)...)
	}
	m.mu.Unlock()
	m.notify(changed)
}

// Cancel stops the given nodes and every executing native downstream of
// them. Nodes that are not executing are left alone.
func (m *Machine) Cancel(topo Topology, ids ...nodeid.ID) error {
	var targets []nodeid.ID
	for _, id := range ids {
		ns, err := natives(topo, id)
		if err != nil {
			return err
		}
		targets = append(targets, ns...)
	}

	m.mu.Lock()
	var changed []nodeid.ID
	for _, id := range targets {
		t, ok := m.tasks[id]
		if !ok {
			continue
		}
		changed = append(changed, m.abortLocked(t, context.Canceled)...)
		for _, s := range successors(topo, id) {
			if st, ok := m.tasks[s]; ok {
				changed = append(changed, m.abortLocked(st, context.Canceled)...)
			}
		}
	}
	m.mu.Unlock()

	if len(changed) > 0 {
		m.logger.Debug("Execution canceled.", "targets", ids, "nodes", len(changed))
	}
	m.notify(changed)
	return nil
}

// Reset returns the given nodes and every executed native downstream of
// them to CONFIGURED. It fails without changing anything if one of them is
// executing.
func (m *Machine) Reset(topo Topology, ids ...nodeid.ID) error {
	affected, err := resetSet(topo, ids)
	if err != nil {
		return err
	}
	m.mu.Lock()
	for _, id := range affected {
		if m.NativeState(id) == nodestore.StateExecuting {
			m.mu.Unlock()
			return wferr.NotAllowed("execstate.Reset", "Cannot reset node %s (wrong state of node or successors)", ids[0])
		}
	}
	changed := m.resetLocked(affected)
	m.mu.Unlock()
	m.notify(changed)
	return nil
}

// resetResettable resets every native of a container that can be reset,
// skipping the ones with executing successors.
func (m *Machine) resetResettable(topo Topology, container nodeid.ID) error {
	all, err := natives(topo, container)
	if err != nil {
		return err
	}
	m.mu.Lock()
	var changed []nodeid.ID
	for _, id := range all {
		affected, _ := resetSet(topo, []nodeid.ID{id})
		if slices.ContainsFunc(affected, func(a nodeid.ID) bool {
			return m.NativeState(a) == nodestore.StateExecuting
		}) {
			continue
		}
		changed = append(changed, m.resetLocked(affected)...)
	}
	m.mu.Unlock()
	m.notify(changed)
	return nil
}

func resetSet(topo Topology, ids []nodeid.ID) ([]nodeid.ID, error) {
	seen := make(map[nodeid.ID]bool)
	var out []nodeid.ID
	add := func(id nodeid.ID) {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	for _, id := range ids {
		ns, err := natives(topo, id)
		if err != nil {
			return nil, err
		}
		for _, n := range ns {
			add(n)
			for _, s := range successors(topo, n) {
				add(s)
			}
		}
	}
	nodeid.Sort(out)
	return out, nil
}

func (m *Machine) resetLocked(ids []nodeid.ID) []nodeid.ID {
	var changed []nodeid.ID
	for _, id := range ids {
		loop := m.Loop(id)
		if m.NativeState(id) == nodestore.StateConfigured && loop.Status == nodestore.LoopNone {
			continue
		}
		m.setState(id, nodestore.StateConfigured)
		m.setFailure(id, nil)
		if loop.Status != nodestore.LoopNone {
			m.setLoop(id, nodestore.LoopInfo{Status: nodestore.LoopNone})
		}
		changed = append(changed, id)
	}
	return changed
}
