package legality

import (
	"fmt"

	"github.com/specialistvlad/wfengine/internal/execstate"
	"github.com/specialistvlad/wfengine/internal/nodeid"
	"github.com/specialistvlad/wfengine/internal/nodestore"
	"github.com/specialistvlad/wfengine/internal/workflow"
)

// Tri is the answer to operations that may need a reset first.
type Tri string

const (
	True          Tri = "true"
	ResetRequired Tri = "resetRequired"
	False         Tri = "false"
)

// States reads execution states. *execstate.Machine implements it.
type States interface {
	State(topo execstate.Topology, id nodeid.ID) nodestore.State
}

// Gate answers legality questions about one graph.
type Gate struct {
	g      *workflow.Graph
	states States
}

// New returns a gate over g. The gate must not outlive the caller's hold on
// the workflow lock.
func New(g *workflow.Graph, states States) Gate {
	return Gate{g: g, states: states}
}

func (gt Gate) state(id nodeid.ID) nodestore.State {
	return gt.states.State(gt.g, id)
}

// Executing reports whether id, or any native below it, is executing.
func (gt Gate) Executing(id nodeid.ID) bool {
	return gt.state(id) == nodestore.StateExecuting
}

// AnyExecuting reports whether any of ids is executing.
func (gt Gate) AnyExecuting(ids []nodeid.ID) bool {
	for _, id := range ids {
		if gt.Executing(id) {
			return true
		}
	}
	return false
}

// holdsResults reports whether id is an executed native or a container with
// an executed native below it.
func (gt Gate) holdsResults(id nodeid.ID) bool {
	n, err := gt.g.Node(id)
	if err != nil {
		return false
	}
	if !n.IsContainer() {
		return gt.state(id) == nodestore.StateExecuted
	}
	for _, nid := range gt.g.NativeDescendants(id) {
		if gt.state(nid) == nodestore.StateExecuted {
			return true
		}
	}
	return false
}

// hasExecutingSuccessor reports whether anything downstream of id or of its
// descendants executes, ignoring nodes inside exclude.
func (gt Gate) hasExecutingSuccessor(id nodeid.ID, exclude []nodeid.ID) bool {
	sources := append([]nodeid.ID{id}, gt.g.Descendants(id)...)
	for _, s := range sources {
		for _, succ := range gt.g.Successors(s) {
			if within(succ, exclude) {
				continue
			}
			if gt.Executing(succ) {
				return true
			}
		}
	}
	return false
}

func within(id nodeid.ID, set []nodeid.ID) bool {
	for _, s := range set {
		if id.Within(s) {
			return true
		}
	}
	return false
}

// CanReset reports whether id holds results that can be discarded now.
func (gt Gate) CanReset(id nodeid.ID) bool {
	return gt.holdsResults(id) && !gt.Executing(id) && !gt.hasExecutingSuccessor(id, []nodeid.ID{id})
}

// resettable reports whether id is not executing and either holds no
// results or can be reset.
func (gt Gate) resettable(id nodeid.ID) bool {
	if gt.Executing(id) {
		return false
	}
	if gt.holdsResults(id) {
		return !gt.hasExecutingSuccessor(id, []nodeid.ID{id})
	}
	return true
}

// CanDelete reports whether every node of the set can be removed: none of
// them executes and no node outside the set downstream of them executes.
func (gt Gate) CanDelete(ids []nodeid.ID) bool {
	for _, id := range ids {
		if gt.Executing(id) || gt.hasExecutingSuccessor(id, ids) {
			return false
		}
	}
	return true
}

// CanCollapse decides whether a selection can move into a new container.
// A selection leaving out a node on a path between two of its members
// cannot.
func (gt Gate) CanCollapse(ids []nodeid.ID) Tri {
	if len(ids) == 0 || !gt.CanDelete(ids) {
		return False
	}
	if len(gt.g.Between(ids[0].Parent(), ids)) > 0 {
		return False
	}
	for _, id := range ids {
		if gt.holdsResults(id) {
			return ResetRequired
		}
	}
	return True
}

// CanExpand decides whether a container can be dissolved into its parent.
func (gt Gate) CanExpand(id nodeid.ID) Tri {
	n, err := gt.g.Node(id)
	if err != nil || !n.IsContainer() || n.Container.Locked {
		return False
	}
	if gt.Executing(id) || gt.hasExecutingSuccessor(id, []nodeid.ID{id}) {
		return False
	}
	if gt.holdsResults(id) {
		return ResetRequired
	}
	return True
}

// CanReplace reports whether a native may be swapped for one with another
// port layout. This is legal exactly when deleting it is.
func (gt Gate) CanReplace(id nodeid.ID) bool {
	return gt.CanDelete([]nodeid.ID{id})
}

// CanConnect reports whether c may be added to container, with a reason
// when it may not.
func (gt Gate) CanConnect(container nodeid.ID, c *workflow.Connection) (bool, string) {
	if err := gt.g.ValidateConnection(container, c); err != nil {
		return false, err.Error()
	}
	if c.Dest == container {
		if gt.hasExecutingSuccessor(container, []nodeid.ID{container}) {
			return false, fmt.Sprintf("Successors of %s are executing", container)
		}
		return true, ""
	}
	if !gt.resettable(c.Dest) {
		return false, fmt.Sprintf("Destination node %s is executing or has executing successors", c.Dest)
	}
	return true, ""
}

// CanDeleteConnection reports whether a connection of container may be
// removed.
func (gt Gate) CanDeleteConnection(container nodeid.ID, id workflow.ConnectionID) bool {
	c, err := gt.g.Connection(container, id)
	if err != nil {
		return false
	}
	if c.Dest == container {
		return !gt.hasExecutingSuccessor(container, []nodeid.ID{container})
	}
	return gt.resettable(c.Dest)
}

// CanAddPort reports whether a port of type t can be added to a group.
func (gt Gate) CanAddPort(id nodeid.ID, side workflow.Side, group string, t workflow.PortType) bool {
	n, err := gt.g.Node(id)
	if err != nil || n.CheckAddPort(side, group, t) != nil {
		return false
	}
	return gt.CanReplace(id)
}

// CanRemovePort reports whether port index can be removed. Fixed ports,
// ports feeding an executing node and nodes that cannot be replaced refuse.
func (gt Gate) CanRemovePort(id nodeid.ID, side workflow.Side, index int) bool {
	n, err := gt.g.Node(id)
	if err != nil || n.CheckRemovePort(side, index) != nil {
		return false
	}
	if side == workflow.SideOut {
		for _, c := range gt.g.ConnectionsOf(id.Parent(), id) {
			if c.Source != id || c.SourcePort != index || c.Dest == id.Parent() {
				continue
			}
			if !gt.resettable(c.Dest) {
				return false
			}
		}
	}
	return gt.CanReplace(id)
}
