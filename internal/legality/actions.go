package legality

import (
	"github.com/specialistvlad/wfengine/internal/nodeid"
	"github.com/specialistvlad/wfengine/internal/nodestore"
	"github.com/specialistvlad/wfengine/internal/workflow"
)

// NodeActions lists what the client may currently do with one node.
type NodeActions struct {
	CanExecute  bool `json:"canExecute"`
	CanReset    bool `json:"canReset"`
	CanCancel   bool `json:"canCancel"`
	CanDelete   bool `json:"canDelete"`
	CanReplace  bool `json:"canReplace"`
	CanCollapse Tri  `json:"canCollapse"`
	// Only set for metanodes and components.
	CanExpand Tri  `json:"canExpand,omitempty"`
	CanRename bool `json:"canRename,omitempty"`
}

// WorkflowActions lists what the client may currently do with a whole
// container. Undo and redo are added by the command engine.
type WorkflowActions struct {
	CanExecute bool `json:"canExecute"`
	CanReset   bool `json:"canReset"`
	CanCancel  bool `json:"canCancel"`
	CanUndo    bool `json:"canUndo"`
	CanRedo    bool `json:"canRedo"`
}

// Node computes the allowed actions of one node.
func (gt Gate) Node(n *workflow.Node) NodeActions {
	single := []nodeid.ID{n.ID}
	a := NodeActions{
		CanExecute:  gt.canExecute(n.ID),
		CanReset:    gt.CanReset(n.ID),
		CanCancel:   gt.Executing(n.ID),
		CanDelete:   gt.CanDelete(single),
		CanReplace:  n.Kind == workflow.KindNative && gt.CanReplace(n.ID),
		CanCollapse: gt.CanCollapse(single),
	}
	if n.IsContainer() {
		a.CanExpand = gt.CanExpand(n.ID)
		a.CanRename = !n.Container.Locked
	}
	return a
}

// Workflow computes the allowed actions of a container as a whole.
func (gt Gate) Workflow(container nodeid.ID) WorkflowActions {
	var a WorkflowActions
	for _, id := range gt.g.ChildIDs(container) {
		a.CanExecute = a.CanExecute || gt.canExecute(id)
		a.CanReset = a.CanReset || gt.CanReset(id)
		a.CanCancel = a.CanCancel || gt.Executing(id)
	}
	return a
}

// canExecute reports whether executing id would run anything.
func (gt Gate) canExecute(id nodeid.ID) bool {
	n, err := gt.g.Node(id)
	if err != nil {
		return false
	}
	if !n.IsContainer() {
		return gt.state(id) == nodestore.StateConfigured
	}
	if gt.Executing(id) {
		return false
	}
	for _, nid := range gt.g.NativeDescendants(id) {
		if gt.state(nid) == nodestore.StateConfigured {
			return true
		}
	}
	return false
}
