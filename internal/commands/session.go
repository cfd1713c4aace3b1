package commands

import (
	"context"
	"fmt"

	"github.com/specialistvlad/wfengine/internal/legality"
	"github.com/specialistvlad/wfengine/internal/nodeid"
	"github.com/specialistvlad/wfengine/internal/wferr"
	"github.com/specialistvlad/wfengine/internal/workflow"
)

// session is the state of one command being applied under the workflow
// write lock.
type session struct {
	ctx       context.Context
	e         *Engine
	g         *workflow.Graph
	gate      legality.Gate
	container nodeid.ID
	// before is the pre-state, captured by begin right before the first
	// mutation. It stays nil for commands that change nothing.
	before *workflow.Memento
}

// begin captures the pre-state of the container, copying the content of the
// named child containers in full. Only the first call has an effect.
func (s *session) begin(deep ...nodeid.ID) {
	if s.before == nil {
		s.before = s.g.Capture(s.container, deep...)
	}
}

// apply dispatches cmd to its handler. Handlers validate everything before
// calling begin and report whether the command changed the workflow.
func (s *session) apply(cmd Command) (Result, bool, error) {
	switch c := cmd.(type) {
	case *AddNode:
		return s.addNode(c)
	case *InsertNode:
		return s.insertNode(c)
	case *ReplaceNode:
		return s.replaceNode(c)
	case *Delete:
		return s.delete(c)
	case *Connect:
		return s.connect(c)
	case *AutoConnect:
		return s.autoConnect(c)
	case *Collapse:
		return s.collapse(c)
	case *Expand:
		return s.expand(c)
	case *Translate:
		return s.translate(c)
	case *AddPort:
		return s.addPort(c)
	case *RemovePort:
		return s.removePort(c)
	case *Copy:
		return s.copy(c)
	case *Cut:
		return s.cut(c)
	case *Paste:
		return s.paste(c)
	case *AlignNodes:
		return s.alignNodes(c)
	case *AddBendpoint:
		return s.addBendpoint(c)
	case *RemoveBendpoint:
		return s.removeBendpoint(c)
	case *ReorderWorkflowAnnotations:
		return s.reorderAnnotations(c)
	case *AddWorkflowAnnotation:
		return s.addAnnotation(c)
	case *UpdateWorkflowAnnotation:
		return s.updateAnnotation(c)
	case *UpdateComponentOrMetanodeName:
		return s.rename(c)
	case *UpdateNodeLabel:
		return s.updateLabel(c)
	case *UpdateProjectMetadata:
		return s.updateProjectMetadata(c)
	case *UpdateComponentMetadata:
		return s.updateComponentMetadata(c)
	case *UpdateComponentLinkInformation:
		return s.updateLinkInformation(c)
	case *ShareComponent:
		return s.shareComponent(c)
	case *UpdateLinkedComponents:
		return s.updateLinkedComponents(c)
	case *TransformMetanodePortsBar:
		return s.transformPortsBar(c)
	default:
		return nil, false, wferr.InvalidInput("commands.Execute",
			"Command of type %s cannot be executed. Unknown command.", fmt.Sprintf("%T", cmd))
	}
}

// child returns the node id of the container, failing with NotFound when it
// is absent or lives elsewhere.
func (s *session) child(op string, id nodeid.ID) (*workflow.Node, error) {
	if id.IsRoot() || id.Parent() != s.container {
		return nil, wferr.NotFound(op, "Node %s is not part of workflow %s", id, s.container)
	}
	return s.g.Node(id)
}

// reset discards the results held by any of ids and by everything
// downstream of them.
func (s *session) reset(ids ...nodeid.ID) error {
	var targets []nodeid.ID
	for _, id := range ids {
		if s.g.HasNode(id) && s.gate.CanReset(id) {
			targets = append(targets, id)
		}
	}
	if len(targets) == 0 {
		return nil
	}
	return s.e.machine.Reset(s.g, targets...)
}

// resetDownstream discards the results of every node fed by id.
func (s *session) resetDownstream(id nodeid.ID) error {
	var dests []nodeid.ID
	for _, c := range s.g.ConnectionsOf(s.container, id) {
		if c.Source == id && c.Dest != s.container {
			dests = append(dests, c.Dest)
		}
	}
	return s.reset(dests...)
}

func containers(g *workflow.Graph, ids []nodeid.ID) []nodeid.ID {
	var out []nodeid.ID
	for _, id := range ids {
		if g.IsContainer(id) {
			out = append(out, id)
		}
	}
	return out
}
