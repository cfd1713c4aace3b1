package commands

import (
	"github.com/specialistvlad/wfengine/internal/legality"
	"github.com/specialistvlad/wfengine/internal/nodeid"
	"github.com/specialistvlad/wfengine/internal/wferr"
	"github.com/specialistvlad/wfengine/internal/workflow"
)

func (s *session) collapse(c *Collapse) (Result, bool, error) {
	const op = "commands.Collapse"
	parts := workflow.Parts{Nodes: c.NodeIDs, Annotations: c.AnnotationIDs}
	if parts.Empty() {
		return nil, false, wferr.NotAllowed(op, "No nodes or workflow annotations selected")
	}
	if err := s.g.CheckParts(s.container, parts); err != nil {
		return nil, false, err
	}
	if between := s.g.Between(s.container, c.NodeIDs); len(between) > 0 {
		return nil, false, wferr.NotAllowed(op, "Cannot collapse the selection: node %s lies on a path between selected nodes", between[0])
	}
	if len(c.NodeIDs) > 0 {
		switch s.gate.CanCollapse(c.NodeIDs) {
		case legality.False:
			return nil, false, wferr.NotAllowed(op, "Nodes in selection are executing or have executing successors")
		case legality.ResetRequired:
			if !c.AllowReset {
				return nil, false, wferr.NotAllowed(op, "Resettable nodes in selection but explicit confirmation not given")
			}
		}
		if err := s.reset(c.NodeIDs...); err != nil {
			return nil, false, err
		}
	}

	if len(c.NodeIDs) == 1 && len(c.AnnotationIDs) == 0 && c.ContainerType == workflow.KindComponent {
		if n, _ := s.g.Node(c.NodeIDs[0]); n.Kind == workflow.KindMetanode {
			s.begin(n.ID)
			if err := s.g.ConvertToComponent(n.ID); err != nil {
				return nil, false, err
			}
			return &ConvertResult{Outcome: Outcome{Kind: ResultConvert}, ConvertedNodeID: n.ID}, true, nil
		}
	}

	s.begin(containers(s.g, c.NodeIDs)...)
	id, err := s.g.Collapse(s.container, parts, c.ContainerType)
	if err != nil {
		return nil, false, err
	}
	return &CollapseResult{Outcome: Outcome{Kind: ResultCollapse}, NewNodeID: id}, true, nil
}

func (s *session) expand(c *Expand) (Result, bool, error) {
	const op = "commands.Expand"
	n, err := s.child(op, c.NodeID)
	if err != nil {
		return nil, false, err
	}
	if !n.IsContainer() {
		return nil, false, wferr.NotAllowed(op, "Node %s is neither a metanode nor a component", n.ID)
	}
	if n.Container.Locked {
		return nil, false, wferr.NotAllowed(op, "Node %s is locked", n.ID)
	}
	switch s.gate.CanExpand(n.ID) {
	case legality.False:
		return nil, false, wferr.NotAllowed(op, "Node %s is executing or has executing successors", n.ID)
	case legality.ResetRequired:
		if !c.AllowReset {
			return nil, false, wferr.NotAllowed(op, "Resettable nodes contained in %s but explicit confirmation not given", n.ID)
		}
	}
	if err := s.reset(n.ID); err != nil {
		return nil, false, err
	}

	s.begin(n.ID)
	ex, err := s.g.Expand(n.ID)
	if err != nil {
		return nil, false, err
	}
	return &ExpandResult{
		Outcome:               Outcome{Kind: ResultExpand},
		ExpandedNodeIDs:       ex.Nodes,
		ExpandedAnnotationIDs: ex.Annotations,
	}, true, nil
}

func (s *session) addPort(c *AddPort) (Result, bool, error) {
	const op = "commands.AddPort"
	n, err := s.child(op, c.NodeID)
	if err != nil {
		return nil, false, err
	}
	if err := n.CheckAddPort(c.Side, c.PortGroup, c.PortTypeID); err != nil {
		return nil, false, err
	}
	if !s.gate.CanAddPort(n.ID, c.Side, c.PortGroup, c.PortTypeID) {
		return nil, false, wferr.NotAllowed(op, "Node %s is executing or has executing successors", n.ID)
	}
	if err := s.reset(n.ID); err != nil {
		return nil, false, err
	}

	s.begin(containers(s.g, []nodeid.ID{n.ID})...)
	idx, err := s.g.AddPort(n.ID, c.Side, c.PortGroup, c.PortTypeID)
	if err != nil {
		return nil, false, err
	}
	return &AddPortResult{Outcome: Outcome{Kind: ResultAddPort}, NewPortIdx: idx}, true, nil
}

func (s *session) removePort(c *RemovePort) (Result, bool, error) {
	const op = "commands.RemovePort"
	n, err := s.child(op, c.NodeID)
	if err != nil {
		return nil, false, err
	}
	if err := n.CheckRemovePort(c.Side, c.PortIndex); err != nil {
		return nil, false, err
	}
	if !s.gate.CanRemovePort(n.ID, c.Side, c.PortIndex) {
		return nil, false, wferr.NotAllowed(op, "Port %d of node %s cannot be removed while nodes are executing", c.PortIndex, n.ID)
	}
	if err := s.reset(n.ID); err != nil {
		return nil, false, err
	}

	s.begin(containers(s.g, []nodeid.ID{n.ID})...)
	if _, err := s.g.RemovePort(n.ID, c.Side, c.PortIndex); err != nil {
		return nil, false, err
	}
	return &Outcome{}, true, nil
}

func (s *session) transformPortsBar(c *TransformMetanodePortsBar) (Result, bool, error) {
	if n := s.g.ContainerNode(s.container); n == nil || n.Kind != workflow.KindMetanode {
		return nil, false, wferr.NotAllowed("commands.TransformMetanodePortsBar", "Workflow %s is not a metanode", s.container)
	}
	s.begin()
	changed, err := s.g.SetPortBar(s.container, c.Type, c.Bounds)
	return &Outcome{}, changed, err
}

func (s *session) rename(c *UpdateComponentOrMetanodeName) (Result, bool, error) {
	const op = "commands.UpdateComponentOrMetanodeName"
	if c.NodeID != s.container || c.NodeID.IsRoot() {
		if _, err := s.child(op, c.NodeID); err != nil {
			return nil, false, err
		}
	}
	if !s.g.IsContainer(c.NodeID) {
		return nil, false, wferr.NotAllowed(op, "Node %s is neither a metanode nor a component", c.NodeID)
	}
	s.begin()
	changed, err := s.g.SetName(c.NodeID, c.Name)
	return &Outcome{}, changed, err
}

func (s *session) updateLabel(c *UpdateNodeLabel) (Result, bool, error) {
	if _, err := s.child("commands.UpdateNodeLabel", c.NodeID); err != nil {
		return nil, false, err
	}
	s.begin()
	changed, err := s.g.SetLabel(c.NodeID, c.Label)
	return &Outcome{}, changed, err
}

func (s *session) updateProjectMetadata(c *UpdateProjectMetadata) (Result, bool, error) {
	if !s.container.IsRoot() {
		return nil, false, wferr.NotAllowed("commands.UpdateProjectMetadata",
			"Project metadata can only be updated on the project workflow, not on %s", s.container)
	}
	s.begin()
	md := workflow.Metadata{Description: c.Description, Tags: c.Tags, Links: c.Links}
	return &Outcome{}, s.g.SetProjectMetadata(md), nil
}

func (s *session) updateComponentMetadata(c *UpdateComponentMetadata) (Result, bool, error) {
	const op = "commands.UpdateComponentMetadata"
	if n := s.g.ContainerNode(s.container); n == nil || n.Kind != workflow.KindComponent {
		return nil, false, wferr.NotAllowed(op, "Workflow %s is not a component", s.container)
	}
	s.begin()
	changed, err := s.g.SetComponentMetadata(s.container, workflow.ComponentMetadata{
		Metadata: workflow.Metadata{Description: c.Description, Tags: c.Tags, Links: c.Links},
		Type:     c.Type,
		Icon:     c.Icon,
	})
	return &Outcome{}, changed, err
}
