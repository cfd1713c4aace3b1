package commands

import (
	"slices"

	"github.com/specialistvlad/wfengine/internal/nodeid"
	"github.com/specialistvlad/wfengine/internal/wferr"
	"github.com/specialistvlad/wfengine/internal/workflow"
)

func (s *session) connect(c *Connect) (Result, bool, error) {
	const op = "commands.Connect"
	conn := &workflow.Connection{
		Source:     c.SourceNodeID,
		SourcePort: c.SourcePortIdx,
		Dest:       c.DestinationNodeID,
		DestPort:   c.DestinationPortIdx,
	}
	res := &ConnectResult{Outcome: Outcome{Kind: ResultConnect}, NewConnectionID: conn.ID()}
	if ok, reason := s.gate.CanConnect(s.container, conn); !ok {
		return nil, false, wferr.NotAllowed(op, "%s", reason)
	}
	if old := s.g.IncomingConnection(s.container, conn.Dest, conn.DestPort); old != nil &&
		old.Source == conn.Source && old.SourcePort == conn.SourcePort {
		return res, false, nil
	}
	if conn.Dest != s.container {
		if err := s.reset(conn.Dest); err != nil {
			return nil, false, err
		}
	}

	s.begin()
	if _, err := s.g.AddConnection(s.container, conn); err != nil {
		return nil, false, err
	}
	return res, true, nil
}

func (s *session) autoConnect(c *AutoConnect) (Result, bool, error) {
	if err := s.g.CheckParts(s.container, workflow.Parts{Nodes: c.NodeIDs}); err != nil {
		return nil, false, err
	}
	guard := func(conn *workflow.Connection) bool {
		ok, _ := s.gate.CanConnect(s.container, conn)
		return ok
	}

	s.begin()
	res, err := s.g.AutoConnect(s.container, slices.Clone(c.NodeIDs), workflow.AutoConnectOptions{
		InBar:             c.WorkflowInPortsBarSelected,
		OutBar:            c.WorkflowOutPortsBarSelected,
		FlowVariablesOnly: c.FlowVariablePortsOnly,
	}, guard)
	if err != nil {
		return nil, false, err
	}
	var dests []nodeid.ID
	for _, conn := range res.Added {
		if conn.Dest != s.container {
			dests = append(dests, conn.Dest)
		}
	}
	if err := s.reset(dests...); err != nil {
		return nil, false, err
	}
	return &Outcome{}, len(res.Added) > 0, nil
}

func (s *session) addBendpoint(c *AddBendpoint) (Result, bool, error) {
	if _, err := s.g.Connection(s.container, c.ConnectionID); err != nil {
		return nil, false, err
	}
	s.begin()
	if err := s.g.AddBendpoint(s.container, c.ConnectionID, c.Index, c.Position); err != nil {
		return nil, false, err
	}
	return &Outcome{}, true, nil
}

func (s *session) removeBendpoint(c *RemoveBendpoint) (Result, bool, error) {
	if _, err := s.g.Connection(s.container, c.ConnectionID); err != nil {
		return nil, false, err
	}
	s.begin()
	if err := s.g.RemoveBendpoint(s.container, c.ConnectionID, c.Index); err != nil {
		return nil, false, err
	}
	return &Outcome{}, true, nil
}
