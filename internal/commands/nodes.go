package commands

import (
	"slices"

	"github.com/specialistvlad/wfengine/internal/nodeid"
	"github.com/specialistvlad/wfengine/internal/wferr"
	"github.com/specialistvlad/wfengine/internal/workflow"
)

// resolve builds an unplaced native from the catalog.
func (s *session) resolve(key, settings string) (*workflow.Node, error) {
	if s.e.catalog == nil {
		return nil, wferr.NotFound("commands.resolve", "No node found for factory key %s", key)
	}
	sig, err := s.e.catalog.Resolve(key, settings)
	if err != nil {
		return nil, err
	}
	return sig.NewNode(), nil
}

func (s *session) addNode(c *AddNode) (Result, bool, error) {
	const op = "commands.AddNode"
	n, err := s.resolve(c.FactoryKey, c.Settings)
	if err != nil {
		return nil, false, err
	}
	if c.SourceNodeID != nil {
		if _, err := s.child(op, *c.SourceNodeID); err != nil {
			return nil, false, err
		}
	}
	n.Position = c.Position

	s.begin()
	id, err := s.g.InsertNode(s.container, n)
	if err != nil {
		return nil, false, err
	}
	if c.SourceNodeID != nil {
		s.connectFrom(*c.SourceNodeID, c.SourcePortIdx, id)
	}
	return &AddNodeResult{Outcome: Outcome{Kind: ResultAddNode}, NewNodeID: id}, true, nil
}

// connectFrom wires src to the freshly added node dst, using the given
// source port or letting auto connect pick one. Failing to find compatible
// ports is not an error.
func (s *session) connectFrom(src nodeid.ID, port *int, dst nodeid.ID) {
	if port == nil {
		guard := func(c *workflow.Connection) bool {
			ok, _ := s.gate.CanConnect(s.container, c)
			return ok
		}
		if _, err := s.g.AutoConnect(s.container, []nodeid.ID{src, dst}, workflow.AutoConnectOptions{}, guard); err != nil {
			s.e.logger.Debug("Could not connect new node.", "source", src, "node", dst, "error", err)
		}
		return
	}
	outs, err := s.g.SourcePorts(s.container, src)
	if err != nil || *port >= len(outs) {
		return
	}
	if in, ok := s.freeDestPort(dst, outs[*port].Type); ok {
		s.tryConnect(&workflow.Connection{Source: src, SourcePort: *port, Dest: dst, DestPort: in})
	}
}

// freeDestPort picks the lowest unoccupied input of dst accepting t,
// visible ports first.
func (s *session) freeDestPort(dst nodeid.ID, t workflow.PortType) (int, bool) {
	ins, err := s.g.DestPorts(s.container, dst)
	if err != nil {
		return 0, false
	}
	return pickPort(ins, func(p workflow.Port) bool {
		return p.Type.Accepts(t) && s.g.IncomingConnection(s.container, dst, p.Index) == nil
	})
}

// sourcePortFor picks the lowest output of src the given input accepts,
// visible ports first.
func (s *session) sourcePortFor(src nodeid.ID, t workflow.PortType) (int, bool) {
	outs, err := s.g.SourcePorts(s.container, src)
	if err != nil {
		return 0, false
	}
	return pickPort(outs, func(p workflow.Port) bool { return t.Accepts(p.Type) })
}

func pickPort(ports []workflow.Port, ok func(workflow.Port) bool) (int, bool) {
	for _, hidden := range []bool{false, true} {
		for _, p := range ports {
			if p.Hidden == hidden && ok(p) {
				return p.Index, true
			}
		}
	}
	return 0, false
}

// tryConnect adds c when it is legal and reports whether it did.
func (s *session) tryConnect(c *workflow.Connection) bool {
	if ok, _ := s.gate.CanConnect(s.container, c); !ok {
		return false
	}
	_, err := s.g.AddConnection(s.container, c)
	return err == nil
}

func (s *session) insertNode(c *InsertNode) (Result, bool, error) {
	const op = "commands.InsertNode"
	if (c.FactoryKey == "") == (c.NodeID == nil) {
		return nil, false, wferr.InvalidInput(op, "Either a node factory or a node id needs to be provided, but never both or none")
	}
	conn, err := s.g.Connection(s.container, c.ConnectionID)
	if err != nil {
		return nil, false, err
	}
	if !s.gate.CanDeleteConnection(s.container, c.ConnectionID) {
		return nil, false, wferr.NotAllowed(op, "Cannot insert a node into connection %s", c.ConnectionID)
	}
	var fresh *workflow.Node
	if c.NodeID != nil {
		if _, err := s.child(op, *c.NodeID); err != nil {
			return nil, false, err
		}
		if *c.NodeID == conn.Source || *c.NodeID == conn.Dest {
			return nil, false, wferr.NotAllowed(op, "Node %s is already attached to connection %s", *c.NodeID, c.ConnectionID)
		}
		if !s.gate.CanReplace(*c.NodeID) {
			return nil, false, wferr.NotAllowed(op, "Node %s is executing or has executing successors", *c.NodeID)
		}
	} else if fresh, err = s.resolve(c.FactoryKey, c.Settings); err != nil {
		return nil, false, err
	}
	srcPorts, err := s.g.SourcePorts(s.container, conn.Source)
	if err != nil {
		return nil, false, err
	}
	dstPorts, err := s.g.DestPorts(s.container, conn.Dest)
	if err != nil {
		return nil, false, err
	}
	resets := []nodeid.ID{}
	if conn.Dest != s.container {
		resets = append(resets, conn.Dest)
	}
	if c.NodeID != nil {
		resets = append(resets, *c.NodeID)
	}
	if err := s.reset(resets...); err != nil {
		return nil, false, err
	}

	s.begin()
	var id nodeid.ID
	if fresh != nil {
		fresh.Position = c.Position
		if id, err = s.g.InsertNode(s.container, fresh); err != nil {
			return nil, false, err
		}
	} else {
		id = *c.NodeID
		n, _ := s.g.Node(id)
		n.Position = c.Position
	}
	if _, err := s.g.RemoveConnection(s.container, c.ConnectionID); err != nil {
		return nil, false, err
	}
	if in, ok := s.freeDestPort(id, srcPorts[conn.SourcePort].Type); ok {
		s.tryConnect(&workflow.Connection{Source: conn.Source, SourcePort: conn.SourcePort, Dest: id, DestPort: in})
	}
	if out, ok := s.sourcePortFor(id, dstPorts[conn.DestPort].Type); ok {
		s.tryConnect(&workflow.Connection{Source: id, SourcePort: out, Dest: conn.Dest, DestPort: conn.DestPort})
	}
	if fresh == nil {
		return &Outcome{}, true, nil
	}
	return &AddNodeResult{Outcome: Outcome{Kind: ResultAddNode}, NewNodeID: id}, true, nil
}

func (s *session) replaceNode(c *ReplaceNode) (Result, bool, error) {
	const op = "commands.ReplaceNode"
	if (c.FactoryKey == "") == (c.ReplacementNodeID == nil) {
		return nil, false, wferr.InvalidInput(op, "Either a node factory or a replacement node id needs to be provided, but never both or none")
	}
	target, err := s.child(op, c.TargetNodeID)
	if err != nil {
		return nil, false, err
	}
	if !s.gate.CanReplace(target.ID) {
		return nil, false, wferr.NotAllowed(op,
			"Unable to delete the targeted node. Replace operation aborted. Please check for any execution on progress.")
	}
	var repl *workflow.Node
	if c.ReplacementNodeID != nil {
		if repl, err = s.child(op, *c.ReplacementNodeID); err != nil {
			return nil, false, err
		}
		if repl.ID == target.ID {
			return nil, false, wferr.InvalidInput(op, "A node cannot replace itself")
		}
		if !s.gate.CanReplace(repl.ID) {
			return nil, false, wferr.NotAllowed(op, "Node %s is executing or has executing successors", repl.ID)
		}
	} else if repl, err = s.resolve(c.FactoryKey, c.Settings); err != nil {
		return nil, false, err
	}
	if err := s.reset(target.ID); err != nil {
		return nil, false, err
	}

	if repl.ID == "" && target.Kind == workflow.KindNative {
		s.begin()
		if _, err := s.g.ReplaceNative(target.ID, repl); err != nil {
			return nil, false, err
		}
		return &AddNodeResult{Outcome: Outcome{Kind: ResultAddNode}, NewNodeID: target.ID}, true, nil
	}

	s.begin(containers(s.g, []nodeid.ID{target.ID})...)
	repl.Position = target.Position
	if repl.ID == "" {
		if _, err := s.g.InsertNode(s.container, repl); err != nil {
			return nil, false, err
		}
	}
	s.reconnect(target, repl)
	if _, err := s.g.RemoveNode(target.ID); err != nil {
		return nil, false, err
	}
	return &AddNodeResult{Outcome: Outcome{Kind: ResultAddNode}, NewNodeID: repl.ID}, true, nil
}

// reconnect moves the connections of from over to to. Port indices shift by
// one when exactly one of the nodes has flow variable ports; connections
// that do not fit are dropped with from.
func (s *session) reconnect(from, to *workflow.Node) {
	shift := func(side workflow.Side) int {
		a, b := hasFlowPort(from.Ports(side)), hasFlowPort(to.Ports(side))
		switch {
		case a && !b:
			return -1
		case !a && b:
			return 1
		}
		return 0
	}
	inShift, outShift := shift(workflow.SideIn), shift(workflow.SideOut)
	conns := slices.Clone(s.g.ConnectionsOf(s.container, from.ID))
	for _, c := range conns {
		if c.Source == to.ID || c.Dest == to.ID {
			continue
		}
		nc := c.Clone()
		if c.Dest == from.ID {
			nc.Dest, nc.DestPort = to.ID, c.DestPort+inShift
		} else {
			nc.Source, nc.SourcePort = to.ID, c.SourcePort+outShift
		}
		if nc.DestPort < 0 || nc.SourcePort < 0 {
			continue
		}
		if err := s.g.ValidateConnection(s.container, nc); err != nil {
			continue
		}
		_, _ = s.g.AddConnection(s.container, nc)
	}
}

func hasFlowPort(ports []workflow.Port) bool {
	return len(ports) > 0 && ports[0].Type == workflow.TypeFlowVariable && ports[0].Hidden
}

func (s *session) delete(c *Delete) (Result, bool, error) {
	const op = "commands.Delete"
	missing, err := s.g.MissingParts(s.container, workflow.Parts{
		Nodes:       c.NodeIDs,
		Connections: c.ConnectionIDs,
		Annotations: c.AnnotationIDs,
	})
	if err != nil {
		return nil, false, err
	}
	if missing != "" {
		return nil, false, wferr.NotFound(op, "Delete operation aborted. Workflow parts not found: %s", missing)
	}
	if !s.gate.CanDelete(c.NodeIDs) {
		return nil, false, wferr.NotAllowed(op, "Some nodes can't be deleted. Delete operation aborted.")
	}
	deleted := func(id nodeid.ID) bool { return slices.Contains(c.NodeIDs, id) }
	for _, cid := range c.ConnectionIDs {
		conn, _ := s.g.Connection(s.container, cid)
		if deleted(conn.Source) || deleted(conn.Dest) {
			continue
		}
		if !s.gate.CanDeleteConnection(s.container, cid) {
			return nil, false, wferr.NotAllowed(op, "Some connections can't be deleted. Delete operation aborted.")
		}
	}
	if len(c.NodeIDs) == 0 && len(c.ConnectionIDs) == 0 && len(c.AnnotationIDs) == 0 {
		return &Outcome{}, false, nil
	}

	for _, id := range c.NodeIDs {
		if err := s.resetDownstream(id); err != nil {
			return nil, false, err
		}
	}
	for _, cid := range c.ConnectionIDs {
		if !deleted(cid.Dest) && cid.Dest != s.container {
			if err := s.reset(cid.Dest); err != nil {
				return nil, false, err
			}
		}
	}

	s.begin(containers(s.g, c.NodeIDs)...)
	for _, cid := range c.ConnectionIDs {
		// Connections of deleted nodes may already be gone.
		_, _ = s.g.RemoveConnection(s.container, cid)
	}
	for _, id := range c.NodeIDs {
		if s.g.HasNode(id) {
			if _, err := s.g.RemoveNode(id); err != nil {
				return nil, false, err
			}
		}
	}
	for _, aid := range c.AnnotationIDs {
		_ = s.g.RemoveAnnotation(aid)
	}
	return &Outcome{}, true, nil
}
