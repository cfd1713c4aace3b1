package workflow

import (
	"github.com/specialistvlad/wfengine/internal/nodeid"
	"github.com/specialistvlad/wfengine/internal/wferr"
)

// SourcePorts returns the ports that act as outputs inside container for
// id. For the container itself those are its input ports, exposed by the in
// bar.
func (g *Graph) SourcePorts(container, id nodeid.ID) ([]Port, error) {
	return g.endpointPorts(container, id, SideOut)
}

// DestPorts returns the ports that act as inputs inside container for id.
// For the container itself those are its output ports, fed by the out bar.
func (g *Graph) DestPorts(container, id nodeid.ID) ([]Port, error) {
	return g.endpointPorts(container, id, SideIn)
}

func (g *Graph) endpointPorts(container, id nodeid.ID, side Side) ([]Port, error) {
	if id == container {
		n := g.ContainerNode(container)
		if n == nil {
			return nil, wferr.NotFound("workflow.endpointPorts", "Workflow %s has no port bars", container)
		}
		if side == SideOut {
			return n.InPorts, nil
		}
		return n.OutPorts, nil
	}
	if id.Parent() != container {
		return nil, wferr.NotFound("workflow.endpointPorts", "Node %s is not part of workflow %s", id, container)
	}
	n, err := g.Node(id)
	if err != nil {
		return nil, err
	}
	return n.Ports(side), nil
}

// IncomingConnection returns the connection feeding a destination port, or
// nil.
func (g *Graph) IncomingConnection(container, dest nodeid.ID, port int) *Connection {
	l, ok := g.levels[container]
	if !ok {
		return nil
	}
	return l.Connections[ConnectionID{Dest: dest, Port: port}]
}

// ValidateConnection checks that c may exist in container: both endpoint
// ports exist, their types are compatible and the edge closes no cycle.
func (g *Graph) ValidateConnection(container nodeid.ID, c *Connection) error {
	const op = "workflow.ValidateConnection"
	srcPorts, err := g.SourcePorts(container, c.Source)
	if err != nil {
		return err
	}
	dstPorts, err := g.DestPorts(container, c.Dest)
	if err != nil {
		return err
	}
	if c.SourcePort < 0 || c.SourcePort >= len(srcPorts) {
		return wferr.NotFound(op, "Source port %d of node %s does not exist", c.SourcePort, c.Source)
	}
	if c.DestPort < 0 || c.DestPort >= len(dstPorts) {
		return wferr.NotFound(op, "Destination port %d of node %s does not exist", c.DestPort, c.Dest)
	}
	if !dstPorts[c.DestPort].Type.Accepts(srcPorts[c.SourcePort].Type) {
		return wferr.NotAllowed(op, "Connection couldn't be created: incompatible port types %s and %s",
			srcPorts[c.SourcePort].Type, dstPorts[c.DestPort].Type)
	}
	if g.wouldCycle(container, c.Source, c.Dest) {
		return wferr.NotAllowed(op, "Connection couldn't be created: %s -> %s would introduce a cycle", c.Source, c.Dest)
	}
	return nil
}

// wouldCycle reports whether an edge src -> dst closes a cycle within the
// level. Edges touching the container's own bars never do.
func (g *Graph) wouldCycle(container, src, dst nodeid.ID) bool {
	if src == container || dst == container {
		return false
	}
	if src == dst {
		return true
	}
	l := g.levels[container]
	seen := map[nodeid.ID]bool{dst: true}
	queue := []nodeid.ID{dst}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, c := range l.Connections {
			if c.Source != cur || c.Dest == container || seen[c.Dest] {
				continue
			}
			if c.Dest == src {
				return true
			}
			seen[c.Dest] = true
			queue = append(queue, c.Dest)
		}
	}
	return false
}

// AddConnection validates and inserts c into container. A connection
// already occupying the destination port is replaced and returned.
func (g *Graph) AddConnection(container nodeid.ID, c *Connection) (*Connection, error) {
	if _, err := g.Level(container); err != nil {
		return nil, err
	}
	if err := g.ValidateConnection(container, c); err != nil {
		return nil, err
	}
	l := g.levels[container]
	replaced := l.Connections[c.ID()]
	l.Connections[c.ID()] = c
	return replaced, nil
}

// RemoveConnection deletes a connection and returns it.
func (g *Graph) RemoveConnection(container nodeid.ID, id ConnectionID) (*Connection, error) {
	c, err := g.Connection(container, id)
	if err != nil {
		return nil, err
	}
	delete(g.levels[container].Connections, id)
	return c, nil
}

// ConnectionsOf returns the connections in container touching node id.
func (g *Graph) ConnectionsOf(container, id nodeid.ID) []*Connection {
	var out []*Connection
	for _, c := range g.Connections(container) {
		if c.Source == id || c.Dest == id {
			out = append(out, c)
		}
	}
	return out
}
