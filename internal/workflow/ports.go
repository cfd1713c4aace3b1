package workflow

import (
	"slices"

	"github.com/specialistvlad/wfengine/internal/nodeid"
	"github.com/specialistvlad/wfengine/internal/wferr"
)

// Group returns the port group a native declares under name on side.
func (n *Node) Group(side Side, name string) (PortGroup, bool) {
	if n.Native == nil {
		return PortGroup{}, false
	}
	for _, pg := range n.Native.Groups {
		if pg.Side == side && pg.Name == name {
			return pg, true
		}
	}
	return PortGroup{}, false
}

// groupCount counts the ports a native currently carries for a group.
func (n *Node) groupCount(side Side, name string) int {
	count := 0
	for _, p := range n.Ports(side) {
		if p.Group == name {
			count++
		}
	}
	return count
}

// CheckAddPort reports why a port of type t cannot be added to the group on
// the given side of node n, or nil if it can.
func (n *Node) CheckAddPort(side Side, group string, t PortType) error {
	const op = "workflow.AddPort"
	if n.IsContainer() {
		if t == "" {
			return wferr.InvalidInput(op, "Port type required")
		}
		return nil
	}
	pg, ok := n.Group(side, group)
	if !ok {
		return wferr.NotAllowed(op, "Node %s has no %s port group '%s'", n.ID, side, group)
	}
	if !pg.Extendable {
		return wferr.NotAllowed(op, "Port group '%s' of node %s is not extendable", group, n.ID)
	}
	if !pg.Supports(t) {
		return wferr.NotAllowed(op, "Port group '%s' does not support port type %s", group, t)
	}
	if pg.Max > 0 && n.groupCount(side, group) >= pg.Max {
		return wferr.NotAllowed(op, "Port group '%s' already has the maximum of %d ports", group, pg.Max)
	}
	return nil
}

// CheckRemovePort reports why port index cannot be removed from the given
// side of node n, or nil if it can.
func (n *Node) CheckRemovePort(side Side, index int) error {
	const op = "workflow.RemovePort"
	ports := n.Ports(side)
	if index < 0 || index >= len(ports) {
		return wferr.NotFound(op, "Port %d of node %s does not exist", index, n.ID)
	}
	if ports[index].Type == TypeFlowVariable && ports[index].Hidden {
		return wferr.NotAllowed(op, "The flow variable port of node %s cannot be removed", n.ID)
	}
	if n.IsContainer() {
		return nil
	}
	pg, ok := n.Group(side, ports[index].Group)
	if !ok || !pg.Extendable {
		return wferr.NotAllowed(op, "Port %d of node %s is not removable", index, n.ID)
	}
	if n.groupCount(side, pg.Name) <= pg.Min {
		return wferr.NotAllowed(op, "Port group '%s' needs at least %d ports", pg.Name, pg.Min)
	}
	return nil
}

// AddPort adds a port of type t and returns its index. Natives get the port
// at the end of the named group; containers append it.
func (g *Graph) AddPort(id nodeid.ID, side Side, group string, t PortType) (int, error) {
	n, err := g.Node(id)
	if err != nil {
		return 0, err
	}
	if err := n.CheckAddPort(side, group, t); err != nil {
		return 0, err
	}
	ports := slices.Clone(n.Ports(side))
	if n.IsContainer() {
		n.setPorts(side, append(ports, Port{Name: "Port", Type: t}))
		return len(ports), nil
	}
	pos := 1
	for _, pg := range n.Native.Groups {
		if pg.Side != side {
			continue
		}
		pos += n.groupCount(side, pg.Name)
		if pg.Name == group {
			break
		}
	}
	ports = slices.Insert(ports, pos, Port{Name: group, Type: t, Group: group})
	n.setPorts(side, ports)
	g.remapPorts(id, side, func(i int) (int, bool) {
		if i >= pos {
			return i + 1, true
		}
		return i, true
	})
	return pos, nil
}

// RemovePort removes a port and every connection attached to it. Higher
// indices shift down.
func (g *Graph) RemovePort(id nodeid.ID, side Side, index int) ([]*Connection, error) {
	n, err := g.Node(id)
	if err != nil {
		return nil, err
	}
	if err := n.CheckRemovePort(side, index); err != nil {
		return nil, err
	}
	n.setPorts(side, slices.Delete(slices.Clone(n.Ports(side)), index, index+1))
	return g.remapPorts(id, side, func(i int) (int, bool) {
		switch {
		case i == index:
			return 0, false
		case i > index:
			return i - 1, true
		default:
			return i, true
		}
	}), nil
}

// remapPorts rewrites the port indices of every connection attached to the
// given side of node id, in the enclosing level and, for containers, at the
// matching bar of its own level. Connections mapped to false are dropped and
// returned.
func (g *Graph) remapPorts(id nodeid.ID, side Side, mapping func(int) (int, bool)) []*Connection {
	var removed []*Connection
	rewrite := func(l *Level, endpoint func(*Connection) *int) {
		conns := make(map[ConnectionID]*Connection, len(l.Connections))
		for _, c := range l.sortedConnections() {
			if p := endpoint(c); p != nil {
				np, keep := mapping(*p)
				if !keep {
					removed = append(removed, c)
					continue
				}
				*p = np
			}
			conns[c.ID()] = c
		}
		l.Connections = conns
	}
	if outer, ok := g.levels[id.Parent()]; ok && !id.IsRoot() {
		rewrite(outer, func(c *Connection) *int {
			if side == SideIn && c.Dest == id {
				return &c.DestPort
			}
			if side == SideOut && c.Source == id {
				return &c.SourcePort
			}
			return nil
		})
	}
	if inner, ok := g.levels[id]; ok && !id.IsRoot() {
		rewrite(inner, func(c *Connection) *int {
			if side == SideIn && c.Source == id {
				return &c.SourcePort
			}
			if side == SideOut && c.Dest == id {
				return &c.DestPort
			}
			return nil
		})
	}
	return removed
}

// ReplaceNative swaps the native payload and ports of node id for those of
// repl, keeping id, position and label. Connections whose port vanished or
// became incompatible are removed and returned.
func (g *Graph) ReplaceNative(id nodeid.ID, repl *Node) ([]*Connection, error) {
	n, err := g.Node(id)
	if err != nil {
		return nil, err
	}
	if n.Kind != KindNative || repl.Kind != KindNative {
		return nil, wferr.NotAllowed("workflow.ReplaceNative", "Only native nodes can be replaced")
	}
	n.Native = repl.Native
	n.InPorts = repl.InPorts
	n.OutPorts = repl.OutPorts
	l := g.levels[id.Parent()]
	var removed []*Connection
	for _, c := range l.sortedConnections() {
		if c.Source != id && c.Dest != id {
			continue
		}
		if err := g.ValidateConnection(id.Parent(), c); err != nil {
			delete(l.Connections, c.ID())
			removed = append(removed, c)
		}
	}
	return removed, nil
}

// ConvertToComponent turns a metanode into a component in place. The
// component gains flow variable ports at index 0, so every attached port
// index shifts up by one.
func (g *Graph) ConvertToComponent(id nodeid.ID) error {
	n, err := g.Node(id)
	if err != nil {
		return err
	}
	if n.Kind != KindMetanode {
		return wferr.NotAllowed("workflow.ConvertToComponent", "Node %s is not a metanode", id)
	}
	n.Kind = KindComponent
	n.Container.Metadata = &ComponentMetadata{}
	for _, side := range []Side{SideIn, SideOut} {
		n.setPorts(side, append([]Port{flowVariablePort()}, n.Ports(side)...))
		g.remapPorts(id, side, func(i int) (int, bool) { return i + 1, true })
	}
	l := g.levels[id]
	l.InBar, l.OutBar = nil, nil
	return nil
}
