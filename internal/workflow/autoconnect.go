package workflow

import (
	"github.com/specialistvlad/wfengine/internal/nodeid"
	"github.com/specialistvlad/wfengine/internal/wferr"
)

// AutoConnectOptions tune AutoConnect.
type AutoConnectOptions struct {
	// InBar chains the container's in bar before the first node.
	InBar bool
	// OutBar chains the container's out bar after the last node.
	OutBar bool
	// FlowVariablesOnly connects hidden flow variable ports exclusively.
	FlowVariablesOnly bool
}

// ConnectGuard vetoes individual connections AutoConnect proposes.
type ConnectGuard func(c *Connection) bool

// AutoConnected reports what AutoConnect changed.
type AutoConnected struct {
	Added    []*Connection
	Replaced []*Connection
}

// AutoConnect chains the nodes in selection order. For each adjacent pair it
// picks the lowest free visible destination port with a compatible visible
// source, then the hidden flow variable ports, then the lowest occupied
// compatible visible port. Pairs already connected, pairs that would close a
// cycle and connections rejected by guard are skipped.
func (g *Graph) AutoConnect(container nodeid.ID, ids []nodeid.ID, opts AutoConnectOptions, guard ConnectGuard) (AutoConnected, error) {
	if err := g.CheckParts(container, Parts{Nodes: ids}); err != nil {
		return AutoConnected{}, err
	}
	chain := ids
	if !container.IsRoot() {
		if opts.InBar {
			chain = append([]nodeid.ID{container}, chain...)
		}
		if opts.OutBar {
			chain = append(append([]nodeid.ID(nil), chain...), container)
		}
	}
	if len(chain) < 2 {
		return AutoConnected{}, wferr.NotAllowed("workflow.AutoConnect", "At least two nodes or port bars are required to connect")
	}
	var res AutoConnected
	for i := 0; i+1 < len(chain); i++ {
		src, dst := chain[i], chain[i+1]
		if src == dst || g.connected(container, src, dst) || g.wouldCycle(container, src, dst) {
			continue
		}
		c := g.pickConnection(container, src, dst, opts.FlowVariablesOnly, guard)
		if c == nil {
			continue
		}
		replaced, err := g.AddConnection(container, c)
		if err != nil {
			return AutoConnected{}, err
		}
		res.Added = append(res.Added, c)
		if replaced != nil {
			res.Replaced = append(res.Replaced, replaced)
		}
	}
	return res, nil
}

func (g *Graph) connected(container, src, dst nodeid.ID) bool {
	for _, c := range g.levels[container].Connections {
		if c.Source == src && c.Dest == dst {
			return true
		}
	}
	return false
}

func (g *Graph) pickConnection(container, src, dst nodeid.ID, flowOnly bool, guard ConnectGuard) *Connection {
	outs, err := g.SourcePorts(container, src)
	if err != nil {
		return nil
	}
	ins, err := g.DestPorts(container, dst)
	if err != nil {
		return nil
	}
	ok := func(c *Connection) bool { return guard == nil || guard(c) }
	visible := func(occupied bool) *Connection {
		for _, in := range ins {
			if in.Hidden || (g.IncomingConnection(container, dst, in.Index) != nil) != occupied {
				continue
			}
			for _, out := range outs {
				if out.Hidden || !in.Type.Accepts(out.Type) {
					continue
				}
				c := &Connection{Source: src, SourcePort: out.Index, Dest: dst, DestPort: in.Index}
				if ok(c) {
					return c
				}
			}
		}
		return nil
	}
	if !flowOnly {
		if c := visible(false); c != nil {
			return c
		}
	}
	if len(outs) > 0 && len(ins) > 0 && outs[0].Hidden && ins[0].Hidden &&
		outs[0].Type == TypeFlowVariable && ins[0].Type == TypeFlowVariable {
		if c := (&Connection{Source: src, Dest: dst}); ok(c) {
			return c
		}
	}
	if flowOnly {
		return nil
	}
	return visible(true)
}
