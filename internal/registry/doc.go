// Package registry keeps the currently open projects.
//
// A Registry is an explicit value with an open and close lifecycle; tests
// and servers create as many as they need. Each open Project wires one
// workflow to its execution state machine, command engine and snapshot
// synchronizer:
//
//	reg := registry.New(registry.Options{Catalog: cat})
//	defer reg.Close()
//	p, err := reg.Open(ctx, "demo")
//	res, err := p.Execute(ctx, nodeid.Root, &commands.AddNode{FactoryKey: "table.reader"})
//
// Commands commit a snapshot of their container before returning. Execution
// state changes are committed asynchronously, for the changed nodes'
// containers and every container above them.
package registry
