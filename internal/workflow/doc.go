// Package workflow is the structural model of a hierarchical workflow.
//
// # Arena
//
// A Graph is an arena keyed by nodeid.ID. Nodes live in one flat map and each
// container (the project root, every metanode and every component) owns a
// Level holding the connections, annotations and id counters of the graph
// nested inside it. Whether a node belongs to a container is derived from its
// id prefix; nodes never point at their parent.
//
// # Levels and boundaries
//
// Inside a container C, a connection whose source is C itself starts at C's
// in port bar and one whose destination is C ends at C's out port bar. Bar
// port i on the inside is port i of C on the outside.
//
// # Concurrency
//
// Graph methods are not synchronized. Workflow guards a Graph with a
// RWMutex; callers obtain the Graph through Read or Write so that a whole
// command is applied within a single critical section.
package workflow
