// Package execstate implements the execution state machine of an open
// project.
//
// Requests (execute, reset, cancel and the loop actions) are validated and
// applied to the node store synchronously. The computation itself runs on a
// shared worker pool and is observed through a Handle, so callers that need
// the terminal state wait on the handle with a bound.
//
// Only natives have a stored state. A metanode or component reports a state
// derived from its native descendants.
//
// The machine never locks the workflow. Every operation that needs structure
// takes a Topology, normally the *workflow.Graph the caller holds under the
// workflow lock, and captures what it needs before returning.
package execstate
