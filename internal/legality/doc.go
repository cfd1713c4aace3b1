// Package legality decides which structural and execution operations are
// currently permitted.
//
// Every function is a pure read over a workflow graph and the execution
// states of its natives. Callers hold the workflow lock for the duration of
// a check and of the mutation it guards.
package legality
