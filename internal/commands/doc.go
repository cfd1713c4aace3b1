// Package commands applies editing commands to a project's workflow and
// keeps their undo and redo history.
//
// A command targets one container (the root or a metanode or component).
// Commands on the same container are serialized and each is applied inside
// a single write section of the workflow. A handler validates everything
// first, discards the execution results its edit invalidates and only then
// captures the container state and mutates. A handler failing after that
// point is rolled back to the captured state.
//
// History is kept per container. Every recorded entry holds the container
// state before and after the command, so undo and redo restore states
// instead of replaying edits. The histories of containers that a command
// removes or replaces wholesale are dropped.
package commands
