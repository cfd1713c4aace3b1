// internal/nodeid/doc.go

/*
Package nodeid provides a structured, type-safe representation for node
identifiers within a workflow hierarchy.

An identifier is a path of positive integers rooted at the project workflow.
The canonical text form is `root` for the project itself and `root:i:j:...`
for nested nodes, e.g. `root:4:2` is the second node inside container node
`root:4`. A container's descendants share its path as a prefix, which is how
membership is derived; there are no parent pointers.

This package centralizes all formatting and parsing logic so that other
packages never manipulate the string form directly.
*/
package nodeid
