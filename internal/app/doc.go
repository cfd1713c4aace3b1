// Package app wires the workflow engine into a running service. It owns the
// configuration, the logger, the project registry and the servers, and it
// drives their lifecycle independently of any entrypoint.
package app
