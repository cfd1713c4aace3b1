// Package watch follows a workflow over socket.io and prints every patch it
// receives as one JSON line.
package watch
