// Package server exposes open projects over an HTTP JSON API.
//
// Routes live under /api. Failures are reported as
//
//	{"error": {"kind": "not_found", "message": "..."}}
//
// with the status code derived from the error kind.
package server
