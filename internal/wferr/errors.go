// Package wferr defines the error taxonomy shared by every workflow operation.
//
// Each failure is an *Error carrying the operation that failed, a Kind that
// callers switch on, and a human readable message. Kinds are matched with
// errors.Is against the package sentinels:
//
//	if errors.Is(err, wferr.ErrNotFound) { ... }
package wferr

import (
	"errors"
	"fmt"
)

// Kind categorizes an error.
type Kind string

const (
	// KindNotFound is returned when a node, connection, annotation, snapshot,
	// clipboard payload or factory does not exist.
	KindNotFound Kind = "not_found"

	// KindOperationNotAllowed is returned when the current structure or
	// execution state forbids the requested operation.
	KindOperationNotAllowed Kind = "operation_not_allowed"

	// KindInvalidInput is returned for malformed payloads, settings or names.
	KindInvalidInput Kind = "invalid_input"

	// KindTimeout is returned when a bounded wait is exceeded.
	KindTimeout Kind = "timeout"

	// KindInternal marks an invariant violation.
	KindInternal Kind = "internal"
)

// Sentinel values for errors.Is matching by kind.
var (
	ErrNotFound            = &Error{Kind: KindNotFound}
	ErrOperationNotAllowed = &Error{Kind: KindOperationNotAllowed}
	ErrInvalidInput        = &Error{Kind: KindInvalidInput}
	ErrTimeout             = &Error{Kind: KindTimeout}
	ErrInternal            = &Error{Kind: KindInternal}
)

// Error is the structured error returned by workflow operations.
type Error struct {
	// Op is the operation that failed, e.g. "commands.Delete".
	Op string
	// Kind categorizes the failure.
	Kind Kind
	// Message is the user facing description.
	Message string
	// Err is an optional underlying cause.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind. A target with an
// Op only matches errors from that operation.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != "" && t.Kind != e.Kind {
		return false
	}
	if t.Op != "" && t.Op != e.Op {
		return false
	}
	return t.Kind != "" || t.Op != ""
}

func newf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Op: op, Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// NotFound builds a KindNotFound error.
func NotFound(op, format string, args ...any) *Error {
	return newf(KindNotFound, op, format, args...)
}

// NotAllowed builds a KindOperationNotAllowed error.
func NotAllowed(op, format string, args ...any) *Error {
	return newf(KindOperationNotAllowed, op, format, args...)
}

// InvalidInput builds a KindInvalidInput error.
func InvalidInput(op, format string, args ...any) *Error {
	return newf(KindInvalidInput, op, format, args...)
}

// Timeout builds a KindTimeout error.
func Timeout(op, format string, args ...any) *Error {
	return newf(KindTimeout, op, format, args...)
}

// Internal builds a KindInternal error.
func Internal(op, format string, args ...any) *Error {
	return newf(KindInternal, op, format, args...)
}

// Wrap attaches a cause to a new error of the given kind.
func Wrap(kind Kind, op string, err error, format string, args ...any) *Error {
	e := newf(kind, op, format, args...)
	e.Err = err
	return e
}

// KindOf returns the kind of the first *Error in err's chain, or
// KindInternal when err carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Message returns the user facing message of the first *Error in err's
// chain, falling back to err.Error().
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return err.Error()
}
