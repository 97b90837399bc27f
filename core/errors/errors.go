// Package errors provides structured, coded error handling compatible with
// the standard library.
//
// Overview:
//   - Responsibility: Classify failures across the server lifecycle with codes
//   - Key Types: Code for classification, E for structured wrapping
//   - Concurrency Model: All functions are safe for concurrent use
//   - Error Semantics: Compatible with errors.Is / errors.As unwrapping
//   - Performance Notes: Minimal allocations; codes are comparable strings
//
// Usage:
//
//	err := errors.New(errors.CodeInvalidTransition, "start requires state created")
//	if errors.IsCode(err, errors.CodeInvalidTransition) { ... }
package errors

import (
	"errors"
	"fmt"
)

// Code classifies an error. Lifecycle codes cover the state machine and
// shutdown path; the remaining codes align with Connect/gRPC codes so RPC
// interceptors can map them onto the wire.
type Code string

// Lifecycle error codes.
const (
	// CodeInvalidTransition marks an operation invoked from the wrong
	// lifecycle state. Always a caller bug, never retried.
	CodeInvalidTransition Code = "INVALID_TRANSITION"

	// CodeBindFailed marks a listener that could not bind (e.g. address in
	// use). Fatal to the start sequence.
	CodeBindFailed Code = "BIND_FAILED"

	// CodeCycleDetected marks a shutdown-hook registration that would create
	// a dependency cycle. The prior hook set is preserved.
	CodeCycleDetected Code = "CYCLE_DETECTED"

	// CodeAlreadyStopped marks a hook registration after the terminal state.
	CodeAlreadyStopped Code = "ALREADY_STOPPED"

	// CodeHookFailure aggregates shutdown actions that failed during a run.
	CodeHookFailure Code = "HOOK_FAILURE"
)

// General error codes (aligned with Connect/gRPC codes).
const (
	CodeInvalidArgument  Code = "INVALID_ARGUMENT"
	CodeNotFound         Code = "NOT_FOUND"
	CodeAlreadyExists    Code = "ALREADY_EXISTS"
	CodePermissionDenied Code = "PERMISSION_DENIED"
	CodeUnauthenticated  Code = "UNAUTHENTICATED"
	CodeInternal         Code = "INTERNAL"
	CodeUnavailable      Code = "UNAVAILABLE"
	CodeDeadlineExceeded Code = "DEADLINE_EXCEEDED"
	CodeUnimplemented    Code = "UNIMPLEMENTED"
)

// E is a structured error carrying a code, the failing operation, and an
// optional underlying cause.
type E struct {
	Code Code   // Error classification code
	Op   string // Operation that failed (e.g. "servex.Start")
	Err  error  // Underlying error (may be nil)
	Msg  string // Human-readable message
}

// Error implements the error interface.
func (e *E) Error() string {
	switch {
	case e.Err != nil && e.Msg != "":
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Msg, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Msg)
	}
}

// Unwrap returns the underlying error for error chain traversal.
func (e *E) Unwrap() error {
	return e.Err
}

// New creates a structured error with the given code and message.
func New(code Code, msg string) error {
	return &E{Code: code, Msg: msg}
}

// Newf creates a structured error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &E{Code: code, Msg: fmt.Sprintf(format, args...)}
}

// Wrap creates a structured error wrapping an existing error. The operation
// name identifies where the failure occurred.
func Wrap(code Code, op string, err error) error {
	return &E{Code: code, Op: op, Err: err}
}

// Wrapf creates a structured error wrapping an existing error with a
// formatted message.
func Wrapf(code Code, op string, err error, format string, args ...any) error {
	return &E{Code: code, Op: op, Err: err, Msg: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the code from an error, unwrapping as needed. Returns the
// empty code when the chain carries no *E.
func CodeOf(err error) Code {
	var e *E
	if err != nil && errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsCode reports whether the error chain carries the given code.
func IsCode(err error, code Code) bool {
	return CodeOf(err) == code
}

// Is reports whether any error in err's chain matches target.
func Is(err error, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// Join returns an error wrapping the given non-nil errors. It delegates to
// the standard library so callers can unwrap the individual failures.
func Join(errs ...error) error {
	return errors.Join(errs...)
}
