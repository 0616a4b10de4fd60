// Package errors defines the coded error type shared by the engine, CLI,
// and API.
//
// Every failure that crosses a package boundary carries a machine-readable
// [Code] so callers can branch on the class of failure without string
// matching: the API maps codes to HTTP statuses, the engine decides which
// codes fail a cycle and which only mark a chain, and the CLI picks the
// message to show.
//
//	err := errors.New(errors.ErrCodeNegativeDepth, "segment %d: computed depth %.2f", id, d)
//	if errors.Is(err, errors.ErrCodeNegativeDepth) {
//	    // leave the segment at its last valid value
//	}
package errors

import (
	"errors"
	"fmt"
)

// Code classifies a failure.
type Code string

const (
	// Validation failures on caller input.
	ErrCodeInvalidInput   Code = "INVALID_INPUT"
	ErrCodeInvalidConfig  Code = "INVALID_CONFIG"
	ErrCodeInvalidNetwork Code = "INVALID_NETWORK"
	ErrCodeInvalidPath    Code = "INVALID_PATH"

	// Missing resources.
	ErrCodeNotFound        Code = "NOT_FOUND"
	ErrCodeSegmentNotFound Code = "SEGMENT_NOT_FOUND"
	ErrCodeNodeNotFound    Code = "NODE_NOT_FOUND"

	// Failures surfaced by the recalculation engine itself.
	ErrCodeCycleDetected       Code = "CYCLE_DETECTED"
	ErrCodeIncompleteElevation Code = "INCOMPLETE_ELEVATION_DATA"
	ErrCodeNegativeDepth       Code = "NEGATIVE_DEPTH"
	ErrCodeOrphanedChain       Code = "ORPHANED_CHAIN"
	ErrCodeNoSample            Code = "NO_SAMPLE"

	// Everything else.
	ErrCodeInternal    Code = "INTERNAL_ERROR"
	ErrCodeUnsupported Code = "UNSUPPORTED"
)

// Error pairs a Code with a human-readable message and an optional cause.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	out := string(e.Code) + ": " + e.Message
	if e.Cause != nil {
		out += ": " + e.Cause.Error()
	}
	return out
}

// Unwrap exposes the cause to the stdlib errors helpers.
func (e *Error) Unwrap() error { return e.Cause }

// New builds an Error from a code and a formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an Error around a cause. The cause stays reachable through
// the Unwrap chain.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Is reports whether any error in err's chain carries the given code.
func Is(err error, code Code) bool {
	return GetCode(err) == code && code != ""
}

// GetCode returns the code of the first *Error in the chain, or "".
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns the message without the code prefix, falling back
// to the plain error string for foreign errors.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
