// Package forgeerr defines the controller-side error taxonomy from spec.md
// §7: usage, transport, protocol, validation, and operation errors, each
// carrying the process exit code its kind maps to so pkg/forge never has
// to string-sniff an error to decide how to exit.
//
// Plain wrapped errors (fmt.Errorf("...: %w", err)) are used everywhere
// else, matching the teacher's practice — this package exists only for the
// handful of kinds that must be distinguishable at the top of main().
package forgeerr

import (
	"errors"
	"fmt"
	"runtime/debug"
)

// Kind identifies one of the error categories from spec.md §7.
type Kind int

const (
	KindUsage Kind = iota
	KindTransport
	KindProtocol
	KindValidation
	KindOperation
)

func (k Kind) String() string {
	switch k {
	case KindUsage:
		return "usage"
	case KindTransport:
		return "transport"
	case KindProtocol:
		return "protocol"
	case KindValidation:
		return "validation"
	case KindOperation:
		return "operation"
	default:
		return "unknown"
	}
}

// ExitCode returns the process exit code this kind maps to per spec.md §6.
func (k Kind) ExitCode() int {
	switch k {
	case KindUsage:
		return 2
	case KindProtocol:
		return 3
	default:
		// Transport/validation/operation errors are host-local: they make
		// the overall run report failure (exit 1), not a distinct code.
		return 1
	}
}

// Error is a typed, exit-code-carrying wrapper around an underlying cause.
// The stack is captured at wrap time regardless of --debug so that
// printing it later (only under --debug) costs nothing on the hot path.
type Error struct {
	Kind  Kind
	Msg   string
	Cause error
	stack []byte
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s", e.Msg, e.Cause)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Cause }

// Stack returns the stack trace captured when this error was first wrapped,
// for display under --debug.
func (e *Error) Stack() string { return string(e.stack) }

func wrap(k Kind, cause error, format string, args ...any) *Error {
	return &Error{
		Kind:  k,
		Msg:   fmt.Sprintf(format, args...),
		Cause: cause,
		stack: debug.Stack(),
	}
}

func Usage(format string, args ...any) *Error {
	return wrap(KindUsage, nil, format, args...)
}

func Transport(cause error, format string, args ...any) *Error {
	return wrap(KindTransport, cause, format, args...)
}

func Protocol(cause error, format string, args ...any) *Error {
	return wrap(KindProtocol, cause, format, args...)
}

func Validation(field, message string) *Error {
	return wrap(KindValidation, nil, "invalid field %q: %s", field, message)
}

func Operation(cause error, format string, args ...any) *Error {
	return wrap(KindOperation, cause, format, args...)
}

// ExitCode inspects err for a *forgeerr.Error and returns its exit code, or
// 1 for any other non-nil error (an unexpected/logic error still fails the
// run), or 0 for a nil error.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind.ExitCode()
	}
	return 1
}
