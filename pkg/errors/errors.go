// Package errors defines the closed status taxonomy every public ucg
// routine returns instead of ad-hoc error values.
package errors

import (
	"errors"
	"fmt"
)

// Code is one member of the closed status taxonomy. There is no
// "unknown" escape hatch: every code a caller can observe is named
// here.
type Code string

const (
	// OK and InProgress are normal outcomes, not failures.
	OK         Code = "OK"
	InProgress Code = "IN_PROGRESS"

	InvalidParam Code = "INVALID_PARAM"
	NoMemory     Code = "NO_MEMORY"
	NoResource   Code = "NO_RESOURCE"
	NotFound     Code = "NOT_FOUND"
	Unsupported  Code = "UNSUPPORTED"
	Incompatible Code = "INCOMPATIBLE"
	Truncate     Code = "TRUNCATE"
	IOError      Code = "IO_ERROR"
)

// Status is the code returned by every public entry point. OK and
// InProgress are not errors in the Go sense of signalling failure, but
// Status still satisfies the error interface so a single return value
// can carry both "it worked" and "it failed" through the same plumbing
// a caller already uses for error checking.
type Status struct {
	Code    Code
	Message string
	Err     error
}

// Error implements the error interface. It is safe to call even for OK
// and InProgress; Failed should be checked first to decide whether the
// message represents a failure.
func (s *Status) Error() string {
	if s.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", s.Code, s.Message, s.Err)
	}
	return fmt.Sprintf("[%s] %s", s.Code, s.Message)
}

// Unwrap returns the underlying cause, if any.
func (s *Status) Unwrap() error {
	return s.Err
}

// Is reports whether target is a *Status with the same Code.
func (s *Status) Is(target error) bool {
	t, ok := target.(*Status)
	if !ok {
		return false
	}
	return s.Code == t.Code
}

// Failed reports whether s represents anything other than OK or
// IN_PROGRESS.
func (s *Status) Failed() bool {
	return s.Code != OK && s.Code != InProgress
}

// New creates a Status with no wrapped cause.
func New(code Code, message string) *Status {
	return &Status{Code: code, Message: message}
}

// Wrap creates a Status that carries an underlying cause.
func Wrap(code Code, message string, err error) *Status {
	return &Status{Code: code, Message: message, Err: err}
}

// Ok is the canonical success status. Callers compare by Code, not by
// pointer identity, so a fresh value is fine to hand out on every call.
func Ok() *Status { return New(OK, "ok") }

// InProgressStatus is the canonical non-terminal status for an active
// request.
func InProgressStatus() *Status { return New(InProgress, "in progress") }

// Common, reusable instances for the non-success codes. Callers return
// them as they are; a context-specific message gets its own Status from
// New or Wrap with one of the Codes above.
var (
	ErrInvalidParam = New(InvalidParam, "invalid parameter")
	ErrNoMemory     = New(NoMemory, "allocation failed")
	ErrNoResource   = New(NoResource, "required resource unavailable")
	ErrNotFound     = New(NotFound, "not found")
	ErrUnsupported  = New(Unsupported, "unsupported")
	ErrIncompatible = New(Incompatible, "incompatible version")
	ErrTruncate     = New(Truncate, "destination buffer truncated")
	ErrIOError      = New(IOError, "transport I/O error")
)

// CodeOf extracts the Code from err, returning OK if err is nil and
// InvalidParam if err is a plain (non-Status) error — a defensive
// default since a bare error reaching here indicates a caller skipped
// the status taxonomy somewhere upstream.
func CodeOf(err error) Code {
	if err == nil {
		return OK
	}
	var s *Status
	if errors.As(err, &s) {
		return s.Code
	}
	return InvalidParam
}

// Is reports whether err's Code matches code.
func Is(err error, code Code) bool {
	return CodeOf(err) == code
}
