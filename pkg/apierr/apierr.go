// Package apierr classifies errors that cross the job API boundary into a
// closed set of kinds the HTTP transport can map to status codes.
package apierr

import (
	"errors"
	"fmt"
)

// Kind is a closed classification of failures visible to API callers.
type Kind string

const (
	KindConflict   Kind = "conflict"
	KindValidation Kind = "validation"
	KindGuardrail  Kind = "guardrail"
	KindNotFound   Kind = "not_found"
	KindStore      Kind = "store"
)

// Error is a classified, user-facing error. Detail carries additional
// structured context (e.g. the guardrail name) that handlers may choose to
// surface in the response body.
type Error struct {
	Kind    Kind
	Message string
	Detail  string
	cause   error
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

func newf(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), cause: cause}
}

// Conflict reports a lock or state conflict.
func Conflict(format string, args ...any) *Error {
	return newf(KindConflict, nil, format, args...)
}

// Validation reports a malformed or incomplete request body.
func Validation(format string, args ...any) *Error {
	return newf(KindValidation, nil, format, args...)
}

// Guardrail reports a rejection by one of G1-G4. detail identifies which
// guardrail fired so the response body can name it.
func Guardrail(detail, format string, args ...any) *Error {
	e := newf(KindGuardrail, nil, format, args...)
	e.Detail = detail
	return e
}

// NotFound reports a missing cluster, node, job or credential.
func NotFound(format string, args ...any) *Error {
	return newf(KindNotFound, nil, format, args...)
}

// Store wraps an underlying storage failure. The cause is preserved for
// logging but its text is not echoed to API callers.
func Store(cause error, format string, args ...any) *Error {
	return newf(KindStore, cause, format, args...)
}

// As extracts an *Error from err's chain, matching the standard errors.As
// contract used throughout this codebase's %w-wrapped error chains.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the Kind of err if it (or something it wraps) is an
// *Error, or the empty Kind otherwise.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return ""
}
