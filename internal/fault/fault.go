// Package fault defines the error taxonomy shared by the domain services.
// Services return *Error values; the HTTP layer maps kinds to status codes.
package fault

import (
	"errors"
	"fmt"
)

// Kind classifies a domain failure.
type Kind string

const (
	KindNotFound      Kind = "not_found"
	KindConflict      Kind = "conflict"
	KindForbidden     Kind = "forbidden"
	KindLimitExceeded Kind = "limit_exceeded"
	KindValidation    Kind = "validation_error"
	KindInvalidState  Kind = "invalid_state"
)

// Error is a classified domain error with a caller-facing message.
type Error struct {
	Kind    Kind
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// New creates a classified error.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates a classified error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of err, or "" when err carries no classification.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

// Is reports whether err is a fault of the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
