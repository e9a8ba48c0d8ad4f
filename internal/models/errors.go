package models

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a circulation error for transport mapping
type ErrorKind string

const (
	ErrKindNotFound      ErrorKind = "not_found"
	ErrKindConflict      ErrorKind = "conflict"
	ErrKindUnavailable   ErrorKind = "unavailable"
	ErrKindForbidden     ErrorKind = "forbidden"
	ErrKindLimitExceeded ErrorKind = "limit_exceeded"
)

// Error is the typed error returned by circulation services
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NotFoundError creates a not_found error
func NotFoundError(message string) *Error {
	return &Error{Kind: ErrKindNotFound, Message: message}
}

// ConflictError creates a conflict error
func ConflictError(message string) *Error {
	return &Error{Kind: ErrKindConflict, Message: message}
}

// UnavailableError creates an unavailable error
func UnavailableError(message string) *Error {
	return &Error{Kind: ErrKindUnavailable, Message: message}
}

// ForbiddenError creates a forbidden error
func ForbiddenError(message string) *Error {
	return &Error{Kind: ErrKindForbidden, Message: message}
}

// LimitExceededError creates a limit_exceeded error
func LimitExceededError(format string, args ...interface{}) *Error {
	return &Error{Kind: ErrKindLimitExceeded, Message: fmt.Sprintf(format, args...)}
}

// KindOf extracts the error kind from an error chain; empty if untyped
func KindOf(err error) ErrorKind {
	var circErr *Error
	if errors.As(err, &circErr) {
		return circErr.Kind
	}
	return ""
}
