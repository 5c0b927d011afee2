// Package domainerrors defines the error taxonomy shared by services and the
// HTTP boundary. Services return *Error values; transports translate the Code
// into a status and a stable error string.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code identifies an error class. The string value is what clients see.
type Code string

const (
	CodeUnauthorized      Code = "unauthorized"
	CodeInvalidToken      Code = "invalid_token"
	CodeSessionNotFound   Code = "session_not_found"
	CodeSessionExpired    Code = "session_expired"
	CodeForbidden         Code = "forbidden"
	CodeNotFound          Code = "not_found"
	CodeConflict          Code = "conflict"
	CodeBadRequest        Code = "bad_request"
	CodeValidation        Code = "validation_error"
	CodeSignatureMismatch Code = "signature_mismatch"
	CodeUpstreamFailure   Code = "upstream_failure"
	CodeTimeout           Code = "timeout"
	CodeInternal          Code = "internal_error"
)

// Error is a domain error carrying a Code, a client-safe message and an
// optional wrapped cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error with the same code and message, so tests can use
// errors.Is against a freshly built value.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// New builds a domain error.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying cause.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Err: err}
}

// From returns the outermost *Error in the chain.
func From(err error) (*Error, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// HasCode reports whether the outermost domain error in err carries code.
func HasCode(err error, code Code) bool {
	de, ok := From(err)
	return ok && de.Code == code
}

// Is is an alias of HasCode kept for call sites that read better with it.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}
