// Package domainerrors defines the typed errors services return and transports translate.
//
// Services return *Error values carrying a Code; the HTTP layer maps the code to a status
// (see pkg/platform/httputil). Store-level facts arrive as pkg/platform/sentinel errors and
// are wrapped here with the code that fits the operation.
package domainerrors

import (
	"errors"
	"strings"
)

// Code classifies a domain error independently of any transport.
type Code string

const (
	CodeValidation          Code = "validation_error"
	CodeBadRequest          Code = "bad_request"
	CodeInvalidInput        Code = "invalid_input"
	CodeInvalidRequest      Code = "invalid_request"
	CodeInvariantViolation  Code = "invariant_violation"
	CodeUnauthorized        Code = "unauthorized"
	CodeForbidden           Code = "forbidden"
	CodeNotFound            Code = "not_found"
	CodeConflict            Code = "conflict"
	CodeGone                Code = "gone"
	CodeRateLimited         Code = "rate_limited"
	CodeUploadFailed        Code = "upload_failed"
	CodeEmailDeliveryFailed Code = "email_delivery_failed"
	CodeUnavailable         Code = "service_unavailable"
	CodeTimeout             Code = "timeout"
	CodeInternal            Code = "internal_error"
)

// Error is a domain error with a code, a user-facing message and optional client hints.
type Error struct {
	Code    Code
	Message string
	// Action tells the client which step to take next (e.g. LOGIN, RETRY, REGISTER_AGAIN).
	Action string
	// Status is a machine-readable outcome token (e.g. ALREADY_VERIFIED, ROLE_MISMATCH).
	Status string
	// Issues lists field-level problems in the order they were found.
	Issues []string
	Err    error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Code))
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// WithAction attaches a client action hint.
func (e *Error) WithAction(action string) *Error {
	e.Action = action
	return e
}

// WithStatus attaches an outcome token.
func (e *Error) WithStatus(status string) *Error {
	e.Status = status
	return e
}

// WithIssues attaches the ordered list of field-level problems.
func (e *Error) WithIssues(issues []string) *Error {
	e.Issues = append([]string(nil), issues...)
	return e
}

// New creates a domain error.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying error. Wrap(nil, ...) returns nil.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Err: err}
}

// As returns the outermost domain error in the chain.
func As(err error) (*Error, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// HasCode reports whether the outermost domain error in the chain carries code.
func HasCode(err error, code Code) bool {
	de, ok := As(err)
	return ok && de.Code == code
}

// CodeOf returns the code of the outermost domain error, or CodeInternal.
func CodeOf(err error) Code {
	if de, ok := As(err); ok {
		return de.Code
	}
	return CodeInternal
}

// Is forwards to errors.Is so callers need a single errors import.
func Is(err, target error) bool {
	return errors.Is(err, target)
}
