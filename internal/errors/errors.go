// Package errors provides coded errors for the reimbursement service.
// Every error that crosses a package boundary carries a Code so handlers can
// map it to an HTTP status and the UI gets enough context for messaging.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Code classifies an error.
type Code string

const (
	ErrCodeUnauthorized   Code = "UNAUTHORIZED"
	ErrCodeNotFound       Code = "NOT_FOUND"
	ErrCodeInvalidInput   Code = "INVALID_INPUT"
	ErrCodeConflict       Code = "CONFLICT"
	ErrCodeInternal       Code = "INTERNAL"
	ErrCodeWrongTurn      Code = "WRONG_TURN"
	ErrCodeCodeMismatch   Code = "CODE_MISMATCH"
	ErrCodeNoPendingStep  Code = "NO_PENDING_STEP"
	ErrCodeMissingRemarks Code = "MISSING_REMARKS"
)

// Error is a coded error with optional structured details and a wrapped cause.
type Error struct {
	Code    Code
	Message string
	Details map[string]any
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped cause, if any.
func (e *Error) Unwrap() error {
	return e.cause
}

// WithDetail attaches one structured detail and returns the error for chaining.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = map[string]any{}
	}
	e.Details[key] = value
	return e
}

// New creates a coded error.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates a coded error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates a coded error wrapping a cause.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, cause: err}
}

// NotFound creates a NOT_FOUND error for a named resource.
func NotFound(resource, id string) *Error {
	return Newf(ErrCodeNotFound, "%s not found", resource).WithDetail("id", id)
}

// InvalidInput creates an INVALID_INPUT error for a named field.
func InvalidInput(field, message string) *Error {
	return New(ErrCodeInvalidInput, message).WithDetail("field", field)
}

// CodeOf returns the Code of err, or ErrCodeInternal for uncoded errors.
func CodeOf(err error) Code {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code
	}
	return ErrCodeInternal
}

// DetailsOf returns the structured details of err, or nil.
func DetailsOf(err error) map[string]any {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Details
	}
	return nil
}

// MessageOf returns the caller-facing message of err. Uncoded errors collapse
// to a generic server fault so internals never leak to the UI.
func MessageOf(err error) string {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Message
	}
	return "internal server error"
}

// HTTPStatus maps an error code to its HTTP response status.
func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrCodeWrongTurn, ErrCodeCodeMismatch:
		return http.StatusForbidden
	case ErrCodeNotFound, ErrCodeNoPendingStep:
		return http.StatusNotFound
	case ErrCodeInvalidInput, ErrCodeMissingRemarks:
		return http.StatusBadRequest
	case ErrCodeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	return CodeOf(err) == code
}
