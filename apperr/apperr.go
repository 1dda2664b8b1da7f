// Package apperr defines the typed error kinds surfaced by callable
// endpoints. The kinds mirror the codes the admin dashboard already knows
// how to display.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies an error kind.
type Code string

const (
	Unauthenticated    Code = "unauthenticated"
	PermissionDenied   Code = "permission-denied"
	InvalidArgument    Code = "invalid-argument"
	NotFound           Code = "not-found"
	FailedPrecondition Code = "failed-precondition"
	DeadlineExceeded   Code = "deadline-exceeded"
	Internal           Code = "internal"
)

// Error carries a code and a caller-displayable message.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// New builds a typed error.
func New(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the code from err, defaulting to Internal for untyped errors.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return Internal
}

// MessageOf extracts the displayable message from err.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal error"
}

// HTTPStatus maps an error to the HTTP status the callable API responds with.
func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case Unauthenticated:
		return http.StatusUnauthorized
	case PermissionDenied:
		return http.StatusForbidden
	case InvalidArgument:
		return http.StatusBadRequest
	case NotFound:
		return http.StatusNotFound
	case FailedPrecondition:
		return http.StatusConflict
	case DeadlineExceeded:
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}
