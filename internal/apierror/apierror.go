// Package apierror maps failures onto the HTTP status taxonomy used by the API.
package apierror

import (
	"errors"
	"net/http"
)

// Error carries an HTTP status and a client-safe message alongside the underlying cause.
type Error struct {
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New builds an error with the provided status and message.
func New(status int, message string) *Error {
	return &Error{Status: status, Message: message}
}

// Wrap builds an error with the provided status and message that retains the cause for logging.
func Wrap(status int, message string, err error) *Error {
	return &Error{Status: status, Message: message, Err: err}
}

func BadRequest(message string) *Error   { return New(http.StatusBadRequest, message) }
func Unauthorized(message string) *Error { return New(http.StatusUnauthorized, message) }
func Forbidden(message string) *Error    { return New(http.StatusForbidden, message) }
func NotFound(message string) *Error     { return New(http.StatusNotFound, message) }
func Conflict(message string) *Error     { return New(http.StatusConflict, message) }

// Internal wraps an unexpected failure. The cause is logged, never returned to clients.
func Internal(message string, err error) *Error {
	return Wrap(http.StatusInternalServerError, message, err)
}

// StatusOf returns the HTTP status attached to err, defaulting to 500.
func StatusOf(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Status >= http.StatusBadRequest {
		return apiErr.Status
	}
	return http.StatusInternalServerError
}

// MessageOf returns the client-facing message for err.
func MessageOf(err error) string {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return http.StatusText(http.StatusInternalServerError)
}
