// Package apperr defines errors that carry the HTTP status they should be
// reported with.
package apperr

import (
	"errors"
	"net/http"
)

type Error struct {
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Err }

func New(status int, msg string) *Error {
	return &Error{Status: status, Message: msg}
}

func Unauthorized() *Error {
	return New(http.StatusUnauthorized, "Unauthorized")
}

func BadRequest(msg string) *Error {
	return New(http.StatusBadRequest, msg)
}

func NotFound(msg string) *Error {
	return New(http.StatusNotFound, msg)
}

func Forbidden(msg string) *Error {
	return New(http.StatusForbidden, msg)
}

// Internal wraps err as a 500 using msg as the client visible message.
func Internal(msg string, err error) *Error {
	return &Error{Status: http.StatusInternalServerError, Message: msg, Err: err}
}

// Resolve returns the status and message for err. Errors that are not an
// *Error become a 500 carrying err's own message.
func Resolve(err error) (int, string) {
	if err == nil {
		return http.StatusOK, ""
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Status, ae.Message
	}
	return http.StatusInternalServerError, err.Error()
}
