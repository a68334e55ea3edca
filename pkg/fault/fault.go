// Package fault classifies errors by the HTTP status they should surface with.
//
// A status below 500 marks a recoverable, input-related failure. No status, or a
// status of 500 and above, marks a server failure that must not be remembered.
package fault

import (
	"errors"
	"fmt"
	"net/http"
)

// StatusError is an error that carries an explicit HTTP status.
type StatusError struct {
	Status  int
	Message string
	Err     error
}

func (e *StatusError) Error() string {
	if e.Err != nil && e.Message != "" {
		return e.Message + ": " + e.Err.Error()
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

func (e *StatusError) Unwrap() error { return e.Err }

// New returns an error with the given status and message.
func New(status int, msg string) error {
	return &StatusError{Status: status, Message: msg}
}

// Newf is New with formatting.
func Newf(status int, format string, args ...any) error {
	return &StatusError{Status: status, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a status to err. A nil err yields nil.
func Wrap(status int, err error, msg string) error {
	if err == nil {
		return nil
	}
	return &StatusError{Status: status, Message: msg, Err: err}
}

// BadRequest is shorthand for a 400 error.
func BadRequest(format string, args ...any) error {
	return Newf(http.StatusBadRequest, format, args...)
}

// NotFound is shorthand for a 404 error.
func NotFound(format string, args ...any) error {
	return Newf(http.StatusNotFound, format, args...)
}

// StatusOf returns the outermost explicit status found in err's chain.
func StatusOf(err error) (int, bool) {
	var se *StatusError
	if errors.As(err, &se) && se.Status > 0 {
		return se.Status, true
	}
	return 0, false
}

// IsRecoverable reports whether err carries a client-class status (below 500).
func IsRecoverable(err error) bool {
	status, ok := StatusOf(err)
	return ok && status < http.StatusInternalServerError
}
