package fault

import (
	"errors"
	"net/http"
)

// ErrFatalConfig marks preconditions that no retry can satisfy,
// such as a historical scan without a known start block.
var ErrFatalConfig = errors.New("fatal configuration error")

// Fatal returns a server-class error wrapping ErrFatalConfig.
func Fatal(msg string) error {
	return &StatusError{Status: http.StatusInternalServerError, Message: msg, Err: ErrFatalConfig}
}

// IsFatal reports whether err is a fatal configuration error.
func IsFatal(err error) bool {
	return errors.Is(err, ErrFatalConfig)
}
