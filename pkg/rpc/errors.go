package rpc

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned when the node answers with a null result.
var ErrNotFound = errors.New("not found")

// Error is a JSON-RPC error object returned by the node.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// IsRateLimited reports provider throttling, which is worth retrying.
func (e *Error) IsRateLimited() bool {
	msg := strings.ToLower(e.Message)
	return e.Code == 429 || e.Code == -32005 || strings.Contains(msg, "rate limit") || strings.Contains(msg, "too many requests")
}

// IsRangeTooLarge reports a provider refusing an eth_getLogs span.
func (e *Error) IsRangeTooLarge() bool {
	msg := strings.ToLower(e.Message)
	return strings.Contains(msg, "block range") || strings.Contains(msg, "query returned more than") || strings.Contains(msg, "log response size exceeded")
}

// TransportError wraps a failure to reach an endpoint or a 5xx/429 answer.
type TransportError struct {
	Endpoint string
	Status   int
	Err      error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("endpoint %s: %v", e.Endpoint, e.Err)
	}
	return fmt.Sprintf("endpoint %s: server %d", e.Endpoint, e.Status)
}

func (e *TransportError) Unwrap() error { return e.Err }
