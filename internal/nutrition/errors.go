package nutrition

import (
	"errors"
	"fmt"
)

// Provider error classes. Resolver retry policy is keyed off these with
// errors.Is.
var (
	// ErrTransport is a network-level failure; retried after a fixed delay
	ErrTransport = errors.New("transport error")
	// ErrRateLimited is a rate-limit response; retried with exponential backoff
	ErrRateLimited = errors.New("rate limited")
	// ErrNoMatch means the provider answered but had no record for the name
	ErrNoMatch = errors.New("no match found")
	// ErrMalformedResponse means the provider payload could not be parsed
	ErrMalformedResponse = errors.New("malformed response")
)

// StatusError is a non-success, non-rate-limit HTTP status. It is terminal.
type StatusError struct {
	Provider string
	Code     int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d", e.Provider, e.Code)
}

// PersistenceError reports a failed write of a flat-file store. The store
// keeps serving from memory after one of these.
type PersistenceError struct {
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to persist %s: %v", e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
