package backend

import (
	"context"
	"errors"
	"fmt"
)

// ErrTimeout indicates an attempt exceeded its deadline. Local timeouts fall
// forward to the cloud tier; a cloud timeout is terminal for the request.
var ErrTimeout = errors.New("backend deadline exceeded")

// ErrUnavailable indicates both inference tiers were exhausted. It is
// surfaced to the caller with no partial content.
var ErrUnavailable = errors.New("no inference backend available")

// Error wraps a failure from a reachable backend (API error, transport
// error, malformed response). The same fall-forward rule as timeouts
// applies: local errors recover via the cloud tier, cloud errors surface.
type Error struct {
	// Source is the tier that failed.
	Source Source

	// Backend is the implementation name, for logs.
	Backend string

	// Err is the underlying failure.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s backend %s: %v", e.Source, e.Backend, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error { return e.Err }

// InvalidRequestError rejects a malformed request before any backend call.
// It is never retried and never reaches a backend.
type InvalidRequestError struct {
	// Reason describes what was malformed.
	Reason string
}

// Error implements the error interface.
func (e *InvalidRequestError) Error() string {
	return "invalid request: " + e.Reason
}

// WrapErr normalises an error returned by a backend SDK into the taxonomy
// above: context deadline expiry becomes [ErrTimeout], everything else is
// wrapped in a [*Error] carrying the tier and backend name.
func WrapErr(src Source, name string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s backend %s: %w", src, name, ErrTimeout)
	}
	return &Error{Source: src, Backend: name, Err: err}
}
