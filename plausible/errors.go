package plausible

import (
	"errors"
	"fmt"
)

var (
	// ErrUpstreamTransport is returned when the provider could not be reached
	ErrUpstreamTransport = errors.New("upstream transport error")
	// ErrMalformedRequestBody is returned when the event body is unreadable or not valid JSON
	ErrMalformedRequestBody = errors.New("malformed request body")
	// ErrCallback is returned when the event callback signals failure
	ErrCallback = errors.New("event callback error")
)

// RelayError describes a failed relay step, Kind is one of the
// sentinel errors of this package and is matched by errors.Is
type RelayError struct {
	Op   string
	Kind error
	Err  error
}

// Error implements the error interface for RelayError
func (e *RelayError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

// Unwrap exposes both the kind and the underlying cause
func (e *RelayError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

func relayError(op string, kind error, err error) error {
	return &RelayError{Op: op, Kind: kind, Err: err}
}
