package probe

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrTimeout is reported when an attempt outlives the probe timeout.
	ErrTimeout = errors.New("probe timed out")
	// ErrCancelled is reported when a probe is cancelled mid-flight.
	ErrCancelled = errors.New("probe cancelled")
)

// StatusError is returned by HTTPProber for non-2xx responses.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d %s", e.Code, http.StatusText(e.Code))
}

// TransportError wraps any failure raised by the network layer.
type TransportError struct {
	Endpoint string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("probe %s: %v", e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
