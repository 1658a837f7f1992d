package generate

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

var (
	// ErrMissingCredential is returned before any request when no API key is configured.
	ErrMissingCredential = errors.New("generate: missing api key")
	// ErrEmptyResult is returned when the provider answers with no usable text.
	ErrEmptyResult = errors.New("generate: empty result")
)

// TransportError wraps a network-level failure talking to the provider.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return "generate: transport: " + e.Err.Error() }
func (e *TransportError) Unwrap() error { return e.Err }

// Timeout reports whether the failure was a deadline or network timeout.
func (e *TransportError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(e.Err, &ne) && ne.Timeout()
}

// StatusError is a non-2xx response from the provider.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("generate: http %d: %s", e.Code, e.Body)
}

// Temporary reports whether the status is worth retrying.
func (e *StatusError) Temporary() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// DecodeError is a response body that could not be parsed.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string { return "generate: decode: " + e.Err.Error() }
func (e *DecodeError) Unwrap() error { return e.Err }

// retryable reports whether err may succeed on another attempt.
func retryable(err error) bool {
	var te *TransportError
	if errors.As(err, &te) {
		return true
	}
	var se *StatusError
	return errors.As(err, &se) && se.Temporary()
}
