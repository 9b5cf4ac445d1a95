package gateway

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUnexpectedResponseFormat is returned when an expected-JSON endpoint answers with
	// a non-JSON content type or an undecodable body.
	ErrUnexpectedResponseFormat = errors.New("unexpected response format")

	// ErrCircuitOpen is wrapped in a NetworkError while the breaker rejects calls.
	ErrCircuitOpen = errors.New("backend temporarily unavailable")
)

// NetworkError is a transport-level failure: no HTTP status was received.
type NetworkError struct {
	Method string
	URL    string
	Err    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// HTTPStatusError is a non-2xx answer.
type HTTPStatusError struct {
	Status  int
	Message string
	Body    []byte
}

func (e *HTTPStatusError) Error() string {
	return e.Message
}

// SessionExpiredError means the backend kept rejecting credentials after the
// one allowed refresh (or the refresh itself failed).
type SessionExpiredError struct {
	Status int
}

func (e *SessionExpiredError) Error() string {
	return "session expired, please sign in again"
}

func newStatusError(status int, body []byte, message string) *HTTPStatusError {
	if message == "" {
		message = fmt.Sprintf("HTTP %d", status)
	}
	return &HTTPStatusError{Status: status, Message: message, Body: body}
}

// IsNetwork reports whether err is (or wraps) a NetworkError.
func IsNetwork(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}

// IsSessionExpired reports whether err is (or wraps) a SessionExpiredError.
func IsSessionExpired(err error) bool {
	var se *SessionExpiredError
	return errors.As(err, &se)
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var he *HTTPStatusError
	if errors.As(err, &he) {
		return he.Status
	}
	var se *SessionExpiredError
	if errors.As(err, &se) {
		return http.StatusUnauthorized
	}
	return 0
}
