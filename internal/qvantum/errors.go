package qvantum

import (
	"errors"
	"strings"
)

// APIError is the base error for all Qvantum API failures. StatusCode is
// zero when the failure happened before an HTTP response was received.
type APIError struct {
	Message    string
	StatusCode int
}

func (e *APIError) Error() string {
	return e.Message
}

// AuthenticationError indicates invalid credentials, an expired refresh
// token, or a 401 from the API. Not retried automatically beyond the one
// refresh-to-reauth fallback inside the token manager.
type AuthenticationError struct {
	APIError
}

// ConnectionError indicates a transport timeout or a 5xx response. Callers
// may retry on their next cycle.
type ConnectionError struct {
	APIError
}

func newAuthError(message string) *AuthenticationError {
	return &AuthenticationError{APIError{Message: message, StatusCode: 401}}
}

func newConnectionError(message string, status int) *ConnectionError {
	return &ConnectionError{APIError{Message: message, StatusCode: status}}
}

func newAPIError(message string, status int) *APIError {
	return &APIError{Message: message, StatusCode: status}
}

// IsTransientServerError reports whether err looks like a temporary
// server-side condition. Matching is on the message text because the poller
// must treat wrapped and re-stringified errors the same way.
func IsTransientServerError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, marker := range []string{"Server error", "500", "502", "503"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// IsAuthenticationError reports whether err is an authentication failure.
func IsAuthenticationError(err error) bool {
	var authErr *AuthenticationError
	return errors.As(err, &authErr)
}
