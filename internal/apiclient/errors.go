package apiclient

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyAccessToken is returned when the refresh endpoint answers 2xx without a token.
var ErrEmptyAccessToken = errors.New("refresh response did not contain an access token")

// ErrNoRefreshToken is the refresh failure for a 401 when no refresh token is stored.
var ErrNoRefreshToken = errors.New("no refresh token stored")

// NetworkError means the request never reached the server or no response was received.
type NetworkError struct {
	Method string
	URL    string
	Err    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("failed to send request %s %s: %v", e.Method, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// HTTPError means the server answered with a non-2xx status.
type HTTPError struct {
	StatusCode int
	Body       []byte
}

func (e *HTTPError) Error() string {
	body := strings.TrimSpace(string(e.Body))
	if body == "" {
		return fmt.Sprintf("request failed (status %d)", e.StatusCode)
	}
	return fmt.Sprintf("request failed (status %d): %s", e.StatusCode, body)
}

// RefreshError means the refresh-token exchange failed. The stored tokens
// have been cleared by the time it is returned.
type RefreshError struct {
	Err error
}

func (e *RefreshError) Error() string {
	return fmt.Sprintf("token refresh failed: %v", e.Err)
}

func (e *RefreshError) Unwrap() error {
	return e.Err
}

// StatusCode returns the HTTP status carried by err, or 0 when err is not an *HTTPError.
func StatusCode(err error) int {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode
	}
	return 0
}

// IsRefreshFailure reports whether err ended the session.
func IsRefreshFailure(err error) bool {
	var refreshErr *RefreshError
	return errors.As(err, &refreshErr)
}
