package client

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrUnavailable   = errors.New("server unavailable")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrRateLimited   = errors.New("rate limited")
	ErrBadRequest    = errors.New("bad request")
	ErrNoSession     = errors.New("no active session")
	ErrInvalidConfig = errors.New("invalid client configuration")
)

// APIError is a non-2xx answer from the backend. Code is the backend's
// machine-readable code when it sent one ("invalid_grant",
// "email_address_invalid", ...); Message is meant for humans.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (%d %s)", e.Message, e.StatusCode, e.Code)
	}
	return fmt.Sprintf("%s (%d)", e.Message, e.StatusCode)
}

// Unwrap maps the status code onto the package sentinels so callers can use
// errors.Is without caring about HTTP.
func (e *APIError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusUnauthorized, e.StatusCode == http.StatusForbidden:
		return ErrUnauthorized
	case e.StatusCode == http.StatusTooManyRequests:
		return ErrRateLimited
	case e.StatusCode >= 500:
		return ErrUnavailable
	case e.StatusCode >= 400:
		return ErrBadRequest
	default:
		return nil
	}
}

// sessionGone reports whether the backend no longer knows the session, in
// which case a local sign-out must still go through.
func sessionGone(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return true
	}
	return false
}
