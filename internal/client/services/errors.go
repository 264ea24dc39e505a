package services

import (
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophauth/internal/client/client"
)

var ErrNoSession = errors.New("not signed in")

// ErrProfileNotUpdated means an upload succeeded but the profile row still
// points elsewhere.
var ErrProfileNotUpdated = errors.New("profile not updated")

// AuthError is the failure of a controller operation. Err keeps the cause,
// so errors.Is(err, client.ErrUnavailable) and friends work on it.
type AuthError struct {
	Op      string
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	return e.Op + ": " + e.Message
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

func newAuthError(op string, err error) *AuthError {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr
	}

	msg := err.Error()
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		msg = apiErr.Message
	}
	return &AuthError{Op: op, Message: msg, Err: err}
}

// PanicError carries a panic recovered from a collaborator.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

func recovered(op string, v any) *AuthError {
	return &AuthError{Op: op, Message: "unexpected failure", Err: &PanicError{Value: v}}
}
