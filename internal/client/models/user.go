// Package models defines the identity, session and profile records the
// client exchanges with the hosted backend.
package models

import (
	"time"

	"github.com/google/uuid"
)

// User is the identity record issued by the backend.
type User struct {
	// ID is the backend-assigned user id; profiles are keyed by it.
	ID uuid.UUID `json:"id"`

	Email string `json:"email"`

	// EmailConfirmedAt is nil until the user follows the verification link.
	EmailConfirmedAt *time.Time `json:"email_confirmed_at,omitempty"`

	UserMetadata map[string]any `json:"user_metadata,omitempty"`
	AppMetadata  map[string]any `json:"app_metadata,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Confirmed reports whether the e-mail address has been verified.
func (u *User) Confirmed() bool {
	return u != nil && u.EmailConfirmedAt != nil
}
