package models

import (
	"time"

	"github.com/google/uuid"
)

// Profile is a row of the profiles table as read back by the client.
type Profile struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	Website   string    `json:"website"`
	AvatarURL string    `json:"avatar_url"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ProfileRow is the upsert payload. Nil fields are left out of the request
// so the backend keeps their stored values.
type ProfileRow struct {
	ID        uuid.UUID `json:"id"`
	Email     *string   `json:"email,omitempty"`
	Username  *string   `json:"username,omitempty"`
	Website   *string   `json:"website,omitempty"`
	AvatarURL *string   `json:"avatar_url,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}
