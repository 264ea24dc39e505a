package services

import "github.com/dmitrijs2005/gophauth/internal/client/models"

// Status is the authentication state of the controller.
type Status int

const (
	StatusInitializing Status = iota
	StatusAuthenticated
	StatusUnauthenticated
)

func (s Status) String() string {
	switch s {
	case StatusInitializing:
		return "initializing"
	case StatusAuthenticated:
		return "authenticated"
	case StatusUnauthenticated:
		return "unauthenticated"
	default:
		return "unknown"
	}
}

// ProfileState is the signed-in user's profile as last read or written.
// It is empty whenever the controller is not authenticated.
type ProfileState struct {
	Username  string
	Website   string
	AvatarURL string
}

// Snapshot is a read-only copy of the controller state. User and Session
// are either both nil or both set; User is always Session.User.
type Snapshot struct {
	Status    Status
	User      *models.User
	Session   *models.Session
	IsLoading bool
	Profile   ProfileState
}

func (s Snapshot) Authenticated() bool {
	return s.Status == StatusAuthenticated
}

// ProfileUpdate names the profile columns to change. Nil fields are kept.
type ProfileUpdate struct {
	Username  *string
	Website   *string
	AvatarURL *string
}

// SignUpResult reports a successful sign-up. VerificationRequired is set
// when the backend wants the e-mail address confirmed before the first
// sign-in; the controller then stays unauthenticated.
type SignUpResult struct {
	Success              bool
	VerificationRequired bool
}
