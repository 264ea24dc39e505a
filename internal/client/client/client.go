package client

import (
	"context"

	"github.com/dmitrijs2005/gophauth/internal/client/models"
	"github.com/google/uuid"
)

// AuthStateListener receives state-change notifications. session is nil
// after a sign-out.
type AuthStateListener func(event models.AuthChangeEvent, session *models.Session)

// AuthClient is the identity half of the backend contract.
type AuthClient interface {
	// GetSession returns the persisted session, refreshing it first when it
	// is about to expire. (nil, nil) means signed out.
	GetSession(ctx context.Context) (*models.Session, error)
	SignInWithPassword(ctx context.Context, email, password string) (*models.Session, *models.User, error)
	// SignUp returns a nil session when the backend requires e-mail
	// verification before the first sign-in.
	SignUp(ctx context.Context, email, password string) (*models.Session, *models.User, error)
	SignOut(ctx context.Context) error
	ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error
	OnAuthStateChange(fn AuthStateListener) (unsubscribe func())
	StartAutoRefresh()
	StopAutoRefresh()
}

// ProfileTable is the profiles half of the backend contract.
type ProfileTable interface {
	UpsertProfile(ctx context.Context, row models.ProfileRow) error
	// GetProfile returns (nil, nil) when the row does not exist.
	GetProfile(ctx context.Context, id uuid.UUID) (*models.Profile, error)
}
