package services

import (
	"context"

	"github.com/dmitrijs2005/gophauth/internal/client/models"
)

// GetProfile loads the signed-in user's profile row into the state. It
// does nothing without a session. A result is dropped when the user changed
// while the row was being fetched.
func (a *authService) GetProfile(ctx context.Context) {
	s := a.currentSession()
	if s == nil {
		a.logger.Debug(ctx, "get profile skipped", "error", ErrNoSession)
		return
	}
	userID := s.User.ID

	_, err := a.run(ctx, "getProfile", "getProfile\x00"+userID.String(), func(ctx context.Context) (any, error) {
		p, err := a.profiles.GetProfile(ctx, userID)
		if err != nil {
			return nil, err
		}
		if p == nil {
			a.logger.Info(ctx, "profile row not found", "user_id", userID)
			return nil, nil
		}

		a.mutate(func() {
			if a.session == nil || a.session.User.ID != userID {
				return
			}
			a.profile = ProfileState{
				Username:  p.Username,
				Website:   p.Website,
				AvatarURL: p.AvatarURL,
			}
		})
		return nil, nil
	})
	if err != nil {
		a.logger.Error(ctx, "get profile failed", "user_id", userID, "error", err)
	}
}

// UpdateProfile writes the given columns of the signed-in user's profile
// and mirrors them into the state on success. Failures are logged.
func (a *authService) UpdateProfile(ctx context.Context, upd ProfileUpdate) {
	if err := a.writeProfile(ctx, upd); err != nil {
		a.logger.Error(ctx, "update profile failed", "error", err)
	}
}

// writeProfile is UpdateProfile with the failure returned as *AuthError.
func (a *authService) writeProfile(ctx context.Context, upd ProfileUpdate) error {
	s := a.currentSession()
	if s == nil {
		return newAuthError("updateProfile", ErrNoSession)
	}
	userID := s.User.ID

	row := models.ProfileRow{
		ID:        userID,
		Username:  upd.Username,
		Website:   upd.Website,
		AvatarURL: upd.AvatarURL,
		UpdatedAt: a.now().UTC(),
	}

	// not coalesced: two different edits must both reach the table
	_, err := a.run(ctx, "updateProfile", "", func(ctx context.Context) (any, error) {
		if err := a.profiles.UpsertProfile(ctx, row); err != nil {
			return nil, err
		}
		a.mutate(func() {
			if a.session == nil || a.session.User.ID != userID {
				return
			}
			if upd.Username != nil {
				a.profile.Username = *upd.Username
			}
			if upd.Website != nil {
				a.profile.Website = *upd.Website
			}
			if upd.AvatarURL != nil {
				a.profile.AvatarURL = *upd.AvatarURL
			}
		})
		return nil, nil
	})
	if err != nil {
		return err
	}
	a.logger.Info(ctx, "profile updated", "user_id", userID)
	return nil
}
