package services

import (
	"context"
	"path/filepath"

	"github.com/dmitrijs2005/gophauth/internal/client/avatars"
	"github.com/dmitrijs2005/gophauth/internal/filex"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/google/uuid"
)

// TokenSource hands out a currently valid access token.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// AvatarUploader stores image bytes and returns the object key.
type AvatarUploader interface {
	Upload(ctx context.Context, creds avatars.Credentials, userID uuid.UUID, name string, data []byte) (string, error)
	MaxSize() int64
}

// AvatarService uploads a local picture and points the profile at it.
type AvatarService struct {
	auth       AuthService
	tokens     TokenSource
	uploader   AvatarUploader
	projectRef string
	anonKey    string
	logger     logging.Logger
}

func NewAvatarService(auth AuthService, tokens TokenSource, uploader AvatarUploader, projectRef, anonKey string, logger logging.Logger) *AvatarService {
	if logger == nil {
		logger = logging.Discard()
	}
	return &AvatarService{
		auth:       auth,
		tokens:     tokens,
		uploader:   uploader,
		projectRef: projectRef,
		anonKey:    anonKey,
		logger:     logger.With("component", "avatars"),
	}
}

// Upload sends the image at path to the avatars bucket and stores the
// resulting object key as the profile's avatar URL.
func (s *AvatarService) Upload(ctx context.Context, path string) (string, error) {
	const op = "uploadAvatar"

	snap := s.auth.Snapshot()
	if !snap.Authenticated() {
		return "", newAuthError(op, ErrNoSession)
	}

	token, err := s.tokens.AccessToken(ctx)
	if err != nil {
		return "", newAuthError(op, err)
	}
	data, err := filex.ReadFileLimit(path, s.uploader.MaxSize())
	if err != nil {
		return "", newAuthError(op, err)
	}

	creds := avatars.Credentials{ProjectRef: s.projectRef, AnonKey: s.anonKey, AccessToken: token}
	key, err := s.uploader.Upload(ctx, creds, snap.User.ID, filepath.Base(path), data)
	if err != nil {
		return "", newAuthError(op, err)
	}
	s.logger.Info(ctx, "avatar uploaded", "user_id", snap.User.ID, "key", key)

	if err := s.pointProfileAt(ctx, key); err != nil {
		return "", err
	}
	return key, nil
}

// profileWriter is the part of the controller that reports the upsert
// error UpdateProfile only logs.
type profileWriter interface {
	writeProfile(ctx context.Context, upd ProfileUpdate) error
}

func (s *AvatarService) pointProfileAt(ctx context.Context, key string) error {
	upd := ProfileUpdate{AvatarURL: &key}
	if w, ok := s.auth.(profileWriter); ok {
		return w.writeProfile(ctx, upd)
	}
	s.auth.UpdateProfile(ctx, upd)
	if s.auth.Snapshot().Profile.AvatarURL != key {
		return newAuthError("uploadAvatar", ErrProfileNotUpdated)
	}
	return nil
}
