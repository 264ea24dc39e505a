package client

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/client/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// accessClaims are the claims of a backend access token the client cares
// about. The signature is never checked here: the client does not hold the
// signing key and only reads the token to learn when it expires.
type accessClaims struct {
	jwt.RegisteredClaims
	Email     string `json:"email"`
	SessionID string `json:"session_id"`
}

func parseAccessClaims(token string) (*accessClaims, error) {
	claims := &accessClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("parse access token: %w", err)
	}
	return claims, nil
}

// normalizeSession fills ExpiresAt and User when the backend left them out.
func normalizeSession(s *models.Session, now time.Time) {
	if s == nil {
		return
	}
	if s.ExpiresAt == 0 && s.ExpiresIn > 0 {
		s.ExpiresAt = now.Add(time.Duration(s.ExpiresIn) * time.Second).Unix()
	}
	if s.ExpiresAt != 0 && s.User != nil {
		return
	}

	claims, err := parseAccessClaims(s.AccessToken)
	if err != nil {
		return
	}
	if s.ExpiresAt == 0 && claims.ExpiresAt != nil {
		s.ExpiresAt = claims.ExpiresAt.Unix()
	}
	if s.User == nil {
		if id, err := uuid.Parse(claims.Subject); err == nil {
			s.User = &models.User{ID: id, Email: claims.Email}
		}
	}
}
