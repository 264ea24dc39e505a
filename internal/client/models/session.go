package models

import "time"

// Session is the bearer session issued by the backend. It is persisted by
// the client library as JSON, so the tags double as the storage format.
type Session struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`

	// ExpiresIn is the lifetime in seconds as reported at issue time.
	ExpiresIn int64 `json:"expires_in"`
	// ExpiresAt is the absolute expiry, unix seconds.
	ExpiresAt int64 `json:"expires_at"`

	User *User `json:"user"`
}

// Expiry returns ExpiresAt as a time.Time. Zero when unknown.
func (s *Session) Expiry() time.Time {
	if s == nil || s.ExpiresAt == 0 {
		return time.Time{}
	}
	return time.Unix(s.ExpiresAt, 0)
}

// ExpiresWithin reports whether the session expires before now+margin.
// A session with unknown expiry never does.
func (s *Session) ExpiresWithin(now time.Time, margin time.Duration) bool {
	exp := s.Expiry()
	if exp.IsZero() {
		return false
	}
	return !now.Add(margin).Before(exp)
}

// Clone returns a deep-enough copy for handing out read-only snapshots:
// the session and its user are copied, metadata maps are shared.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	if s.User != nil {
		u := *s.User
		c.User = &u
	}
	return &c
}
