package client

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/gophauth/internal/client/models"
	"github.com/dmitrijs2005/gophauth/internal/client/repositories/storage"
	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/cryptox"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
)

// ErrCorruptSession is returned when the stored session cannot be decoded.
// The broken entry has already been removed when it is returned.
var ErrCorruptSession = errors.New("stored session is unreadable")

// SessionStore persists the current session across restarts.
type SessionStore interface {
	Load(ctx context.Context) (*models.Session, error)
	Save(ctx context.Context, s *models.Session) error
	Remove(ctx context.Context) error
}

// PersistedSessionStore keeps the session as JSON in the local storage
// table, sealed with AES-GCM when a secret is configured.
type PersistedSessionStore struct {
	db      *sql.DB
	key     string
	saltKey string
	secret  []byte

	mu     sync.Mutex
	aesKey []byte
}

// NewSessionStore stores the session under "sb-<projectRef>-auth-token".
// An empty secret stores plain JSON.
func NewSessionStore(db *sql.DB, projectRef string, secret []byte) *PersistedSessionStore {
	prefix := common.StorageKeyPrefix + projectRef
	return &PersistedSessionStore{
		db:      db,
		key:     prefix + "-auth-token",
		saltKey: prefix + "-auth-salt",
		secret:  secret,
	}
}

func (s *PersistedSessionStore) repo(db dbx.DBTX) storage.Repository {
	return storage.NewSQLiteRepository(db)
}

func (s *PersistedSessionStore) Load(ctx context.Context) (*models.Session, error) {
	raw, err := s.repo(s.db).Get(ctx, s.key)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}

	plain := raw
	if len(s.secret) > 0 {
		key, _, err := s.encryptionKey(ctx, s.db, false)
		if err == nil {
			plain, err = cryptox.Open(raw, key)
		}
		if err != nil {
			return nil, s.discard(ctx, err)
		}
	}

	var session models.Session
	if err := json.Unmarshal(plain, &session); err != nil {
		return nil, s.discard(ctx, err)
	}
	if session.AccessToken == "" {
		return nil, s.discard(ctx, errors.New("missing access token"))
	}
	return &session, nil
}

func (s *PersistedSessionStore) Save(ctx context.Context, session *models.Session) error {
	if session == nil {
		return s.Remove(ctx)
	}
	plain, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	if len(s.secret) == 0 {
		return s.repo(s.db).Set(ctx, s.key, plain)
	}

	var derived []byte
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		key, created, err := s.encryptionKey(ctx, tx, true)
		if err != nil {
			return err
		}
		if created {
			derived = key
		}
		sealed, err := cryptox.Seal(plain, key)
		if err != nil {
			return fmt.Errorf("seal session: %w", err)
		}
		return s.repo(tx).Set(ctx, s.key, sealed)
	})
	if err == nil && derived != nil {
		s.mu.Lock()
		s.aesKey = derived
		s.mu.Unlock()
	}
	return err
}

func (s *PersistedSessionStore) Remove(ctx context.Context) error {
	return s.repo(s.db).Delete(ctx, s.key)
}

// encryptionKey derives the AES key from the secret and the stored salt.
// With create set a missing salt is generated and written through db; the
// resulting key is reported as created and only cached by the caller once
// the salt is committed.
func (s *PersistedSessionStore) encryptionKey(ctx context.Context, db dbx.DBTX, create bool) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.aesKey != nil {
		return s.aesKey, false, nil
	}

	repo := s.repo(db)
	salt, err := repo.Get(ctx, s.saltKey)
	if err != nil {
		return nil, false, err
	}
	if salt != nil {
		s.aesKey = cryptox.DeriveStorageKey(s.secret, salt)
		return s.aesKey, false, nil
	}
	if !create {
		return nil, false, errors.New("missing storage salt")
	}

	salt = cryptox.NewSalt()
	if err := repo.Set(ctx, s.saltKey, salt); err != nil {
		return nil, false, err
	}
	return cryptox.DeriveStorageKey(s.secret, salt), true, nil
}

func (s *PersistedSessionStore) discard(ctx context.Context, cause error) error {
	if err := s.Remove(ctx); err != nil {
		return fmt.Errorf("%w: %v (remove failed: %v)", ErrCorruptSession, cause, err)
	}
	return fmt.Errorf("%w: %v", ErrCorruptSession, cause)
}
