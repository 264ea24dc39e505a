package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/client/models"
	"github.com/dmitrijs2005/gophauth/internal/logging"
)

const (
	defaultAutoRefreshTick  = 30 * time.Second
	defaultRefreshThreshold = 90 * time.Second
	defaultRequestTimeout   = 10 * time.Second
	defaultRefreshRetries   = 3
	defaultRetryInterval    = 200 * time.Millisecond
)

// Options configures Auth. Zero durations fall back to the defaults above.
type Options struct {
	BaseURL string
	AnonKey string

	// HTTPClient overrides the client built from RequestTimeout.
	HTTPClient     *http.Client
	RequestTimeout time.Duration

	// AutoRefreshTick is how often the auto-refresh loop looks at the
	// session; RefreshThreshold is how close to expiry a session must be
	// for it to be refreshed.
	AutoRefreshTick  time.Duration
	RefreshThreshold time.Duration

	// RefreshRetries bounds retries of transient refresh failures;
	// RetryInterval is the first backoff step.
	RefreshRetries uint
	RetryInterval  time.Duration

	Logger logging.Logger
	Now    func() time.Time
}

type listenerEntry struct {
	id int
	fn AuthStateListener
}

// Auth talks to the identity API and owns the persisted session.
//
// It is safe for concurrent use. Listeners registered with
// OnAuthStateChange are called synchronously, in registration order, on
// the goroutine that caused the change and after the store was updated.
type Auth struct {
	rt     *transport
	store  SessionStore
	logger logging.Logger
	now    func() time.Time

	tick          time.Duration
	threshold     time.Duration
	retries       uint
	retryInterval time.Duration

	mu        sync.Mutex
	listeners []listenerEntry
	nextID    int

	// refresh tokens are single use; refreshes are serialised
	refreshMu sync.Mutex

	arMu     sync.Mutex
	arCancel context.CancelFunc
	arDone   chan struct{}
}

// NewAuth builds the identity client. store is usually a
// *PersistedSessionStore bound to the local database.
func NewAuth(opts Options, store SessionStore) (*Auth, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: session store is required", ErrInvalidConfig)
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	rt, err := newTransport(opts.BaseURL, opts.AnonKey, timeout, opts.HTTPClient)
	if err != nil {
		return nil, err
	}

	a := &Auth{
		rt:            rt,
		store:         store,
		logger:        opts.Logger,
		now:           opts.Now,
		tick:          opts.AutoRefreshTick,
		threshold:     opts.RefreshThreshold,
		retries:       opts.RefreshRetries,
		retryInterval: opts.RetryInterval,
	}
	if a.logger == nil {
		a.logger = logging.Discard()
	}
	a.logger = a.logger.With("component", "auth-client")
	if a.now == nil {
		a.now = time.Now
	}
	if a.tick <= 0 {
		a.tick = defaultAutoRefreshTick
	}
	if a.threshold <= 0 {
		a.threshold = defaultRefreshThreshold
	}
	if a.retries == 0 {
		a.retries = defaultRefreshRetries
	}
	if a.retryInterval <= 0 {
		a.retryInterval = defaultRetryInterval
	}
	return a, nil
}

// ProjectRef identifies the backend project (first label of its host).
func (a *Auth) ProjectRef() string {
	return a.rt.projectRef()
}

// AnonKey is the public key every request is sent with.
func (a *Auth) AnonKey() string {
	return a.rt.anonKey
}

// BaseURL is the backend gateway URL without a trailing slash.
func (a *Auth) BaseURL() string {
	return a.rt.baseURL.String()
}

func (a *Auth) GetSession(ctx context.Context) (*models.Session, error) {
	s, err := a.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if s == nil {
		return nil, nil
	}
	if !s.ExpiresWithin(a.now(), a.threshold) {
		return s, nil
	}
	return a.refresh(ctx, s)
}

// AccessToken returns a usable access token or ErrNoSession.
func (a *Auth) AccessToken(ctx context.Context) (string, error) {
	s, err := a.GetSession(ctx)
	if err != nil {
		return "", err
	}
	if s == nil {
		return "", ErrNoSession
	}
	return s.AccessToken, nil
}

func (a *Auth) SignInWithPassword(ctx context.Context, email, password string) (*models.Session, *models.User, error) {
	var s models.Session
	err := a.rt.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/v1/token",
		query:  url.Values{"grant_type": {"password"}},
		body:   map[string]string{"email": email, "password": password},
	}, &s)
	if err != nil {
		return nil, nil, err
	}

	normalizeSession(&s, a.now())
	if err := a.store.Save(ctx, &s); err != nil {
		return nil, nil, fmt.Errorf("persist session: %w", err)
	}
	a.logger.Info(ctx, "signed in", "email", email)
	a.emit(models.EventSignedIn, &s)
	return &s, s.User, nil
}

func (a *Auth) SignUp(ctx context.Context, email, password string) (*models.Session, *models.User, error) {
	var raw json.RawMessage
	err := a.rt.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/v1/signup",
		body:   map[string]string{"email": email, "password": password},
	}, &raw)
	if err != nil {
		return nil, nil, err
	}

	// The backend answers with a session when sign-ups are auto-confirmed
	// and with the bare user when e-mail verification is required.
	var s models.Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, nil, fmt.Errorf("decode sign-up response: %w", err)
	}
	if s.AccessToken == "" {
		var u models.User
		if err := json.Unmarshal(raw, &u); err != nil {
			return nil, nil, fmt.Errorf("decode sign-up response: %w", err)
		}
		a.logger.Info(ctx, "signed up, verification pending", "email", email)
		return nil, &u, nil
	}

	normalizeSession(&s, a.now())
	if err := a.store.Save(ctx, &s); err != nil {
		return nil, nil, fmt.Errorf("persist session: %w", err)
	}
	a.logger.Info(ctx, "signed up", "email", email)
	a.emit(models.EventSignedIn, &s)
	return &s, s.User, nil
}

// SignOut revokes the session on the backend and forgets it locally.
// The local session is removed and SIGNED_OUT emitted even when the backend
// call fails; that failure is still returned unless the backend no longer
// knew the session.
func (a *Auth) SignOut(ctx context.Context) error {
	// a refresh finishing after the removal would write the session back
	a.refreshMu.Lock()
	defer a.refreshMu.Unlock()

	s, err := a.store.Load(ctx)
	if err != nil && !errors.Is(err, ErrCorruptSession) {
		return fmt.Errorf("load session: %w", err)
	}

	var remoteErr error
	if s != nil {
		remoteErr = a.rt.do(ctx, request{
			method: http.MethodPost,
			path:   "/auth/v1/logout",
			query:  url.Values{"scope": {"global"}},
			token:  s.AccessToken,
		}, nil)
		if remoteErr != nil && sessionGone(remoteErr) {
			remoteErr = nil
		}
	}

	// the caller's context may be the reason the remote call failed
	if err := a.store.Remove(context.WithoutCancel(ctx)); err != nil {
		return errors.Join(remoteErr, fmt.Errorf("remove session: %w", err))
	}
	if remoteErr != nil {
		a.logger.Warn(ctx, "remote sign-out failed, session removed locally", "error", remoteErr)
	} else {
		a.logger.Info(ctx, "signed out")
	}
	a.emit(models.EventSignedOut, nil)
	return remoteErr
}

func (a *Auth) ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error {
	q := url.Values{}
	if redirectTo != "" {
		q.Set("redirect_to", redirectTo)
	}
	return a.rt.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/v1/recover",
		query:  q,
		body:   map[string]string{"email": email},
	}, nil)
}

func (a *Auth) OnAuthStateChange(fn AuthStateListener) (unsubscribe func()) {
	a.mu.Lock()
	a.nextID++
	id := a.nextID
	a.listeners = append(a.listeners, listenerEntry{id: id, fn: fn})
	a.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			a.mu.Lock()
			defer a.mu.Unlock()
			for i, l := range a.listeners {
				if l.id == id {
					a.listeners = append(a.listeners[:i:i], a.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

func (a *Auth) emit(event models.AuthChangeEvent, s *models.Session) {
	a.mu.Lock()
	listeners := make([]listenerEntry, len(a.listeners))
	copy(listeners, a.listeners)
	a.mu.Unlock()

	for _, l := range listeners {
		l.fn(event, s.Clone())
	}
}

// refresh exchanges the refresh token of current for a new session. A
// rejected refresh token signs the client out; transient failures leave the
// stored session in place.
func (a *Auth) refresh(ctx context.Context, current *models.Session) (*models.Session, error) {
	a.refreshMu.Lock()
	defer a.refreshMu.Unlock()

	// someone may have refreshed while we waited for the lock
	stored, err := a.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if stored == nil {
		return nil, nil
	}
	if stored.RefreshToken != current.RefreshToken && !stored.ExpiresWithin(a.now(), a.threshold) {
		return stored, nil
	}

	var s models.Session
	err = a.rt.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/v1/token",
		query:  url.Values{"grant_type": {"refresh_token"}},
		body:   map[string]string{"refresh_token": stored.RefreshToken},
	}, &s)
	if err != nil {
		if isTransient(err) || ctx.Err() != nil {
			return nil, err
		}
		a.logger.Warn(ctx, "refresh token rejected, signing out", "error", err)
		if rmErr := a.store.Remove(ctx); rmErr != nil {
			a.logger.Error(ctx, "remove rejected session", "error", rmErr)
		}
		a.emit(models.EventSignedOut, nil)
		return nil, err
	}

	normalizeSession(&s, a.now())
	if s.User == nil {
		s.User = stored.User
	}
	if err := a.store.Save(ctx, &s); err != nil {
		return nil, fmt.Errorf("persist session: %w", err)
	}
	a.logger.Debug(ctx, "session refreshed", "expires_at", s.Expiry())
	a.emit(models.EventTokenRefreshed, &s)
	return &s, nil
}

// forceRefresh refreshes regardless of the expiry threshold. Used after the
// backend rejected an access token the client still considered valid.
func (a *Auth) forceRefresh(ctx context.Context, current *models.Session) (*models.Session, error) {
	expired := *current
	expired.ExpiresAt = a.now().Unix()
	return a.refresh(ctx, &expired)
}
