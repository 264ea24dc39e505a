// Package services contains application services for the GophAuth client.
// This file defines the session lifecycle controller: it owns the in-memory
// authentication state, reconciles it with the identity client's
// notifications and drives navigation.
package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/client/client"
	"github.com/dmitrijs2005/gophauth/internal/client/lifecycle"
	"github.com/dmitrijs2005/gophauth/internal/client/models"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"golang.org/x/sync/singleflight"
)

// DefaultResetRedirectURL is the deep link password-reset e-mails point at.
const DefaultResetRedirectURL = "gophauth://reset-password"

// AuthService is the session lifecycle controller used by the screens.
//
// Contract:
//   - Start: subscribe to the identity client and the app lifecycle, then
//     look up the persisted session once. Close undoes Start.
//   - SignIn/SignUp/SignOut/ResetPassword: return *AuthError on failure and
//     never panic.
//   - GetProfile/UpdateProfile: sync the profile row; failures are logged.
//   - Snapshot/Subscribe: read-only views of the state. Subscribers and the
//     Navigator must not call mutating operations synchronously.
type AuthService interface {
	Start(ctx context.Context)
	Close()

	Snapshot() Snapshot
	Subscribe(fn func(Snapshot)) (unsubscribe func())

	SignIn(ctx context.Context, email, password string) error
	SignUp(ctx context.Context, email, password string) (SignUpResult, error)
	SignOut(ctx context.Context) error
	ResetPassword(ctx context.Context, email string) error

	GetProfile(ctx context.Context)
	UpdateProfile(ctx context.Context, upd ProfileUpdate)
}

// Options holds the optional collaborators of the controller.
type Options struct {
	Navigator Navigator
	// Lifecycle drives auto refresh; nil means always in the foreground.
	Lifecycle        lifecycle.Source
	ResetRedirectURL string
	Logger           logging.Logger
	Now              func() time.Time
}

type subscriber struct {
	id int
	fn func(Snapshot)
}

type authService struct {
	auth     client.AuthClient
	profiles client.ProfileTable
	nav      Navigator
	lc       lifecycle.Source
	redirect string
	logger   logging.Logger
	now      func() time.Time

	group singleflight.Group

	mu       sync.Mutex
	status   Status
	session  *models.Session
	profile  ProfileState
	inFlight int
	// bumped by every notification and by sign-out; an operation applies
	// its own result only if it did not move while the call was running
	seq     uint64
	subs    []subscriber
	nextSub int

	started   bool
	closed    bool
	unsubAuth func()
	unsubLC   func()

	// serialises mutation and delivery so observers see changes in order
	emitMu sync.Mutex
}

// NewAuthService constructs the controller in the Initializing state with
// the startup lookup pending.
func NewAuthService(auth client.AuthClient, profiles client.ProfileTable, opts Options) AuthService {
	a := &authService{
		auth:     auth,
		profiles: profiles,
		nav:      opts.Navigator,
		lc:       opts.Lifecycle,
		redirect: opts.ResetRedirectURL,
		logger:   opts.Logger,
		now:      opts.Now,
		status:   StatusInitializing,
		inFlight: 1,
	}
	if a.redirect == "" {
		a.redirect = DefaultResetRedirectURL
	}
	if a.logger == nil {
		a.logger = logging.Discard()
	}
	a.logger = a.logger.With("component", "auth-controller")
	if a.now == nil {
		a.now = time.Now
	}
	return a
}

func (a *authService) Start(ctx context.Context) {
	a.mu.Lock()
	if a.started || a.closed {
		a.mu.Unlock()
		return
	}
	a.started = true
	seq := a.seq
	a.mu.Unlock()

	unsubAuth := a.auth.OnAuthStateChange(a.onAuthStateChange)
	var unsubLC func()
	if a.lc != nil {
		unsubLC = a.lc.Subscribe(a.onAppStateChange)
		a.onAppStateChange(a.lc.Current())
	} else {
		a.auth.StartAutoRefresh()
	}

	a.mu.Lock()
	closed := a.closed
	if !closed {
		a.unsubAuth, a.unsubLC = unsubAuth, unsubLC
	}
	a.mu.Unlock()

	if closed {
		// Close ran while the subscriptions were being set up
		if unsubLC != nil {
			unsubLC()
		}
		unsubAuth()
		a.auth.StopAutoRefresh()
		return
	}

	s, err := a.lookupSession(ctx)
	if err != nil {
		a.logger.Error(ctx, "session lookup failed, continuing signed out", "error", err)
	}

	a.mutate(func() {
		a.inFlight--
		if a.seq != seq {
			// a notification already settled the state
			return
		}
		a.setSessionLocked(s)
	})
}

func (a *authService) lookupSession(ctx context.Context) (s *models.Session, err error) {
	defer func() {
		if r := recover(); r != nil {
			s, err = nil, recovered("getSession", r)
		}
	}()
	return a.auth.GetSession(ctx)
}

func (a *authService) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	unsubAuth, unsubLC := a.unsubAuth, a.unsubLC
	started := a.started
	a.unsubAuth, a.unsubLC = nil, nil
	a.mu.Unlock()

	if unsubLC != nil {
		unsubLC()
	}
	if unsubAuth != nil {
		unsubAuth()
	}
	if started {
		a.auth.StopAutoRefresh()
	}
}

func (a *authService) onAppStateChange(state lifecycle.AppState) {
	a.logger.Debug(context.Background(), "app state changed", "state", state)
	if state == lifecycle.Active {
		a.auth.StartAutoRefresh()
	} else {
		a.auth.StopAutoRefresh()
	}
}

func (a *authService) onAuthStateChange(event models.AuthChangeEvent, s *models.Session) {
	a.logger.Debug(context.Background(), "auth state notification", "event", event)
	a.mutate(func() {
		a.seq++
		a.setSessionLocked(s)
	})
}

func (a *authService) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshotLocked()
}

func (a *authService) snapshotLocked() Snapshot {
	snap := Snapshot{
		Status:    a.status,
		Session:   a.session.Clone(),
		IsLoading: a.inFlight > 0,
		Profile:   a.profile,
	}
	if snap.Session != nil {
		snap.User = snap.Session.User
	}
	return snap
}

func (a *authService) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	a.mu.Lock()
	a.nextSub++
	id := a.nextSub
	a.subs = append(a.subs, subscriber{id: id, fn: fn})
	a.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			a.mu.Lock()
			defer a.mu.Unlock()
			for i, s := range a.subs {
				if s.id == id {
					a.subs = append(a.subs[:i:i], a.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// mutate runs fn under the state lock, then hands the resulting snapshot to
// subscribers and, if the status changed, issues a navigation directive.
func (a *authService) mutate(fn func()) {
	a.emitMu.Lock()
	defer a.emitMu.Unlock()

	a.mu.Lock()
	prev := a.status
	fn()
	snap := a.snapshotLocked()
	subs := make([]subscriber, len(a.subs))
	copy(subs, a.subs)
	a.mu.Unlock()

	for _, s := range subs {
		a.deliver(s.fn, snap)
	}
	if snap.Status != prev {
		if route, ok := routeFor(snap.Status); ok {
			a.navigate(route)
		}
	}
}

func (a *authService) deliver(fn func(Snapshot), snap Snapshot) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error(context.Background(), "subscriber panicked", "panic", r)
		}
	}()
	fn(snap)
}

func (a *authService) navigate(route string) {
	if a.nav == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error(context.Background(), "navigator panicked", "route", route, "panic", r)
		}
	}()
	a.nav.Navigate(route)
}

// setSessionLocked moves to Authenticated with s, or to Unauthenticated when
// s is nil. Profile state does not survive a change of user.
func (a *authService) setSessionLocked(s *models.Session) {
	if s == nil || s.User == nil {
		a.status = StatusUnauthenticated
		a.session = nil
		a.profile = ProfileState{}
		return
	}
	if a.session == nil || a.session.User.ID != s.User.ID {
		a.profile = ProfileState{}
	}
	a.status = StatusAuthenticated
	a.session = s.Clone()
}

func (a *authService) currentSeq() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.seq
}

// applyResult stores an operation's session unless a notification arrived
// after seq was taken.
func (a *authService) applyResult(seq uint64, s *models.Session) {
	if s == nil {
		return
	}
	a.mutate(func() {
		if a.seq != seq {
			return
		}
		a.setSessionLocked(s)
	})
}

func (a *authService) currentSession() *models.Session {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.session.Clone()
}

// run executes fn as operation op. Concurrent calls with the same non-empty
// key share one execution. The loading flag is raised for the duration,
// panics are recovered and every failure is returned as *AuthError.
func (a *authService) run(ctx context.Context, op, key string, fn func(ctx context.Context) (any, error)) (any, error) {
	call := func() (v any, err error) {
		a.mutate(func() { a.inFlight++ })
		defer a.mutate(func() { a.inFlight-- })
		defer func() {
			if r := recover(); r != nil {
				a.logger.Error(ctx, "operation panicked", "op", op, "panic", r)
				v, err = nil, recovered(op, r)
			}
		}()
		return fn(ctx)
	}

	var (
		v   any
		err error
	)
	if key == "" {
		v, err = call()
	} else {
		// the shared call runs on the first caller's context; every caller
		// still stops waiting when its own context is done
		select {
		case res := <-a.group.DoChan(key, call):
			v, err = res.Val, res.Err
			if res.Shared {
				a.logger.Debug(ctx, "operation coalesced", "op", op)
			}
		case <-ctx.Done():
			err = ctx.Err()
		}
	}
	if err != nil {
		return nil, newAuthError(op, err)
	}
	return v, nil
}

func credentialKey(op, email, password string) string {
	sum := sha256.Sum256([]byte(password))
	return op + "\x00" + email + "\x00" + hex.EncodeToString(sum[:])
}

func (a *authService) SignIn(ctx context.Context, email, password string) error {
	_, err := a.run(ctx, "signIn", credentialKey("signIn", email, password), func(ctx context.Context) (any, error) {
		seq := a.currentSeq()
		s, _, err := a.auth.SignInWithPassword(ctx, email, password)
		if err != nil {
			return nil, err
		}
		a.applyResult(seq, s)
		a.logger.Info(ctx, "signed in", "email", email)
		return nil, nil
	})
	return err
}

func (a *authService) SignUp(ctx context.Context, email, password string) (SignUpResult, error) {
	v, err := a.run(ctx, "signUp", credentialKey("signUp", email, password), func(ctx context.Context) (any, error) {
		seq := a.currentSeq()
		s, u, err := a.auth.SignUp(ctx, email, password)
		if err != nil {
			return nil, err
		}
		a.applyResult(seq, s)

		if u == nil && s != nil {
			u = s.User
		}
		if u != nil {
			a.createProfile(ctx, u, email)
		}

		res := SignUpResult{Success: true, VerificationRequired: s == nil}
		a.logger.Info(ctx, "signed up", "email", email, "verification_required", res.VerificationRequired)
		return res, nil
	})
	if err != nil {
		return SignUpResult{}, err
	}
	return v.(SignUpResult), nil
}

// createProfile seeds the profile row of a new user. The upsert is
// idempotent; a failure does not fail the sign-up.
func (a *authService) createProfile(ctx context.Context, u *models.User, email string) {
	if email == "" {
		email = u.Email
	}
	err := a.profiles.UpsertProfile(ctx, models.ProfileRow{
		ID:        u.ID,
		Email:     &email,
		UpdatedAt: a.now().UTC(),
	})
	if err != nil {
		a.logger.Error(ctx, "create profile failed", "user_id", u.ID, "error", err)
	}
}

func (a *authService) SignOut(ctx context.Context) error {
	_, err := a.run(ctx, "signOut", "signOut", func(ctx context.Context) (any, error) {
		defer a.mutate(func() {
			a.seq++
			a.setSessionLocked(nil)
		})
		if err := a.auth.SignOut(ctx); err != nil {
			a.logger.Warn(ctx, "remote sign-out failed, signed out locally", "error", err)
			return nil, err
		}
		a.logger.Info(ctx, "signed out")
		return nil, nil
	})
	return err
}

func (a *authService) ResetPassword(ctx context.Context, email string) error {
	_, err := a.run(ctx, "resetPassword", "resetPassword\x00"+email, func(ctx context.Context) (any, error) {
		if err := a.auth.ResetPasswordForEmail(ctx, email, a.redirect); err != nil {
			return nil, err
		}
		a.logger.Info(ctx, "password reset requested", "email", email)
		return nil, nil
	})
	return err
}
