package services

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/client/client"
	"github.com/dmitrijs2005/gophauth/internal/client/models"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/google/uuid"
)

// ---- fake identity client ----

type fakeAuth struct {
	mu        sync.Mutex
	listeners []client.AuthStateListener
	ids       []int
	nextID    int

	GetSessionFn    func(ctx context.Context) (*models.Session, error)
	SignInFn        func(ctx context.Context, email, password string) (*models.Session, *models.User, error)
	SignUpFn        func(ctx context.Context, email, password string) (*models.Session, *models.User, error)
	SignOutFn       func(ctx context.Context) error
	ResetPasswordFn func(ctx context.Context, email, redirectTo string) error

	SignInCalls  int
	SignUpCalls  int
	SignOutCalls int
	ResetCalls   int
	LastRedirect string

	StartCalls int
	StopCalls  int
	Refreshing bool
}

func (f *fakeAuth) GetSession(ctx context.Context) (*models.Session, error) {
	if f.GetSessionFn == nil {
		return nil, nil
	}
	return f.GetSessionFn(ctx)
}

func (f *fakeAuth) SignInWithPassword(ctx context.Context, email, password string) (*models.Session, *models.User, error) {
	f.mu.Lock()
	f.SignInCalls++
	fn := f.SignInFn
	f.mu.Unlock()
	if fn == nil {
		s := newSession(uuid.New(), email)
		return s, s.User, nil
	}
	return fn(ctx, email, password)
}

func (f *fakeAuth) SignUp(ctx context.Context, email, password string) (*models.Session, *models.User, error) {
	f.mu.Lock()
	f.SignUpCalls++
	fn := f.SignUpFn
	f.mu.Unlock()
	if fn == nil {
		s := newSession(uuid.New(), email)
		return s, s.User, nil
	}
	return fn(ctx, email, password)
}

func (f *fakeAuth) SignOut(ctx context.Context) error {
	f.mu.Lock()
	f.SignOutCalls++
	fn := f.SignOutFn
	f.mu.Unlock()
	if fn == nil {
		return nil
	}
	return fn(ctx)
}

func (f *fakeAuth) ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error {
	f.mu.Lock()
	f.ResetCalls++
	f.LastRedirect = redirectTo
	fn := f.ResetPasswordFn
	f.mu.Unlock()
	if fn == nil {
		return nil
	}
	return fn(ctx, email, redirectTo)
}

func (f *fakeAuth) OnAuthStateChange(fn client.AuthStateListener) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := f.nextID
	f.listeners = append(f.listeners, fn)
	f.ids = append(f.ids, id)
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		for i, v := range f.ids {
			if v == id {
				f.ids = append(f.ids[:i:i], f.ids[i+1:]...)
				f.listeners = append(f.listeners[:i:i], f.listeners[i+1:]...)
				return
			}
		}
	}
}

func (f *fakeAuth) StartAutoRefresh() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.StartCalls++
	f.Refreshing = true
}

func (f *fakeAuth) StopAutoRefresh() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.StopCalls++
	f.Refreshing = false
}

// emit plays a state-change notification to every listener.
func (f *fakeAuth) emit(event models.AuthChangeEvent, s *models.Session) {
	f.mu.Lock()
	ls := append([]client.AuthStateListener(nil), f.listeners...)
	f.mu.Unlock()
	for _, l := range ls {
		l(event, s.Clone())
	}
}

func (f *fakeAuth) listenerCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.listeners)
}

func (f *fakeAuth) refreshing() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Refreshing
}

func (f *fakeAuth) signInCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.SignInCalls
}

// ---- fake profiles table ----

type fakeProfiles struct {
	mu      sync.Mutex
	rows    map[uuid.UUID]models.Profile
	upserts []models.ProfileRow
	gets    int

	GetErr    error
	UpsertErr error
	// OnGet runs inside GetProfile before the row is returned.
	OnGet func()
}

func newFakeProfiles() *fakeProfiles {
	return &fakeProfiles{rows: map[uuid.UUID]models.Profile{}}
}

func (f *fakeProfiles) GetProfile(ctx context.Context, id uuid.UUID) (*models.Profile, error) {
	f.mu.Lock()
	f.gets++
	onGet := f.OnGet
	err := f.GetErr
	row, ok := f.rows[id]
	f.mu.Unlock()

	if onGet != nil {
		onGet()
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return &row, nil
}

func (f *fakeProfiles) UpsertProfile(ctx context.Context, row models.ProfileRow) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts = append(f.upserts, row)
	if f.UpsertErr != nil {
		return f.UpsertErr
	}
	p := f.rows[row.ID]
	p.ID = row.ID
	if row.Username != nil {
		p.Username = *row.Username
	}
	if row.Website != nil {
		p.Website = *row.Website
	}
	if row.AvatarURL != nil {
		p.AvatarURL = *row.AvatarURL
	}
	p.UpdatedAt = row.UpdatedAt
	f.rows[row.ID] = p
	return nil
}

func (f *fakeProfiles) getCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gets
}

func (f *fakeProfiles) upserted() []models.ProfileRow {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.ProfileRow(nil), f.upserts...)
}

// ---- navigation & logging ----

type recordingNavigator struct {
	mu     sync.Mutex
	routes []string
}

func (n *recordingNavigator) Navigate(route string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.routes = append(n.routes, route)
}

func (n *recordingNavigator) got() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.routes...)
}

func (n *recordingNavigator) count(route string) int {
	c := 0
	for _, r := range n.got() {
		if r == route {
			c++
		}
	}
	return c
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// ---- helpers ----

func newSession(id uuid.UUID, email string) *models.Session {
	return &models.Session{
		AccessToken:  "access-" + uuid.NewString(),
		RefreshToken: "refresh-" + uuid.NewString(),
		TokenType:    "bearer",
		ExpiresIn:    3600,
		ExpiresAt:    time.Now().Add(time.Hour).Unix(),
		User:         &models.User{ID: id, Email: email},
	}
}

type harness struct {
	svc      AuthService
	auth     *fakeAuth
	profiles *fakeProfiles
	nav      *recordingNavigator
	logs     *syncBuffer
}

func newHarness(t *testing.T, auth *fakeAuth, mutate ...func(*Options)) *harness {
	t.Helper()
	if auth == nil {
		auth = &fakeAuth{}
	}
	h := &harness{
		auth:     auth,
		profiles: newFakeProfiles(),
		nav:      &recordingNavigator{},
		logs:     &syncBuffer{},
	}
	opts := Options{
		Navigator: h.nav,
		Logger:    logging.NewDefault(h.logs, "debug"),
		Now:       func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) },
	}
	for _, m := range mutate {
		m(&opts)
	}
	h.svc = NewAuthService(h.auth, h.profiles, opts)
	t.Cleanup(h.svc.Close)
	return h
}

// started returns a harness whose startup lookup found no session.
func started(t *testing.T, auth *fakeAuth, mutate ...func(*Options)) *harness {
	t.Helper()
	h := newHarness(t, auth, mutate...)
	h.svc.Start(context.Background())
	return h
}

// signedIn returns a started harness with a signed-in user.
func signedIn(t *testing.T) (*harness, *models.Session) {
	t.Helper()
	s := newSession(uuid.New(), "ann@example.com")
	auth := &fakeAuth{
		SignInFn: func(context.Context, string, string) (*models.Session, *models.User, error) {
			return s, s.User, nil
		},
	}
	h := started(t, auth)
	if err := h.svc.SignIn(context.Background(), "ann@example.com", "secret1"); err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	return h, s
}
