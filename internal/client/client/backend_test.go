package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/client/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const testAnonKey = "anon-test-key"

type fakeUser struct {
	id       uuid.UUID
	email    string
	password string
}

type fakeFailure struct {
	status int
	body   string
}

// fakeBackend emulates the identity and data APIs closely enough for the
// client: HS256 access tokens, single-use refresh tokens and a profiles
// table keyed by user id.
type fakeBackend struct {
	srv    *httptest.Server
	secret []byte

	mu          sync.Mutex
	ttl         time.Duration
	autoConfirm bool
	users       map[string]*fakeUser
	refresh     map[string]uuid.UUID
	revoked     map[string]bool
	profiles    map[uuid.UUID]models.Profile
	failures    map[string][]fakeFailure
	calls       map[string]int
	lastQuery   map[string]string
	lastHeaders map[string]http.Header
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	fb := &fakeBackend{
		secret:      []byte("backend-signing-secret"),
		ttl:         time.Hour,
		autoConfirm: true,
		users:       map[string]*fakeUser{},
		refresh:     map[string]uuid.UUID{},
		revoked:     map[string]bool{},
		profiles:    map[uuid.UUID]models.Profile{},
		failures:    map[string][]fakeFailure{},
		calls:       map[string]int{},
		lastQuery:   map[string]string{},
		lastHeaders: map[string]http.Header{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/v1/token", fb.handleToken)
	mux.HandleFunc("POST /auth/v1/signup", fb.handleSignUp)
	mux.HandleFunc("POST /auth/v1/logout", fb.handleLogout)
	mux.HandleFunc("POST /auth/v1/recover", fb.handleRecover)
	mux.HandleFunc("GET /rest/v1/profiles", fb.handleGetProfile)
	mux.HandleFunc("POST /rest/v1/profiles", fb.handleUpsertProfile)

	fb.srv = httptest.NewServer(fb.middleware(mux))
	t.Cleanup(fb.srv.Close)
	return fb
}

func (fb *fakeBackend) URL() string { return fb.srv.URL }

func (fb *fakeBackend) addUser(email, password string) uuid.UUID {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	u := &fakeUser{id: uuid.New(), email: email, password: password}
	fb.users[email] = u
	return u.id
}

func (fb *fakeBackend) setTTL(d time.Duration) {
	fb.mu.Lock()
	fb.ttl = d
	fb.mu.Unlock()
}

func (fb *fakeBackend) setAutoConfirm(v bool) {
	fb.mu.Lock()
	fb.autoConfirm = v
	fb.mu.Unlock()
}

// failNext makes the next call of route answer status with body. Routes are
// "METHOD /path".
func (fb *fakeBackend) failNext(route string, status int, body string) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.failures[route] = append(fb.failures[route], fakeFailure{status: status, body: body})
}

func (fb *fakeBackend) callCount(route string) int {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.calls[route]
}

func (fb *fakeBackend) query(route string) string {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.lastQuery[route]
}

func (fb *fakeBackend) headers(route string) http.Header {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.lastHeaders[route]
}

func (fb *fakeBackend) profile(id uuid.UUID) (models.Profile, bool) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	p, ok := fb.profiles[id]
	return p, ok
}

func (fb *fakeBackend) putProfile(p models.Profile) {
	fb.mu.Lock()
	fb.profiles[p.ID] = p
	fb.mu.Unlock()
}

// revoke invalidates an access token before its expiry.
func (fb *fakeBackend) revoke(token string) {
	fb.mu.Lock()
	fb.revoked[token] = true
	fb.mu.Unlock()
}

func (fb *fakeBackend) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := r.Method + " " + r.URL.Path

		fb.mu.Lock()
		fb.calls[route]++
		fb.lastQuery[route] = r.URL.RawQuery
		fb.lastHeaders[route] = r.Header.Clone()
		var failure *fakeFailure
		if q := fb.failures[route]; len(q) > 0 {
			failure = &q[0]
			fb.failures[route] = q[1:]
		}
		fb.mu.Unlock()

		if r.Header.Get("apikey") != testAnonKey {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "Invalid API key"})
			return
		}
		if failure != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(failure.status)
			_, _ = w.Write([]byte(failure.body))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (fb *fakeBackend) mint(u *fakeUser) map[string]any {
	fb.mu.Lock()
	ttl := fb.ttl
	fb.mu.Unlock()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, accessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.id.String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ID:        uuid.NewString(),
		},
		Email:     u.email,
		SessionID: uuid.NewString(),
	})
	access, err := token.SignedString(fb.secret)
	if err != nil {
		panic(err)
	}
	refresh := uuid.NewString()

	fb.mu.Lock()
	fb.refresh[refresh] = u.id
	fb.mu.Unlock()

	return map[string]any{
		"access_token":  access,
		"refresh_token": refresh,
		"token_type":    "bearer",
		"expires_in":    int64(ttl / time.Second),
		"user":          userJSON(u),
	}
}

func userJSON(u *fakeUser) map[string]any {
	return map[string]any{
		"id":                 u.id.String(),
		"email":              u.email,
		"email_confirmed_at": time.Now().UTC().Format(time.RFC3339),
		"created_at":         time.Now().UTC().Format(time.RFC3339),
		"updated_at":         time.Now().UTC().Format(time.RFC3339),
	}
}

// bearerUser returns the user id of a valid bearer token, uuid.Nil for the
// anon key and false for anything else.
func (fb *fakeBackend) bearerUser(r *http.Request) (uuid.UUID, bool) {
	raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if raw == testAnonKey {
		return uuid.Nil, true
	}
	fb.mu.Lock()
	revoked := fb.revoked[raw]
	fb.mu.Unlock()
	if revoked {
		return uuid.Nil, false
	}

	claims := &accessClaims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) { return fb.secret, nil })
	if err != nil || !tok.Valid {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

func (fb *fakeBackend) handleToken(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email        string `json:"email"`
		Password     string `json:"password"`
		RefreshToken string `json:"refresh_token"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	switch r.URL.Query().Get("grant_type") {
	case "password":
		fb.mu.Lock()
		u, ok := fb.users[body.Email]
		fb.mu.Unlock()
		if !ok || u.password != body.Password {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":             "invalid_grant",
				"error_description": "Invalid login credentials",
			})
			return
		}
		writeJSON(w, http.StatusOK, fb.mint(u))
	case "refresh_token":
		fb.mu.Lock()
		id, ok := fb.refresh[body.RefreshToken]
		delete(fb.refresh, body.RefreshToken)
		var u *fakeUser
		for _, cand := range fb.users {
			if cand.id == id {
				u = cand
			}
		}
		fb.mu.Unlock()
		if !ok || u == nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"code":       400,
				"error_code": "refresh_token_not_found",
				"msg":        "Invalid Refresh Token: Refresh Token Not Found",
			})
			return
		}
		writeJSON(w, http.StatusOK, fb.mint(u))
	default:
		writeJSON(w, http.StatusBadRequest, map[string]any{"msg": "unsupported grant type"})
	}
}

func (fb *fakeBackend) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	fb.mu.Lock()
	_, exists := fb.users[body.Email]
	autoConfirm := fb.autoConfirm
	fb.mu.Unlock()

	if exists {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"code":       422,
			"error_code": "user_already_exists",
			"msg":        "User already registered",
		})
		return
	}
	if len(body.Password) < 6 {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"code":       422,
			"error_code": "weak_password",
			"msg":        "Password should be at least 6 characters.",
		})
		return
	}

	id := fb.addUser(body.Email, body.Password)
	u := &fakeUser{id: id, email: body.Email, password: body.Password}
	if autoConfirm {
		writeJSON(w, http.StatusOK, fb.mint(u))
		return
	}
	uj := userJSON(u)
	delete(uj, "email_confirmed_at")
	writeJSON(w, http.StatusOK, uj)
}

func (fb *fakeBackend) handleLogout(w http.ResponseWriter, r *http.Request) {
	if id, ok := fb.bearerUser(r); !ok || id == uuid.Nil {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"code": 401, "msg": "invalid JWT"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (fb *fakeBackend) handleRecover(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{})
}

func (fb *fakeBackend) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	if _, ok := fb.bearerUser(r); !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"code": "PGRST301", "message": "JWT expired"})
		return
	}
	id, err := uuid.Parse(strings.TrimPrefix(r.URL.Query().Get("id"), "eq."))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"code": "22P02", "message": "invalid input syntax for type uuid"})
		return
	}
	p, ok := fb.profile(id)
	if !ok {
		writeJSON(w, http.StatusNotAcceptable, map[string]any{
			"code":    "PGRST116",
			"message": "JSON object requested, multiple (or no) rows returned",
		})
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (fb *fakeBackend) handleUpsertProfile(w http.ResponseWriter, r *http.Request) {
	caller, ok := fb.bearerUser(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"code": "PGRST301", "message": "JWT expired"})
		return
	}
	var row models.ProfileRow
	if err := json.NewDecoder(r.Body).Decode(&row); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": err.Error()})
		return
	}
	if caller != row.ID {
		writeJSON(w, http.StatusForbidden, map[string]any{
			"code":    "42501",
			"message": `new row violates row-level security policy for table "profiles"`,
		})
		return
	}

	p, _ := fb.profile(row.ID)
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
	fb.putProfile(p)
	w.WriteHeader(http.StatusCreated)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// memStore is an in-memory SessionStore.
type memStore struct {
	mu      sync.Mutex
	session *models.Session
	loadErr error
}

func (m *memStore) Load(context.Context) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return m.session.Clone(), nil
}

func (m *memStore) Save(_ context.Context, s *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = s.Clone()
	return nil
}

func (m *memStore) Remove(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = nil
	return nil
}

func (m *memStore) current() *models.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session.Clone()
}

type recordedEvent struct {
	event   models.AuthChangeEvent
	session *models.Session
}

type eventRecorder struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (r *eventRecorder) listen(event models.AuthChangeEvent, s *models.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{event: event, session: s})
}

func (r *eventRecorder) kinds() []models.AuthChangeEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.AuthChangeEvent, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.event)
	}
	return out
}

func newTestAuth(t *testing.T, fb *fakeBackend, mutate ...func(*Options)) (*Auth, *memStore) {
	t.Helper()
	opts := Options{
		BaseURL:        fb.URL(),
		AnonKey:        testAnonKey,
		RequestTimeout: 5 * time.Second,
		RetryInterval:  time.Millisecond,
	}
	for _, m := range mutate {
		m(&opts)
	}
	store := &memStore{}
	a, err := NewAuth(opts, store)
	if err != nil {
		t.Fatalf("NewAuth: %v", err)
	}
	t.Cleanup(a.StopAutoRefresh)
	return a, store
}
