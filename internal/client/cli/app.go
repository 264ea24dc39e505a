package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/client/lifecycle"
	"github.com/dmitrijs2005/gophauth/internal/client/services"
	"github.com/dmitrijs2005/gophauth/internal/logging"
)

// AvatarUploader uploads a local picture for the signed-in user.
type AvatarUploader interface {
	Upload(ctx context.Context, path string) (string, error)
}

// AppState is the writable side of the foreground/background signal.
type AppState interface {
	Current() lifecycle.AppState
	Set(state lifecycle.AppState)
}

// Deps are the collaborators of App. Avatars and Lifecycle may be nil.
type Deps struct {
	Auth      services.AuthService
	Avatars   AvatarUploader
	Lifecycle AppState
	Router    *Router
	In        io.Reader
	Out       io.Writer
	Logger    logging.Logger
}

type App struct {
	auth    services.AuthService
	avatars AvatarUploader
	lc      AppState
	router  *Router
	reader  *bufio.Reader
	out     io.Writer
	logger  logging.Logger
}

func NewApp(d Deps) *App {
	logger := d.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return &App{
		auth:    d.Auth,
		avatars: d.Avatars,
		lc:      d.Lifecycle,
		router:  d.Router,
		reader:  bufio.NewReader(d.In),
		out:     d.Out,
		logger:  logger.With("component", "cli"),
	}
}

// Run reads commands until the user exits, the input ends or ctx is done.
func (a *App) Run(ctx context.Context) {
	printlnFn("Welcome to GophAuth CLI (type 'help' for commands)")

	done := make(chan struct{})
	go func() {
		defer close(done)
		runREPL(ctx, a, a.getStatus, a.reader)
	}()

	select {
	case <-ctx.Done():
	case <-done:
	}
}

func (a *App) isSignedIn() bool {
	return a.auth.Snapshot().Authenticated()
}

// getStatus renders the prompt prefix, e.g. "(ann@example.com)" or
// "(signed out, background)".
func (a *App) getStatus() string {
	snap := a.auth.Snapshot()

	var parts []string
	switch {
	case snap.Authenticated():
		parts = append(parts, snap.User.Email)
	case snap.Status == services.StatusInitializing:
		parts = append(parts, "starting")
	default:
		parts = append(parts, "signed out")
	}
	if snap.IsLoading {
		parts = append(parts, "busy")
	}
	if a.lc != nil && a.lc.Current() != lifecycle.Active {
		parts = append(parts, a.lc.Current().String())
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// Status prints the controller snapshot.
func (a *App) Status(ctx context.Context) error {
	snap := a.auth.Snapshot()

	fmt.Fprintf(a.out, "status:   %s\n", snap.Status)
	if snap.User != nil {
		fmt.Fprintf(a.out, "user:     %s (%s)\n", snap.User.Email, snap.User.ID)
	}
	if snap.Session != nil && snap.Session.ExpiresAt > 0 {
		exp := time.Unix(snap.Session.ExpiresAt, 0)
		fmt.Fprintf(a.out, "expires:  %s\n", exp.Format(time.RFC3339))
	}
	if a.router != nil && a.router.Current() != "" {
		fmt.Fprintf(a.out, "screen:   %s\n", a.router.Current())
	}
	if a.lc != nil {
		fmt.Fprintf(a.out, "app:      %s\n", a.lc.Current())
	}
	return nil
}

// Background moves the app to the background, which pauses auto refresh.
func (a *App) Background(ctx context.Context) error {
	return a.setAppState(lifecycle.Background)
}

// Foreground makes the app active again and resumes auto refresh.
func (a *App) Foreground(ctx context.Context) error {
	return a.setAppState(lifecycle.Active)
}

func (a *App) setAppState(state lifecycle.AppState) error {
	if a.lc == nil {
		return errNoLifecycle
	}
	a.lc.Set(state)
	fmt.Fprintf(a.out, "App is now %s\n", state)
	return nil
}
