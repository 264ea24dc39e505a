package cli

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/gophauth/internal/client/services"
)

// Profile reloads and prints the signed-in user's profile.
func (a *App) Profile(ctx context.Context) error {
	if !a.isSignedIn() {
		return services.ErrNoSession
	}
	a.auth.GetProfile(ctx)
	a.printProfile(a.auth.Snapshot().Profile)
	return nil
}

// UpdateProfile prompts for a new username and website. Empty answers keep
// the stored values.
func (a *App) UpdateProfile(ctx context.Context) error {
	if !a.isSignedIn() {
		return services.ErrNoSession
	}

	username, err := getOptional(a.reader, "Username", a.out)
	if err != nil {
		return err
	}
	website, err := getOptional(a.reader, "Website", a.out)
	if err != nil {
		return err
	}
	if err := validateWebsite(website); err != nil {
		return fmt.Errorf("website: %w", err)
	}
	if username == nil && website == nil {
		fmt.Fprintln(a.out, "Nothing to update")
		return nil
	}

	a.auth.UpdateProfile(ctx, services.ProfileUpdate{Username: username, Website: website})
	a.printProfile(a.auth.Snapshot().Profile)
	return nil
}

// UploadAvatar uploads the picture at path and prints its storage key.
func (a *App) UploadAvatar(ctx context.Context, path string) error {
	if a.avatars == nil {
		return errNoAvatars
	}
	key, err := a.avatars.Upload(ctx, path)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Avatar stored as %s\n", key)
	return nil
}

func (a *App) printProfile(p services.ProfileState) {
	fmt.Fprintf(a.out, "username: %s\n", orDash(p.Username))
	fmt.Fprintf(a.out, "website:  %s\n", orDash(p.Website))
	fmt.Fprintf(a.out, "avatar:   %s\n", orDash(p.AvatarURL))
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
