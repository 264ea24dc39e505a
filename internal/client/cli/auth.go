package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophauth/internal/common"
)

// getSimpleText, getOptional and getPassword are indirections used to
// facilitate testing. They point to interactive input helpers and can be
// swapped in tests.
var (
	getSimpleText = GetSimpleText
	getOptional   = GetOptional
	getPassword   = GetPassword
)

var (
	errNoLifecycle = errors.New("app state control is not available")
	errNoAvatars   = errors.New("avatar uploads are not configured")
)

// SignIn prompts for an e-mail and password and signs in. The password byte
// slice is wiped before returning. Navigation to the main screen is done by
// the controller.
func (a *App) SignIn(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}
	password, err := getPassword(a.out, "Enter password")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	creds := credentials{Email: email, Password: string(password)}
	if err := creds.validateSignIn(); err != nil {
		return err
	}

	if err := a.auth.SignIn(ctx, creds.Email, creds.Password); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Signed in as %s\n", email)
	return nil
}

// SignUp prompts for an e-mail and a confirmed password and creates the
// account. When the backend asks for e-mail confirmation the user stays
// signed out and is told to check their inbox.
func (a *App) SignUp(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}
	password, err := getPassword(a.out, "Choose password")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)
	confirm, err := getPassword(a.out, "Repeat password")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(confirm)

	creds := credentials{Email: email, Password: string(password), Confirm: string(confirm)}
	if err := creds.validateSignUp(); err != nil {
		return err
	}

	res, err := a.auth.SignUp(ctx, creds.Email, creds.Password)
	if err != nil {
		return err
	}
	if res.VerificationRequired {
		fmt.Fprintf(a.out, "Account created. Open the link sent to %s, then sign in.\n", email)
		return nil
	}
	fmt.Fprintf(a.out, "Account created, signed in as %s\n", email)
	return nil
}

func (a *App) SignOut(ctx context.Context) error {
	if err := a.auth.SignOut(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Signed out")
	return nil
}

// ResetPassword asks for an e-mail and requests a recovery mail for it.
func (a *App) ResetPassword(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}
	if err := validateEmail(email); err != nil {
		return err
	}

	if err := a.auth.ResetPassword(ctx, email); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "If the address is registered, a reset link is on its way")
	return nil
}
