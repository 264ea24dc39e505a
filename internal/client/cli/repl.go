package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isSignedIn() bool
	SignIn(ctx context.Context) error
	SignUp(ctx context.Context) error
	SignOut(ctx context.Context) error
	ResetPassword(ctx context.Context) error
	Profile(ctx context.Context) error
	UpdateProfile(ctx context.Context) error
	UploadAvatar(ctx context.Context, path string) error
	Status(ctx context.Context) error
	Background(ctx context.Context) error
	Foreground(ctx context.Context) error
}

// runREPL starts a simple read–eval–print loop for the GophAuth CLI.
//
// It reads a line from in, parses the first token as the command, and
// dispatches to methods on 'a'. The loop exits on EOF or when the user types
// "exit" or "quit". Handler errors are printed and the loop goes on.
//
// Commands
//
//	Signed out:
//	  - signin            sign in with e-mail and password
//	  - signup            create an account
//	  - reset             send a password reset mail
//
//	Signed in:
//	  - profile           show the profile row
//	  - update            edit username and website
//	  - avatar <path>     upload a profile picture
//	  - signout           sign out
//
//	Always:
//	  - status, background, foreground, help, exit | quit
func runREPL(ctx context.Context, a execIface, statusFn func() string, in *bufio.Reader) {
	for {
		printlnFn(fmt.Sprintf("ga %s > ", statusFn()))
		line, err := in.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || line == "") {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		switch cmd {
		case "help":
			if a.isSignedIn() {
				printlnFn("Available commands: profile, update, avatar <path>, signout, status, background, foreground, exit")
			} else {
				printlnFn("Available commands: signin, signup, reset, status, background, foreground, exit")
			}

		case "signin", "login":
			report(a.SignIn(ctx))

		case "signup", "register":
			report(a.SignUp(ctx))

		case "signout", "logout":
			report(a.SignOut(ctx))

		case "reset":
			report(a.ResetPassword(ctx))

		case "profile":
			report(a.Profile(ctx))

		case "update":
			report(a.UpdateProfile(ctx))

		case "avatar":
			if len(args) == 0 {
				printlnFn("Usage: avatar <path>")
				continue
			}
			report(a.UploadAvatar(ctx, strings.Join(args, " ")))

		case "status":
			report(a.Status(ctx))

		case "background", "bg":
			report(a.Background(ctx))

		case "foreground", "fg":
			report(a.Foreground(ctx))

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}

		if err != nil {
			return
		}
	}
}

func report(err error) {
	if err != nil {
		printlnFn("Error:", err)
	}
}
