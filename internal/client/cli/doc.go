// Package cli provides the interactive GophAuth command-line client.
//
// It drives the session controller from a REPL: sign in or up, sign out,
// request a password reset, view and edit the profile, and upload an
// avatar. Router plays the role of the app's navigator and prints every
// redirect the controller performs. The background and foreground commands
// flip the lifecycle signal, which pauses and resumes token auto refresh.
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
// See App, Router, and runREPL for details.
package cli
