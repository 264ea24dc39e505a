// Package client contains the client-side building blocks that talk to the
// hosted backend.
//
// # Overview
//
// The package provides:
//  1. The backend contract (AuthClient, ProfileTable) the session controller
//     is written against.
//  2. Auth, the identity API client. It persists the session through a
//     SessionStore, notifies OnAuthStateChange listeners, and keeps the
//     session fresh with StartAutoRefresh/StopAutoRefresh.
//  3. Profiles, the data API client for the profiles table. It retries once
//     with a refreshed session when the backend rejects the access token.
//  4. Local persistence bootstrap (InitDatabase, RunMigrations) wiring an
//     SQLite database with embedded goose migrations, and
//     PersistedSessionStore on top of it.
//
// # Error Handling
//
// Backend failures are returned as *APIError, which unwraps to one of the
// sentinel errors ErrUnauthorized, ErrRateLimited, ErrBadRequest or
// ErrUnavailable. Network failures are ErrUnavailable too.
//
// Concurrency & Contexts
//
// Auth and Profiles are safe for concurrent use. All blocking operations
// accept context.Context and honor cancellation.
package client
