// Package config loads runtime configuration for the GophAuth CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. A dotenv file: ".env" in the working directory, or the file named by
//     -env. Variables already set in the process environment win.
//  3. GOPHAUTH_* environment variables.
//  4. Optional JSON file selected via -c or -config.
//  5. Command-line flags, which override earlier values.
//
// The result is checked by (*Config).Validate before it is returned.
//
// Environment variables
//
//	GOPHAUTH_BASE_URL            project URL
//	GOPHAUTH_ANON_KEY            public API key
//	GOPHAUTH_RESET_REDIRECT_URL  deep link for password recovery mails
//	GOPHAUTH_DATABASE_DSN        SQLite file for the persisted session
//	GOPHAUTH_STORAGE_SECRET      encrypts the persisted session when set
//	GOPHAUTH_AUTO_REFRESH_TICK   e.g. "30s"
//	GOPHAUTH_REFRESH_THRESHOLD   e.g. "90s"
//	GOPHAUTH_REQUEST_TIMEOUT     e.g. "10s"
//	GOPHAUTH_AVATAR_BUCKET       storage bucket for profile pictures
//	GOPHAUTH_STORAGE_REGION      signing region of the storage endpoint
//	GOPHAUTH_LOG_LEVEL           debug, info, warn or error
//
// # JSON schema
//
// Intervals use timex.Duration, so values can be strings like "30s" or
// integer nanoseconds. Absent keys keep their previous value:
//
//	{
//	  "base_url": "https://abcdefgh.supabase.co",
//	  "anon_key": "eyJhbGciOi...",
//	  "auto_refresh_tick": "30s",
//	  "log_level": "debug"
//	}
package config
