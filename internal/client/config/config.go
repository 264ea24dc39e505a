package config

import (
	"fmt"
	"os"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/flagx"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

// Config holds runtime settings for the GophAuth CLI.
//
// Fields:
//   - BaseURL / AnonKey: project URL and public API key of the hosted backend.
//   - ResetRedirectURL: deep link placed in password recovery mails.
//   - DatabaseDSN: SQLite file holding the persisted session.
//   - StorageSecret: optional secret; when set, the stored session is encrypted.
//   - AutoRefreshTick / RefreshThreshold: auto-refresh cadence and the
//     remaining lifetime below which an access token is renewed.
//   - RequestTimeout: per-request HTTP timeout.
//   - AvatarBucket / StorageRegion: object storage settings for avatars.
//   - LogLevel: debug, info, warn or error.
type Config struct {
	BaseURL          string        `env:"GOPHAUTH_BASE_URL"`
	AnonKey          string        `env:"GOPHAUTH_ANON_KEY"`
	ResetRedirectURL string        `env:"GOPHAUTH_RESET_REDIRECT_URL"`
	DatabaseDSN      string        `env:"GOPHAUTH_DATABASE_DSN"`
	StorageSecret    string        `env:"GOPHAUTH_STORAGE_SECRET"`
	AutoRefreshTick  time.Duration `env:"GOPHAUTH_AUTO_REFRESH_TICK"`
	RefreshThreshold time.Duration `env:"GOPHAUTH_REFRESH_THRESHOLD"`
	RequestTimeout   time.Duration `env:"GOPHAUTH_REQUEST_TIMEOUT"`
	AvatarBucket     string        `env:"GOPHAUTH_AVATAR_BUCKET"`
	StorageRegion    string        `env:"GOPHAUTH_STORAGE_REGION"`
	LogLevel         string        `env:"GOPHAUTH_LOG_LEVEL"`
}

// LoadDefaults populates c with values suitable for a local backend.
func (c *Config) LoadDefaults() {
	c.BaseURL = "http://127.0.0.1:54321"
	c.ResetRedirectURL = "gophauth://reset-password"
	c.DatabaseDSN = "gophauth.db"
	c.AutoRefreshTick = 30 * time.Second
	c.RefreshThreshold = 90 * time.Second
	c.RequestTimeout = 10 * time.Second
	c.AvatarBucket = "avatars"
	c.StorageRegion = "us-east-1"
	c.LogLevel = "info"
}

// Validate reports the first group of invalid fields.
func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.BaseURL, validation.Required, is.URL),
		validation.Field(&c.AnonKey, validation.Required),
		validation.Field(&c.ResetRedirectURL, validation.Required),
		validation.Field(&c.DatabaseDSN, validation.Required),
		validation.Field(&c.AutoRefreshTick, validation.Required, validation.Min(time.Second)),
		validation.Field(&c.RefreshThreshold, validation.Required),
		validation.Field(&c.RequestTimeout, validation.Required),
		validation.Field(&c.AvatarBucket, validation.Required),
		validation.Field(&c.LogLevel, validation.In("debug", "info", "warn", "error")),
	)
}

// LoadConfig constructs a Config, applies defaults, then overlays a dotenv
// file, the environment, an optional JSON file and command-line flags.
// Later sources take precedence over earlier ones.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if err := parseEnv(cfg, flagx.EnvFileFlag(), os.Environ()); err != nil {
		return nil, err
	}
	if err := parseJson(cfg, flagx.ConfigFileFlag()); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, os.Args[1:]); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
