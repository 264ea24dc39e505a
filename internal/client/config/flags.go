package config

import (
	"flag"
	"io"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-u string     project URL of the backend
//	-k string     public API key
//	-d string     SQLite file for the persisted session
//	-l string     log level
//	-i int        auto-refresh tick in seconds
//	-t duration   per-request timeout
//
// args is filtered with flagx.FilterArgs so flags owned by other loaders
// (-c, -config, -env) do not trip the parser.
func parseFlags(cfg *Config, args []string) error {
	args = flagx.FilterArgs(args, []string{"-u", "-k", "-d", "-l", "-i", "-t"})

	fs := flag.NewFlagSet("gophauth", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.BaseURL, "u", cfg.BaseURL, "project URL of the backend")
	fs.StringVar(&cfg.AnonKey, "k", cfg.AnonKey, "public API key")
	fs.StringVar(&cfg.DatabaseDSN, "d", cfg.DatabaseDSN, "SQLite file for the persisted session")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")
	tick := fs.Int("i", int(cfg.AutoRefreshTick.Seconds()), "auto-refresh tick (in seconds)")
	fs.DurationVar(&cfg.RequestTimeout, "t", cfg.RequestTimeout, "per-request timeout")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg.AutoRefreshTick = time.Duration(*tick) * time.Second
	return nil
}
