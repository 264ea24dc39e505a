package config

import (
	"errors"
	"fmt"
	"io/fs"
	"maps"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const defaultEnvFile = ".env"

// parseEnv overlays cfg with GOPHAUTH_* variables. Values from the dotenv
// file at path (".env" when empty) are read first and the process
// environment wins over them. A missing default dotenv file is not an
// error; a missing explicit one is. Unset variables leave cfg untouched.
func parseEnv(cfg *Config, path string, environ []string) error {
	explicit := path != ""
	if !explicit {
		path = defaultEnvFile
	}

	vars := map[string]string{}
	fileVars, err := godotenv.Read(path)
	switch {
	case err == nil:
		maps.Copy(vars, fileVars)
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return fmt.Errorf("read %s: %w", path, err)
	}
	maps.Copy(vars, env.ToMap(environ))

	if err := env.ParseWithOptions(cfg, env.Options{Environment: vars}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}
