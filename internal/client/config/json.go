package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/gophauth/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Intervals
// use timex.Duration so they may be written as "30s" or as nanoseconds.
type JsonConfig struct {
	BaseURL          string         `json:"base_url"`
	AnonKey          string         `json:"anon_key"`
	ResetRedirectURL string         `json:"reset_redirect_url"`
	DatabaseDSN      string         `json:"database_dsn"`
	StorageSecret    string         `json:"storage_secret"`
	AutoRefreshTick  timex.Duration `json:"auto_refresh_tick"`
	RefreshThreshold timex.Duration `json:"refresh_threshold"`
	RequestTimeout   timex.Duration `json:"request_timeout"`
	AvatarBucket     string         `json:"avatar_bucket"`
	StorageRegion    string         `json:"storage_region"`
	LogLevel         string         `json:"log_level"`
}

// parseJson overlays cfg with the fields present in the JSON file at path.
// An empty path means no file was requested.
func parseJson(cfg *Config, path string) error {
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	setString(&cfg.BaseURL, jc.BaseURL)
	setString(&cfg.AnonKey, jc.AnonKey)
	setString(&cfg.ResetRedirectURL, jc.ResetRedirectURL)
	setString(&cfg.DatabaseDSN, jc.DatabaseDSN)
	setString(&cfg.StorageSecret, jc.StorageSecret)
	setString(&cfg.AvatarBucket, jc.AvatarBucket)
	setString(&cfg.StorageRegion, jc.StorageRegion)
	setString(&cfg.LogLevel, jc.LogLevel)
	if jc.AutoRefreshTick.Duration != 0 {
		cfg.AutoRefreshTick = jc.AutoRefreshTick.Duration
	}
	if jc.RefreshThreshold.Duration != 0 {
		cfg.RefreshThreshold = jc.RefreshThreshold.Duration
	}
	if jc.RequestTimeout.Duration != 0 {
		cfg.RequestTimeout = jc.RequestTimeout.Duration
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
