package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Environment overrides. The process environment wins over orb.env.
const (
	EnvBackendURL   = "ORB_BACKEND_URL"
	EnvBackendProxy = "ORB_BACKEND_PROXY"
	EnvFeedListen   = "ORB_FEED_LISTEN"
	EnvLogLevel     = "ORB_LOG_LEVEL"
)

var envKeys = []string{EnvBackendURL, EnvBackendProxy, EnvFeedListen, EnvLogLevel}

// readEnv merges orb.env (when present) under the process environment.
func readEnv(path string) (map[string]string, bool, error) {
	values := map[string]string{}
	exists := false

	file, err := godotenv.Read(path)
	switch {
	case err == nil:
		exists = true
		for _, key := range envKeys {
			if v, ok := file[key]; ok {
				values[key] = v
			}
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, false, fmt.Errorf("read env file %q: %w", path, err)
	}

	for _, key := range envKeys {
		if v, ok := os.LookupEnv(key); ok {
			values[key] = v
		}
	}
	return values, exists, nil
}

// applyEnv overlays ORB_* values onto cfg.
func applyEnv(cfg *Config, values map[string]string) []Warning {
	var warnings []Warning
	if v, ok := values[EnvBackendURL]; ok {
		cfg.Backend.URL = strings.TrimSpace(v)
	}
	if v, ok := values[EnvBackendProxy]; ok {
		cfg.Backend.Proxy = strings.TrimSpace(v)
	}
	if v, ok := values[EnvFeedListen]; ok {
		cfg.Feed.Listen = strings.TrimSpace(v)
	}
	if v, ok := values[EnvLogLevel]; ok {
		cfg.Log.Level = strings.ToLower(strings.TrimSpace(v))
	}
	for _, key := range envKeys {
		if _, ok := values[key]; ok {
			warnings = append(warnings, Warning{Message: fmt.Sprintf("%s overrides config file", key)})
		}
	}
	return warnings
}
