package config

import (
	"errors"
	"fmt"
	"os"
)

// Loaded captures resolved config path, parsed values, and non-fatal warnings.
type Loaded struct {
	Path     string
	Config   Config
	Warnings []Warning
	Exists   bool
	// EnvFile is the orb.env path when one was read.
	EnvFile string
}

// Load resolves, reads, parses, and validates the runtime configuration, then
// applies ORB_* environment overrides.
func Load(explicitPath string) (Loaded, error) {
	resolvedPath, err := ResolvePath(explicitPath)
	if err != nil {
		return Loaded{}, err
	}

	loaded := Loaded{Path: resolvedPath, Config: Default()}
	content, err := os.ReadFile(resolvedPath)
	switch {
	case err == nil:
		cfg, warnings, parseErr := Parse(string(content), loaded.Config)
		if parseErr != nil {
			return Loaded{}, fmt.Errorf("parse config %q: %w", resolvedPath, parseErr)
		}
		loaded.Config = cfg
		loaded.Warnings = warnings
		loaded.Exists = true
	case errors.Is(err, os.ErrNotExist):
		loaded.Warnings = []Warning{{
			Message: fmt.Sprintf("config file %q not found; using defaults", resolvedPath),
		}}
	default:
		return Loaded{}, fmt.Errorf("read config %q: %w", resolvedPath, err)
	}

	envPath := envFilePath(resolvedPath)
	values, envExists, err := readEnv(envPath)
	if err != nil {
		return Loaded{}, err
	}
	if envExists {
		loaded.EnvFile = envPath
	}
	if len(values) == 0 {
		return loaded, nil
	}

	loaded.Warnings = append(loaded.Warnings, applyEnv(&loaded.Config, values)...)
	if _, err := Validate(loaded.Config); err != nil {
		return Loaded{}, fmt.Errorf("environment override: %w", err)
	}
	return loaded, nil
}
