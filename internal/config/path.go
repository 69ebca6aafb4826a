package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

const (
	appDirName     = "orb"
	configFileName = "config.jsonc"
	envFileName    = "orb.env"
)

// ResolvePath picks the config file: an explicit path (with ~/ expanded),
// then $XDG_CONFIG_HOME/orb, then ~/.config/orb.
func ResolvePath(explicit string) (string, error) {
	if explicit = strings.TrimSpace(explicit); explicit != "" {
		return expandHome(explicit), nil
	}

	if xdg := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME")); xdg != "" {
		return filepath.Join(xdg, appDirName, configFileName), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.New("unable to resolve user home for config fallback")
	}
	return filepath.Join(home, ".config", appDirName, configFileName), nil
}

// envFilePath returns orb.env next to the config file.
func envFilePath(configPath string) string {
	return filepath.Join(filepath.Dir(configPath), envFileName)
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
