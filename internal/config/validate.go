package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

var logLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// Validate enforces config invariants and returns non-fatal warnings.
func Validate(cfg Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	rawURL := strings.TrimSpace(cfg.Backend.URL)
	if rawURL == "" {
		return nil, fmt.Errorf("backend.url must not be empty")
	}
	parsed, err := url.Parse(rawURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, fmt.Errorf("backend.url must be an absolute http(s) URL")
	}
	if cfg.Backend.TimeoutMS <= 0 {
		return nil, fmt.Errorf("backend.timeout_ms must be > 0")
	}
	if proxy := strings.TrimSpace(cfg.Backend.Proxy); proxy != "" {
		if _, _, err := net.SplitHostPort(proxy); err != nil {
			return nil, fmt.Errorf("backend.proxy must be host:port: %w", err)
		}
	}

	if cfg.Audio.SampleRate <= 0 {
		return nil, fmt.Errorf("audio.sample_rate must be > 0")
	}
	if cfg.Audio.BlockSize <= 0 {
		return nil, fmt.Errorf("audio.block_size must be > 0")
	}
	if cfg.Audio.BlockSize&(cfg.Audio.BlockSize-1) != 0 {
		warnings = append(warnings, Warning{Message: fmt.Sprintf("audio.block_size %d is not a power of two", cfg.Audio.BlockSize)})
	}

	if cfg.Speech.RevealIntervalMS < 0 {
		return nil, fmt.Errorf("speech.reveal_interval_ms must be >= 0")
	}
	if cfg.Refresh.IntervalMS <= 0 {
		return nil, fmt.Errorf("refresh.interval_ms must be > 0")
	}
	if cfg.Refresh.IntervalMS < 1000 {
		warnings = append(warnings, Warning{Message: "refresh.interval_ms below 1000 polls the backend aggressively"})
	}

	backend := strings.ToLower(strings.TrimSpace(cfg.Indicator.Backend))
	if backend == "" {
		return nil, fmt.Errorf("indicator.backend must not be empty")
	}
	if backend != "hypr" && backend != "desktop" {
		return nil, fmt.Errorf("indicator.backend must be one of: hypr, desktop")
	}
	if backend == "desktop" && strings.TrimSpace(cfg.Indicator.DesktopAppName) == "" {
		return nil, fmt.Errorf("indicator.desktop_app_name must not be empty when indicator.backend=desktop")
	}
	if cfg.Indicator.ErrorTimeoutMS < 0 {
		return nil, fmt.Errorf("indicator.error_timeout_ms must be >= 0")
	}
	if cfg.Indicator.SoundPlayer.Raw != "" && len(cfg.Indicator.SoundPlayer.Argv) == 0 {
		return nil, fmt.Errorf("indicator.sound_player_cmd is configured but empty")
	}

	if listen := strings.TrimSpace(cfg.Feed.Listen); listen != "" {
		if _, _, err := net.SplitHostPort(listen); err != nil {
			return nil, fmt.Errorf("feed.listen must be host:port: %w", err)
		}
	}

	if !logLevels[strings.ToLower(strings.TrimSpace(cfg.Log.Level))] {
		return nil, fmt.Errorf("log.level must be one of: debug, info, warn, error")
	}

	return warnings, nil
}
