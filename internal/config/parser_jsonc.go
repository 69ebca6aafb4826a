package config

import (
	"encoding/json"
	"fmt"
	"strings"
)

type jsoncConfig struct {
	Backend   *jsoncBackend   `json:"backend"`
	Audio     *jsoncAudio     `json:"audio"`
	Speech    *jsoncSpeech    `json:"speech"`
	Refresh   *jsoncRefresh   `json:"refresh"`
	Indicator *jsoncIndicator `json:"indicator"`
	Feed      *jsoncFeed      `json:"feed"`
	Log       *jsoncLog       `json:"log"`
	Debug     *jsoncDebug     `json:"debug"`
}

type jsoncBackend struct {
	URL       *string `json:"url"`
	TimeoutMS *int    `json:"timeout_ms"`
	Proxy     *string `json:"proxy"`
}

type jsoncAudio struct {
	Input          *string `json:"input"`
	Fallback       *string `json:"fallback"`
	SampleRate     *int    `json:"sample_rate"`
	BlockSize      *int    `json:"block_size"`
	KeepStreamOpen *bool   `json:"keep_stream_open"`
}

type jsoncSpeech struct {
	Enable           *bool `json:"enable"`
	RevealIntervalMS *int  `json:"reveal_interval_ms"`
}

type jsoncRefresh struct {
	IntervalMS *int `json:"interval_ms"`
}

type jsoncIndicator struct {
	Enable         *bool   `json:"enable"`
	Backend        *string `json:"backend"`
	DesktopAppName *string `json:"desktop_app_name"`
	SoundEnable    *bool   `json:"sound_enable"`
	SoundPlayerCmd *string `json:"sound_player_cmd"`
	ErrorTimeoutMS *int    `json:"error_timeout_ms"`
}

type jsoncFeed struct {
	Listen *string `json:"listen"`
}

type jsoncLog struct {
	Level *string `json:"level"`
}

type jsoncDebug struct {
	AudioDump *bool `json:"audio_dump"`
}

func parseJSONC(content string, base Config) (Config, []Warning, error) {
	normalized, err := stripJSONC(content)
	if err != nil {
		return Config{}, nil, err
	}

	decoder := json.NewDecoder(strings.NewReader(normalized))
	decoder.DisallowUnknownFields()

	var payload jsoncConfig
	if err := decoder.Decode(&payload); err != nil {
		return Config{}, nil, locateDecodeError(normalized, err)
	}
	if err := expectEOF(decoder); err != nil {
		return Config{}, nil, locateDecodeError(normalized, err)
	}

	cfg := base
	warnings, err := payload.applyTo(&cfg)
	if err != nil {
		return Config{}, nil, err
	}

	validatedWarnings, err := Validate(cfg)
	if err != nil {
		return Config{}, nil, err
	}
	warnings = append(warnings, validatedWarnings...)
	return cfg, warnings, nil
}

func (payload jsoncConfig) applyTo(cfg *Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	if b := payload.Backend; b != nil {
		if b.URL != nil {
			cfg.Backend.URL = strings.TrimSpace(*b.URL)
		}
		if b.TimeoutMS != nil {
			cfg.Backend.TimeoutMS = *b.TimeoutMS
		}
		if b.Proxy != nil {
			cfg.Backend.Proxy = strings.TrimSpace(*b.Proxy)
		}
	}

	if a := payload.Audio; a != nil {
		if a.Input != nil {
			cfg.Audio.Input = *a.Input
		}
		if a.Fallback != nil {
			cfg.Audio.Fallback = *a.Fallback
		}
		if a.SampleRate != nil {
			cfg.Audio.SampleRate = *a.SampleRate
		}
		if a.BlockSize != nil {
			cfg.Audio.BlockSize = *a.BlockSize
		}
		if a.KeepStreamOpen != nil {
			cfg.Audio.KeepStreamOpen = *a.KeepStreamOpen
		}
	}

	if s := payload.Speech; s != nil {
		if s.Enable != nil {
			cfg.Speech.Enable = *s.Enable
		}
		if s.RevealIntervalMS != nil {
			cfg.Speech.RevealIntervalMS = *s.RevealIntervalMS
		}
	}

	if payload.Refresh != nil && payload.Refresh.IntervalMS != nil {
		cfg.Refresh.IntervalMS = *payload.Refresh.IntervalMS
	}

	if ind := payload.Indicator; ind != nil {
		if ind.Enable != nil {
			cfg.Indicator.Enable = *ind.Enable
		}
		if ind.Backend != nil {
			cfg.Indicator.Backend = strings.TrimSpace(*ind.Backend)
		}
		if ind.DesktopAppName != nil {
			cfg.Indicator.DesktopAppName = strings.TrimSpace(*ind.DesktopAppName)
		}
		if ind.SoundEnable != nil {
			cfg.Indicator.SoundEnable = *ind.SoundEnable
		}
		if ind.SoundPlayerCmd != nil {
			raw := *ind.SoundPlayerCmd
			argv, err := parseArgv(raw)
			if err != nil {
				return nil, fmt.Errorf("invalid indicator.sound_player_cmd: %w", err)
			}
			cfg.Indicator.SoundPlayer = CommandConfig{Raw: raw, Argv: argv}
		}
		if ind.ErrorTimeoutMS != nil {
			cfg.Indicator.ErrorTimeoutMS = *ind.ErrorTimeoutMS
		}
	}

	if payload.Feed != nil && payload.Feed.Listen != nil {
		cfg.Feed.Listen = strings.TrimSpace(*payload.Feed.Listen)
	}

	if payload.Log != nil && payload.Log.Level != nil {
		cfg.Log.Level = strings.ToLower(strings.TrimSpace(*payload.Log.Level))
	}

	if payload.Debug != nil && payload.Debug.AudioDump != nil {
		cfg.Debug.EnableAudioDump = *payload.Debug.AudioDump
	}

	return warnings, nil
}
