package config

// Default returns the canonical runtime configuration used when no file is present.
func Default() Config {
	return Config{
		Backend: BackendConfig{
			URL:       "http://127.0.0.1:8000/api/",
			TimeoutMS: 30000,
		},
		Audio: AudioConfig{
			Input:      "default",
			Fallback:   "default",
			SampleRate: 16000,
			BlockSize:  4096,
		},
		Speech: SpeechConfig{
			Enable:           true,
			RevealIntervalMS: 200,
		},
		Refresh: RefreshConfig{IntervalMS: 5000},
		Indicator: IndicatorConfig{
			Enable:         true,
			Backend:        "hypr",
			DesktopAppName: "orb",
			SoundEnable:    true,
			ErrorTimeoutMS: 1600,
		},
		Log:   LogConfig{Level: "info"},
		Debug: DebugConfig{},
	}
}
