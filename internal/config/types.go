// Package config resolves, parses, validates, and defaults orb configuration.
package config

import "time"

// Config is the fully materialized runtime configuration used by orb.
type Config struct {
	Backend   BackendConfig
	Audio     AudioConfig
	Speech    SpeechConfig
	Refresh   RefreshConfig
	Indicator IndicatorConfig
	Feed      FeedConfig
	Log       LogConfig
	Debug     DebugConfig
}

// BackendConfig points at the dashboard API.
type BackendConfig struct {
	URL       string
	TimeoutMS int
	// Proxy is an optional SOCKS5 host:port.
	Proxy string
}

// Timeout returns the per-request timeout.
func (c BackendConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// AudioConfig controls input-source selection and capture shape.
type AudioConfig struct {
	Input          string
	Fallback       string
	SampleRate     int
	BlockSize      int
	KeepStreamOpen bool
}

// SpeechConfig controls spoken replies and the typewriter reveal.
type SpeechConfig struct {
	Enable           bool
	RevealIntervalMS int
}

// RevealInterval returns the per-word reveal delay.
func (c SpeechConfig) RevealInterval() time.Duration {
	return time.Duration(c.RevealIntervalMS) * time.Millisecond
}

// RefreshConfig controls the background dashboard poll.
type RefreshConfig struct {
	IntervalMS int
}

// Interval returns the poll period.
func (c RefreshConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMS) * time.Millisecond
}

// IndicatorConfig controls visual indicator and audio cue behavior.
type IndicatorConfig struct {
	Enable         bool
	Backend        string
	DesktopAppName string
	SoundEnable    bool
	// SoundPlayer, when set, plays cue WAV files instead of the pulse sink.
	SoundPlayer    CommandConfig
	ErrorTimeoutMS int
}

// CommandConfig stores a raw command string and its parsed argv form.
type CommandConfig struct {
	Raw  string
	Argv []string
}

// FeedConfig controls the optional websocket/metrics listener.
type FeedConfig struct {
	Listen string
}

// LogConfig controls the runtime log level.
type LogConfig struct {
	Level string
}

// DebugConfig controls optional debug artifact output.
type DebugConfig struct {
	EnableAudioDump bool
}

// Warning is a non-fatal parse/validation message.
type Warning struct {
	Line    int
	Message string
}
