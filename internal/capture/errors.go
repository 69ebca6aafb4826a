package capture

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrCaptureUnsupported indicates the platform exposes no microphone capability.
	ErrCaptureUnsupported = errors.New("microphone capture is not supported on this platform")
	// ErrNoAudioTrack indicates the opened stream carries no audio track.
	ErrNoAudioTrack = errors.New("no audio track available from microphone")
	// ErrCaptureUnavailable indicates every native encoder and the manual graph failed.
	ErrCaptureUnavailable = errors.New("audio capture unavailable")
	// ErrNoAudioCaptured indicates a recording finished without any audio bytes.
	ErrNoAudioCaptured = errors.New("no audio captured")
	// ErrGraphUnsupported is returned by platforms without a raw processing graph.
	ErrGraphUnsupported = errors.New("raw audio processing graph is not supported")
)

// Attempt records one failed native encoder start.
type Attempt struct {
	Encoder string
	Err     error
}

func (a Attempt) String() string {
	msg := "unknown error"
	if a.Err != nil && a.Err.Error() != "" {
		msg = a.Err.Error()
	}
	return a.Encoder + ": " + msg
}

// UnavailableError carries the diagnostics gathered while every capture path failed.
type UnavailableError struct {
	Supported []string
	Attempts  []Attempt
	ManualErr error
	Platform  string
}

func (e *UnavailableError) Error() string {
	supported := strings.Join(e.Supported, ", ")
	if supported == "" {
		supported = "none"
	}

	attempts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		attempts = append(attempts, a.String())
	}
	attemptText := strings.Join(attempts, " | ")
	if attemptText == "" {
		attemptText = "none"
	}

	platform := e.Platform
	if platform == "" {
		platform = "unknown"
	}

	msg := fmt.Sprintf("recorder start failed (supported: %s, attempts: %s, platform: %s)", supported, attemptText, platform)
	if e.ManualErr != nil {
		msg += "; manual capture: " + e.ManualErr.Error()
	}
	return msg
}

// Is lets callers match with errors.Is(err, ErrCaptureUnavailable).
func (e *UnavailableError) Is(target error) bool {
	return target == ErrCaptureUnavailable
}

func (e *UnavailableError) Unwrap() error {
	return e.ManualErr
}

// IsSoft reports errors that should surface as a status message rather than a failure.
func IsSoft(err error) bool {
	return errors.Is(err, ErrNoAudioCaptured)
}
