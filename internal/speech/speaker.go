// Package speech speaks replies aloud and meters the output into the speech envelope.
package speech

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/rbright/orb/internal/audio"
	"github.com/rbright/orb/internal/backend"
	"github.com/rbright/orb/internal/envelope"
)

// Synthesizer fetches encoded speech for text.
type Synthesizer interface {
	Speak(ctx context.Context, text string) (backend.Audio, error)
}

// Player plays a decoded clip, handing each output buffer to tap.
type Player interface {
	Play(ctx context.Context, clip audio.Clip, tap func([]int16)) error
}

// Decoder turns encoded speech into a clip.
type Decoder func(data []byte, contentType string) (audio.Clip, error)

// Speaker plays one reply at a time. A new reply interrupts the current one.
type Speaker struct {
	synth   Synthesizer
	player  Player
	tracker *envelope.Tracker
	decode  Decoder
	logger  *slog.Logger

	tap *envelope.Tap

	mu      sync.Mutex
	current *utterance
}

type utterance struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Option configures a Speaker.
type Option func(*Speaker)

// WithDecoder replaces audio.Decode.
func WithDecoder(d Decoder) Option {
	return func(s *Speaker) {
		if d != nil {
			s.decode = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Speaker) {
		s.logger = logger
	}
}

// New builds a speaker. tracker may be nil when no envelope is wanted.
func New(synth Synthesizer, player Player, tracker *envelope.Tracker, opts ...Option) *Speaker {
	s := &Speaker{
		synth:   synth,
		player:  player,
		tracker: tracker,
		decode:  audio.Decode,
		tap:     envelope.NewTap(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Say synthesizes and plays text, returning once playback ends.
//
// The envelope follows the output while playing and relaxes to zero afterwards.
func (s *Speaker) Say(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	ctx, u := s.begin(ctx)
	defer s.end(u)

	speech, err := s.synth.Speak(ctx, text)
	if err != nil {
		return fmt.Errorf("synthesize speech: %w", err)
	}
	clip, err := s.decode(speech.Data, speech.ContentType)
	if err != nil {
		return fmt.Errorf("decode speech: %w", err)
	}

	s.tap.Reset()
	if s.tracker != nil {
		s.tracker.StartPlayback(s.tap)
	}
	err = s.player.Play(ctx, clip, s.tap.WriteInt16)
	if s.tracker != nil {
		s.tracker.StartRelax()
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("play speech: %w", err)
	}
	s.logDebug("speech played", "chars", len(text), "seconds", clip.Duration())
	return nil
}

// Interrupt cancels the current reply and waits for it to unwind.
func (s *Speaker) Interrupt() {
	s.mu.Lock()
	u := s.current
	s.mu.Unlock()
	if u == nil {
		return
	}
	u.cancel()
	<-u.done
}

// Close interrupts playback and stops the envelope.
func (s *Speaker) Close() {
	s.Interrupt()
	if s.tracker != nil {
		s.tracker.Stop()
	}
}

func (s *Speaker) begin(parent context.Context) (context.Context, *utterance) {
	ctx, cancel := context.WithCancel(parent)
	u := &utterance{cancel: cancel, done: make(chan struct{})}
	for {
		s.mu.Lock()
		prev := s.current
		if prev == nil {
			s.current = u
			s.mu.Unlock()
			return ctx, u
		}
		s.mu.Unlock()
		prev.cancel()
		<-prev.done
	}
}

func (s *Speaker) end(u *utterance) {
	u.cancel()
	s.mu.Lock()
	if s.current == u {
		s.current = nil
	}
	s.mu.Unlock()
	close(u.done)
}

func (s *Speaker) logDebug(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
