// Package pipeline runs one utterance end to end: transcribe, dispatch,
// reveal, speak and refresh. It owns the conversational state and the
// dashboard snapshot.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rbright/orb/internal/backend"
	"github.com/rbright/orb/internal/capture"
	"github.com/rbright/orb/internal/feed"
	"github.com/rbright/orb/internal/intent"
	"github.com/rbright/orb/internal/transcript"
)

var (
	// ErrTranscriptionFailed wraps speech-to-text transport and HTTP failures.
	ErrTranscriptionFailed = errors.New("transcription failed")
	// ErrEmptyTranscript indicates the recording contained no recognizable speech.
	ErrEmptyTranscript = errors.New("no speech recognized; check microphone input or mute state")
	// ErrSubmissionInFlight rejects a submission while another one is running.
	ErrSubmissionInFlight = errors.New("a submission is already in flight")
	// ErrNoCurrentTask is returned when there is no task to act on.
	ErrNoCurrentTask = errors.New("no current task")
)

// Source tags where an utterance came from.
type Source string

const (
	SourceTyped Source = "typed"
	SourceVoice Source = "voice"
)

// Backend is everything the pipeline calls on the home backend.
type Backend interface {
	intent.Backend
	Transcribe(ctx context.Context, audio []byte, mimeType string) (backend.Transcription, error)
	Dashboard(ctx context.Context) (backend.Dashboard, error)
	Workday(ctx context.Context, date string) (backend.Workday, error)
	ActiveReminders(ctx context.Context, date string) (backend.Reminders, error)
	Events(ctx context.Context, date string) ([]backend.Event, error)
	Tasks(ctx context.Context) ([]backend.Task, error)
	DoneTask(ctx context.Context, id int64) (backend.OKResult, error)
	DoneReminder(ctx context.Context, activeID int64, reminderKey string) (backend.OKResult, error)
}

// Speaker speaks a reply aloud.
type Speaker interface {
	Say(ctx context.Context, text string) error
	Interrupt()
}

// Publisher receives feed frames.
type Publisher interface {
	Publish(feed.Frame)
}

// Indicator surfaces replies and failures on the desktop.
type Indicator interface {
	ShowReply(ctx context.Context, text string)
	ShowError(ctx context.Context, message string)
}

// Recorder receives pipeline metrics.
type Recorder interface {
	RecordIntent(kind string)
	RecordDispatchFailure()
	RecordSkipped()
	RecordTranscription(outcome string)
	RecordRefreshFailure()
}

type noopPublisher struct{}

func (noopPublisher) Publish(feed.Frame) {}

type noopIndicator struct{}

func (noopIndicator) ShowReply(context.Context, string) {}
func (noopIndicator) ShowError(context.Context, string) {}

type noopRecorder struct{}

func (noopRecorder) RecordIntent(string)        {}
func (noopRecorder) RecordDispatchFailure()     {}
func (noopRecorder) RecordSkipped()             {}
func (noopRecorder) RecordTranscription(string) {}
func (noopRecorder) RecordRefreshFailure()      {}

// Options tunes pipeline behavior.
type Options struct {
	// RevealInterval is the per-word typewriter delay; zero reveals at once.
	RevealInterval time.Duration
	// DumpDir receives every transcribed recording when non-empty.
	DumpDir  string
	Location *time.Location
	Now      func() time.Time
}

// Deps are the pipeline collaborators. Only Backend and Dispatcher are required.
type Deps struct {
	Backend    Backend
	Dispatcher *intent.Dispatcher
	Speaker    Speaker
	Publisher  Publisher
	Indicator  Indicator
	Metrics    Recorder
	Logger     *slog.Logger
}

// Reply is the result of one submission.
type Reply struct {
	Intent intent.Kind
	Text   string
	Spoken bool
	State  intent.State
}

// Pipeline is safe for concurrent use; submissions are serialized by an in-flight guard.
type Pipeline struct {
	backend    Backend
	dispatcher *intent.Dispatcher
	speaker    Speaker
	publisher  Publisher
	indicator  Indicator
	metrics    Recorder
	logger     *slog.Logger
	opts       Options

	reveal *Typewriter

	inflight atomic.Bool

	speechCtx    context.Context
	speechCancel context.CancelFunc
	speaking     sync.WaitGroup

	mu       sync.Mutex
	state    intent.State
	tasks    []backend.Task
	snapshot Snapshot
	day      string
	// dayGen and refreshGen count day rollovers and applied refreshes, so a
	// dispatch can tell what landed while it was in flight.
	dayGen     uint64
	refreshGen uint64
}

// New builds a pipeline.
func New(deps Deps, opts Options) *Pipeline {
	if deps.Dispatcher == nil {
		deps.Dispatcher = intent.New(deps.Backend, intent.WithLogger(deps.Logger))
	}
	if deps.Publisher == nil {
		deps.Publisher = noopPublisher{}
	}
	if deps.Indicator == nil {
		deps.Indicator = noopIndicator{}
	}
	if deps.Metrics == nil {
		deps.Metrics = noopRecorder{}
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	speechCtx, speechCancel := context.WithCancel(context.Background())
	p := &Pipeline{
		backend:      deps.Backend,
		dispatcher:   deps.Dispatcher,
		speaker:      deps.Speaker,
		publisher:    deps.Publisher,
		indicator:    deps.Indicator,
		metrics:      deps.Metrics,
		logger:       deps.Logger,
		opts:         opts,
		speechCtx:    speechCtx,
		speechCancel: speechCancel,
		state:        intent.InitialState(),
	}
	p.reveal = NewTypewriter(opts.RevealInterval, func(text string, done bool) {
		p.publisher.Publish(feed.TextFrame(text, done))
	})
	return p
}

// State returns the conversational state.
func (p *Pipeline) State() intent.State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Busy reports whether a submission is in flight.
func (p *Pipeline) Busy() bool {
	return p.inflight.Load()
}

// Transcribe sends a finished recording to speech-to-text and returns the utterance.
func (p *Pipeline) Transcribe(ctx context.Context, blob capture.Blob) (string, error) {
	p.dump(blob)

	res, err := p.backend.Transcribe(ctx, blob.Data, blob.MIMEType)
	if err != nil {
		p.metrics.RecordTranscription("error")
		err = fmt.Errorf("%w: %w", ErrTranscriptionFailed, err)
		p.publisher.Publish(feed.ErrorFrame(err.Error()))
		return "", err
	}
	text := transcript.Assemble(res)
	if text == "" {
		p.metrics.RecordTranscription("empty")
		return "", ErrEmptyTranscript
	}
	p.metrics.RecordTranscription("ok")
	p.logDebug("transcribed", "chars", len(text), "language", res.Language, "bytes", blob.Size())
	return text, nil
}

// Submit dispatches one utterance. A second submission while one is in flight
// fails with ErrSubmissionInFlight; voice submissions are counted as skipped.
func (p *Pipeline) Submit(ctx context.Context, text string, source Source) (Reply, error) {
	if !p.inflight.CompareAndSwap(false, true) {
		if source == SourceVoice {
			p.metrics.RecordSkipped()
			p.logInfo("voice submission skipped; another submission is in flight")
		}
		return Reply{}, ErrSubmissionInFlight
	}
	defer p.inflight.Store(false)

	p.mu.Lock()
	turn := intent.Turn{Utterance: text, State: p.state, Tasks: append([]backend.Task(nil), p.tasks...)}
	dayGen, refreshGen := p.dayGen, p.refreshGen
	p.mu.Unlock()

	out, err := p.dispatcher.Dispatch(ctx, turn)
	if err != nil {
		if !errors.Is(err, intent.ErrEmptyUtterance) {
			p.metrics.RecordDispatchFailure()
			p.publisher.Publish(feed.ErrorFrame(err.Error()))
			p.indicator.ShowError(ctx, "Request failed")
		}
		return Reply{}, err
	}
	p.metrics.RecordIntent(string(out.Intent))
	p.logInfo("utterance dispatched", "source", string(source), "intent", string(out.Intent), "refresh", out.Refresh)

	p.mu.Lock()
	if p.dayGen != dayGen {
		out.State = out.State.ResetDay()
	}
	if p.refreshGen != refreshGen {
		out.State.Browse.CurrentTaskID = intent.Reconcile(p.tasks, out.State.Browse.CurrentTaskID)
	}
	p.state = out.State
	p.mu.Unlock()

	p.reveal.Reveal(out.Text)
	p.indicator.ShowReply(ctx, out.Text)
	spoken := out.Speak && p.speaker != nil
	if spoken {
		p.speak(out.Text)
	}

	if out.Refresh {
		if _, err := p.Refresh(ctx); err != nil {
			p.logWarn("refresh after dispatch failed", "error", err.Error())
		}
	} else {
		p.publishSnapshot()
	}

	return Reply{Intent: out.Intent, Text: out.Text, Spoken: spoken, State: out.State}, nil
}

// speak plays a reply in the background; a newer reply interrupts it.
func (p *Pipeline) speak(text string) {
	p.speaking.Add(1)
	go func() {
		defer p.speaking.Done()
		if err := p.speaker.Say(p.speechCtx, text); err != nil {
			p.logWarn("speech playback failed", "error", err.Error())
		}
	}()
}

// Hush interrupts any reply being spoken.
func (p *Pipeline) Hush() {
	if p.speaker != nil {
		p.speaker.Interrupt()
	}
}

// Close stops the typewriter and any speech, waiting for playback goroutines.
func (p *Pipeline) Close() {
	p.reveal.Stop()
	p.speechCancel()
	p.Hush()
	p.speaking.Wait()
}

func (p *Pipeline) logDebug(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Debug(msg, args...)
	}
}

func (p *Pipeline) logInfo(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Info(msg, args...)
	}
}

func (p *Pipeline) logWarn(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Warn(msg, args...)
	}
}
