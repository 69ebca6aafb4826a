// Package session runs the daemon's voice lifecycle and serves IPC commands.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rbright/orb/internal/backend"
	"github.com/rbright/orb/internal/capture"
	"github.com/rbright/orb/internal/feed"
	"github.com/rbright/orb/internal/fsm"
	"github.com/rbright/orb/internal/intent"
	"github.com/rbright/orb/internal/ipc"
	"github.com/rbright/orb/internal/pipeline"
)

type action int

const (
	actionStart action = iota + 1
	actionStop
	actionCancel
)

// Result is the outcome of one voice utterance.
type Result struct {
	State         fsm.State
	Transcript    string
	Intent        intent.Kind
	Reply         string
	Cancelled     bool
	Skipped       bool
	Err           error
	BytesCaptured int
	MIMEType      string
	StartedAt     time.Time
	FinishedAt    time.Time
}

// Recorder is the capture surface the session drives.
type Recorder interface {
	Start(context.Context) (bool, error)
	Stop(context.Context) (capture.Blob, error)
	Cancel()
}

// Pipeline turns a recording into a dispatched utterance.
type Pipeline interface {
	Transcribe(context.Context, capture.Blob) (string, error)
	Submit(context.Context, string, pipeline.Source) (pipeline.Reply, error)
	DoneCurrentTask(context.Context) (backend.Task, error)
	Hush()
}

// Indicator is the session-facing subset of indicator behavior.
type Indicator interface {
	ShowListening(context.Context)
	ShowTranscribing(context.Context)
	ShowThinking(context.Context)
	ShowError(context.Context, string)
	CueStop(context.Context)
	CueCancel(context.Context)
	Hide(context.Context)
}

// Publisher receives lifecycle frames for the feed.
type Publisher interface {
	Publish(feed.Frame)
}

// Metrics receives capture counters.
type Metrics interface {
	RecordCapture(kind string, bytes int)
	RecordCaptureFailure(reason string)
}

// noopIndicator preserves session flow when no indicator is wired.
type noopIndicator struct{}

func (noopIndicator) ShowListening(context.Context)     {}
func (noopIndicator) ShowTranscribing(context.Context)  {}
func (noopIndicator) ShowThinking(context.Context)      {}
func (noopIndicator) ShowError(context.Context, string) {}
func (noopIndicator) CueStop(context.Context)           {}
func (noopIndicator) CueCancel(context.Context)         {}
func (noopIndicator) Hide(context.Context)              {}

type noopPublisher struct{}

func (noopPublisher) Publish(feed.Frame) {}

type noopMetrics struct{}

func (noopMetrics) RecordCapture(string, int)   {}
func (noopMetrics) RecordCaptureFailure(string) {}

// Option configures a Controller.
type Option func(*Controller)

// WithIndicator wires the desktop indicator.
func WithIndicator(indicator Indicator) Option {
	return func(c *Controller) {
		if indicator != nil {
			c.indicator = indicator
		}
	}
}

// WithPublisher wires the feed.
func WithPublisher(publisher Publisher) Option {
	return func(c *Controller) {
		if publisher != nil {
			c.publisher = publisher
		}
	}
}

// WithMetrics wires capture counters.
func WithMetrics(metrics Metrics) Option {
	return func(c *Controller) {
		if metrics != nil {
			c.metrics = metrics
		}
	}
}

// WithLevel reports the speech envelope level in status responses.
func WithLevel(level func() float64) Option {
	return func(c *Controller) {
		c.level = level
	}
}

// WithResultHook observes every finished utterance.
func WithResultHook(hook func(Result)) Option {
	return func(c *Controller) {
		c.onResult = hook
	}
}

// Controller owns the voice lifecycle state machine. Voice actions run on the
// Run goroutine; typed submissions run on the caller's goroutine.
type Controller struct {
	logger    *slog.Logger
	recorder  Recorder
	pipeline  Pipeline
	indicator Indicator
	publisher Publisher
	metrics   Metrics
	level     func() float64
	onResult  func(Result)

	mu    sync.RWMutex
	state fsm.State

	actions chan action
}

// NewController constructs a session controller with safe default fallbacks.
func NewController(logger *slog.Logger, recorder Recorder, pipe Pipeline, opts ...Option) *Controller {
	c := &Controller{
		logger:    logger,
		recorder:  recorder,
		pipeline:  pipe,
		indicator: noopIndicator{},
		publisher: noopPublisher{},
		metrics:   noopMetrics{},
		state:     fsm.StateIdle,
		actions:   make(chan action, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current FSM state snapshot.
func (c *Controller) State() fsm.State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// transition applies one FSM event and publishes the new state.
func (c *Controller) transition(event fsm.Event) error {
	c.mu.Lock()
	next, err := fsm.Transition(c.state, event)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	c.state = next
	c.mu.Unlock()

	c.publisher.Publish(feed.StateFrame(string(next)))
	return nil
}

// Run processes voice actions until ctx is cancelled. An open recording is
// discarded on shutdown.
func (c *Controller) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			if c.State() == fsm.StateRecording {
				c.recorder.Cancel()
				_ = c.transition(fsm.EventCancel)
			}
			return nil
		case a := <-c.actions:
			result, ok := c.apply(ctx, a)
			if ok && c.onResult != nil {
				c.onResult(result)
			}
		}
	}
}

// apply runs one action; ok is false when the action produced no utterance result.
func (c *Controller) apply(ctx context.Context, a action) (Result, bool) {
	switch a {
	case actionStart:
		c.start(ctx)
		return Result{}, false
	case actionStop:
		return c.stop(ctx), true
	case actionCancel:
		c.recorder.Cancel()
		c.indicator.CueCancel(context.Background())
		_ = c.transition(fsm.EventCancel)
		c.hide()
		c.logInfo("recording cancelled")
		return Result{State: c.State(), Cancelled: true, FinishedAt: time.Now()}, true
	default:
		c.toErrorAndReset()
		return Result{State: c.State(), Err: fmt.Errorf("unknown action %d", a), FinishedAt: time.Now()}, true
	}
}

func (c *Controller) start(ctx context.Context) {
	if err := c.transition(fsm.EventStart); err != nil {
		c.logWarn("start rejected", "error", err.Error())
		return
	}
	c.indicator.ShowListening(ctx)

	started, err := c.recorder.Start(ctx)
	if err != nil {
		c.metrics.RecordCaptureFailure(captureFailureReason(err))
		c.publisher.Publish(feed.ErrorFrame(err.Error()))
		c.indicator.ShowError(context.Background(), "Unable to start recording")
		c.toErrorAndReset()
		c.logError("capture start failed", "error", err.Error())
		return
	}
	if !started {
		c.logDebug("capture already active")
	}
}

func (c *Controller) stop(ctx context.Context) Result {
	result := Result{StartedAt: time.Now()}
	finish := func(err error) Result {
		result.Err = err
		result.State = c.State()
		result.FinishedAt = time.Now()
		return result
	}

	if err := c.transition(fsm.EventStop); err != nil {
		c.toErrorAndReset()
		return finish(err)
	}
	c.indicator.CueStop(context.Background())
	c.indicator.ShowTranscribing(ctx)

	blob, err := c.recorder.Stop(ctx)
	if err != nil {
		if capture.IsSoft(err) {
			_ = c.transition(fsm.EventEmpty)
			c.hide()
			c.logInfo("recording finished without audio")
			return finish(err)
		}
		c.metrics.RecordCaptureFailure(captureFailureReason(err))
		c.indicator.ShowError(context.Background(), "Recording failed")
		c.toErrorAndReset()
		return finish(err)
	}
	result.BytesCaptured = blob.Size()
	result.MIMEType = blob.MIMEType
	c.metrics.RecordCapture(blob.MIMEType, blob.Size())

	text, err := c.pipeline.Transcribe(ctx, blob)
	if err != nil {
		if errors.Is(err, pipeline.ErrEmptyTranscript) {
			_ = c.transition(fsm.EventEmpty)
			c.indicator.ShowError(context.Background(), "No speech detected")
			return finish(err)
		}
		c.indicator.ShowError(context.Background(), "Speech recognition failed")
		c.toErrorAndReset()
		return finish(err)
	}
	result.Transcript = text

	if err := c.transition(fsm.EventTranscribed); err != nil {
		c.toErrorAndReset()
		return finish(err)
	}
	c.indicator.ShowThinking(ctx)

	reply, err := c.pipeline.Submit(ctx, text, pipeline.SourceVoice)
	switch {
	case errors.Is(err, pipeline.ErrSubmissionInFlight):
		result.Skipped = true
		_ = c.transition(fsm.EventDispatched)
		c.hide()
		return finish(nil)
	case err != nil:
		c.toErrorAndReset()
		return finish(err)
	}
	result.Intent = reply.Intent
	result.Reply = reply.Text
	_ = c.transition(fsm.EventDispatched)
	return finish(nil)
}

// Handle serves IPC commands.
func (c *Controller) Handle(ctx context.Context, req ipc.Request) ipc.Response {
	switch req.Command {
	case "status":
		return c.status()
	case "toggle":
		return c.requestToggle()
	case "stop":
		return c.requestStop("stop")
	case "cancel":
		return c.requestCancel()
	case "say":
		return c.say(ctx, req.Text)
	case "done-task":
		return c.doneTask(ctx)
	default:
		return ipc.Response{OK: false, State: string(c.State()), Error: fmt.Sprintf("unknown command: %s", req.Command)}
	}
}

func (c *Controller) status() ipc.Response {
	resp := ipc.Response{OK: true, State: string(c.State()), Message: "status"}
	if c.level != nil {
		resp.Level = c.level()
	}
	return resp
}

// requestToggle starts a recording when idle and stops it when recording.
func (c *Controller) requestToggle() ipc.Response {
	state := c.State()
	switch state {
	case fsm.StateIdle, fsm.StateError:
		return c.enqueue(actionStart, state, "start")
	case fsm.StateRecording:
		return c.enqueue(actionStop, state, "stop")
	default:
		return ipc.Response{OK: false, State: string(state), Error: fmt.Sprintf("busy: %s", state)}
	}
}

// requestStop enqueues a stop action when state permits it.
func (c *Controller) requestStop(source string) ipc.Response {
	state := c.State()
	if state == fsm.StateTranscribing || state == fsm.StateDispatching {
		return ipc.Response{OK: false, State: string(state), Error: "already transcribing"}
	}
	if state != fsm.StateRecording {
		return ipc.Response{OK: false, State: string(state), Error: fmt.Sprintf("cannot %s from state %s", source, state)}
	}
	return c.enqueue(actionStop, state, "stop")
}

// requestCancel discards a recording, or hushes speech when nothing is recording.
func (c *Controller) requestCancel() ipc.Response {
	state := c.State()
	switch state {
	case fsm.StateRecording:
		return c.enqueue(actionCancel, state, "cancel")
	case fsm.StateTranscribing, fsm.StateDispatching:
		return ipc.Response{OK: false, State: string(state), Error: "cannot cancel while transcribing"}
	default:
		if c.pipeline != nil {
			c.pipeline.Hush()
		}
		return ipc.Response{OK: true, State: string(state), Message: "speech stopped"}
	}
}

func (c *Controller) enqueue(a action, state fsm.State, name string) ipc.Response {
	select {
	case c.actions <- a:
		return ipc.Response{OK: true, State: string(state), Message: name + " requested"}
	default:
		return ipc.Response{OK: true, State: string(state), Message: "action already requested"}
	}
}

// say submits typed text on the caller's goroutine.
func (c *Controller) say(ctx context.Context, text string) ipc.Response {
	text = strings.TrimSpace(text)
	if text == "" {
		return ipc.Response{OK: false, State: string(c.State()), Error: "say requires text"}
	}
	if c.pipeline == nil {
		return ipc.Response{OK: false, State: string(c.State()), Error: "pipeline unavailable"}
	}

	reply, err := c.pipeline.Submit(ctx, text, pipeline.SourceTyped)
	if err != nil {
		return ipc.Response{OK: false, State: string(c.State()), Error: err.Error()}
	}
	return ipc.Response{OK: true, State: string(c.State()), Message: reply.Text}
}

func (c *Controller) doneTask(ctx context.Context) ipc.Response {
	if c.pipeline == nil {
		return ipc.Response{OK: false, State: string(c.State()), Error: "pipeline unavailable"}
	}
	task, err := c.pipeline.DoneCurrentTask(ctx)
	if err != nil {
		return ipc.Response{OK: false, State: string(c.State()), Error: err.Error()}
	}
	return ipc.Response{OK: true, State: string(c.State()), Message: fmt.Sprintf("Done: %s", task.Title)}
}

// toErrorAndReset transitions to error and back to idle best-effort.
func (c *Controller) toErrorAndReset() {
	_ = c.transition(fsm.EventFail)
	_ = c.transition(fsm.EventReset)
}

func (c *Controller) hide() {
	ctx, cancel := context.WithTimeout(context.Background(), 800*time.Millisecond)
	defer cancel()
	c.indicator.Hide(ctx)
}

func captureFailureReason(err error) string {
	switch {
	case errors.Is(err, capture.ErrCaptureUnsupported):
		return "unsupported"
	case errors.Is(err, capture.ErrNoAudioTrack):
		return "no_track"
	case errors.Is(err, capture.ErrCaptureUnavailable):
		return "unavailable"
	default:
		return "other"
	}
}

func (c *Controller) logDebug(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}

func (c *Controller) logInfo(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Info(msg, args...)
	}
}

func (c *Controller) logWarn(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}
}

func (c *Controller) logError(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Error(msg, args...)
	}
}
