// Package indicator handles visual state notifications and audio cue playback.
package indicator

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rbright/orb/internal/config"
	"github.com/rbright/orb/internal/hypr"
)

const (
	stickyTimeoutMS  = 300000
	replyTimeoutMS   = 6000
	defaultErrorMS   = 1200
	dispatchDeadline = 400 * time.Millisecond
)

// HyprNotify is the concrete indicator used by the daemon.
// It routes notifications via Hyprland or desktop DBus based on config backend.
type HyprNotify struct {
	cfg      config.IndicatorConfig
	logger   *slog.Logger
	messages messages
	playCue  func(context.Context, cueKind) error

	mu                    sync.Mutex
	desktopNotificationID uint32
	soundMu               sync.Mutex
	cues                  sync.WaitGroup
}

// NewHyprNotify creates an indicator controller from config.
func NewHyprNotify(cfg config.IndicatorConfig, logger *slog.Logger) *HyprNotify {
	h := &HyprNotify{
		cfg:      cfg,
		logger:   logger,
		messages: messagesFromEnv(),
	}
	h.playCue = func(ctx context.Context, kind cueKind) error {
		return emitCue(ctx, kind, h.cfg)
	}
	return h
}

// ShowListening signals recording start and emits the start cue.
func (h *HyprNotify) ShowListening(ctx context.Context) {
	h.cue(cueStart)
	h.show(ctx, hypr.IconInfo, stickyTimeoutMS, "rgb(89b4fa)", h.messages.listening)
}

// ShowTranscribing signals the post-capture transcription state.
func (h *HyprNotify) ShowTranscribing(ctx context.Context) {
	h.show(ctx, hypr.IconInfo, stickyTimeoutMS, "rgb(cba6f7)", h.messages.transcribing)
}

// ShowThinking signals that an utterance is being dispatched.
func (h *HyprNotify) ShowThinking(ctx context.Context) {
	h.show(ctx, hypr.IconHint, stickyTimeoutMS, "rgb(f9e2af)", h.messages.thinking)
}

// ShowReply replaces the status with the acknowledgement text.
func (h *HyprNotify) ShowReply(ctx context.Context, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		h.Hide(ctx)
		return
	}
	h.cue(cueComplete)
	h.show(ctx, hypr.IconOK, replyTimeoutMS, "rgb(a6e3a1)", text)
}

// ShowError displays an error-state indicator message.
func (h *HyprNotify) ShowError(ctx context.Context, text string) {
	if text == "" {
		text = h.messages.errorText
	}
	timeout := h.cfg.ErrorTimeoutMS
	if timeout <= 0 {
		timeout = defaultErrorMS
	}
	h.cue(cueError)
	h.show(ctx, hypr.IconError, timeout, "rgb(f38ba8)", text)
}

// CueStop emits the stop cue.
func (h *HyprNotify) CueStop(context.Context) {
	h.cue(cueStop)
}

// CueCancel emits the cancel cue.
func (h *HyprNotify) CueCancel(context.Context) {
	h.cue(cueCancel)
}

// Hide dismisses the active indicator surface.
func (h *HyprNotify) Hide(ctx context.Context) {
	if !h.cfg.Enable {
		return
	}
	h.run(ctx, h.dismiss)
}

// Wait blocks until queued cues finish playing.
func (h *HyprNotify) Wait() {
	h.cues.Wait()
}

func (h *HyprNotify) show(ctx context.Context, icon int, timeoutMS int, color string, text string) {
	if !h.cfg.Enable {
		return
	}
	h.run(ctx, func(ctx context.Context) error {
		return h.notify(ctx, icon, timeoutMS, color, text)
	})
}

// notify dispatches indicator output through the configured backend.
func (h *HyprNotify) notify(ctx context.Context, icon int, timeoutMS int, color string, text string) error {
	if h.desktop() {
		return h.notifyDesktop(ctx, urgencyFor(icon), timeoutMS, text)
	}
	return hypr.Notify(ctx, icon, timeoutMS, color, text)
}

// dismiss removes indicator output from the configured backend.
func (h *HyprNotify) dismiss(ctx context.Context) error {
	if h.desktop() {
		return h.dismissDesktop(ctx)
	}
	return hypr.DismissNotify(ctx)
}

// urgencyFor maps hyprctl icons onto notification urgency.
func urgencyFor(icon int) byte {
	switch icon {
	case hypr.IconError:
		return urgencyCritical
	case hypr.IconOK:
		return urgencyNormal
	default:
		return urgencyLow
	}
}

func (h *HyprNotify) desktop() bool {
	return strings.EqualFold(strings.TrimSpace(h.cfg.Backend), "desktop")
}

// notifyDesktop sends a replaceable desktop notification and stores its ID.
func (h *HyprNotify) notifyDesktop(ctx context.Context, urgency byte, timeoutMS int, text string) error {
	h.mu.Lock()
	replaceID := h.desktopNotificationID
	h.mu.Unlock()

	appName := strings.TrimSpace(h.cfg.DesktopAppName)
	if appName == "" {
		appName = "orb"
	}

	id, err := desktopNotify(ctx, desktopNotification{
		AppName:   appName,
		ReplaceID: replaceID,
		Summary:   text,
		Urgency:   urgency,
		TimeoutMS: timeoutMS,
	})
	if err != nil {
		return err
	}

	h.mu.Lock()
	h.desktopNotificationID = id
	h.mu.Unlock()
	return nil
}

// dismissDesktop closes the current desktop notification ID when present.
func (h *HyprNotify) dismissDesktop(ctx context.Context) error {
	h.mu.Lock()
	id := h.desktopNotificationID
	h.desktopNotificationID = 0
	h.mu.Unlock()

	if id == 0 {
		return nil
	}
	return desktopDismiss(ctx, id)
}

// run executes an indicator operation with a bounded timeout.
func (h *HyprNotify) run(ctx context.Context, fn func(context.Context) error) {
	runCtx, cancel := context.WithTimeout(ctx, dispatchDeadline)
	defer cancel()
	if err := fn(runCtx); err != nil {
		h.log("indicator dispatch failed", err)
	}
}

// cue serializes cue playback and emits audio asynchronously.
func (h *HyprNotify) cue(kind cueKind) {
	if !h.cfg.SoundEnable {
		return
	}
	h.cues.Add(1)
	go func() {
		defer h.cues.Done()
		h.soundMu.Lock()
		defer h.soundMu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), cueDeadline)
		defer cancel()
		if err := h.playCue(ctx, kind); err != nil {
			h.log("indicator audio cue failed", err)
		}
	}()
}

// log emits debug-only indicator failures to the runtime logger.
func (h *HyprNotify) log(message string, err error) {
	if h.logger == nil || err == nil {
		return
	}
	h.logger.Debug(message, "error", err.Error())
}
