package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Options tunes a Controller.
type Options struct {
	Candidates []string
	BlockSize  int
	// KeepStreamOpen keeps the device stream between recordings.
	KeepStreamOpen bool
}

// Controller owns the microphone stream and at most one recording session.
type Controller struct {
	platform Platform
	logger   *slog.Logger
	opts     Options

	mu      sync.Mutex
	stream  Stream
	session Session
	// stopping is set while Stop finalizes session outside mu; the slot
	// stays occupied until the stream is released.
	stopping bool
}

// NewController constructs a capture controller over a platform.
func NewController(platform Platform, logger *slog.Logger, opts Options) *Controller {
	if len(opts.Candidates) == 0 {
		opts.Candidates = DefaultCandidates
	}
	if opts.BlockSize <= 0 {
		opts.BlockSize = DefaultBlockSize
	}
	return &Controller{platform: platform, logger: logger, opts: opts}
}

// Active reports whether a recording session is open.
func (c *Controller) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session != nil
}

// Start opens a recording session. Starting while one is active is a no-op and
// reports started=false.
func (c *Controller) Start(ctx context.Context) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session != nil {
		return false, nil
	}
	if c.platform == nil {
		return false, ErrCaptureUnsupported
	}

	if c.stream == nil {
		stream, err := c.platform.OpenStream(ctx)
		if err != nil {
			return false, fmt.Errorf("%w: %v", ErrCaptureUnsupported, err)
		}
		c.stream = stream
	}
	if c.stream.AudioTracks() == 0 {
		return false, ErrNoAudioTrack
	}

	session, err := c.openSession()
	if err != nil {
		if !c.opts.KeepStreamOpen {
			c.releaseStream()
		}
		return false, err
	}
	c.session = session
	c.logInfo("capture started", "kind", session.Kind(), "mime_type", session.MIMEType())
	return true, nil
}

// openSession runs the native candidates in order, then the manual graph.
func (c *Controller) openSession() (Session, error) {
	var attempts []Attempt
	for _, candidate := range c.opts.Candidates {
		if candidate != "" && !c.platform.Supports(candidate) {
			continue
		}
		encoder, err := c.platform.NewEncoder(c.stream, candidate)
		if err != nil {
			attempts = append(attempts, Attempt{Encoder: candidateName(candidate), Err: err})
			continue
		}
		if err := encoder.Start(); err != nil {
			_ = encoder.Abort()
			attempts = append(attempts, Attempt{Encoder: candidateName(candidate), Err: err})
			continue
		}
		return &nativeSession{encoder: encoder}, nil
	}

	for _, a := range attempts {
		c.logDebug("native encoder failed", "encoder", a.Encoder, "error", errString(a.Err))
	}

	graph, err := c.platform.NewGraph(c.stream, c.opts.BlockSize)
	if err == nil {
		manual, startErr := startManual(graph)
		if startErr == nil {
			return manual, nil
		}
		err = startErr
	}

	return nil, &UnavailableError{
		Supported: c.supportedCandidates(),
		Attempts:  attempts,
		ManualErr: err,
		Platform:  c.platform.Identifier(),
	}
}

func (c *Controller) supportedCandidates() []string {
	out := make([]string, 0, len(c.opts.Candidates))
	for _, candidate := range c.opts.Candidates {
		if candidate != "" && c.platform.Supports(candidate) {
			out = append(out, candidate)
		}
	}
	return out
}

// Stop finalizes the active session into one blob. An empty recording returns
// ErrNoAudioCaptured, as does a Stop racing one already in progress.
func (c *Controller) Stop(ctx context.Context) (Blob, error) {
	c.mu.Lock()
	session := c.session
	if session == nil || c.stopping {
		c.mu.Unlock()
		return Blob{}, ErrNoAudioCaptured
	}
	c.stopping = true
	c.mu.Unlock()

	blob, err := session.Stop(ctx)

	c.mu.Lock()
	if c.session == session {
		c.session = nil
	}
	c.stopping = false
	if !c.opts.KeepStreamOpen {
		c.releaseStream()
	}
	c.mu.Unlock()

	if err != nil {
		session.Abort()
		return Blob{}, err
	}
	if blob.Size() == 0 {
		return Blob{}, ErrNoAudioCaptured
	}
	c.logInfo("capture stopped", "kind", session.Kind(), "mime_type", blob.MIMEType, "bytes", blob.Size())
	return blob, nil
}

// Cancel discards the active session without producing a blob. A session
// already being finalized by Stop is left to finish.
func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopping {
		return
	}
	if c.session != nil {
		c.session.Abort()
		c.session = nil
	}
	if !c.opts.KeepStreamOpen {
		c.releaseStream()
	}
}

// Close aborts any session and releases the device stream.
func (c *Controller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != nil {
		c.session.Abort()
		c.session = nil
	}
	return c.releaseStream()
}

// releaseStream closes the stream; callers hold c.mu.
func (c *Controller) releaseStream() error {
	if c.stream == nil {
		return nil
	}
	err := c.stream.Close()
	c.stream = nil
	return err
}

func (c *Controller) logInfo(msg string, args ...any) {
	if c.logger == nil {
		return
	}
	c.logger.Info(msg, args...)
}

func (c *Controller) logDebug(msg string, args ...any) {
	if c.logger == nil {
		return
	}
	c.logger.Debug(msg, args...)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// IsUnavailable extracts capture diagnostics when every path failed.
func IsUnavailable(err error) (*UnavailableError, bool) {
	var unavailable *UnavailableError
	if errors.As(err, &unavailable) {
		return unavailable, true
	}
	return nil, false
}
