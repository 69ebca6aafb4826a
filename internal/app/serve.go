package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/rbright/orb/internal/audio"
	"github.com/rbright/orb/internal/capture"
	"github.com/rbright/orb/internal/config"
	"github.com/rbright/orb/internal/envelope"
	"github.com/rbright/orb/internal/feed"
	"github.com/rbright/orb/internal/indicator"
	"github.com/rbright/orb/internal/ipc"
	"github.com/rbright/orb/internal/metrics"
	"github.com/rbright/orb/internal/pipeline"
	"github.com/rbright/orb/internal/session"
	"github.com/rbright/orb/internal/speech"
)

// daemon holds every long-lived collaborator of a running orb.
type daemon struct {
	cfg    config.Config
	logger *slog.Logger

	metrics   *metrics.Metrics
	hub       *feed.Hub
	tracker   *envelope.Tracker
	speaker   *speech.Speaker
	capture   *capture.Controller
	indicator *indicator.HyprNotify
	pipeline  *pipeline.Pipeline
	session   *session.Controller
}

func newDaemon(cfg config.Config, logger *slog.Logger) (*daemon, error) {
	d := &daemon{cfg: cfg, logger: logger, metrics: metrics.New()}

	client, err := newBackend(cfg.Backend, d.metrics.ObserveBackend)
	if err != nil {
		return nil, err
	}

	d.hub = feed.NewHub(logger, feed.WithClientGauge(d.metrics.SetFeedClients))
	d.tracker = envelope.New(func(level float64) {
		d.metrics.SetSpeechLevel(level)
		d.hub.Publish(feed.LevelFrame(level))
	})

	var speaker pipeline.Speaker
	if cfg.Speech.Enable {
		s := speech.New(client, audio.Player{MediaName: "orb speech"}, d.tracker, speech.WithLogger(logger))
		d.speaker = s
		speaker = s
	}

	platform := audio.NewPlatform(audio.PlatformOptions{
		Input:      cfg.Audio.Input,
		Fallback:   cfg.Audio.Fallback,
		SampleRate: cfg.Audio.SampleRate,
		Logger:     logger,
	})
	d.capture = capture.NewController(platform, logger, capture.Options{
		BlockSize:      cfg.Audio.BlockSize,
		KeepStreamOpen: cfg.Audio.KeepStreamOpen,
	})
	d.indicator = indicator.NewHyprNotify(cfg.Indicator, logger)

	opts := pipeline.Options{RevealInterval: cfg.Speech.RevealInterval()}
	if cfg.Debug.EnableAudioDump {
		dir, err := pipeline.DebugDir()
		if err != nil {
			logger.Warn("audio dump disabled", "error", err.Error())
		} else {
			opts.DumpDir = dir
		}
	}
	d.pipeline = pipeline.New(pipeline.Deps{
		Backend:   client,
		Speaker:   speaker,
		Publisher: d.hub,
		Indicator: d.indicator,
		Metrics:   d.metrics,
		Logger:    logger,
	}, opts)

	d.session = session.NewController(logger, d.capture, d.pipeline,
		session.WithIndicator(d.indicator),
		session.WithPublisher(d.hub),
		session.WithMetrics(d.metrics),
		session.WithLevel(d.tracker.Level),
		session.WithResultHook(func(result session.Result) { logSessionResult(logger, result) }),
	)
	return d, nil
}

// run serves IPC, the feed and the refresh loop until ctx ends or a server fails.
func (d *daemon) run(ctx context.Context, listener net.Listener) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	errCh := make(chan error, 3)
	spawn := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(runCtx); err != nil {
				errCh <- fmt.Errorf("%s: %w", name, err)
				cancel()
			}
		}()
	}

	spawn("ipc server", func(ctx context.Context) error {
		return ipc.Serve(ctx, listener, d.session)
	})
	if d.cfg.Feed.Listen != "" {
		server := feed.NewServer(d.hub, d.metrics.Handler(), d.logger)
		spawn("feed server", func(ctx context.Context) error {
			return server.ListenAndServe(ctx, d.cfg.Feed.Listen)
		})
	}
	spawn("session", d.session.Run)
	wg.Add(1)
	go func() {
		defer wg.Done()
		d.pipeline.RunRefresh(runCtx, d.cfg.Refresh.Interval())
	}()

	<-runCtx.Done()
	wg.Wait()
	d.close()

	close(errCh)
	var errs []error
	for err := range errCh {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (d *daemon) close() {
	d.pipeline.Close()
	if d.speaker != nil {
		d.speaker.Close()
	}
	d.tracker.Stop()
	if err := d.capture.Close(); err != nil {
		d.logger.Warn("close capture", "error", err.Error())
	}
	d.hub.Close()
	d.indicator.Wait()
}

func (r Runner) commandServe(ctx context.Context, cfg config.Config, logger *slog.Logger) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	owner, err := ipc.Acquire(ctx, socketPath, ipc.AcquireOptions{ProbeTimeout: 180 * time.Millisecond, Retries: 8})
	if err != nil {
		if errors.Is(err, ipc.ErrAlreadyRunning) {
			fmt.Fprintf(r.Stderr, "error: orb is already running on %s\n", socketPath)
			return 1
		}
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer func() {
		if err := owner.Close(); err != nil {
			logger.Warn("release socket", "error", err.Error())
		}
	}()

	d, err := newDaemon(cfg, logger)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	logger.Info("daemon start", "socket", socketPath, "backend", cfg.Backend.URL, "feed", cfg.Feed.Listen)
	if err := d.run(ctx, owner); err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		logger.Error("daemon failed", "error", err.Error())
		return 1
	}
	logger.Info("daemon stopped")
	return 0
}

func logSessionResult(logger *slog.Logger, result session.Result) {
	if logger == nil {
		return
	}
	fields := []any{
		"state", result.State,
		"cancelled", result.Cancelled,
		"skipped", result.Skipped,
		"started_at", result.StartedAt.Format(time.RFC3339Nano),
		"finished_at", result.FinishedAt.Format(time.RFC3339Nano),
		"duration_ms", result.FinishedAt.Sub(result.StartedAt).Milliseconds(),
		"bytes_captured", result.BytesCaptured,
		"mime_type", result.MIMEType,
		"transcript_length", len(result.Transcript),
		"intent", result.Intent,
	}

	switch {
	case result.Err == nil:
	case capture.IsSoft(result.Err), errors.Is(result.Err, pipeline.ErrEmptyTranscript):
		logger.Info("utterance empty", append(fields, "reason", result.Err.Error())...)
		return
	default:
		logger.Error("utterance failed", append(fields, "error", result.Err.Error())...)
		return
	}
	logger.Info("utterance complete", fields...)
}
