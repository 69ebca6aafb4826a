// Package app dispatches parsed CLI commands to the daemon, the backend, or local diagnostics.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/rbright/orb/internal/audio"
	"github.com/rbright/orb/internal/backend"
	"github.com/rbright/orb/internal/cli"
	"github.com/rbright/orb/internal/config"
	"github.com/rbright/orb/internal/doctor"
	"github.com/rbright/orb/internal/ipc"
	"github.com/rbright/orb/internal/logging"
	"github.com/rbright/orb/internal/pipeline"
	"github.com/rbright/orb/internal/version"
)

const (
	binaryName = "orb"

	// controlTimeout bounds commands the daemon answers without backend calls.
	controlTimeout = 500 * time.Millisecond
	// backendRoundTrips bounds say and done-task: one dispatch cascade plus a refresh.
	backendRoundTrips = 10
)

type Runner struct {
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
}

func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	r := Runner{Stdout: stdout, Stderr: stderr}
	return r.Execute(ctx, args)
}

func (r Runner) Execute(ctx context.Context, args []string) int {
	parsed, err := cli.Parse(args)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n\n", err)
		fmt.Fprint(r.Stderr, cli.HelpText(binaryName))
		return 2
	}

	if parsed.ShowHelp {
		fmt.Fprint(r.Stdout, cli.HelpText(binaryName))
		return 0
	}

	if parsed.Command == cli.CommandVersion {
		fmt.Fprintln(r.Stdout, version.String())
		return 0
	}

	logRuntime, err := logging.New(logging.Options{Console: parsed.Verbose, Stderr: r.Stderr})
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: setup logging: %v\n", err)
		return 1
	}
	defer func() { _ = logRuntime.Close() }()

	logger := r.Logger
	if logger == nil {
		logger = logRuntime.Logger
	}

	cfgLoaded, err := config.Load(parsed.ConfigPath)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		logger.Error("load config failed", "error", err.Error())
		return 1
	}
	if err := logging.SetLevel(logRuntime.Level, cfgLoaded.Config.Log.Level); err != nil {
		logger.Warn("log level ignored", "error", err.Error())
	}
	for _, w := range cfgLoaded.Warnings {
		msg := w.Message
		if w.Line > 0 {
			msg = fmt.Sprintf("line %d: %s", w.Line, w.Message)
		}
		if parsed.Command != cli.CommandServe || parsed.Verbose {
			fmt.Fprintf(r.Stderr, "warning: %s\n", msg)
		}
		logger.Warn("config warning", "line", w.Line, "message", w.Message)
	}

	logger.Info("command start",
		"command", parsed.Command,
		"config", cfgLoaded.Path,
		"log", logRuntime.Path,
	)

	cfg := cfgLoaded.Config
	switch parsed.Command {
	case cli.CommandServe:
		return r.commandServe(ctx, cfg, logger)
	case cli.CommandDoctor:
		report := doctor.Run(ctx, cfgLoaded)
		fmt.Fprintln(r.Stdout, report.String())
		if report.OK() {
			return 0
		}
		return 1
	case cli.CommandDevices:
		return r.commandDevices(ctx)
	case cli.CommandAgenda:
		return r.commandAgenda(ctx, cfg, logger)
	case cli.CommandDoneReminder:
		return r.commandDoneReminder(ctx, cfg, logger, parsed.ReminderID, parsed.ReminderKey)
	case cli.CommandStatus:
		return r.commandStatus(ctx)
	case cli.CommandSay:
		return r.forward(ctx, ipc.Request{Command: string(parsed.Command), Text: parsed.Text}, submitTimeout(cfg))
	case cli.CommandDoneTask:
		return r.forward(ctx, ipc.Request{Command: string(parsed.Command)}, submitTimeout(cfg))
	case cli.CommandToggle, cli.CommandStop, cli.CommandCancel:
		return r.forward(ctx, ipc.Request{Command: string(parsed.Command)}, controlTimeout)
	default:
		fmt.Fprintf(r.Stderr, "error: unsupported command %q\n", parsed.Command)
		return 2
	}
}

func submitTimeout(cfg config.Config) time.Duration {
	return backendRoundTrips * cfg.Backend.Timeout()
}

func (r Runner) commandDevices(ctx context.Context) int {
	devices, err := audio.ListDevices(ctx)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if len(devices) == 0 {
		fmt.Fprintln(r.Stdout, "no audio devices found")
		return 1
	}

	for _, device := range devices {
		fmt.Fprintln(r.Stdout, device)
	}

	return 0
}

func (r Runner) commandStatus(ctx context.Context) int {
	resp, err := r.send(ctx, ipc.Request{Command: string(cli.CommandStatus)}, controlTimeout)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if resp.State == "" {
		resp.State = "idle"
	}
	if resp.Level > 0 {
		fmt.Fprintf(r.Stdout, "%s level=%.2f\n", resp.State, resp.Level)
		return 0
	}
	fmt.Fprintln(r.Stdout, resp.State)
	return 0
}

// forward relays one command to the daemon and prints its message.
func (r Runner) forward(ctx context.Context, req ipc.Request, timeout time.Duration) int {
	resp, err := r.send(ctx, req, timeout)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if resp.Message != "" {
		fmt.Fprintln(r.Stdout, resp.Message)
	}
	return 0
}

func (r Runner) send(ctx context.Context, req ipc.Request, timeout time.Duration) (ipc.Response, error) {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		return ipc.Response{}, err
	}
	return ipc.Forward(ctx, socketPath, req, timeout)
}

// newBackend builds a backend client; observe may be nil.
func newBackend(cfg config.BackendConfig, observe backend.Observer) (*backend.Client, error) {
	return backend.New(backend.Config{
		BaseURL: cfg.URL,
		Timeout: cfg.Timeout(),
		Proxy:   cfg.Proxy,
		Observe: observe,
	})
}

func (r Runner) commandAgenda(ctx context.Context, cfg config.Config, logger *slog.Logger) int {
	client, err := newBackend(cfg.Backend, nil)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	pipe := pipeline.New(pipeline.Deps{Backend: client, Logger: logger}, pipeline.Options{})
	defer pipe.Close()

	snap, err := pipe.Refresh(ctx)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	renderAgenda(r.Stdout, snap)
	return 0
}

func (r Runner) commandDoneReminder(ctx context.Context, cfg config.Config, logger *slog.Logger, id int64, key string) int {
	client, err := newBackend(cfg.Backend, nil)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	res, err := client.DoneReminder(ctx, id, key)
	if err == nil && !res.OK {
		err = errors.New("backend declined")
	}
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: complete reminder %d: %v\n", id, err)
		logger.Error("done reminder failed", "id", id, "key", key, "error", err.Error())
		return 1
	}
	logger.Info("reminder done", "id", id, "key", key)
	fmt.Fprintf(r.Stdout, "Reminder %d done\n", id)
	return 0
}
