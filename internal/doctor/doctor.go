// Package doctor runs readiness diagnostics for the orb daemon and its surroundings.
package doctor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/rbright/orb/internal/audio"
	"github.com/rbright/orb/internal/backend"
	"github.com/rbright/orb/internal/config"
	"github.com/rbright/orb/internal/hypr"
	"github.com/rbright/orb/internal/ipc"
)

const (
	probeTimeout       = 3 * time.Second
	daemonProbeTimeout = 300 * time.Millisecond
)

// Check is one doctor assertion result.
type Check struct {
	Name    string
	Pass    bool
	Message string
}

// Report is the full doctor output contract.
type Report struct {
	Checks []Check
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

// String renders one "[OK] name: message" line per check.
func (r Report) String() string {
	var b strings.Builder
	for i, check := range r.Checks {
		if i > 0 {
			b.WriteByte('\n')
		}
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		fmt.Fprintf(&b, "[%s] %s: %s", status, check.Name, check.Message)
	}
	return b.String()
}

func passed(name, format string, args ...any) Check {
	return Check{Name: name, Pass: true, Message: fmt.Sprintf(format, args...)}
}

func failed(name, format string, args ...any) Check {
	return Check{Name: name, Pass: false, Message: fmt.Sprintf(format, args...)}
}

// Run executes environment/config/runtime checks for a loaded config.
func Run(ctx context.Context, loaded config.Loaded) Report {
	cfg := loaded.Config
	checks := []Check{
		checkConfig(loaded),
		checkDaemon(ctx),
		checkBackend(ctx, cfg.Backend),
		checkAudioSelection(ctx, cfg.Audio),
	}

	if cfg.Indicator.Enable {
		if strings.EqualFold(strings.TrimSpace(cfg.Indicator.Backend), "desktop") {
			checks = append(checks, checkBinary("busctl", "desktop notifications use busctl"))
		} else {
			checks = append(checks, checkHyprSession(), checkHyprland(ctx))
		}
	}

	if cfg.Indicator.SoundEnable && len(cfg.Indicator.SoundPlayer.Argv) > 0 {
		checks = append(checks, checkCommand(cfg.Indicator.SoundPlayer.Argv, "sound_player_cmd"))
	}

	return Report{Checks: checks}
}

// checkConfig summarizes where configuration came from.
func checkConfig(loaded config.Loaded) Check {
	message := fmt.Sprintf("loaded %q", loaded.Path)
	if !loaded.Exists {
		message = fmt.Sprintf("using defaults (%q not found)", loaded.Path)
	}
	if loaded.EnvFile != "" {
		message += fmt.Sprintf(", env %q", loaded.EnvFile)
	}
	if n := len(loaded.Warnings); n > 0 {
		message += fmt.Sprintf(", %d warning(s)", n)
	}
	return passed("config", "%s", message)
}

// checkDaemon reports whether a daemon owns the runtime socket. Either answer
// passes; only an unusable runtime dir or an unresponsive socket fails.
func checkDaemon(ctx context.Context) Check {
	path, err := ipc.RuntimeSocketPath()
	if err != nil {
		return failed("daemon", "%v", err)
	}
	alive, err := ipc.Probe(ctx, path, daemonProbeTimeout)
	switch {
	case err != nil:
		return failed("daemon", "%s exists but did not answer: %v", path, err)
	case alive:
		return passed("daemon", "running on %s", path)
	default:
		return passed("daemon", "not running (%s free)", path)
	}
}

// checkHyprSession confirms orb runs inside a Hyprland session.
func checkHyprSession() Check {
	if strings.TrimSpace(os.Getenv("HYPRLAND_INSTANCE_SIGNATURE")) == "" {
		return failed("hyprland.session", "HYPRLAND_INSTANCE_SIGNATURE is empty")
	}
	return passed("hyprland.session", "Hyprland session detected")
}

// checkCommand validates that argv contains a runnable command.
func checkCommand(argv []string, name string) Check {
	if len(argv) == 0 {
		return failed(name, "command is empty")
	}
	return checkBinary(argv[0], name+" command is available")
}

// checkBinary validates that a binary exists in PATH.
func checkBinary(bin string, purpose string) Check {
	path, err := exec.LookPath(bin)
	if err != nil {
		return failed(bin, "binary not found in PATH: %s", bin)
	}
	return passed(bin, "found at %s (%s)", path, purpose)
}

// checkHyprland confirms hyprctl answers for the running session.
func checkHyprland(ctx context.Context) Check {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	monitor, err := hypr.QueryFocusedMonitor(ctx)
	if err != nil {
		return failed("hyprctl", "%v", err)
	}
	return passed("hyprctl", "focused monitor %q", monitor)
}

// checkAudioSelection runs live device selection to surface fallback issues.
func checkAudioSelection(ctx context.Context, cfg config.AudioConfig) Check {
	selection, err := audio.SelectDevice(ctx, cfg.Input, cfg.Fallback)
	if err != nil {
		return failed("audio.device", "%v", err)
	}
	if selection.Warning != "" {
		return passed("audio.device", "selected %q (%s)", selection.Device.ID, selection.Warning)
	}
	return passed("audio.device", "selected %q", selection.Device.ID)
}

// checkBackend fetches the dashboard summary through the configured client.
func checkBackend(ctx context.Context, cfg config.BackendConfig) Check {
	const name = "backend.dashboard"

	timeout := cfg.Timeout()
	if timeout <= 0 || timeout > probeTimeout {
		timeout = probeTimeout
	}
	client, err := backend.New(backend.Config{BaseURL: cfg.URL, Timeout: timeout, Proxy: cfg.Proxy})
	if err != nil {
		return failed(name, "%v", err)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	dashboard, err := client.Dashboard(ctx)
	if err != nil {
		return failed(name, "request failed: %v", err)
	}
	if now := strings.TrimSpace(dashboard.Now); now != "" {
		return passed(name, "reachable at %s (now %s)", client.BaseURL(), now)
	}
	return passed(name, "reachable at %s", client.BaseURL())
}
