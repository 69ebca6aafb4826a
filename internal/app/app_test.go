package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rbright/orb/internal/backend"
	"github.com/rbright/orb/internal/config"
	"github.com/rbright/orb/internal/fsm"
	"github.com/rbright/orb/internal/ipc"
	"github.com/rbright/orb/internal/pipeline"
	"github.com/rbright/orb/internal/session"
)

func TestExecuteHelp(t *testing.T) {
	var stdout bytes.Buffer
	var stderr bytes.Buffer

	exitCode := Execute(context.Background(), []string{"--help"}, &stdout, &stderr)
	require.Equal(t, 0, exitCode)
	require.Contains(t, stdout.String(), "Usage:")
	require.Empty(t, stderr.String())
}

func TestExecuteVersion(t *testing.T) {
	var stdout bytes.Buffer
	var stderr bytes.Buffer

	exitCode := Execute(context.Background(), []string{"version"}, &stdout, &stderr)
	require.Equal(t, 0, exitCode)
	require.Contains(t, stdout.String(), "orb")
	require.Empty(t, stderr.String())
}

func TestExecuteUnknownCommand(t *testing.T) {
	var stdout bytes.Buffer
	var stderr bytes.Buffer

	exitCode := Execute(context.Background(), []string{"definitely-not-a-command"}, &stdout, &stderr)
	require.Equal(t, 2, exitCode)
	require.Contains(t, stderr.String(), "unknown command")
	require.Contains(t, stderr.String(), "Usage:")
}

func TestExecuteInvalidConfig(t *testing.T) {
	paths := setupRunnerEnv(t, `{"backend": {"timeout_ms": "soon"}}`)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "status"})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stderr.String(), "error:")
	require.Empty(t, stdout.String())
}

func TestRunnerForwardedCommandsFailWithoutDaemon(t *testing.T) {
	for _, args := range [][]string{{"status"}, {"stop"}, {"toggle"}, {"say", "next", "task"}, {"done-task"}} {
		t.Run(args[0], func(t *testing.T) {
			paths := setupRunnerEnv(t, "{}")

			var stdout bytes.Buffer
			var stderr bytes.Buffer
			runner := Runner{Stdout: &stdout, Stderr: &stderr}

			exitCode := runner.Execute(context.Background(), append([]string{"--config", paths.configPath}, args...))
			require.Equal(t, 1, exitCode)
			require.Contains(t, stderr.String(), "no running orb daemon")
			require.Empty(t, stdout.String())
		})
	}
}

func TestRunnerForwardsCommandsToDaemon(t *testing.T) {
	paths := setupRunnerEnv(t, "{}")
	requests := make(chan ipc.Request, 8)

	shutdown := startIPCServerForRunnerTest(t, filepath.Join(paths.runtimeDir, ipc.SocketName), func(_ context.Context, req ipc.Request) ipc.Response {
		requests <- req
		switch req.Command {
		case "status":
			return ipc.Response{OK: true, State: "recording", Level: 0.5}
		case "say":
			return ipc.Response{OK: true, Message: "heard " + req.Text}
		case "stop", "cancel", "toggle", "done-task":
			return ipc.Response{OK: true, Message: req.Command + " handled"}
		default:
			return ipc.Response{OK: false, Error: "unsupported"}
		}
	})
	defer shutdown()

	tests := []struct {
		args []string
		want string
	}{
		{args: []string{"status"}, want: "recording level=0.50\n"},
		{args: []string{"stop"}, want: "stop handled\n"},
		{args: []string{"cancel"}, want: "cancel handled\n"},
		{args: []string{"toggle"}, want: "toggle handled\n"},
		{args: []string{"done-task"}, want: "done-task handled\n"},
		{args: []string{"say", "next", "task"}, want: "heard next task\n"},
	}
	for _, tc := range tests {
		var stdout bytes.Buffer
		var stderr bytes.Buffer
		runner := Runner{Stdout: &stdout, Stderr: &stderr}

		exitCode := runner.Execute(context.Background(), append([]string{"--config", paths.configPath}, tc.args...))
		require.Equal(t, 0, exitCode, tc.args)
		require.Empty(t, stderr.String(), tc.args)
		require.Equal(t, tc.want, stdout.String(), tc.args)
	}

	got := make([]string, 0, len(tests))
	for range tests {
		got = append(got, (<-requests).Command)
	}
	require.Equal(t, []string{"status", "stop", "cancel", "toggle", "done-task", "say"}, got)
}

func TestRunnerSurfacesDaemonErrors(t *testing.T) {
	paths := setupRunnerEnv(t, "{}")

	shutdown := startIPCServerForRunnerTest(t, filepath.Join(paths.runtimeDir, ipc.SocketName), func(_ context.Context, req ipc.Request) ipc.Response {
		return ipc.Response{OK: false, Error: "cannot stop from state idle"}
	})
	defer shutdown()

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "stop"})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stderr.String(), "cannot stop from state idle")
}

func TestRunnerStatusFallsBackToIdleWhenServerStateEmpty(t *testing.T) {
	paths := setupRunnerEnv(t, "{}")

	shutdown := startIPCServerForRunnerTest(t, filepath.Join(paths.runtimeDir, ipc.SocketName), func(_ context.Context, req ipc.Request) ipc.Response {
		return ipc.Response{OK: true}
	})
	defer shutdown()

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "status"})
	require.Equal(t, 0, exitCode)
	require.Equal(t, "idle\n", stdout.String())
	require.Empty(t, stderr.String())
}

func TestRunnerDoctorCommandDispatchesAndPrintsReport(t *testing.T) {
	api := newFakeAPI(t)
	paths := setupRunnerEnv(t, api.config(""))

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr}

	runner.Execute(context.Background(), []string{"--config", paths.configPath, "doctor"})
	require.Contains(t, stdout.String(), "[OK] config: loaded")
	require.Contains(t, stdout.String(), "reachable at "+api.server.URL)
}

func TestRunnerDevicesCommandDispatches(t *testing.T) {
	paths := setupRunnerEnv(t, "{}")
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "devices"})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stderr.String(), "error:")
}

func TestRunnerAgendaPrintsSnapshot(t *testing.T) {
	api := newFakeAPI(t)
	paths := setupRunnerEnv(t, api.config(""))

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "agenda"})
	require.Equal(t, 0, exitCode, stderr.String())
	out := stdout.String()
	require.Contains(t, out, "Two things today")
	require.Contains(t, out, "Day off")
	require.Contains(t, out, "Tasks\n")
	require.Contains(t, out, "Pay bill [high]")
	require.Contains(t, out, "Call mum")
}

func TestRunnerAgendaFailsWhenBackendDown(t *testing.T) {
	api := newFakeAPI(t)
	paths := setupRunnerEnv(t, api.config(""))
	api.server.Close()

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "agenda"})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stderr.String(), "refresh dashboard")
}

func TestRunnerDoneReminder(t *testing.T) {
	api := newFakeAPI(t)
	paths := setupRunnerEnv(t, api.config(""))

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "done-reminder", "7", "med:morning"})
	require.Equal(t, 0, exitCode, stderr.String())
	require.Equal(t, "Reminder 7 done\n", stdout.String())
	require.Equal(t, []string{`{"active_id":7,"reminder_key":"med:morning"}`}, api.reminderPosts())

	api.setReminderOK(false)
	stdout.Reset()
	exitCode = runner.Execute(context.Background(), []string{"--config", paths.configPath, "done-reminder", "7", "med:morning"})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stderr.String(), "backend declined")
	require.Empty(t, stdout.String())
}

func TestRunnerServeRefusesSecondDaemon(t *testing.T) {
	paths := setupRunnerEnv(t, "{}")

	shutdown := startIPCServerForRunnerTest(t, filepath.Join(paths.runtimeDir, ipc.SocketName), func(_ context.Context, req ipc.Request) ipc.Response {
		return ipc.Response{OK: true, State: "idle"}
	})
	defer shutdown()

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "serve"})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stderr.String(), "already running")
}

func TestRunnerServeHandlesTypedUtterances(t *testing.T) {
	api := newFakeAPI(t)
	paths := setupRunnerEnv(t, api.config(""))
	socketPath := filepath.Join(paths.runtimeDir, ipc.SocketName)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var serveErr bytes.Buffer
	done := make(chan int, 1)
	go func() {
		runner := Runner{Stdout: io.Discard, Stderr: &serveErr}
		done <- runner.Execute(ctx, []string{"--config", paths.configPath, "serve"})
	}()

	client := func(args ...string) (int, string) {
		var stdout bytes.Buffer
		runner := Runner{Stdout: &stdout, Stderr: io.Discard}
		code := runner.Execute(context.Background(), append([]string{"--config", paths.configPath}, args...))
		return code, stdout.String()
	}

	require.Eventually(t, func() bool {
		code, out := client("say", "next task")
		return code == 0 && out == "Next task: Pay bill.\n"
	}, 5*time.Second, 50*time.Millisecond)

	code, out := client("status")
	require.Equal(t, 0, code)
	require.Equal(t, "idle\n", out)

	code, out = client("done-task")
	require.Equal(t, 0, code)
	require.Equal(t, "Done: Pay bill\n", out)
	require.Equal(t, []string{"/api/tasks/1/done"}, api.taskDones())

	cancel()
	select {
	case exitCode := <-done:
		require.Equal(t, 0, exitCode, serveErr.String())
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop")
	}

	_, err := os.Stat(socketPath)
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestLogSessionResultWritesFailureAndSuccess(t *testing.T) {
	var logBuf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logBuf, nil))

	started := time.Now()
	finished := started.Add(1500 * time.Millisecond)

	logSessionResult(logger, session.Result{
		State:         fsm.StateIdle,
		StartedAt:     started,
		FinishedAt:    finished,
		BytesCaptured: 123,
		MIMEType:      "audio/wav",
		Transcript:    "hello",
	})

	require.Contains(t, logBuf.String(), "utterance complete")
	require.Contains(t, logBuf.String(), `"transcript_length":5`)
	require.Contains(t, logBuf.String(), `"duration_ms":1500`)

	logBuf.Reset()
	logSessionResult(logger, session.Result{
		State:      fsm.StateIdle,
		StartedAt:  started,
		FinishedAt: finished,
		Err:        errors.New("boom"),
	})
	require.Contains(t, logBuf.String(), "utterance failed")
	require.Contains(t, logBuf.String(), "boom")

	logBuf.Reset()
	logSessionResult(logger, session.Result{Err: pipeline.ErrEmptyTranscript})
	require.Contains(t, logBuf.String(), "utterance empty")
	require.NotContains(t, logBuf.String(), "utterance failed")

	logSessionResult(nil, session.Result{})
}

func TestRenderAgendaMarksCurrentTaskAndWorkStatus(t *testing.T) {
	var out bytes.Buffer
	snap := pipeline.Snapshot{Date: "2026-10-19"}
	snap.Work.IsWork = true
	snap.Work.Start = "09:00"
	snap.Work.End = "17:00"
	snap.Work.Status = "now"
	snap.Alerts = []backend.Alert{{Message: "Bins out"}}
	snap.Tasks = []backend.Task{{ID: 1, Title: "Pay bill"}, {ID: 2, Title: "Call mum"}}
	snap.CurrentTask = &snap.Tasks[1]

	renderAgenda(&out, snap)
	require.Contains(t, out.String(), "Work day 09:00-17:00 (now)")
	require.Contains(t, out.String(), "! Bins out")
	require.Contains(t, out.String(), "  > Call mum")
	require.Contains(t, out.String(), "    Pay bill")

	out.Reset()
	renderAgenda(&out, pipeline.Snapshot{Date: "2026-10-19"})
	require.Contains(t, out.String(), "Tasks\n  none")
}

type runnerPaths struct {
	configPath string
	runtimeDir string
}

func setupRunnerEnv(t *testing.T, configJSONC string) runnerPaths {
	t.Helper()

	for _, key := range []string{config.EnvBackendURL, config.EnvBackendProxy, config.EnvFeedListen, config.EnvLogLevel} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}

	xdgStateHome := t.TempDir()
	runtimeDir := t.TempDir()
	t.Setenv("XDG_STATE_HOME", xdgStateHome)
	t.Setenv("XDG_RUNTIME_DIR", runtimeDir)

	configPath := filepath.Join(t.TempDir(), "config.jsonc")
	require.NoError(t, os.WriteFile(configPath, []byte(configJSONC), 0o600))

	return runnerPaths{configPath: configPath, runtimeDir: runtimeDir}
}

func startIPCServerForRunnerTest(t *testing.T, socketPath string, handler func(context.Context, ipc.Request) ipc.Response) func() {
	t.Helper()

	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- ipc.Serve(ctx, listener, ipc.HandlerFunc(handler))
	}()

	return func() {
		cancel()
		require.NoError(t, <-done)
	}
}

// fakeAPI serves the dashboard endpoints with two open tasks.
type fakeAPI struct {
	server *httptest.Server

	mu         sync.Mutex
	reminderOK bool
	reminders  []string
	dones      []string
	completed  map[string]bool
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()
	api := &fakeAPI{reminderOK: true, completed: map[string]bool{}}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/dashboard", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, `{"now":"","today_summary":"Two things today","alerts":[],"next_task":"Pay bill"}`)
	})
	mux.HandleFunc("GET /api/workdays/{date}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, fmt.Sprintf(`{"date":%q,"is_work":false,"start_hhmm":null,"end_hhmm":null}`, r.PathValue("date")))
	})
	mux.HandleFunc("GET /api/reminders/active", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, fmt.Sprintf(`{"date":%q,"now":"","reminders":[]}`, r.URL.Query().Get("date")))
	})
	mux.HandleFunc("GET /api/events", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, `{"events":[]}`)
	})
	mux.HandleFunc("GET /api/tasks", func(w http.ResponseWriter, _ *http.Request) {
		api.mu.Lock()
		defer api.mu.Unlock()
		tasks := []string{}
		if !api.completed["1"] {
			tasks = append(tasks, `{"id":1,"title":"Pay bill","priority":"high"}`)
		}
		tasks = append(tasks, `{"id":2,"title":"Call mum","priority":"low"}`)
		writeJSON(w, `{"tasks":[`+strings.Join(tasks, ",")+`]}`)
	})
	mux.HandleFunc("POST /api/tasks/{id}/done", func(w http.ResponseWriter, r *http.Request) {
		api.mu.Lock()
		api.dones = append(api.dones, r.URL.Path)
		api.completed[r.PathValue("id")] = true
		api.mu.Unlock()
		writeJSON(w, `{"ok":true}`)
	})
	mux.HandleFunc("POST /api/reminders/done", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		api.mu.Lock()
		api.reminders = append(api.reminders, strings.TrimSpace(string(body)))
		ok := api.reminderOK
		api.mu.Unlock()
		writeJSON(w, fmt.Sprintf(`{"ok":%t}`, ok))
	})

	api.server = httptest.NewServer(mux)
	t.Cleanup(api.server.Close)
	return api
}

// config renders a quiet daemon config pointing at the fake API.
func (a *fakeAPI) config(extra string) string {
	return fmt.Sprintf(`{
  // quiet daemon
  "backend": {"url": %q, "timeout_ms": 2000},
  "speech": {"enable": false},
  "refresh": {"interval_ms": 1000},
  "indicator": {"enable": false, "sound_enable": false}%s
}`, a.server.URL+"/api/", extra)
}

func (a *fakeAPI) setReminderOK(ok bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.reminderOK = ok
}

func (a *fakeAPI) reminderPosts() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.reminders...)
}

func (a *fakeAPI) taskDones() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.dones...)
}

func writeJSON(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = io.WriteString(w, body)
}
