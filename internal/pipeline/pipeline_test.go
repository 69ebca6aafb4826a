package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rbright/orb/internal/backend"
	"github.com/rbright/orb/internal/capture"
	"github.com/rbright/orb/internal/feed"
	"github.com/rbright/orb/internal/intent"
)

type fakeBackend struct {
	mu    sync.Mutex
	calls []string

	now       string
	tasks     []backend.Task
	reminders []backend.Reminder
	stt       backend.Transcription
	sttErr    error
	respond   func(ctx context.Context) (backend.RespondResult, error)
	resolveOK bool
	failOn    string

	doneTasks atomic.Int32
}

func (f *fakeBackend) record(name string) error {
	f.mu.Lock()
	f.calls = append(f.calls, name)
	f.mu.Unlock()
	if f.failOn == name {
		return errors.New(name + " unavailable")
	}
	return nil
}

func (f *fakeBackend) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeBackend) count(name string) int {
	n := 0
	for _, c := range f.Calls() {
		if c == name {
			n++
		}
	}
	return n
}

func (f *fakeBackend) Resolve(context.Context, string) (backend.OKResult, error) {
	return backend.OKResult{OK: f.resolveOK}, f.record("resolve")
}

func (f *fakeBackend) Reclassify(context.Context, string) (backend.ReclassifyResult, error) {
	return backend.ReclassifyResult{}, f.record("reclassify")
}

func (f *fakeBackend) ConfirmReclassify(context.Context, string, string, int64) (backend.OKResult, error) {
	return backend.OKResult{OK: true}, f.record("confirm")
}

func (f *fakeBackend) Priority(context.Context, string) (backend.PriorityResult, error) {
	return backend.PriorityResult{}, f.record("priority")
}

func (f *fakeBackend) Schedule(context.Context, string) (backend.ScheduleResult, error) {
	return backend.ScheduleResult{}, f.record("schedule")
}

func (f *fakeBackend) Respond(ctx context.Context, _ string) (backend.RespondResult, error) {
	if err := f.record("respond"); err != nil {
		return backend.RespondResult{}, err
	}
	if f.respond != nil {
		return f.respond(ctx)
	}
	return backend.RespondResult{Text: "Hello there."}, nil
}

func (f *fakeBackend) Transcribe(context.Context, []byte, string) (backend.Transcription, error) {
	if err := f.record("stt"); err != nil {
		return backend.Transcription{}, err
	}
	return f.stt, f.sttErr
}

func (f *fakeBackend) Dashboard(context.Context) (backend.Dashboard, error) {
	f.mu.Lock()
	now := f.now
	f.mu.Unlock()
	return backend.Dashboard{Now: now, TodaySummary: "busy"}, f.record("dashboard")
}

func (f *fakeBackend) Workday(context.Context, string) (backend.Workday, error) {
	return backend.Workday{IsWork: true}, f.record("workday")
}

func (f *fakeBackend) ActiveReminders(context.Context, string) (backend.Reminders, error) {
	return backend.Reminders{Reminders: f.reminders}, f.record("reminders")
}

func (f *fakeBackend) Events(context.Context, string) ([]backend.Event, error) {
	return nil, f.record("events")
}

func (f *fakeBackend) Tasks(context.Context) ([]backend.Task, error) {
	f.mu.Lock()
	tasks := append([]backend.Task(nil), f.tasks...)
	f.mu.Unlock()
	return tasks, f.record("tasks")
}

func (f *fakeBackend) DoneTask(context.Context, int64) (backend.OKResult, error) {
	f.doneTasks.Add(1)
	return backend.OKResult{OK: true}, f.record("done_task")
}

func (f *fakeBackend) DoneReminder(context.Context, int64, string) (backend.OKResult, error) {
	return backend.OKResult{OK: true}, f.record("done_reminder")
}

func (f *fakeBackend) setTasks(tasks []backend.Task) {
	f.mu.Lock()
	f.tasks = tasks
	f.mu.Unlock()
}

func (f *fakeBackend) setNow(now string) {
	f.mu.Lock()
	f.now = now
	f.mu.Unlock()
}

type recordingPublisher struct {
	mu     sync.Mutex
	frames []feed.Frame
}

func (r *recordingPublisher) Publish(frame feed.Frame) {
	r.mu.Lock()
	r.frames = append(r.frames, frame)
	r.mu.Unlock()
}

func (r *recordingPublisher) ofType(frameType string) []feed.Frame {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []feed.Frame
	for _, f := range r.frames {
		if f.Type == frameType {
			out = append(out, f)
		}
	}
	return out
}

type fakeSpeaker struct {
	mu    sync.Mutex
	said  []string
	hush  atomic.Int32
	calls atomic.Int32
}

func (s *fakeSpeaker) Say(_ context.Context, text string) error {
	s.mu.Lock()
	s.said = append(s.said, text)
	s.mu.Unlock()
	s.calls.Add(1)
	return nil
}

func (s *fakeSpeaker) Interrupt() { s.hush.Add(1) }

type fakeMetrics struct {
	intents   sync.Map
	failures  atomic.Int32
	skipped   atomic.Int32
	refreshes atomic.Int32
	stt       sync.Map
}

func (m *fakeMetrics) RecordIntent(kind string)           { m.intents.Store(kind, true) }
func (m *fakeMetrics) RecordDispatchFailure()             { m.failures.Add(1) }
func (m *fakeMetrics) RecordSkipped()                     { m.skipped.Add(1) }
func (m *fakeMetrics) RecordTranscription(outcome string) { m.stt.Store(outcome, true) }
func (m *fakeMetrics) RecordRefreshFailure()              { m.refreshes.Add(1) }

type harness struct {
	backend   *fakeBackend
	publisher *recordingPublisher
	speaker   *fakeSpeaker
	metrics   *fakeMetrics
	pipeline  *Pipeline
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()
	h := &harness{
		backend:   &fakeBackend{now: "2026-03-01T09:30:00"},
		publisher: &recordingPublisher{},
		speaker:   &fakeSpeaker{},
		metrics:   &fakeMetrics{},
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	h.pipeline = New(Deps{
		Backend:    h.backend,
		Dispatcher: intent.New(h.backend, intent.WithPicker(func(int) int { return 0 })),
		Speaker:    h.speaker,
		Publisher:  h.publisher,
		Metrics:    h.metrics,
	}, opts)
	t.Cleanup(h.pipeline.Close)
	return h
}

func TestTranscribe(t *testing.T) {
	h := newHarness(t, Options{})
	blob := capture.Blob{Data: []byte("RIFF"), MIMEType: "audio/wav"}

	h.backend.stt = backend.Transcription{Text: "  show one   task "}
	text, err := h.pipeline.Transcribe(context.Background(), blob)
	require.NoError(t, err)
	require.Equal(t, "show one task", text)

	h.backend.stt = backend.Transcription{Text: " "}
	_, err = h.pipeline.Transcribe(context.Background(), blob)
	require.ErrorIs(t, err, ErrEmptyTranscript)
	require.Empty(t, h.publisher.ofType(feed.TypeError))

	h.backend.failOn = "stt"
	_, err = h.pipeline.Transcribe(context.Background(), blob)
	require.ErrorIs(t, err, ErrTranscriptionFailed)
	require.ErrorContains(t, err, "stt unavailable")

	errs := h.publisher.ofType(feed.TypeError)
	require.Len(t, errs, 1)
	require.Equal(t, err.Error(), errs[0].Error)

	for _, outcome := range []string{"ok", "empty", "error"} {
		_, ok := h.metrics.stt.Load(outcome)
		require.True(t, ok, outcome)
	}
}

func TestTranscribeDumpsRecording(t *testing.T) {
	dir := t.TempDir()
	h := newHarness(t, Options{DumpDir: dir})
	h.backend.stt = backend.Transcription{Text: "hi"}

	_, err := h.pipeline.Transcribe(context.Background(), capture.Blob{Data: []byte("RIFFdata"), MIMEType: "audio/wav"})
	require.NoError(t, err)

	matches, err := filepath.Glob(filepath.Join(dir, "utterance-*.wav"))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	require.Equal(t, []byte("RIFFdata"), data)
}

func TestSubmitSingleTaskModeAfterRefresh(t *testing.T) {
	h := newHarness(t, Options{})
	h.backend.setTasks([]backend.Task{{ID: 1, Title: "Pay bill"}})

	_, err := h.pipeline.Refresh(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(1), h.pipeline.State().Browse.CurrentTaskID)

	reply, err := h.pipeline.Submit(context.Background(), "show one task", SourceTyped)
	require.NoError(t, err)
	require.Equal(t, intent.SingleTaskMode, reply.Intent)
	require.Contains(t, reply.Text, "Pay bill")
	require.True(t, reply.Spoken)
	require.Equal(t, intent.ViewSingle, h.pipeline.State().Browse.View)

	require.Equal(t, 1, h.backend.count("dashboard"))

	texts := h.publisher.ofType(feed.TypeText)
	require.NotEmpty(t, texts)
	require.Equal(t, reply.Text, texts[len(texts)-1].Text)
	require.True(t, texts[len(texts)-1].Done)

	dashboards := h.publisher.ofType(feed.TypeDashboard)
	require.Len(t, dashboards, 2)
	last := dashboards[1].Dashboard.(Snapshot)
	require.Equal(t, intent.ViewSingle, last.Browse.View)
	require.Equal(t, "Pay bill", last.CurrentTask.Title)

	require.Eventually(t, func() bool { return h.speaker.calls.Load() == 1 }, time.Second, time.Millisecond)
	_, ok := h.metrics.intents.Load(string(intent.SingleTaskMode))
	require.True(t, ok)
}

func TestSubmitRefreshesWhenOutcomeAsks(t *testing.T) {
	h := newHarness(t, Options{})
	h.backend.resolveOK = true

	reply, err := h.pipeline.Submit(context.Background(), "I paid the bill", SourceVoice)
	require.NoError(t, err)
	require.Equal(t, intent.Complete, reply.Intent)
	require.Equal(t, 1, h.backend.count("dashboard"))
	require.Equal(t, 1, h.backend.count("tasks"))
}

func TestSubmitFailureKeepsState(t *testing.T) {
	h := newHarness(t, Options{})
	h.backend.setTasks([]backend.Task{{ID: 1, Title: "Pay bill"}, {ID: 2, Title: "Call mum"}})
	_, err := h.pipeline.Refresh(context.Background())
	require.NoError(t, err)

	_, err = h.pipeline.Submit(context.Background(), "next task", SourceTyped)
	require.NoError(t, err)
	before := h.pipeline.State()
	require.Equal(t, int64(2), before.Browse.CurrentTaskID)

	h.backend.failOn = "resolve"
	_, err = h.pipeline.Submit(context.Background(), "tell me a joke", SourceTyped)
	require.ErrorIs(t, err, intent.ErrDispatchFailed)
	require.Equal(t, before, h.pipeline.State())
	require.Equal(t, int32(1), h.metrics.failures.Load())
	require.NotEmpty(t, h.publisher.ofType(feed.TypeError))
}

func TestSubmitEmptyUtteranceIsNotAFailure(t *testing.T) {
	h := newHarness(t, Options{})
	_, err := h.pipeline.Submit(context.Background(), "   ", SourceTyped)
	require.ErrorIs(t, err, intent.ErrEmptyUtterance)
	require.Zero(t, h.metrics.failures.Load())
}

func TestSubmitGuardRejectsConcurrentSubmission(t *testing.T) {
	h := newHarness(t, Options{})
	entered := make(chan struct{})
	release := make(chan struct{})
	h.backend.respond = func(context.Context) (backend.RespondResult, error) {
		close(entered)
		<-release
		return backend.RespondResult{Text: "Sure."}, nil
	}

	done := make(chan error, 1)
	go func() {
		_, err := h.pipeline.Submit(context.Background(), "tell me a joke", SourceTyped)
		done <- err
	}()
	<-entered
	require.True(t, h.pipeline.Busy())

	_, err := h.pipeline.Submit(context.Background(), "next task", SourceVoice)
	require.ErrorIs(t, err, ErrSubmissionInFlight)
	require.Equal(t, int32(1), h.metrics.skipped.Load())

	_, err = h.pipeline.Submit(context.Background(), "next task", SourceTyped)
	require.ErrorIs(t, err, ErrSubmissionInFlight)
	require.Equal(t, int32(1), h.metrics.skipped.Load())

	close(release)
	require.NoError(t, <-done)
	require.False(t, h.pipeline.Busy())
}

func TestRefreshOrderAndDate(t *testing.T) {
	h := newHarness(t, Options{})
	h.backend.setNow("2026-03-01T23:30:00-01:00")

	snap, err := h.pipeline.Refresh(context.Background())
	require.NoError(t, err)
	require.Equal(t, "2026-03-02", snap.Date)
	require.Equal(t, "busy", snap.Summary)
	require.Equal(t, "08:00", snap.Work.Start)
	require.Equal(t, []string{"dashboard", "workday", "reminders", "events", "tasks"}, h.backend.Calls())
}

func TestRefreshResetsViewOnDayChange(t *testing.T) {
	h := newHarness(t, Options{})
	h.backend.setTasks([]backend.Task{{ID: 1, Title: "Pay bill"}, {ID: 2, Title: "Call mum"}})
	_, err := h.pipeline.Refresh(context.Background())
	require.NoError(t, err)

	_, err = h.pipeline.Submit(context.Background(), "any other tasks", SourceTyped)
	require.NoError(t, err)
	state := h.pipeline.State()
	require.True(t, state.Browse.Active)
	require.Equal(t, intent.ViewSingle, state.Browse.View)

	_, err = h.pipeline.Refresh(context.Background())
	require.NoError(t, err)
	require.True(t, h.pipeline.State().Browse.Active)

	h.backend.setNow("2026-03-02T07:00:00")
	_, err = h.pipeline.Refresh(context.Background())
	require.NoError(t, err)
	state = h.pipeline.State()
	require.False(t, state.Browse.Active)
	require.Equal(t, intent.ViewAll, state.Browse.View)
	require.Equal(t, int64(2), state.Browse.CurrentTaskID)
}

func TestSubmitKeepsDayResetFromRefreshDuringDispatch(t *testing.T) {
	h := newHarness(t, Options{})
	h.backend.setTasks([]backend.Task{{ID: 1, Title: "Pay bill"}, {ID: 2, Title: "Call mum"}})
	_, err := h.pipeline.Refresh(context.Background())
	require.NoError(t, err)
	_, err = h.pipeline.Submit(context.Background(), "any other tasks", SourceTyped)
	require.NoError(t, err)
	require.True(t, h.pipeline.State().Browse.Active)

	h.backend.respond = func(ctx context.Context) (backend.RespondResult, error) {
		h.backend.setNow("2026-03-02T00:00:05")
		h.backend.setTasks([]backend.Task{{ID: 3, Title: "Water plants"}})
		_, err := h.pipeline.Refresh(ctx)
		return backend.RespondResult{Text: "Why did the scarecrow win?"}, err
	}
	_, err = h.pipeline.Submit(context.Background(), "tell me a joke", SourceTyped)
	require.NoError(t, err)

	state := h.pipeline.State()
	require.False(t, state.Browse.Active)
	require.Equal(t, intent.ViewAll, state.Browse.View)
	require.Equal(t, int64(3), state.Browse.CurrentTaskID)

	h.backend.respond = nil
	_, err = h.pipeline.Refresh(context.Background())
	require.NoError(t, err)
	require.False(t, h.pipeline.State().Browse.Active)
	require.Equal(t, intent.ViewAll, h.pipeline.State().Browse.View)
}

func TestRefreshReconcilesSelection(t *testing.T) {
	h := newHarness(t, Options{})
	h.backend.setTasks([]backend.Task{{ID: 1, Title: "Pay bill"}, {ID: 2, Title: "Call mum"}})
	_, err := h.pipeline.Refresh(context.Background())
	require.NoError(t, err)
	_, err = h.pipeline.Submit(context.Background(), "next task", SourceTyped)
	require.NoError(t, err)
	require.Equal(t, int64(2), h.pipeline.State().Browse.CurrentTaskID)

	h.backend.setTasks([]backend.Task{{ID: 3, Title: "Water plants"}, {ID: 1, Title: "Pay bill"}})
	_, err = h.pipeline.Refresh(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(3), h.pipeline.State().Browse.CurrentTaskID)

	h.backend.setTasks(nil)
	_, err = h.pipeline.Refresh(context.Background())
	require.NoError(t, err)
	require.Zero(t, h.pipeline.State().Browse.CurrentTaskID)
	require.Nil(t, h.pipeline.Snapshot().CurrentTask)
}

func TestRefreshFailureKeepsSnapshot(t *testing.T) {
	h := newHarness(t, Options{})
	h.backend.setTasks([]backend.Task{{ID: 1, Title: "Pay bill"}})
	_, err := h.pipeline.Refresh(context.Background())
	require.NoError(t, err)

	h.backend.failOn = "events"
	_, err = h.pipeline.Refresh(context.Background())
	require.ErrorContains(t, err, "refresh events")
	require.Equal(t, int32(1), h.metrics.refreshes.Load())
	require.Len(t, h.pipeline.Snapshot().Tasks, 1)
}

func TestDoneCurrentTask(t *testing.T) {
	h := newHarness(t, Options{})
	_, err := h.pipeline.DoneCurrentTask(context.Background())
	require.ErrorIs(t, err, ErrNoCurrentTask)

	h.backend.setTasks([]backend.Task{{ID: 7, Title: "Pay bill"}})
	_, err = h.pipeline.Refresh(context.Background())
	require.NoError(t, err)

	task, err := h.pipeline.DoneCurrentTask(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(7), task.ID)
	require.Equal(t, int32(1), h.backend.doneTasks.Load())
	require.Equal(t, 2, h.backend.count("dashboard"))

	require.NoError(t, h.pipeline.DoneReminder(context.Background(), 4, "meds:am"))
	require.Equal(t, 1, h.backend.count("done_reminder"))
	require.Equal(t, 3, h.backend.count("dashboard"))
}

func TestRunRefreshStopsOnCancel(t *testing.T) {
	h := newHarness(t, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.pipeline.RunRefresh(ctx, 5*time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool { return h.backend.count("dashboard") >= 2 }, time.Second, time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("refresh loop did not stop")
	}
}

func TestHushInterruptsSpeaker(t *testing.T) {
	h := newHarness(t, Options{})
	h.pipeline.Hush()
	require.Equal(t, int32(1), h.speaker.hush.Load())
}
