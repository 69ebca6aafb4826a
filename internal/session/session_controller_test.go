package session

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rbright/orb/internal/backend"
	"github.com/rbright/orb/internal/fsm"
	"github.com/rbright/orb/internal/ipc"
	"github.com/rbright/orb/internal/pipeline"
)

func ipcRequest(command string) ipc.Request {
	return ipc.Request{Command: command}
}

func TestHandleStatusAndUnknownCommand(t *testing.T) {
	ctrl := NewController(nil, &fakeRecorder{}, &fakePipeline{}, WithLevel(func() float64 { return 0.42 }))

	status := ctrl.Handle(context.Background(), ipcRequest("status"))
	require.True(t, status.OK)
	require.Equal(t, string(fsm.StateIdle), status.State)
	require.InDelta(t, 0.42, status.Level, 1e-9)

	unknown := ctrl.Handle(context.Background(), ipcRequest("definitely-unknown"))
	require.False(t, unknown.OK)
	require.Contains(t, unknown.Error, "unknown command")
}

func TestRequestStopAndCancelStateGuards(t *testing.T) {
	pipe := &fakePipeline{}
	ctrl := NewController(nil, &fakeRecorder{}, pipe)

	stopFromIdle := ctrl.Handle(context.Background(), ipcRequest("stop"))
	require.False(t, stopFromIdle.OK)
	require.Contains(t, stopFromIdle.Error, "cannot stop from state idle")

	cancelFromIdle := ctrl.Handle(context.Background(), ipcRequest("cancel"))
	require.True(t, cancelFromIdle.OK)
	require.Equal(t, "speech stopped", cancelFromIdle.Message)
	require.Equal(t, int32(1), pipe.hushes.Load())

	for _, state := range []fsm.State{fsm.StateTranscribing, fsm.StateDispatching} {
		ctrl.mu.Lock()
		ctrl.state = state
		ctrl.mu.Unlock()

		stop := ctrl.Handle(context.Background(), ipcRequest("stop"))
		require.False(t, stop.OK)
		require.Contains(t, stop.Error, "already transcribing")

		cancel := ctrl.Handle(context.Background(), ipcRequest("cancel"))
		require.False(t, cancel.OK)
		require.Contains(t, cancel.Error, "cannot cancel while transcribing")

		toggle := ctrl.Handle(context.Background(), ipcRequest("toggle"))
		require.False(t, toggle.OK)
		require.Contains(t, toggle.Error, "busy")
	}
}

func TestRequestAlreadyQueued(t *testing.T) {
	ctrl := NewController(nil, &fakeRecorder{}, &fakePipeline{})

	ctrl.actions <- actionStart
	resp := ctrl.Handle(context.Background(), ipcRequest("toggle"))
	require.True(t, resp.OK)
	require.Equal(t, "action already requested", resp.Message)

	<-ctrl.actions
	ctrl.mu.Lock()
	ctrl.state = fsm.StateRecording
	ctrl.mu.Unlock()

	ctrl.actions <- actionStop
	cancel := ctrl.requestCancel()
	require.True(t, cancel.OK)
	require.Equal(t, "action already requested", cancel.Message)
}

func TestSaySubmitsTypedText(t *testing.T) {
	pipe := &fakePipeline{}
	ctrl := NewController(nil, &fakeRecorder{}, pipe)

	resp := ctrl.Handle(context.Background(), ipc.Request{Command: "say", Text: "  next task "})
	require.True(t, resp.OK)
	require.Equal(t, "Next task: Pay bill.", resp.Message)
	require.Equal(t, []pipeline.Source{pipeline.SourceTyped}, pipe.Sources())
	require.Equal(t, []string{"next task"}, pipe.texts)

	blank := ctrl.Handle(context.Background(), ipc.Request{Command: "say", Text: " "})
	require.False(t, blank.OK)
	require.Contains(t, blank.Error, "requires text")

	pipe.submitErr = pipeline.ErrSubmissionInFlight
	busy := ctrl.Handle(context.Background(), ipc.Request{Command: "say", Text: "next task"})
	require.False(t, busy.OK)
	require.Equal(t, pipeline.ErrSubmissionInFlight.Error(), busy.Error)
}

func TestDoneTaskCommand(t *testing.T) {
	pipe := &fakePipeline{doneTask: backend.Task{ID: 3, Title: "Pay bill"}}
	ctrl := NewController(nil, &fakeRecorder{}, pipe)

	resp := ctrl.Handle(context.Background(), ipcRequest("done-task"))
	require.True(t, resp.OK)
	require.Equal(t, "Done: Pay bill", resp.Message)

	pipe.doneErr = pipeline.ErrNoCurrentTask
	resp = ctrl.Handle(context.Background(), ipcRequest("done-task"))
	require.False(t, resp.OK)
	require.Equal(t, pipeline.ErrNoCurrentTask.Error(), resp.Error)
}

func TestRunUnknownAction(t *testing.T) {
	ctrl := NewController(nil, &fakeRecorder{}, &fakePipeline{})
	result, ok := ctrl.apply(context.Background(), action(99))
	require.True(t, ok)
	require.Error(t, result.Err)
	require.Contains(t, result.Err.Error(), "unknown action")
	require.Equal(t, fsm.StateIdle, result.State)
}

func TestRunCancelsRecordingOnShutdown(t *testing.T) {
	recorder := &fakeRecorder{}
	ctrl := NewController(nil, recorder, &fakePipeline{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ctrl.Run(ctx) }()

	ctrl.Handle(ctx, ipcRequest("toggle"))
	waitForState(t, ctrl, fsm.StateRecording)
	cancel()

	require.NoError(t, <-done)
	require.Equal(t, int32(1), recorder.cancelCalls.Load())
	require.Equal(t, fsm.StateIdle, ctrl.State())
}

func TestCaptureFailureReason(t *testing.T) {
	require.Equal(t, "other", captureFailureReason(errors.New("boom")))
}
