package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// startServer serves handler on a fresh socket until the test ends.
func startServer(t *testing.T, handler HandlerFunc) (string, context.CancelFunc) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "orb.sock")
	listener, err := net.Listen("unix", path)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, listener, handler) }()

	var once bool
	stop := func() {
		if once {
			return
		}
		once = true
		cancel()
		require.NoError(t, <-done)
	}
	t.Cleanup(stop)
	return path, stop
}

// rawServer reads one request and answers it with reply verbatim.
func rawServer(t *testing.T, reply string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "orb.sock")
	listener, err := net.Listen("unix", path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = listener.Close() })

	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		_, _ = bufio.NewReader(conn).ReadBytes('\n')
		_, _ = conn.Write([]byte(reply))
	}()
	return path
}

func TestSendRoundTrip(t *testing.T) {
	path, _ := startServer(t, func(_ context.Context, req Request) Response {
		return Response{OK: true, State: "recording", Message: req.Command + ":" + req.Text}
	})

	resp, err := Send(context.Background(), path, Request{Command: "say", Text: "next task"}, 200*time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, Response{OK: true, State: "recording", Message: "say:next task"}, resp)
}

func TestSendResponseErrors(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		wantErr string
	}{
		{name: "not json", reply: "not-json\n", wantErr: "decode response"},
		{name: "hang up", reply: "", wantErr: "read response"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path := rawServer(t, tc.reply)
			_, err := Send(context.Background(), path, Request{Command: "status"}, 200*time.Millisecond)
			require.ErrorContains(t, err, tc.wantErr)
		})
	}
}

func TestSendHonoursCancellation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orb.sock")
	listener, err := net.Listen("unix", path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = listener.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		_, _ = bufio.NewReader(conn).ReadBytes('\n')
		cancel()
		time.Sleep(time.Second)
	}()

	start := time.Now()
	_, err = Send(ctx, path, Request{Command: "status"}, 5*time.Second)
	require.ErrorContains(t, err, "read response")
	require.Less(t, time.Since(start), 900*time.Millisecond)
}

func TestExchangeOverPipe(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()

	go func() {
		defer server.Close()
		line, err := bufio.NewReader(server).ReadBytes('\n')
		if err != nil {
			return
		}
		var req Request
		_ = json.Unmarshal(line, &req)
		_ = json.NewEncoder(server).Encode(Response{OK: true, Message: strings.ToUpper(req.Text)})
	}()

	resp, err := exchange(client, Request{Command: "say", Text: "hello"})
	require.NoError(t, err)
	require.Equal(t, "HELLO", resp.Message)
}

func TestServeRejectsMalformedRequest(t *testing.T) {
	path, _ := startServer(t, func(context.Context, Request) Response {
		return Response{OK: true}
	})

	conn, err := net.Dial("unix", path)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("not-json\n"))
	require.NoError(t, err)

	var resp Response
	require.NoError(t, json.NewDecoder(conn).Decode(&resp))
	require.False(t, resp.OK)
	require.Contains(t, resp.Error, "decode request")
}

func TestProbe(t *testing.T) {
	path, stop := startServer(t, func(context.Context, Request) Response {
		return Response{OK: true, State: "idle"}
	})

	alive, err := Probe(context.Background(), path, 200*time.Millisecond)
	require.NoError(t, err)
	require.True(t, alive)

	stop()
	alive, err = Probe(context.Background(), path, 100*time.Millisecond)
	require.NoError(t, err)
	require.False(t, alive)
}

func TestForward(t *testing.T) {
	_, err := Forward(context.Background(), filepath.Join(t.TempDir(), "orb.sock"), Request{Command: "toggle"}, 100*time.Millisecond)
	require.ErrorIs(t, err, ErrNoDaemon)

	path, _ := startServer(t, func(_ context.Context, req Request) Response {
		switch req.Command {
		case "status":
			return Response{OK: true, State: "idle", Level: 0.25}
		case "cancel":
			return Response{OK: false, State: "transcribing"}
		default:
			return Response{OK: false, State: "idle", Error: "cannot stop from state idle"}
		}
	})

	resp, err := Forward(context.Background(), path, Request{Command: "status"}, 200*time.Millisecond)
	require.NoError(t, err)
	require.InDelta(t, 0.25, resp.Level, 1e-9)

	resp, err = Forward(context.Background(), path, Request{Command: "stop"}, 200*time.Millisecond)
	require.EqualError(t, err, "cannot stop from state idle")
	require.Equal(t, "idle", resp.State)

	resp, err = Forward(context.Background(), path, Request{Command: "cancel"}, 200*time.Millisecond)
	require.EqualError(t, err, "daemon rejected cancel")
	require.Equal(t, "transcribing", resp.State)
}

func TestReadRequest(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Request
		wantErr string
	}{
		{name: "say with text", input: `{"command":" say ","text":"next task"}` + "\n", want: Request{Command: "say", Text: "next task"}},
		{name: "missing newline", input: `{"command":"status"}`, wantErr: "read request"},
		{name: "not json", input: "nope\n", wantErr: "decode request"},
		{name: "blank command", input: `{"command":"  "}` + "\n", wantErr: "command is required"},
		{name: "oversized", input: `{"command":"say","text":"` + strings.Repeat("a", maxRequestBytes) + `"}` + "\n", wantErr: "larger than"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req, err := readRequest(strings.NewReader(tc.input))
			if tc.wantErr != "" {
				require.Error(t, err)
				require.Contains(t, err.Error(), tc.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, req)
		})
	}
}

func TestFailure(t *testing.T) {
	resp := Failure("busy: %s", "recording")
	require.False(t, resp.OK)
	require.Equal(t, "busy: recording", resp.Error)
}
