package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"syscall"
	"time"
)

// ErrNoDaemon indicates no daemon is listening on the socket.
var ErrNoDaemon = errors.New("no running orb daemon")

// Send performs one request/response exchange. timeout bounds the dial and
// the exchange together; cancelling ctx aborts a blocked read.
func Send(ctx context.Context, path string, req Request, timeout time.Duration) (Response, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "unix", path)
	if err != nil {
		return Response{}, err
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return Response{}, fmt.Errorf("set deadline: %w", err)
		}
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	defer stop()

	return exchange(conn, req)
}

// exchange writes req as one JSON line and reads one response line back.
func exchange(rw io.ReadWriter, req Request) (Response, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return Response{}, fmt.Errorf("encode request: %w", err)
	}
	if _, err := rw.Write(append(payload, '\n')); err != nil {
		return Response{}, fmt.Errorf("write request: %w", err)
	}

	line, err := bufio.NewReader(rw).ReadBytes('\n')
	if err != nil {
		return Response{}, fmt.Errorf("read response: %w", err)
	}
	var resp Response
	if err := json.Unmarshal(line, &resp); err != nil {
		return Response{}, fmt.Errorf("decode response: %w", err)
	}
	return resp, nil
}

// Forward sends one command to the running daemon. A missing or refusing
// socket maps to ErrNoDaemon; a daemon-side failure is returned as an error
// alongside the response.
func Forward(ctx context.Context, path string, req Request, timeout time.Duration) (Response, error) {
	resp, err := Send(ctx, path, req, timeout)
	switch {
	case noListener(err):
		return Response{}, ErrNoDaemon
	case err != nil:
		return Response{}, err
	case !resp.OK && resp.Error != "":
		return resp, errors.New(resp.Error)
	case !resp.OK:
		return resp, fmt.Errorf("daemon rejected %s", req.Command)
	}
	return resp, nil
}

// Probe reports whether a daemon answers on path. An error means the socket
// exists but its state could not be determined.
func Probe(ctx context.Context, path string, timeout time.Duration) (bool, error) {
	_, err := Send(ctx, path, Request{Command: "status"}, timeout)
	switch {
	case err == nil:
		return true, nil
	case noListener(err):
		return false, nil
	default:
		return false, fmt.Errorf("probe socket: %w", err)
	}
}

// noListener matches a socket file that is absent or has nobody accepting.
func noListener(err error) bool {
	return errors.Is(err, os.ErrNotExist) || errors.Is(err, syscall.ECONNREFUSED)
}
