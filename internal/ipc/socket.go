package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"
)

// ErrAlreadyRunning is returned when a live daemon already owns the socket.
var ErrAlreadyRunning = errors.New("orb daemon already running")

// SocketName is the daemon socket file under XDG_RUNTIME_DIR.
const SocketName = "orb.sock"

// RuntimeSocketPath returns $XDG_RUNTIME_DIR/orb.sock.
func RuntimeSocketPath() (string, error) {
	runtimeDir := strings.TrimSpace(os.Getenv("XDG_RUNTIME_DIR"))
	if runtimeDir == "" {
		return "", errors.New("XDG_RUNTIME_DIR is not set")
	}
	return filepath.Join(runtimeDir, SocketName), nil
}

// AcquireOptions tunes stale-socket recovery.
type AcquireOptions struct {
	// ProbeTimeout bounds the status probe sent to an existing socket.
	ProbeTimeout time.Duration
	// Retries is how many times a stale socket is cleared before giving up.
	Retries int
	// Rescue runs after a stale socket is removed.
	Rescue func(context.Context) error
}

// Owner is the daemon's listening socket. Close unlinks the socket file when it
// is still the one this process created.
type Owner struct {
	net.Listener

	path string
	info os.FileInfo

	once     sync.Once
	closeErr error
}

// Path returns the socket path.
func (o *Owner) Path() string {
	return o.path
}

func (o *Owner) Close() error {
	o.once.Do(func() {
		o.closeErr = o.Listener.Close()
		current, err := os.Stat(o.path)
		if err != nil || (o.info != nil && !os.SameFile(o.info, current)) {
			return
		}
		if err := os.Remove(o.path); err != nil && !errors.Is(err, os.ErrNotExist) && o.closeErr == nil {
			o.closeErr = fmt.Errorf("remove socket %s: %w", o.path, err)
		}
	})
	return o.closeErr
}

// Acquire listens on path. A socket left by a dead daemon is removed and the
// listen retried; a socket answering the status probe yields ErrAlreadyRunning.
func Acquire(ctx context.Context, path string, opts AcquireOptions) (*Owner, error) {
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = 180 * time.Millisecond
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("ensure runtime socket dir: %w", err)
	}

	for attempt := 0; attempt <= opts.Retries; attempt++ {
		listener, err := net.Listen("unix", path)
		if err == nil {
			// net.UnixListener unlinks on Close by default; Owner decides instead.
			if ul, ok := listener.(*net.UnixListener); ok {
				ul.SetUnlinkOnClose(false)
			}
			_ = os.Chmod(path, 0o600)
			info, _ := os.Stat(path)
			return &Owner{Listener: listener, path: path, info: info}, nil
		}
		if !errors.Is(err, syscall.EADDRINUSE) {
			return nil, fmt.Errorf("listen unix %s: %w", path, err)
		}

		alive, probeErr := Probe(ctx, path, opts.ProbeTimeout)
		if alive {
			return nil, ErrAlreadyRunning
		}
		if probeErr != nil {
			return nil, fmt.Errorf("probe existing socket %s: %w", path, probeErr)
		}

		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("remove stale socket %s: %w", path, err)
		}
		if opts.Rescue != nil {
			_ = opts.Rescue(ctx)
		}

		if attempt < opts.Retries {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(25*(attempt+1)) * time.Millisecond):
			}
		}
	}

	return nil, fmt.Errorf("failed to acquire socket %s after %d retries", path, opts.Retries)
}
