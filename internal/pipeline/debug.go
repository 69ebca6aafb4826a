package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/rbright/orb/internal/capture"
)

const (
	dumpPrefix = "utterance-"
	// maxDumps is how many recordings the dump directory keeps.
	maxDumps = 50
)

// DebugDir returns $XDG_STATE_HOME/orb/debug, falling back to ~/.local/state.
func DebugDir() (string, error) {
	stateDir := strings.TrimSpace(os.Getenv("XDG_STATE_HOME"))
	if stateDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory for state: %w", err)
		}
		stateDir = filepath.Join(home, ".local", "state")
	}
	return filepath.Join(stateDir, "orb", "debug"), nil
}

// dump writes a recording to the debug directory when dumping is enabled.
func (p *Pipeline) dump(blob capture.Blob) {
	if p.opts.DumpDir == "" || blob.Size() == 0 {
		return
	}
	path, err := writeDump(p.opts.DumpDir, blob, time.Now())
	if err != nil {
		p.logWarn("unable to write debug audio dump", "error", err.Error())
		return
	}
	p.logDebug("debug audio dumped", "path", path, "bytes", blob.Size())

	if err := pruneDumps(p.opts.DumpDir, maxDumps); err != nil {
		p.logWarn("unable to prune debug audio dumps", "error", err.Error())
	}
}

// writeDump stores blob under a timestamped name. The file appears under its
// final name only once fully written.
func writeDump(dir string, blob capture.Blob, at time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("create debug dir: %w", err)
	}
	name := dumpPrefix + at.Format("20060102-150405.000") + "." + blobExtension(blob.MIMEType)
	path := filepath.Join(dir, name)

	tmp, err := os.CreateTemp(dir, ".partial-*")
	if err != nil {
		return "", fmt.Errorf("create debug file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(blob.Data); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("write debug file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close debug file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("publish debug file %q: %w", path, err)
	}
	return path, nil
}

// pruneDumps removes the oldest recordings beyond keep. Timestamped names
// sort chronologically.
func pruneDumps(dir string, keep int) error {
	matches, err := filepath.Glob(filepath.Join(dir, dumpPrefix+"*"))
	if err != nil {
		return err
	}
	if len(matches) <= keep {
		return nil
	}
	slices.Sort(matches)
	for _, path := range matches[:len(matches)-keep] {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

func blobExtension(mimeType string) string {
	base, _, _ := strings.Cut(mimeType, ";")
	switch strings.ToLower(strings.TrimSpace(base)) {
	case "audio/wav", "audio/x-wav", "audio/wave":
		return "wav"
	case "audio/ogg":
		return "ogg"
	case "audio/webm":
		return "webm"
	case "audio/mp4":
		return "m4a"
	default:
		return "bin"
	}
}
