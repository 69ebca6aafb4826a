// Package version carries build metadata stamped in by ldflags.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// String describes the build. Commit and date fall back to the VCS stamp
// the go tool embeds when ldflags did not set them.
func String() string {
	commit, date := Commit, Date
	if info, ok := debug.ReadBuildInfo(); ok {
		commit, date = fromBuildSettings(info.Settings, commit, date)
	}
	return fmt.Sprintf("orb %s (commit=%s, date=%s, go=%s)", Version, commit, date, runtime.Version())
}

func fromBuildSettings(settings []debug.BuildSetting, commit, date string) (string, string) {
	for _, s := range settings {
		switch {
		case s.Key == "vcs.revision" && commit == "none" && s.Value != "":
			commit = s.Value[:min(12, len(s.Value))]
		case s.Key == "vcs.time" && date == "unknown" && s.Value != "":
			date = s.Value
		}
	}
	return commit, date
}
