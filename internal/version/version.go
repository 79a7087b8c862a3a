// Package version reports the build version of the daemon.
package version

import (
	"fmt"
	"runtime/debug"
)

// These variables can be set at build time via ldflags:
//
//	go build -ldflags="-X github.com/Gamer08YT/ByteWaterlevel/internal/version.Version=v1.2.3 \
//	                   -X github.com/Gamer08YT/ByteWaterlevel/internal/version.Commit=abc123"
//
// When unset they are filled from the VCS stamp in the build info, or "dev".
var (
	Version = ""
	Commit  = ""
)

func init() {
	if Version == "" || Commit == "" {
		populateFromBuildInfo()
	}
	if Version == "" {
		Version = "dev"
	}
	if Commit == "" {
		Commit = "unknown"
	}
}

func populateFromBuildInfo() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	if Version == "" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		Version = info.Main.Version
	}
	for _, setting := range info.Settings {
		if setting.Key == "vcs.revision" && Commit == "" {
			Commit = setting.Value
			if len(Commit) > 7 {
				Commit = Commit[:7]
			}
		}
	}
}

// String returns a one-line version description.
func String() string {
	return fmt.Sprintf("bytelevel %s (%s)", Version, Commit)
}
