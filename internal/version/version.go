// Package version reports build information for the procure binary.
package version

import (
	"fmt"
	"runtime/debug"
)

// Set at build time via -ldflags "-X .../version.Commit=...".
var (
	Version   = "dev"
	Commit    = ""
	BuildTime = "unknown"
)

// String returns e.g. "procure dev (commit: 0123456, built: 2026-10-01T00:00:00Z)".
func String() string {
	return fmt.Sprintf("procure %s (commit: %s, built: %s)", Version, shortCommit(commit()), BuildTime)
}

// commit prefers the ldflags value and falls back to the VCS revision
// embedded by the go toolchain.
func commit() string {
	if Commit != "" {
		return Commit
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" && s.Value != "" {
				return s.Value
			}
		}
	}
	return "unknown"
}

func shortCommit(c string) string {
	if len(c) > 7 {
		return c[:7]
	}
	return c
}
