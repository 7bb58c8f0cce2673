// Package version holds build metadata for the relkit binary.
package version

import "fmt"

// Overridden at build time:
//
//	go build -ldflags "-X relkit/internal/version.Version=1.2.0 -X relkit/internal/version.Commit=$(git rev-parse HEAD)"
var (
	Version   = "0.4.0"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// Info returns the version with a short commit suffix when one is known.
func Info() string {
	if Commit == "unknown" || len(Commit) < 7 {
		return Version
	}
	return fmt.Sprintf("%s (%s)", Version, Commit[:7])
}

// Full returns a multi-line description of the build.
func Full() string {
	return fmt.Sprintf("relkit version %s\nCommit: %s\nBuilt: %s", Version, Commit, BuildDate)
}
