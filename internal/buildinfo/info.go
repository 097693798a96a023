// Package buildinfo carries release metadata stamped in with -ldflags, e.g.
//
//	go build -ldflags "-X github.com/fundsync-dev/fundsync/internal/buildinfo.Version=v0.3.0"
package buildinfo

import "fmt"

var (
	// Version is the release tag, set via ldflags.
	Version = "dev"
	// Commit is the git revision, set via ldflags.
	Commit = "none"
	// Date is the build timestamp, set via ldflags.
	Date = "unknown"
)

// String renders the version line shown by `fundsync --version`.
func String() string {
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, Date)
}
