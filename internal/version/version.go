// Package version provides build-time version information.
package version

import "fmt"

// Set at build time with -ldflags "-X cell-spine/internal/version.GitCommit=...".
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// String describes the running build.
func String() string {
	return fmt.Sprintf("cell-spine %s (commit %s, built %s)", Version, GitCommit, BuildTime)
}
