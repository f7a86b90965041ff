// Package buildinfo holds build-time variables injected via ldflags.
package buildinfo

import "fmt"

// Populated by -ldflags at build time; defaults used for local dev.
var (
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
	GitBranch = "unknown"
)

// String describes the build on one line.
func String() string {
	return fmt.Sprintf("%s (commit %s, branch %s, built %s)", Version, GitCommit, GitBranch, BuildDate)
}
