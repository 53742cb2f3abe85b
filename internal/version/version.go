// Package version holds build metadata injected with -ldflags.
package version

import "fmt"

// Set at build time:
//
//	go build -ldflags "-X agentbridge/internal/version.Version=v1.2.3 -X agentbridge/internal/version.Commit=$(git rev-parse --short HEAD)"
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// Info returns a one-line version string.
func Info() string {
	return fmt.Sprintf("agentbridge %s (commit %s, built %s)", Version, Commit, Date)
}
