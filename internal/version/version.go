// Package version carries build metadata stamped in at link time:
//
//	go build -ldflags "-X git.home.luguber.info/inful/press/internal/version.Version=v1.0.0"
package version

import "fmt"

var (
	Version   = "unknown"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// String formats the metadata for --version.
func String() string {
	return fmt.Sprintf("press %s (commit %s, built %s)", Version, GitCommit, BuildTime)
}
