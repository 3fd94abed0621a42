// Package version exposes the build's identity, stamped at link time:
//
//	go build -ldflags "-X github.com/nook-dev/nook/pkg/version.Version=v0.3.0 \
//	    -X github.com/nook-dev/nook/pkg/version.Commit=$(git rev-parse --short HEAD)"
package version

import "fmt"

var (
	// Version is the semantic version, "dev" for unstamped builds.
	Version = "dev"
	// Commit is the short VCS revision the binary was built from.
	Commit = ""
)

// String renders "v0.3.0 (abc1234)" or just the version when no commit
// was stamped.
func String() string {
	if Commit == "" {
		return Version
	}
	return fmt.Sprintf("%s (%s)", Version, Commit)
}
