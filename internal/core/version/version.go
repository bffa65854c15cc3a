// Package version holds build information, set with -ldflags at release time.
package version

import (
	"fmt"
	"runtime"
)

// Version is overridden with -ldflags "-X github.com/guiyumin/streamscribe/internal/core/version.Version=x.y.z"
var Version = "dev"

// Commit is the git revision the binary was built from
var Commit = ""

// String returns "v<version> <os>/<arch>", with the commit when known.
func String() string {
	s := fmt.Sprintf("v%s %s/%s", Version, runtime.GOOS, runtime.GOARCH)
	if Commit != "" {
		s += " (" + Commit + ")"
	}
	return s
}
