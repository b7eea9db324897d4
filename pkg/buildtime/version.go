// Package buildtime holds version information stamped at build.
package buildtime

import (
	"runtime/debug"
)

// set with -ldflags "-X github.com/opst/mdclient/pkg/buildtime.version=..."
var version = "dev"

// set with -ldflags "-X github.com/opst/mdclient/pkg/buildtime.revision=..."
var revision = ""

func VERSION() string {
	return version
}

// GIT_REVISION returns the stamped revision, or vcs.revision of the build info.
func GIT_REVISION() string {
	if revision != "" {
		return revision
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "unknown"
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" {
			return s.Value
		}
	}
	return "unknown"
}

func VersionString() string {
	return VERSION() + " (commit: " + GIT_REVISION() + ")"
}
