package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// develVersion marks builds without injected metadata.
const develVersion = "dev"

var (
	// Version is the release of the packager. It can be overridden via ldflags.
	Version = develVersion
	// Commit is the short git SHA embedded at build time (or "none").
	Commit = "none"
	// BuildTime is the UTC build timestamp embedded at build time.
	BuildTime = "unknown"
)

// Short returns only the version string. Builds installed with "go install"
// report the module version when nothing was injected.
func Short() string {
	if Version != develVersion {
		return Version
	}

	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}

	return Version
}

// Full returns a human-readable version string with commit, build time and toolchain.
func Full() string {
	return fmt.Sprintf("stm32cube-packager %s, commit: %s, built at: %s, %s %s/%s",
		Short(), Commit, BuildTime, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
