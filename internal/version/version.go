// Package version carries build metadata. Release builds set the
// variables with -ldflags; binaries built with go install fall back to
// the module version and VCS revision recorded by the toolchain.
package version

import (
	"fmt"
	"runtime/debug"
)

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// Info is the resolved build metadata.
type Info struct {
	Version   string
	Commit    string
	BuildDate string
}

// Get resolves the build metadata, filling unset ldflags values from
// the embedded build info.
func Get() Info {
	info := Info{Version: Version, Commit: Commit, BuildDate: BuildDate}
	if bi, ok := debug.ReadBuildInfo(); ok {
		info = fromBuildInfo(info, bi)
	}
	return info
}

func fromBuildInfo(info Info, bi *debug.BuildInfo) Info {
	if info.Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		info.Version = bi.Main.Version
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if info.Commit == "unknown" && s.Value != "" {
				info.Commit = s.Value
				if len(info.Commit) > 12 {
					info.Commit = info.Commit[:12]
				}
			}
		case "vcs.time":
			if info.BuildDate == "unknown" && s.Value != "" {
				info.BuildDate = s.Value
			}
		}
	}
	return info
}

func (i Info) String() string {
	return fmt.Sprintf("%s (commit: %s, built: %s)", i.Version, i.Commit, i.BuildDate)
}

// String returns the version with commit and build date.
func String() string {
	return Get().String()
}
