// Package version reports build information for rulesync.
package version

import (
	"log/slog"
	"runtime"
	"runtime/debug"
)

var (
	Version   string // Set via ldflags.
	Branch    string
	BuildUser string
	BuildDate string

	Revision  = getRevision(readBuildInfo)
	GoVersion = runtime.Version()
	GoOS      = runtime.GOOS
	GoArch    = runtime.GOARCH
)

// GetVersion returns the release version, or the VCS revision for
// development builds.
func GetVersion() string {
	if Version != "" {
		return Version
	}

	return Revision
}

// LogValue returns the build information as a log group.
func LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("version", GetVersion()),
		slog.String("revision", Revision),
		slog.String("go", GoVersion),
		slog.String("platform", GoOS+"/"+GoArch),
	}
	if Branch != "" {
		attrs = append(attrs, slog.String("branch", Branch))
	}
	if BuildDate != "" {
		attrs = append(attrs, slog.String("date", BuildDate))
	}

	return slog.GroupValue(attrs...)
}

func readBuildInfo() (*debug.BuildInfo, bool) {
	return debug.ReadBuildInfo()
}

func getRevision(read func() (*debug.BuildInfo, bool)) string {
	rev := "unknown"

	buildInfo, ok := read()
	if !ok {
		return rev
	}

	modified := false

	for _, v := range buildInfo.Settings {
		switch v.Key {
		case "vcs.revision":
			rev = v.Value
			if len(rev) > 7 {
				rev = rev[:7]
			}

		case "vcs.modified":
			modified = v.Value == "true"
		}
	}

	if modified {
		return rev + "-dirty"
	}

	return rev
}
