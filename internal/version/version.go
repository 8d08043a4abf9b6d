// Package version reports build metadata of the apikit binary.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Set via ldflags at build time:
//
//	go build -ldflags "-X github.com/soyeahso/apikit/internal/version.Version=1.0.0
//	  -X github.com/soyeahso/apikit/internal/version.Commit=abc123
//	  -X github.com/soyeahso/apikit/internal/version.Date=2026-01-01"
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// Build describes the running binary.
type Build struct {
	Version   string
	Commit    string
	Date      string
	GoVersion string
	Platform  string
}

// Current returns the build metadata. Values not injected at link time fall
// back to what the Go toolchain stamped into the binary, if anything.
func Current() Build {
	b := Build{
		Version:   Version,
		Commit:    Commit,
		Date:      Date,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return b
	}
	if b.Version == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		b.Version = info.Main.Version
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			if b.Commit == "unknown" {
				b.Commit = s.Value
			}
		case "vcs.time":
			if b.Date == "unknown" {
				b.Date = s.Value
			}
		}
	}
	return b
}

func (b Build) String() string {
	return fmt.Sprintf("apikit %s (commit: %s, built: %s, %s, %s)",
		b.Version, short(b.Commit), b.Date, b.GoVersion, b.Platform)
}

// Info returns a formatted version string.
func Info() string {
	return Current().String()
}

func short(s string) string {
	if len(s) > 7 {
		return s[:7]
	}
	return s
}
