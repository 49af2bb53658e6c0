// Package buildinfo holds build-time metadata injected with -ldflags, e.g.
//
//	-X github.com/tphakala/birdclef-go/internal/buildinfo.Version=v1.2.0
package buildinfo

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Injected at build time
var (
	Version   = ""
	BuildDate = ""
)

// Context contains build-time metadata that is not user-configurable
type Context struct {
	Version   string
	BuildDate string
	GoVersion string
	Platform  string
}

// Current returns the metadata of the running binary. Without injected
// values the module version recorded by the Go toolchain is used.
func Current() Context {
	c := Context{
		Version:   Version,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
	if c.Version == "" {
		if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
			c.Version = info.Main.Version
		}
	}
	return c
}

// GetVersion returns the version, or "unknown"
func (c Context) GetVersion() string {
	if c.Version == "" {
		return "unknown"
	}
	return c.Version
}

// GetBuildDate returns the build date, or "unknown"
func (c Context) GetBuildDate() string {
	if c.BuildDate == "" {
		return "unknown"
	}
	return c.BuildDate
}

func (c Context) String() string {
	return fmt.Sprintf("birdclef %s (%s, %s, %s)", c.GetVersion(), c.GetBuildDate(), c.GoVersion, c.Platform)
}
