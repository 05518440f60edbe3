// Package build holds build-time information.
package build

// Set by linker flags, e.g. -X go.trai.ch/haul/internal/build.Version=v1.2.0.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)
