// Package version holds build-time version information.
package version

// Set at build time via -ldflags, e.g.
// -X github.com/tuptime/tuptime/internal/version.Version=v0.3.0
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)
