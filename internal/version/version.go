// Package version provides build-time version information.
//
// Variables are set at build time via ldflags:
//
//	go build -ldflags "-X github.com/rickgao/discord-core/internal/version.Version=1.0.0 \
//	                   -X github.com/rickgao/discord-core/internal/version.Commit=$(git rev-parse --short HEAD)"
package version

import "fmt"

// Build-time variables (set via ldflags)
var (
	// Version is the semantic version (e.g., "1.0.0")
	Version = "dev"

	// Commit is the git commit hash (short form)
	Commit = "unknown"

	// BuildTime is the UTC build timestamp (ISO 8601)
	BuildTime = "unknown"
)

// Name is the library name reported in identify properties.
const Name = "discord-core"

// ProjectURL is advertised in the User-Agent header.
const ProjectURL = "https://github.com/rickgao/discord-core"

// String returns a formatted version string.
func String() string {
	return Version + " (" + Commit + ") built " + BuildTime
}

// UserAgent returns the User-Agent value the platform expects from bots:
// "DiscordBot ($url, $versionNumber)".
func UserAgent() string {
	return fmt.Sprintf("DiscordBot (%s, %s)", ProjectURL, Version)
}
