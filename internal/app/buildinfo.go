package app

import "fmt"

// Build information set with -ldflags by release builds.
var (
	BuildVersion = "0.0.0-dev"
	BuildCommit  = "unknown"
	BuildDate    = "unknown"
)

// VersionString is what `reportbuilder --version` prints.
func VersionString() string {
	return fmt.Sprintf("%s (commit %s, built %s)", BuildVersion, BuildCommit, BuildDate)
}
