// Package version holds build metadata injected at link time.
package version

// Set via -ldflags at release build time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// Full returns the version with commit and build date.
func Full() string {
	return Version + " (" + Commit + ") " + Date
}
