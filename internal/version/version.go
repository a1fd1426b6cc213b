// Package version holds shelfindex build metadata set with
// -ldflags "-X github.com/kailas-cloud/shelfindex/internal/version.Version=...".
package version

//nolint:revive // Set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// String renders the metadata for --version output.
func String() string {
	return Version + " (commit " + Commit + ", built " + Date + ")"
}
