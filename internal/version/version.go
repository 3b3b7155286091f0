// Package version holds build metadata set with -ldflags.
package version

// Set at build time:
//
//	-ldflags "-X github.com/sydlexius/artbrowser/internal/version.Version=v1.2.3 -X github.com/sydlexius/artbrowser/internal/version.Commit=abc1234"
var (
	Version = "dev"
	Commit  = "unknown"
)

// String returns "Version (Commit)".
func String() string {
	return Version + " (" + Commit + ")"
}
