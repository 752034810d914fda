// Package version exposes the build version stamped at link time.
package version

// Version is overridden via -ldflags "-X github.com/pipcast/backend/internal/version.Version=v1.2.3".
var Version = "dev"

// String returns the current application version.
func String() string {
	return Version
}
