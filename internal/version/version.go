// Package version identifies the mediaplug build. The plugin host reports
// it as the test pattern's plugin version.
package version

import "fmt"

// VERSION and Commit are set at build time via:
//
//	go build -ldflags "-X github.com/chronologos/mediaplug/internal/version.VERSION=0.1.0 -X github.com/chronologos/mediaplug/internal/version.Commit=abc123"
var (
	VERSION = "dev"
	Commit  = "dev"
)

// String is the human-readable build identifier.
func String() string {
	return fmt.Sprintf("%s (%s)", VERSION, Commit)
}
