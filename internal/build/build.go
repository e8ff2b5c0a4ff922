// Package build holds build-time metadata injected via ldflags.
package build

var (
	// Version is the semantic version of the binary, set at build time.
	Version = "0.0.0"

	// AppName is the canonical name of the application.
	AppName = "logocache"
)
