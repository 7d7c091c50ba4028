// Package version exposes build metadata of the packager.
//
// Version, Commit and BuildTime are injected with -ldflags at release time.
package version
