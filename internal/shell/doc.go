// Package shell runs the external tools the packager delegates to
// (git, pio) and reports their outcome.
package shell
