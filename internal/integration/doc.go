// Package integration runs the packager end to end against local git repositories.
package integration
