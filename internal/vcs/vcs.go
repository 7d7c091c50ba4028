package vcs

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// Client performs the version control operations the packager needs.
type Client interface {
	// Update refreshes an existing working copy in dir.
	Update(ctx context.Context, dir string) error
	// Clone creates a fresh working copy of url in dir.
	Clone(ctx context.Context, url, dir string) error
	// Describe returns the nearest tag of the checked out commit.
	Describe(ctx context.Context, dir string) (string, error)
}

// Options tunes both backends.
type Options struct {
	// Verbose makes the backend report transfer progress.
	Verbose bool
	// RecurseSubmodules clones and updates submodules too.
	RecurseSubmodules bool
	// Depth limits clone history; zero means full history.
	Depth int
	// Progress receives transfer progress when Verbose is set.
	Progress io.Writer
}

const (
	// BackendGoGit selects the go-git implementation.
	BackendGoGit = "go-git"
	// BackendCLI selects the git executable.
	BackendCLI = "cli"
)

var (
	// ErrUnknownBackend is returned by New for unsupported backend names.
	ErrUnknownBackend = errors.New("unknown vcs backend")
	// ErrNoTags is returned by Describe when no tag is reachable from HEAD.
	ErrNoTags = errors.New("no tags found, cannot describe anything")
)

// New returns the Client implementation for backend.
//
//nolint:ireturn // Callers pick the backend from configuration.
func New(backend string, opts Options) (Client, error) {
	switch backend {
	case BackendGoGit, "":
		return NewGoGit(opts), nil
	case BackendCLI:
		return NewCLI(opts), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}
}
