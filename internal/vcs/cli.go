package vcs

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/t04glovern/pio-stm32cube-package-creator/internal/shell"
)

// commandRunner is the part of shell.Runner the CLI backend uses.
type commandRunner interface {
	Run(ctx context.Context, dir, name string, args ...string) error
	Output(ctx context.Context, dir, name string, args ...string) (string, error)
}

// gitExecutable is the program invoked by the CLI backend.
const gitExecutable = "git"

// CLI implements Client by running the git executable.
type CLI struct {
	opts   Options
	runner commandRunner
}

// NewCLI creates a client that shells out to git.
func NewCLI(opts Options) *CLI {
	return &CLI{
		opts:   opts,
		runner: &shell.Runner{Stdout: opts.Progress},
	}
}

// Update runs "git pull" inside dir.
func (c *CLI) Update(ctx context.Context, dir string) error {
	args := c.subcommand("pull")
	if c.opts.RecurseSubmodules {
		args = append(args, "--recurse-submodules")
	}

	if err := c.runner.Run(ctx, dir, gitExecutable, args...); err != nil {
		return fmt.Errorf("git pull: %w", err)
	}

	return nil
}

// Clone runs "git clone url dir" from the parent of dir.
func (c *CLI) Clone(ctx context.Context, url, dir string) error {
	args := c.subcommand("clone")
	if c.opts.RecurseSubmodules {
		args = append(args, "--recurse-submodules")
	}

	if c.opts.Depth > 0 {
		args = append(args, "--depth", strconv.Itoa(c.opts.Depth), "--no-single-branch")
	}

	args = append(args, url, filepath.Base(dir))

	if err := c.runner.Run(ctx, filepath.Dir(dir), gitExecutable, args...); err != nil {
		return fmt.Errorf("git clone: %w", err)
	}

	return nil
}

// Describe runs "git describe --tags" inside dir.
func (c *CLI) Describe(ctx context.Context, dir string) (string, error) {
	out, err := c.runner.Output(ctx, dir, gitExecutable, "describe", "--tags")
	if err != nil {
		return "", fmt.Errorf("git describe: %w", err)
	}

	if out == "" {
		return "", ErrNoTags
	}

	return out, nil
}

// subcommand returns the git arguments for name, with -v right after it when verbose.
func (c *CLI) subcommand(name string) []string {
	if c.opts.Verbose {
		return []string{name, "-v"}
	}

	return []string{name}
}
