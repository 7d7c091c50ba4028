package shell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/t04glovern/pio-stm32cube-package-creator/internal/logger"
)

// ErrCommandFailed wraps non-zero exits of external commands.
var ErrCommandFailed = errors.New("command failed")

// Runner executes external commands. The zero value streams output to the process stdout/stderr.
type Runner struct {
	// Stdout receives the command output; defaults to os.Stdout.
	Stdout io.Writer
	// Stderr receives the command error output; defaults to os.Stderr.
	Stderr io.Writer
}

// Run executes name with args inside dir and waits for it to finish.
func (r *Runner) Run(ctx context.Context, dir, name string, args ...string) error {
	logger.InfoKV(ctx, "Executing command", "command", commandLine(name, args), "path", dir)

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Stdout = r.stdout()
	cmd.Stderr = r.stderr()

	return wrapExit(name, cmd.Run())
}

// Output executes name with args inside dir and returns its trimmed stdout.
func (r *Runner) Output(ctx context.Context, dir, name string, args ...string) (string, error) {
	logger.DebugKV(ctx, "Executing command", "command", commandLine(name, args), "path", dir)

	var stdout bytes.Buffer

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Stdout = &stdout
	cmd.Stderr = r.stderr()

	if err := wrapExit(name, cmd.Run()); err != nil {
		return "", err
	}

	return strings.TrimSpace(stdout.String()), nil
}

func (r *Runner) stdout() io.Writer {
	if r == nil || r.Stdout == nil {
		return os.Stdout
	}

	return r.Stdout
}

func (r *Runner) stderr() io.Writer {
	if r == nil || r.Stderr == nil {
		return os.Stderr
	}

	return r.Stderr
}

// wrapExit turns exit codes into ErrCommandFailed and passes other errors through.
func wrapExit(name string, err error) error {
	if err == nil {
		return nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return fmt.Errorf("%s: exit code %d: %w", name, exitErr.ExitCode(), ErrCommandFailed)
	}

	return fmt.Errorf("run %s: %w", name, err)
}

// commandLine renders the invocation for logs.
func commandLine(name string, args []string) string {
	return strings.Join(append([]string{name}, args...), " ")
}
