package shell

import (
	"bytes"
	"context"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/require"
)

// requireSh skips the test on hosts without a POSIX shell.
func requireSh(t *testing.T) {
	t.Helper()

	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

// TestRunner_Run streams output and reports success.
func TestRunner_Run(t *testing.T) {
	t.Parallel()
	requireSh(t)

	var out bytes.Buffer

	r := &Runner{Stdout: &out}
	require.NoError(t, r.Run(context.Background(), t.TempDir(), "sh", "-c", "echo hello"))
	require.Equal(t, "hello\n", out.String())
}

// TestRunner_RunFailure wraps non-zero exits.
func TestRunner_RunFailure(t *testing.T) {
	t.Parallel()
	requireSh(t)

	r := &Runner{Stdout: new(bytes.Buffer), Stderr: new(bytes.Buffer)}
	err := r.Run(context.Background(), t.TempDir(), "sh", "-c", "exit 3")
	require.ErrorIs(t, err, ErrCommandFailed)
	require.Contains(t, err.Error(), "exit code 3")
}

// TestRunner_MissingBinary is not an exit-code failure.
func TestRunner_MissingBinary(t *testing.T) {
	t.Parallel()

	r := new(Runner)
	err := r.Run(context.Background(), t.TempDir(), "definitely-not-a-real-binary-xyz")
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrCommandFailed)
}

// TestRunner_Output trims stdout and honours the working directory.
func TestRunner_Output(t *testing.T) {
	t.Parallel()
	requireSh(t)

	dir := t.TempDir()

	out, err := new(Runner).Output(context.Background(), dir, "sh", "-c", "printf '  v1.2.3 \n'")
	require.NoError(t, err)
	require.Equal(t, "v1.2.3", out)
}
