package packager

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/t04glovern/pio-stm32cube-package-creator/internal/shell"
)

// TestCreateTarball runs the packer in the work dir.
func TestCreateTarball(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, "f4")

	p, runner, _ := testPackager(cfg, &Options{}, &fakeVCS{})
	runner.produce = func() {
		archive := filepath.Join(cfg.WorkDir, "framework-stm32cube-2.0.240131.tar.gz")
		require.NoError(t, os.WriteFile(archive, make([]byte, 2048), 0o644))
	}

	require.NoError(t, p.createTarball(context.Background()))
	require.Equal(t, cfg.WorkDir, runner.dir)
	require.Equal(t, "pio", runner.name)
	require.Equal(t, []string{"package", "pack", "created_package"}, runner.args)

	// The configured command must not be modified by the appended argument.
	require.Equal(t, []string{"pio", "package", "pack"}, cfg.Pack.Command)
}

// TestCreateTarball_Failure surfaces the packer error.
func TestCreateTarball_Failure(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, "f4")

	p, runner, _ := testPackager(cfg, &Options{}, &fakeVCS{})
	runner.err = errors.New("pio: exit code 1: " + shell.ErrCommandFailed.Error())

	require.Error(t, p.createTarball(context.Background()))
}
