package packager

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/t04glovern/pio-stm32cube-package-creator/internal/config"
	"github.com/t04glovern/pio-stm32cube-package-creator/internal/domain/source"
	"github.com/t04glovern/pio-stm32cube-package-creator/internal/repository/versions"
	"github.com/t04glovern/pio-stm32cube-package-creator/internal/testutil"
)

// fixedNow is the clock of every test packager.
//
//nolint:gochecknoglobals // Test fixture.
var fixedNow = time.Date(2024, time.January, 31, 23, 30, 0, 0, time.UTC)

// fakeVCS records calls and delegates clones to an optional hook.
type fakeVCS struct {
	mu        sync.Mutex
	calls     []string
	updateErr error
	cloneErr  map[string]error
	clone     func(url, dir string) error
	versions  map[string]string
}

func (f *fakeVCS) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, call)
}

func (f *fakeVCS) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]string(nil), f.calls...)
}

func (f *fakeVCS) Update(_ context.Context, dir string) error {
	f.record("update " + filepath.Base(dir))

	return f.updateErr
}

func (f *fakeVCS) Clone(_ context.Context, url, dir string) error {
	f.record("clone " + filepath.Base(dir))

	if err := f.cloneErr[filepath.Base(dir)]; err != nil {
		return err
	}

	if f.clone != nil {
		return f.clone(url, dir)
	}

	return os.MkdirAll(dir, 0o755)
}

func (f *fakeVCS) Describe(_ context.Context, dir string) (string, error) {
	f.record("describe " + filepath.Base(dir))

	if v, ok := f.versions[filepath.Base(dir)]; ok {
		return v, nil
	}

	return "", errors.New("no tags found, cannot describe anything")
}

// fakeRunner records external command invocations.
type fakeRunner struct {
	dir  string
	name string
	args []string
	err  error
	// produce runs inside Run to mimic the packer output.
	produce func()
}

func (f *fakeRunner) Run(_ context.Context, dir, name string, args ...string) error {
	f.dir, f.name, f.args = dir, name, args

	if f.produce != nil {
		f.produce()
	}

	return f.err
}

// testConfig returns validated settings rooted in a temporary directory.
func testConfig(t *testing.T, names ...string) *config.Config {
	t.Helper()

	cfg := config.Default()
	cfg.WorkDir = t.TempDir()
	cfg.Sources = nil

	for _, name := range names {
		cfg.Sources = append(cfg.Sources, source.Source{
			Name: name,
			URL:  "https://example.com/STM32Cube" + (source.Source{Name: name}).Family() + ".git",
		})
	}

	require.NoError(t, config.Validate(cfg))

	return cfg
}

// testPackager wires fakes around cfg.
func testPackager(cfg *config.Config, opts *Options, client *fakeVCS) (*packager, *fakeRunner, *bytes.Buffer) {
	runner := &fakeRunner{}
	out := &bytes.Buffer{}

	p := newPackager(cfg, opts, client)
	p.runner = runner
	p.out = out
	p.now = func() time.Time { return fixedNow }

	return p, runner, out
}

// checkout creates a fake STM32Cube working copy for s.
func checkout(t *testing.T, cfg *config.Config, s source.Source) string {
	t.Helper()

	dir := cfg.CheckoutPath(s)
	testutil.NewRepo(t, dir).CubeLayout(s.Family())

	return dir
}

// exists reports whether rel exists below root.
func exists(root, rel string) bool {
	_, err := os.Stat(filepath.Join(root, filepath.FromSlash(rel)))

	return err == nil
}

// TestRun_ShowVersionsOnlyReports verifies that the report mode never touches the network or output.
func TestRun_ShowVersionsOnlyReports(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, "f4")
	checkout(t, cfg, cfg.Sources[0])

	client := &fakeVCS{versions: map[string]string{"STM32CubeF4": "v1.28.0"}}
	p, runner, out := testPackager(cfg, &Options{ShowVersions: true}, client)

	require.NoError(t, p.run(context.Background()))
	require.Equal(t, []string{"describe STM32CubeF4"}, client.Calls())
	require.Empty(t, runner.name)
	require.Contains(t, out.String(), "v1.28.0")
	require.NoDirExists(t, cfg.OutputRoot())
}

// TestRun_FullPipeline runs every stage against fake clones and checks the package root.
func TestRun_FullPipeline(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, "f4", "g0", "h7")
	cfg.Jobs = 2

	template := cfg.Path(cfg.TemplateDir)
	require.NoError(t, os.MkdirAll(filepath.Join(template, "tools"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(template, "tools", "stm32cube.py"), []byte("# build"), 0o644))

	var mu sync.Mutex

	client := &fakeVCS{
		cloneErr: map[string]error{"STM32CubeG0": errors.New("network is unreachable")},
		clone: func(_, dir string) error {
			mu.Lock()
			defer mu.Unlock()

			family := filepath.Base(dir)[len("STM32Cube"):]
			testutil.NewRepo(t, dir).CubeLayout(family)

			return nil
		},
		versions: map[string]string{"STM32CubeF4": "v1.28.0", "STM32CubeH7": "v1.11.1-3-g0123abc"},
	}

	p, runner, _ := testPackager(cfg, &Options{CreateTarball: true}, client)

	require.NoError(t, p.run(context.Background()))

	root := cfg.OutputRoot()
	require.True(t, exists(root, "f4/Drivers/STM32F4xx_HAL_Driver/Inc/stm32f4xx_hal_conf.h"))
	require.True(t, exists(root, "h7/Drivers/STM32H7xx_HAL_Driver/Inc/stm32h7xx_hal_conf.h"))
	require.False(t, exists(root, "g0"))
	require.True(t, exists(root, "platformio/tools/stm32cube.py"))
	require.True(t, exists(root, descriptorFilename))

	require.Equal(t, "pio", runner.name)
	require.Equal(t, []string{"package", "pack", config.DefaultOutputDir}, runner.args)
	require.Equal(t, cfg.WorkDir, runner.dir)

	report, err := versions.NewFileRepository(cfg.Path(cfg.VersionsFile)).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Records, 3)
	require.Equal(t, "v1.28.0", report.Records[0].Version)
	require.NotEmpty(t, report.Records[1].Error)
}

// TestRun_SkipUpdate verifies that no fetch happens when updates are skipped.
func TestRun_SkipUpdate(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, "f1")
	checkout(t, cfg, cfg.Sources[0])

	client := &fakeVCS{}
	p, _, _ := testPackager(cfg, &Options{SkipUpdate: true}, client)

	require.NoError(t, p.run(context.Background()))
	require.Equal(t, []string{"describe STM32CubeF1"}, client.Calls())
	require.True(t, exists(cfg.OutputRoot(), "f1/Drivers"))
}

// TestRun_Cancelled returns the context error without running later stages.
func TestRun_Cancelled(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, "f0", "f1")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := &fakeVCS{}
	p, _, _ := testPackager(cfg, &Options{}, client)

	require.ErrorIs(t, p.run(ctx), context.Canceled)
	require.Empty(t, client.Calls())
	require.NoFileExists(t, filepath.Join(cfg.OutputRoot(), descriptorFilename))
}

// TestRunEntryPoint loads settings from disk and rejects an invalid file.
func TestRunEntryPoint(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("git:\n  backend: svn\n"), 0o600))

	err := Run(context.Background(), &Options{ConfigPath: path})
	require.Error(t, err)

	err = Run(context.Background(), &Options{ConfigPath: filepath.Join(t.TempDir(), "missing.yaml")})
	require.Error(t, err)
}

// TestRun_NegativeJobs rejects a negative jobs override before loading settings.
func TestRun_NegativeJobs(t *testing.T) {
	t.Parallel()

	err := Run(context.Background(), &Options{ConfigPath: filepath.Join(t.TempDir(), "missing.yaml"), Jobs: -2})
	require.ErrorIs(t, err, errNegativeJobs)
}
