package integration

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/t04glovern/pio-stm32cube-package-creator/internal/config"
	"github.com/t04glovern/pio-stm32cube-package-creator/internal/domain/source"
	"github.com/t04glovern/pio-stm32cube-package-creator/internal/repository/versions"
	"github.com/t04glovern/pio-stm32cube-package-creator/internal/service/packager"
	"github.com/t04glovern/pio-stm32cube-package-creator/internal/testutil"
	"github.com/t04glovern/pio-stm32cube-package-creator/internal/vcs"
)

// fixture is a work dir with local upstream repositories and a settings file.
type fixture struct {
	workDir    string
	configPath string
	upstreams  map[string]*testutil.Repo
	cfg        *config.Config
}

// newFixture creates one tagged upstream per family and points the settings at them.
func newFixture(t *testing.T, backend string, families ...string) *fixture {
	t.Helper()

	root := t.TempDir()
	f := &fixture{
		workDir:    filepath.Join(root, "work"),
		configPath: filepath.Join(root, "stm32cube-packager.yaml"),
		upstreams:  make(map[string]*testutil.Repo, len(families)),
	}

	cfg := config.Default()
	cfg.WorkDir = f.workDir
	cfg.Sources = nil
	cfg.Git.Backend = backend

	for _, family := range families {
		dir := filepath.Join(root, "upstream", "STM32Cube"+family)

		repo := testutil.NewRepo(t, dir)
		repo.CubeLayout(family)
		repo.AnnotatedTag("v1.0.0")

		f.upstreams[family] = repo
		cfg.Sources = append(cfg.Sources, source.Source{Name: strings.ToLower(family), URL: dir})
	}

	template := filepath.Join(f.workDir, config.DefaultTemplateDir)
	require.NoError(t, os.MkdirAll(template, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(template, "platform.py"), []byte("# scripts"), 0o644))

	require.NoError(t, config.Save(f.configPath, cfg))

	f.cfg = cfg

	return f
}

func (f *fixture) run(t *testing.T, opts packager.Options) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	opts.ConfigPath = f.configPath

	require.NoError(t, packager.Run(ctx, &opts))
}

func (f *fixture) report(t *testing.T) *source.VersionReport {
	t.Helper()

	report, err := versions.NewFileRepository(f.cfg.Path(f.cfg.VersionsFile)).Load(context.Background())
	require.NoError(t, err)

	return report
}

// TestPackager_BuildsPackage clones, extracts and describes two families.
//
//nolint:funlen // Integration test requires comprehensive setup and verification.
func TestPackager_BuildsPackage(t *testing.T) {
	testutil.RequireGit(t)
	t.Parallel()

	f := newFixture(t, vcs.BackendGoGit, "F4", "G0")
	f.run(t, packager.Options{Jobs: 2})

	output := f.cfg.OutputRoot()

	for _, name := range []string{"f4", "g0"} {
		target := filepath.Join(output, name)
		family := strings.ToUpper(name)

		// Only the allow-listed entries are copied.
		entries, err := os.ReadDir(target)
		require.NoError(t, err)
		require.Len(t, entries, len(f.cfg.Copy))

		for _, entry := range f.cfg.Delete {
			require.NoFileExists(t, filepath.Join(target, entry))
			require.NoDirExists(t, filepath.Join(target, entry))
		}

		require.NoDirExists(t, filepath.Join(target, "Projects"))
		require.FileExists(t, filepath.Join(target, "Drivers", "STM32"+family+"xx_HAL_Driver", "Inc",
			"stm32"+name+"xx_hal_conf.h"))
		require.FileExists(t, filepath.Join(target, "Drivers", "CMSIS", "Lib", "GCC", "libarm_cortexM4lf_math.a"))
		require.NoDirExists(t, filepath.Join(target, "Drivers", "CMSIS", "DSP", "Lib", "GCC"))
	}

	require.FileExists(t, filepath.Join(output, "platformio", "platform.py"))

	raw, err := os.ReadFile(filepath.Join(output, "package.json"))
	require.NoError(t, err)

	var descriptor map[string]string
	require.NoError(t, json.Unmarshal(raw, &descriptor))
	require.Regexp(t, `^2\.0\.\d{6}$`, descriptor["version"])
	require.Equal(t, "framework-stm32cube", descriptor["name"])

	report := f.report(t)
	require.Equal(t, []source.VersionRecord{
		{Name: "f4", Version: "v1.0.0"},
		{Name: "g0", Version: "v1.0.0"},
	}, report.Records)

	// A second run refreshes the existing working copies.
	upstream := f.upstreams["F4"]
	upstream.WriteFile("License.md", "license v2")
	upstream.Commit("update license")

	f.run(t, packager.Options{})

	license, err := os.ReadFile(filepath.Join(output, "f4", "License.md"))
	require.NoError(t, err)
	require.Equal(t, "license v2", string(license))

	report = f.report(t)
	require.Equal(t, "v1.0.0-1-g"+upstream.Head().String()[:7], report.Records[0].Version)
	require.Equal(t, "v1.0.0", report.Records[1].Version)
}

// TestPackager_ContinuesAfterFailures keeps packaging when a source cannot be fetched
// and the template folder is missing.
func TestPackager_ContinuesAfterFailures(t *testing.T) {
	testutil.RequireGit(t)
	t.Parallel()

	f := newFixture(t, vcs.BackendGoGit, "L4")
	f.cfg.Sources = append(f.cfg.Sources, source.Source{
		Name: "h7",
		URL:  filepath.Join(filepath.Dir(f.configPath), "upstream", "STM32CubeH7"),
	})
	require.NoError(t, config.Save(f.configPath, f.cfg))
	require.NoError(t, os.RemoveAll(filepath.Join(f.workDir, config.DefaultTemplateDir)))

	f.run(t, packager.Options{})

	output := f.cfg.OutputRoot()
	require.DirExists(t, filepath.Join(output, "l4", "Drivers"))
	require.NoDirExists(t, filepath.Join(output, "h7"))
	require.NoDirExists(t, filepath.Join(output, "platformio"))
	require.FileExists(t, filepath.Join(output, "package.json"))

	report := f.report(t)
	require.Len(t, report.Records, 2)
	require.Equal(t, "v1.0.0", report.Records[0].Version)
	require.NotEmpty(t, report.Records[1].Error)
}

// TestPackager_ShowVersions only reports without writing the package.
func TestPackager_ShowVersions(t *testing.T) {
	testutil.RequireGit(t)
	t.Parallel()

	f := newFixture(t, vcs.BackendGoGit, "WB")
	f.run(t, packager.Options{SkipUpdate: true})

	require.NoDirExists(t, filepath.Join(f.cfg.OutputRoot(), "wb"))

	f.run(t, packager.Options{ShowVersions: true})
	require.NoDirExists(t, filepath.Join(f.cfg.OutputRoot(), "wb"))

	report := f.report(t)
	require.Len(t, report.Records, 1)
	require.NotEmpty(t, report.Records[0].Error)
}

// TestPackager_CLIBackend runs the pipeline through the git executable.
func TestPackager_CLIBackend(t *testing.T) {
	testutil.RequireGit(t)
	t.Parallel()

	f := newFixture(t, vcs.BackendCLI, "F1")
	f.run(t, packager.Options{})

	require.FileExists(t, filepath.Join(f.cfg.OutputRoot(), "f1", "package.xml"))

	require.Equal(t, "v1.0.0", f.report(t).Records[0].Version)

	// Saved settings round-trip through the YAML loader.
	raw, err := os.ReadFile(f.configPath)
	require.NoError(t, err)

	var settings map[string]any
	require.NoError(t, yaml.Unmarshal(raw, &settings))
	require.Contains(t, settings, "sources")
}
