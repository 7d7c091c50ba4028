package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/t04glovern/pio-stm32cube-package-creator/internal/domain/source"
	"github.com/t04glovern/pio-stm32cube-package-creator/internal/vcs"
)

// Config holds everything the packager pipeline needs to know about its inputs and outputs.
type Config struct {
	// WorkDir is the base directory for working copies, templates and archives.
	WorkDir string `yaml:"work_dir"`
	// OutputDir is the package root, relative to WorkDir unless absolute.
	OutputDir string `yaml:"output_dir"`
	// TemplateDir holds the static PlatformIO build scripts copied into the package.
	TemplateDir string `yaml:"template_dir"`
	// VersionsFile stores the last version report, relative to WorkDir unless absolute.
	VersionsFile string `yaml:"versions_file"`
	// Jobs is the number of sources processed at once by the update and extraction stages.
	Jobs int `yaml:"jobs"`
	// Sources is the table of upstream repositories.
	Sources []source.Source `yaml:"sources"`
	// Copy is the allow-list of paths taken from each working copy.
	Copy []string `yaml:"copy"`
	// Delete is the deny-list of paths removed from each extracted source.
	Delete []string `yaml:"delete"`
	// Package describes the generated package.json.
	Package Package `yaml:"package"`
	// Git configures how working copies are fetched.
	Git Git `yaml:"git"`
	// Pack configures the external packer.
	Pack Pack `yaml:"pack"`
}

// Package holds the descriptor fields written to package.json.
type Package struct {
	Name          string `yaml:"name"`
	Description   string `yaml:"description"`
	System        string `yaml:"system"`
	URL           string `yaml:"url"`
	VersionPrefix string `yaml:"version_prefix"`
}

// Git selects the version control backend.
type Git struct {
	// Backend is either vcs.BackendGoGit or vcs.BackendCLI.
	Backend string `yaml:"backend"`
	// RecurseSubmodules clones and updates submodules too.
	RecurseSubmodules bool `yaml:"recurse_submodules"`
	// Depth limits clone history; zero means full history.
	Depth int `yaml:"depth"`
}

// Pack configures the packaging stage.
type Pack struct {
	// Command is the packer invocation; the package root is appended as the last argument.
	Command []string `yaml:"command"`
	// ArchiveGlob matches the archives produced by Command inside WorkDir.
	ArchiveGlob string `yaml:"archive_glob"`
}

const (
	// DefaultConfigFilename is the default filename for packager settings.
	DefaultConfigFilename = "stm32cube-packager.yaml"

	// DefaultOutputDir is the default package root.
	DefaultOutputDir = "created_package"

	// DefaultTemplateDir is the default PlatformIO template folder.
	DefaultTemplateDir = "original_platformio_folder"

	// DefaultVersionsFile is the default version report file.
	DefaultVersionsFile = "stm32cube-versions.yaml"

	// DefaultFilePermissions is the default file permission for written files.
	DefaultFilePermissions = 0o644
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errNoSources is returned when the source table is empty.
	errNoSources = errors.New("at least one source must be configured")
	// errInvalidSource is returned for sources missing a name or URL.
	errInvalidSource = errors.New("invalid source")
	// errDuplicateSource is returned when two sources share a name.
	errDuplicateSource = errors.New("duplicate source name")
	// errInvalidPath is returned for allow/deny entries leaving the source folder.
	errInvalidPath = errors.New("path must be relative and stay inside the source folder")
	// errInvalidJobs is returned for a non-positive worker count.
	errInvalidJobs = errors.New("jobs must be at least 1")
	// errEmptyPackCommand is returned when the pack command is cleared.
	errEmptyPackCommand = errors.New("pack command must not be empty")
)

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		WorkDir:      ".",
		OutputDir:    DefaultOutputDir,
		TemplateDir:  DefaultTemplateDir,
		VersionsFile: DefaultVersionsFile,
		Jobs:         1,
		Sources:      source.Defaults(),
		Copy:         DefaultCopyList(),
		Delete:       DefaultDeleteList(),
		Package:      DefaultPackage(),
		Git: Git{
			Backend: vcs.BackendGoGit,
		},
		Pack: Pack{
			Command:     []string{"pio", "package", "pack"},
			ArchiveGlob: "framework-stm32cube-*.tar.gz",
		},
	}
}

// DefaultCopyList returns the paths taken from every working copy.
func DefaultCopyList() []string {
	return []string{
		"Drivers",
		"Utilities",
		"Middlewares",
		"package.xml",
		"Release_Notes.html",
		"License.md",
	}
}

// DefaultDeleteList returns the paths removed after extraction to shrink the package.
func DefaultDeleteList() []string {
	return []string{
		"Drivers/CMSIS/docs",
		"Drivers/CMSIS/Lib/ARM",
		"Drivers/CMSIS/Lib/IAR",
		"Drivers/CMSIS/DSP/Lib/ARM",
		"Drivers/CMSIS/DSP/Lib/IAR",
		"Drivers/CMSIS/DSP/Projects/ARM",
		"Drivers/CMSIS/DSP/Projects/IAR",
		"Drivers/CMSIS/DSP/DSP_Lib_TestSuite",
		"Middlewares/Third_Party/LwIP/doc",
		// Media assets are the bulk of the L4 download.
		"Utilities/Media",
	}
}

// DefaultPackage returns the framework-stm32cube descriptor fields.
func DefaultPackage() Package {
	return Package{
		Name:          "framework-stm32cube",
		Description:   "STM32Cube embedded software libraries",
		System:        "*",
		URL:           "http://www.st.com/en/embedded-software/stm32cube-embedded-software.html",
		VersionPrefix: "2.0.",
	}
}

// Load reads configuration from the provided path on top of the defaults.
// A missing file at the default location is not an error.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultConfigFilename
	}

	cfg := Default()

	contents, err := os.ReadFile(filepath.Clean(path))

	switch {
	case err == nil:
		if err = yaml.Unmarshal(contents, cfg); err != nil {
			return nil, fmt.Errorf("unmarshal settings: %w", err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
		// Built-in table only.
	default:
		return nil, fmt.Errorf("read settings: %w", err)
	}

	if err = Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes the configuration to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate fills defaults and checks the settings for consistency.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	applyDefaults(cfg)

	if cfg.Jobs < 1 {
		return fmt.Errorf("%w: %d", errInvalidJobs, cfg.Jobs)
	}

	if err := validateSources(cfg.Sources); err != nil {
		return err
	}

	for _, list := range [][]string{cfg.Copy, cfg.Delete} {
		for _, entry := range list {
			if !isLocalPath(entry) {
				return fmt.Errorf("%q: %w", entry, errInvalidPath)
			}
		}
	}

	if !slices.Contains([]string{vcs.BackendGoGit, vcs.BackendCLI}, cfg.Git.Backend) {
		return fmt.Errorf("%w: %q", vcs.ErrUnknownBackend, cfg.Git.Backend)
	}

	if len(cfg.Pack.Command) == 0 || strings.TrimSpace(cfg.Pack.Command[0]) == "" {
		return errEmptyPackCommand
	}

	return nil
}

// Path resolves a possibly relative path against WorkDir.
func (c *Config) Path(p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}

	return filepath.Join(c.WorkDir, p)
}

// OutputRoot is the absolute-or-workdir-relative package root.
func (c *Config) OutputRoot() string {
	return c.Path(c.OutputDir)
}

// CheckoutPath is where the working copy of s lives.
func (c *Config) CheckoutPath(s source.Source) string {
	return filepath.Join(c.WorkDir, s.CheckoutDir())
}

// applyDefaults fills zero values left by a partial YAML file.
func applyDefaults(cfg *Config) {
	def := Default()

	if cfg.WorkDir == "" {
		cfg.WorkDir = def.WorkDir
	}

	if cfg.OutputDir == "" {
		cfg.OutputDir = def.OutputDir
	}

	if cfg.TemplateDir == "" {
		cfg.TemplateDir = def.TemplateDir
	}

	if cfg.VersionsFile == "" {
		cfg.VersionsFile = def.VersionsFile
	}

	if cfg.Git.Backend == "" {
		cfg.Git.Backend = def.Git.Backend
	}

	if cfg.Pack.Command == nil {
		cfg.Pack.Command = def.Pack.Command
	}

	if cfg.Pack.ArchiveGlob == "" {
		cfg.Pack.ArchiveGlob = def.Pack.ArchiveGlob
	}

	if cfg.Package.Name == "" {
		cfg.Package.Name = def.Package.Name
	}

	if cfg.Package.Description == "" {
		cfg.Package.Description = def.Package.Description
	}

	if cfg.Package.System == "" {
		cfg.Package.System = def.Package.System
	}

	if cfg.Package.URL == "" {
		cfg.Package.URL = def.Package.URL
	}

	if cfg.Package.VersionPrefix == "" {
		cfg.Package.VersionPrefix = def.Package.VersionPrefix
	}
}

// validateSources checks names and URLs and rejects duplicates.
func validateSources(sources []source.Source) error {
	if len(sources) == 0 {
		return errNoSources
	}

	seen := make(map[string]struct{}, len(sources))

	for _, s := range sources {
		if strings.TrimSpace(s.Name) == "" || strings.TrimSpace(s.URL) == "" {
			return fmt.Errorf("%w: name %q, url %q", errInvalidSource, s.Name, s.URL)
		}

		if !isLocalPath(s.Name) || strings.ContainsAny(s.Name, `/\`) {
			return fmt.Errorf("%w: name %q must be a plain folder name", errInvalidSource, s.Name)
		}

		if dir := s.CheckoutDir(); dir == "." || !filepath.IsLocal(dir) {
			return fmt.Errorf("%w: url %q does not name a folder inside the work directory", errInvalidSource, s.URL)
		}

		key := strings.ToLower(s.Name)
		if _, dup := seen[key]; dup {
			return fmt.Errorf("%w: %s", errDuplicateSource, s.Name)
		}

		seen[key] = struct{}{}
	}

	return nil
}

// isLocalPath reports whether p is relative and does not climb out of its base.
func isLocalPath(p string) bool {
	if strings.TrimSpace(p) == "" {
		return false
	}

	return filepath.IsLocal(filepath.FromSlash(p))
}
