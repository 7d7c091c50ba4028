package versions

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/t04glovern/pio-stm32cube-package-creator/internal/config"
	"github.com/t04glovern/pio-stm32cube-package-creator/internal/domain/source"
)

// Repository defines persistence operations for version reports.
type Repository interface {
	Load(ctx context.Context) (*source.VersionReport, error)
	Save(ctx context.Context, report *source.VersionReport) error
}

// FileRepository persists the version report to a YAML file on disk.
type FileRepository struct {
	// path is the filesystem location of the YAML report.
	path string
	// mu serialises access to the report file.
	mu sync.Mutex
}

var (
	// ErrNotFound is returned when no report has been saved yet.
	ErrNotFound = errors.New("version report not found")
	// errReportIsNotSet is returned when saving a nil report.
	errReportIsNotSet = errors.New("version report is not set")
)

// NewFileRepository creates a repository that reads/writes YAML at the provided path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{
		path: filepath.Clean(path),
	}
}

// Load reads the report from disk.
func (r *FileRepository) Load(_ context.Context) (*source.VersionReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	contents, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("read version report: %w", err)
	}

	var report source.VersionReport
	if err = yaml.Unmarshal(contents, &report); err != nil {
		return nil, fmt.Errorf("decode version report: %w", err)
	}

	return &report, nil
}

// Save writes the report to disk, replacing the previous one.
func (r *FileRepository) Save(_ context.Context, report *source.VersionReport) error {
	if report == nil {
		return errReportIsNotSet
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := yaml.Marshal(report)
	if err != nil {
		return fmt.Errorf("encode version report: %w", err)
	}

	if err = os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return fmt.Errorf("create report directory: %w", err)
	}

	if err = os.WriteFile(r.path, data, config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("write version report: %w", err)
	}

	return nil
}
