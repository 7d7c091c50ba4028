package packager

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/t04glovern/pio-stm32cube-package-creator/internal/config"
	"github.com/t04glovern/pio-stm32cube-package-creator/internal/fsutil"
	"github.com/t04glovern/pio-stm32cube-package-creator/internal/logger"
)

const (
	// descriptorFilename is the PlatformIO package descriptor.
	descriptorFilename = "package.json"
	// platformioDir receives the template folder inside the package root.
	platformioDir = "platformio"
	// versionDateLayout renders the UTC date as YYMMDD.
	versionDateLayout = "060102"
)

// descriptor is the content of package.json. Field order is the file order.
type descriptor struct {
	Description string `json:"description"`
	Name        string `json:"name"`
	System      string `json:"system"`
	URL         string `json:"url"`
	Version     string `json:"version"`
}

// PackageVersion returns prefix followed by the UTC date of now, e.g. "2.0.240131".
func PackageVersion(prefix string, now time.Time) string {
	return prefix + now.UTC().Format(versionDateLayout)
}

// writeMetadata copies the PlatformIO template folder and writes package.json.
// A missing template is logged and the descriptor is still written.
func (p *packager) writeMetadata(ctx context.Context) error {
	ctx = logger.WithName(ctx, "metadata")

	src := p.cfg.Path(p.cfg.TemplateDir)
	dst := filepath.Join(p.cfg.OutputRoot(), platformioDir)

	logger.InfoKV(ctx, "Copying PlatformIO template", "from", src, "to", dst)

	if err := fsutil.CopyPath(src, dst); err != nil {
		if !errors.Is(err, fsutil.ErrNotFound) {
			logger.ErrorKV(ctx, "Failed to copy PlatformIO template", "error", err)
		} else {
			logger.WarnKV(ctx, "PlatformIO template folder not found", "path", src)
		}
	}

	contents, err := json.MarshalIndent(p.descriptor(), "", "\t")
	if err != nil {
		return fmt.Errorf("encode %s: %w", descriptorFilename, err)
	}

	logger.Infof(ctx, "Writing %s file\n%s", descriptorFilename, contents)

	if err = os.MkdirAll(p.cfg.OutputRoot(), fsutil.DefaultDirMode); err != nil {
		return fmt.Errorf("create package root: %w", err)
	}

	path := filepath.Join(p.cfg.OutputRoot(), descriptorFilename)
	if err = os.WriteFile(path, contents, config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	return nil
}

// descriptor builds package.json from the configured package fields.
func (p *packager) descriptor() descriptor {
	pkg := p.cfg.Package

	return descriptor{
		Description: pkg.Description,
		Name:        pkg.Name,
		System:      pkg.System,
		URL:         pkg.URL,
		Version:     PackageVersion(pkg.VersionPrefix, p.now()),
	}
}
