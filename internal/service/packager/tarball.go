package packager

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/t04glovern/pio-stm32cube-package-creator/internal/fsutil"
	"github.com/t04glovern/pio-stm32cube-package-creator/internal/logger"
)

// bytesPerMB converts archive sizes for the log.
const bytesPerMB = 1024.0 * 1024.0

// createTarball runs the packer over the package root and lists the archives it produced.
func (p *packager) createTarball(ctx context.Context) error {
	ctx = logger.WithName(ctx, "pack")

	logger.Info(ctx, "Creating package, this will take a while")

	command := p.cfg.Pack.Command
	args := append(append([]string(nil), command[1:]...), p.cfg.OutputDir)

	if err := p.runner.Run(ctx, p.cfg.WorkDir, command[0], args...); err != nil {
		return fmt.Errorf("pack %s: %w", p.cfg.OutputDir, err)
	}

	logger.Info(ctx, "Package created")

	archives, err := filepath.Glob(p.cfg.Path(p.cfg.Pack.ArchiveGlob))
	if err != nil {
		return fmt.Errorf("list archives: %w", err)
	}

	sort.Strings(archives)

	for _, archive := range archives {
		size, sizeErr := fsutil.Size(archive)
		if sizeErr != nil {
			logger.WarnKV(ctx, "Failed to stat archive", "path", archive, "error", sizeErr)

			continue
		}

		checksum, sumErr := fsutil.Checksum(archive)
		if sumErr != nil {
			logger.WarnKV(ctx, "Failed to checksum archive", "path", archive, "error", sumErr)
		}

		logger.InfoKV(ctx, fmt.Sprintf("%s (%.2f MB)", archive, float64(size)/bytesPerMB), "sha256", checksum)
	}

	return nil
}
