package packager

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/t04glovern/pio-stm32cube-package-creator/internal/domain/source"
	"github.com/t04glovern/pio-stm32cube-package-creator/internal/fsutil"
	"github.com/t04glovern/pio-stm32cube-package-creator/internal/logger"
)

// errCloneFailed wraps the final clone error of a source.
var errCloneFailed = errors.New("clone failed")

// updateSources brings every working copy up to date.
func (p *packager) updateSources(ctx context.Context) {
	p.forEachSource(ctx, func(ctx context.Context, s source.Source) {
		ctx = sourceContext(ctx, "update", s)

		if err := p.updateSource(ctx, s); err != nil {
			logger.ErrorKV(ctx, "Failed to fetch package", "error", err)
		}
	})
}

// updateSource refreshes an existing working copy and falls back to a full
// clone when there is none or the refresh fails.
func (p *packager) updateSource(ctx context.Context, s source.Source) error {
	dir := p.cfg.CheckoutPath(s)

	logger.InfoKV(ctx, "Fetching package", "url", s.URL, "path", dir)

	if fsutil.Exists(dir) {
		logger.Info(ctx, "Working copy already exists, only attempting a refresh")

		err := p.vcs.Update(ctx, dir)
		if err == nil {
			logger.Info(ctx, "Refresh was ok")

			return nil
		}

		logger.WarnKV(ctx, "Refresh failed, trying a full clone", "error", err)
	}

	if err := os.MkdirAll(filepath.Dir(dir), fsutil.DefaultDirMode); err != nil {
		return fmt.Errorf("create work directory: %w", err)
	}

	if err := p.vcs.Clone(ctx, s.URL, dir); err != nil {
		return fmt.Errorf("%w: %w", errCloneFailed, err)
	}

	logger.Info(ctx, "Clone was ok")

	return nil
}
