package packager

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/t04glovern/pio-stm32cube-package-creator/internal/domain/source"
	"github.com/t04glovern/pio-stm32cube-package-creator/internal/fsutil"
	"github.com/t04glovern/pio-stm32cube-package-creator/internal/logger"
)

var (
	// errNoWorkingCopy is returned when a source was never fetched.
	errNoWorkingCopy = errors.New("working copy not found")
	// dspLibDir holds the prebuilt DSP libraries in recent CMSIS releases.
	//nolint:gochecknoglobals // Static path.
	dspLibDir = filepath.Join("Drivers", "CMSIS", "DSP", "Lib", "GCC")
	// cmsisLibDir is where the PlatformIO build scripts look for CMSIS libraries.
	//nolint:gochecknoglobals // Static path.
	cmsisLibDir = filepath.Join("Drivers", "CMSIS", "Lib", "GCC")
)

// extractSources copies the curated subset of every working copy into the package root.
func (p *packager) extractSources(ctx context.Context) {
	p.forEachSource(ctx, func(ctx context.Context, s source.Source) {
		ctx = sourceContext(ctx, "extract", s)

		logger.Info(ctx, "Copying SDK folders into the package")

		if err := p.extractSource(ctx, s); err != nil {
			logger.ErrorKV(ctx, "Extraction finished with errors", "error", err)
		}
	})
}

// targetRoot is the folder of s inside the package root.
func (p *packager) targetRoot(s source.Source) string {
	return filepath.Join(p.cfg.OutputRoot(), s.Name)
}

// extractSource runs the allow-list copy, the two layout fixups and the deny-list cleanup.
// Missing optional paths are skipped; other failures are collected and the remaining
// steps still run.
func (p *packager) extractSource(ctx context.Context, s source.Source) error {
	downloadRoot := p.cfg.CheckoutPath(s)
	targetRoot := p.targetRoot(s)

	logger.DebugKV(ctx, "Resolved folders", "download_root", downloadRoot, "target_root", targetRoot)

	if !fsutil.IsDir(downloadRoot) {
		return fmt.Errorf("%s: %w", downloadRoot, errNoWorkingCopy)
	}

	var errs []error

	for _, entry := range p.cfg.Copy {
		if err := copyEntry(ctx, downloadRoot, targetRoot, entry); err != nil {
			errs = append(errs, err)
		}
	}

	if err := copyHALConf(ctx, s, downloadRoot, targetRoot); err != nil {
		errs = append(errs, err)
	}

	if err := moveDSPLibraries(ctx, targetRoot); err != nil {
		errs = append(errs, err)
	}

	for _, entry := range p.cfg.Delete {
		if err := deleteEntry(ctx, targetRoot, entry); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// copyEntry copies one allow-listed path, replacing earlier output.
func copyEntry(ctx context.Context, downloadRoot, targetRoot, entry string) error {
	src := filepath.Join(downloadRoot, filepath.FromSlash(entry))
	dst := filepath.Join(targetRoot, filepath.FromSlash(entry))

	if !fsutil.Exists(src) {
		logger.WarnKV(ctx, "Failed to find source path, skipping", "path", src)

		return nil
	}

	logger.DebugKV(ctx, "Copying", "from", src, "to", dst)

	return fsutil.CopyPath(src, dst)
}

// copyHALConf installs the HAL configuration template as the active HAL configuration,
// which is what the PlatformIO build scripts expect.
func copyHALConf(ctx context.Context, s source.Source, downloadRoot, targetRoot string) error {
	src := filepath.Join(downloadRoot, s.HALConfTemplate())
	dst := filepath.Join(targetRoot, s.HALConf())

	if !fsutil.Exists(src) {
		logger.WarnKV(ctx, "HAL configuration template not found, skipping", "path", src)

		return nil
	}

	logger.DebugKV(ctx, "Copying HAL configuration template", "from", src, "to", dst)

	if err := fsutil.CopyPath(src, dst); err != nil {
		return fmt.Errorf("install HAL configuration: %w", err)
	}

	return nil
}

// moveDSPLibraries merges Drivers/CMSIS/DSP/Lib/GCC into Drivers/CMSIS/Lib/GCC.
func moveDSPLibraries(ctx context.Context, targetRoot string) error {
	src := filepath.Join(targetRoot, dspLibDir)
	if !fsutil.IsDir(src) {
		return nil
	}

	dst := filepath.Join(targetRoot, cmsisLibDir)

	logger.InfoKV(ctx, "Detected DSP libraries, moving them", "from", src, "to", dst)

	if err := fsutil.MergeMove(src, dst); err != nil {
		return fmt.Errorf("move DSP libraries: %w", err)
	}

	return nil
}

// deleteEntry removes one deny-listed path from the extracted tree.
func deleteEntry(ctx context.Context, targetRoot, entry string) error {
	path := filepath.Join(targetRoot, filepath.FromSlash(entry))

	err := fsutil.Remove(path)
	switch {
	case err == nil:
		logger.DebugKV(ctx, "Deleted unnecessary path", "path", path)

		return nil
	case errors.Is(err, fsutil.ErrNotFound):
		logger.DebugKV(ctx, "Path to be deleted does not exist", "path", path)

		return nil
	default:
		return err
	}
}
