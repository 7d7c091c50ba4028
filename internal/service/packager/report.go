package packager

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"

	"github.com/t04glovern/pio-stm32cube-package-creator/internal/domain/source"
	"github.com/t04glovern/pio-stm32cube-package-creator/internal/fsutil"
	"github.com/t04glovern/pio-stm32cube-package-creator/internal/logger"
	"github.com/t04glovern/pio-stm32cube-package-creator/internal/repository/versions"
)

// unknownVersion is shown for sources whose version could not be determined.
const unknownVersion = "unknown"

// reportVersions describes every working copy, prints the summary and stores it
// for the next run.
func (p *packager) reportVersions(ctx context.Context) *source.VersionReport {
	ctx = logger.WithName(ctx, "report")

	logger.Info(ctx, "Version summary of downloaded packages")

	report := p.collectVersions(ctx)

	for _, record := range report.Records {
		version := record.Version
		if version == "" {
			version = unknownVersion
		}

		logger.Infof(ctx, "Package STM32%s version: %s", source.Source{Name: record.Name}.Family(), version)
	}

	renderVersions(p.out, p.cfg.Sources, report)

	previous, err := p.versions.Load(ctx)
	if err != nil && !errors.Is(err, versions.ErrNotFound) {
		logger.WarnKV(ctx, "Failed to read previous version report", "error", err)
	}

	for _, change := range source.Changes(previous, report) {
		logger.InfoKV(ctx, "Upstream version changed",
			"source", change.Name,
			"previous", change.Previous,
			"current", change.Current,
		)
	}

	if err = p.versions.Save(ctx, report); err != nil {
		logger.WarnKV(ctx, "Failed to save version report", "error", err)
	}

	return report
}

// collectVersions asks the git backend for the nearest tag of every working copy.
func (p *packager) collectVersions(ctx context.Context) *source.VersionReport {
	report := &source.VersionReport{
		GeneratedAt: p.now().UTC(),
		Records:     make([]source.VersionRecord, 0, len(p.cfg.Sources)),
	}

	for _, s := range p.cfg.Sources {
		record := source.VersionRecord{Name: s.Name}
		dir := p.cfg.CheckoutPath(s)

		if !fsutil.IsDir(dir) {
			record.Error = fmt.Sprintf("%s: %s", dir, errNoWorkingCopy)
		} else if version, err := p.vcs.Describe(ctx, dir); err != nil {
			logger.DebugKV(ctx, "Failed to describe working copy", "source", s.Label(), "error", err)

			record.Error = err.Error()
		} else {
			record.Version = version
		}

		report.Records = append(report.Records, record)
	}

	return report
}

// renderVersions writes the report as a table.
func renderVersions(w io.Writer, sources []source.Source, report *source.VersionReport) {
	folders := make(map[string]string, len(sources))
	for _, s := range sources {
		folders[s.Name] = s.CheckoutDir()
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Package", "Working copy", "Version"})
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_LEFT, tablewriter.ALIGN_LEFT})

	for _, record := range report.Records {
		version := record.Version
		if version == "" {
			version = unknownVersion
		}

		table.Append([]string{
			source.Source{Name: record.Name}.Label(),
			folders[record.Name],
			version,
		})
	}

	table.Render()
}
