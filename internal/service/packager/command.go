package packager

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/t04glovern/pio-stm32cube-package-creator/internal/config"
	"github.com/t04glovern/pio-stm32cube-package-creator/internal/domain/source"
	"github.com/t04glovern/pio-stm32cube-package-creator/internal/logger"
	"github.com/t04glovern/pio-stm32cube-package-creator/internal/repository/versions"
	"github.com/t04glovern/pio-stm32cube-package-creator/internal/shell"
	"github.com/t04glovern/pio-stm32cube-package-creator/internal/vcs"
)

// Options contains inputs for the packager entry point.
type Options struct {
	// ConfigPath is an optional path to the YAML settings (defaults to stm32cube-packager.yaml).
	ConfigPath string
	// Verbose makes git report transfer progress.
	Verbose bool
	// CreateTarball runs the external packer after the package root is assembled.
	CreateTarball bool
	// SkipUpdate reuses the working copies as they are.
	SkipUpdate bool
	// ShowVersions only reports the versions of the working copies.
	ShowVersions bool
	// Jobs overrides the configured number of sources processed at once when positive.
	Jobs int
}

// errNegativeJobs is returned when the jobs override is below zero.
var errNegativeJobs = errors.New("jobs must not be negative")

// commandRunner starts external programs such as the packer.
type commandRunner interface {
	Run(ctx context.Context, dir, name string, args ...string) error
}

// packager runs the pipeline stages over the configured sources.
// It is unexported; callers should use Run, which encapsulates setup and validation.
type packager struct {
	// cfg holds the validated settings.
	cfg *config.Config
	// opts are the switches of the current invocation.
	opts *Options
	// vcs fetches and describes working copies.
	vcs vcs.Client
	// runner starts the packer.
	runner commandRunner
	// versions keeps the report of the previous run.
	versions versions.Repository
	// out receives the version table.
	out io.Writer
	// now is the clock used for the package version.
	now func() time.Time
}

// Run executes the packaging workflow. Stage failures are logged, not returned;
// only unusable settings or cancellation make Run fail.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "stm32cube-packager")

	if opts == nil {
		opts = &Options{}
	}

	if opts.Jobs < 0 {
		return fmt.Errorf("%w: %d", errNegativeJobs, opts.Jobs)
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	if opts.Jobs > 0 {
		cfg.Jobs = opts.Jobs
	}

	client, err := vcs.New(cfg.Git.Backend, vcs.Options{
		Verbose:           opts.Verbose,
		RecurseSubmodules: cfg.Git.RecurseSubmodules,
		Depth:             cfg.Git.Depth,
	})
	if err != nil {
		return fmt.Errorf("initialize git backend: %w", err)
	}

	p := newPackager(cfg, opts, client)

	if err = p.run(ctx); err != nil {
		return err
	}

	logger.Info(ctx, "Packager completed")

	return nil
}

// newPackager wires the default collaborators.
func newPackager(cfg *config.Config, opts *Options, client vcs.Client) *packager {
	return &packager{
		cfg:      cfg,
		opts:     opts,
		vcs:      client,
		runner:   &shell.Runner{},
		versions: versions.NewFileRepository(cfg.Path(cfg.VersionsFile)),
		out:      os.Stdout,
		now:      time.Now,
	}
}

// run executes the stages selected by the options.
func (p *packager) run(ctx context.Context) error {
	if p.opts.ShowVersions {
		p.reportVersions(ctx)

		return ctx.Err()
	}

	if p.opts.SkipUpdate {
		logger.Info(ctx, "Skipping update of working copies")
	} else {
		p.updateSources(ctx)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	p.extractSources(ctx)

	if err := ctx.Err(); err != nil {
		return err
	}

	if err := p.writeMetadata(ctx); err != nil {
		logger.ErrorKV(ctx, "Failed to write package metadata", "error", err)
	}

	p.reportVersions(ctx)

	if p.opts.CreateTarball {
		if err := p.createTarball(ctx); err != nil {
			logger.ErrorKV(ctx, "Package creation failed, check output", "error", err)
		}
	}

	return ctx.Err()
}

// forEachSource calls fn for every configured source, at most cfg.Jobs at a time.
// With a single job sources are processed in table order.
func (p *packager) forEachSource(ctx context.Context, fn func(context.Context, source.Source)) {
	if p.cfg.Jobs <= 1 {
		for _, s := range p.cfg.Sources {
			if ctx.Err() != nil {
				return
			}

			fn(ctx, s)
		}

		return
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(p.cfg.Jobs)

	for _, s := range p.cfg.Sources {
		group.Go(func() error {
			if groupCtx.Err() != nil {
				return nil
			}

			fn(groupCtx, s)

			return nil
		})
	}

	_ = group.Wait()
}

// sourceContext names the logger after the stage and tags it with the source.
func sourceContext(ctx context.Context, stage string, s source.Source) context.Context {
	return logger.WithKV(logger.WithName(ctx, stage), "source", s.Label())
}
