package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"

	"github.com/t04glovern/pio-stm32cube-package-creator/internal/config"
	"github.com/t04glovern/pio-stm32cube-package-creator/internal/logger"
	"github.com/t04glovern/pio-stm32cube-package-creator/internal/service/packager"
	"github.com/t04glovern/pio-stm32cube-package-creator/internal/version"
)

// flags holds the command line switches of one invocation.
type flags struct {
	configPath    string
	verbose       bool
	createTarball bool
	skipUpdate    bool
	showVersions  bool
	jobs          int
	logFile       string
	logLevel      string
}

// errInvalidLogLevel is returned for unknown --log-level values.
var errInvalidLogLevel = errors.New("invalid log level")

// newRootCmd builds the base command for assembling the package.
func newRootCmd() *cobra.Command {
	f := &flags{}

	rootCmd := &cobra.Command{
		Use:   "stm32cube-packager",
		Short: "Download the latest STM32Cube packages and assemble a PlatformIO package",
		Long: "Fetches or refreshes every STM32Cube repository, copies the parts PlatformIO needs " +
			"into a package folder, writes package.json and optionally packs it with 'pio package pack'.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: false,
		PreRunE: func(_ *cobra.Command, _ []string) error {
			return setupLogger(f)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			defer logger.Sync()

			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			logger.DebugKV(ctx, "Logger configured", "level", logger.Level(), "log_file", f.logFile)

			options := &packager.Options{
				ConfigPath:    f.configPath,
				Verbose:       f.verbose,
				CreateTarball: f.createTarball,
				SkipUpdate:    f.skipUpdate,
				ShowVersions:  f.showVersions,
				Jobs:          f.jobs,
			}

			return packager.Run(ctx, options)
		},
	}

	// Setup command flags with consistent naming and descriptions.
	rootCmd.Flags().StringVarP(&f.configPath, "config", "c", "", "path to configuration file (default "+config.DefaultConfigFilename+")")
	rootCmd.Flags().BoolVarP(&f.verbose, "verbose", "v", false, "increase output verbosity")
	rootCmd.Flags().BoolVarP(&f.createTarball, "create-tarball", "t", false, "use 'pio package pack' to create the complete .tar.gz package")
	rootCmd.Flags().BoolVarP(&f.skipUpdate, "skip-update", "s", false, "do not update repositories, just create a new package")
	rootCmd.Flags().BoolVar(&f.showVersions, "show-versions", false, "only show versions of downloaded packages")
	rootCmd.Flags().IntVarP(&f.jobs, "jobs", "j", 0, "number of sources processed at once (default from configuration)")
	rootCmd.Flags().StringVar(&f.logFile, "log-file", "", "also write logs to this rotating file")
	rootCmd.Flags().StringVar(&f.logLevel, "log-level", "info", "log level: debug, info, warn, error")

	version.AttachCobraVersionCommand(rootCmd)

	return rootCmd
}

// setupLogger applies --log-level, --verbose and --log-file to the global logger.
func setupLogger(f *flags) error {
	level, ok := logger.ParseLogLevel(f.logLevel)
	if !ok {
		return fmt.Errorf("%w: %q", errInvalidLogLevel, f.logLevel)
	}

	if f.verbose && level > zapcore.DebugLevel {
		level = zapcore.DebugLevel
	}

	logger.Setup(level, logger.FileOptions{Path: f.logFile})

	return nil
}

// Execute runs the stm32cube-packager CLI and exits with non-zero status on error.
func Execute() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
