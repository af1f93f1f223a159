// Package cmd provides the CLI commands for codesync.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/codesync/internal/config"
	serrors "github.com/Aman-CERP/codesync/internal/errors"
	"github.com/Aman-CERP/codesync/internal/logging"
	"github.com/Aman-CERP/codesync/internal/profiling"
	"github.com/Aman-CERP/codesync/pkg/version"
)

// globalFlags are the persistent flags shared by every command.
type globalFlags struct {
	debug    bool
	logLevel string
	profile  profiling.Options
}

// NewRootCmd creates the root command for the codesync CLI.
func NewRootCmd() *cobra.Command {
	flags := &globalFlags{}
	var (
		loggingCleanup func()
		profiler       *profiling.Session
	)

	cmd := &cobra.Command{
		Use:   "codesync",
		Short: "Keep a local repository mirrored to a remote code index",
		Long: `codesync uploads the source files of a repository to a remote content
store and keeps them in sync, so the store can index them.

The first sync of a directory registers a remote repository and uploads
every eligible file. Later syncs compare fingerprints and send only new
and changed files.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cleanup, err := setupLogging(flags)
			if err != nil {
				return err
			}
			loggingCleanup = cleanup

			if flags.profile.Enabled() {
				profiler, err = profiling.Start(flags.profile)
				if err != nil {
					return err
				}
			}
			return nil
		},
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			var err error
			if profiler != nil {
				err = profiler.Stop()
				profiler = nil
			}
			if loggingCleanup != nil {
				loggingCleanup()
				loggingCleanup = nil
			}
			return err
		},
	}

	cmd.SetVersionTemplate("codesync version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&flags.debug, "debug", false, "Enable debug logging to <data dir>/logs/codesync.log")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Log level for stderr (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&flags.profile.CPU, "profile-cpu", "", "Write CPU profile to file")
	cmd.PersistentFlags().StringVar(&flags.profile.Heap, "profile-mem", "", "Write memory profile to file")
	cmd.PersistentFlags().StringVar(&flags.profile.Trace, "profile-trace", "", "Write execution trace to file")

	cmd.AddCommand(newSyncCmd())
	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newReindexCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newPrefsCmd())
	cmd.AddCommand(newLogsCmd())
	cmd.AddCommand(newDoctorCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// setupLogging installs the default logger. --debug adds the log file;
// otherwise only warnings reach stderr unless --log-level or the
// configured level says otherwise.
func setupLogging(flags *globalFlags) (func(), error) {
	cfg := logging.DefaultConfig()
	cfg.Level = "warn"
	if flags.logLevel != "" {
		cfg.Level = flags.logLevel
	} else if v := os.Getenv("CODESYNC_LOG_LEVEL"); v != "" {
		cfg.Level = v
	}

	if flags.debug {
		cfg = logging.DebugConfig(config.DataDir())
	}

	cleanup, err := logging.SetupDefault(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to setup logging: %w", err)
	}
	if flags.debug {
		slog.Debug("debug logging enabled",
			slog.String("log_file", cfg.FilePath),
			slog.String("version", version.Version))
	}
	return cleanup, nil
}

// Execute runs the root command. SIGINT and SIGTERM cancel the command's
// context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := NewRootCmd()
	err := root.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprint(root.ErrOrStderr(), serrors.FormatForCLI(err))
	}
	return err
}
