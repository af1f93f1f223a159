package cmd

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/codesync/internal/config"
	serrors "github.com/Aman-CERP/codesync/internal/errors"
	"github.com/Aman-CERP/codesync/internal/orchestrator"
	"github.com/Aman-CERP/codesync/internal/output"
	"github.com/Aman-CERP/codesync/internal/preflight"
)

func newDoctorCmd() *cobra.Command {
	var (
		verbose    bool
		jsonOutput bool
		offline    bool
	)

	cmd := &cobra.Command{
		Use:   "doctor [dir]",
		Short: "Check system requirements and diagnose issues",
		Long: `Run system diagnostics to ensure codesync can sync correctly.

Checks:
  - Disk space in the data directory (50MB minimum)
  - Write permissions in the data directory
  - File descriptor limits (1024 minimum)
  - Version control backend (git on PATH for the exec backend)
  - Remote store reachability (skipped with --offline or remote.offline)

Use --verbose for detailed diagnostic information.
Use --json for machine-readable output.`,
		Example: `  # Run diagnostics
  codesync doctor

  # JSON output for scripting
  codesync doctor --json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := ""
			if len(args) == 1 {
				dir = args[0]
			}
			return runDoctor(cmd, dir, verbose, jsonOutput, offline)
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show detailed diagnostic info")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&offline, "offline", false, "Skip the remote check")
	return cmd
}

// doctorReport is the doctor command's JSON output.
type doctorReport struct {
	Status string                  `json:"status"`
	Checks []preflight.CheckResult `json:"checks"`
}

func runDoctor(cmd *cobra.Command, dir string, verbose, jsonOutput, offline bool) error {
	ws, err := openWorkspace(dir)
	if err != nil {
		return err
	}
	defer func() { _ = ws.Close() }()

	opts := []preflight.Option{
		preflight.WithDataDir(config.DataDir()),
		preflight.WithVCSBackend(ws.cfg.VCS.Backend),
		preflight.WithOffline(offline || ws.cfg.Remote.Offline),
	}
	if !offline && !ws.cfg.Remote.Offline {
		builder, err := orchestrator.NewBuilder(ws.cfg, ws.prefs)
		if err != nil {
			return err
		}
		defer builder.Close()
		opts = append(opts, preflight.WithProber(builder.Client.ForRoot(ws.root)))
	}

	checker := preflight.New(opts...)
	results := checker.RunAll(cmd.Context())

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(doctorReport{Status: checker.SummaryStatus(results), Checks: results}); err != nil {
			return err
		}
	} else {
		checker.PrintResults(output.New(cmd.OutOrStdout()), results, verbose)
	}

	if checker.HasCriticalFailures(results) {
		return serrors.New(serrors.ErrCodePreflightFailed, "system check failed", nil).
			WithSuggestion("Run 'codesync doctor --verbose' for details")
	}
	return nil
}
