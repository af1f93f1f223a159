package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/codesync/internal/orchestrator"
	"github.com/Aman-CERP/codesync/internal/output"
	"github.com/Aman-CERP/codesync/internal/upload"
)

// maxFailuresShown caps the per-file failure lines printed after a sync.
const maxFailuresShown = 10

func newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync [dir]",
		Short: "Sync a directory to the remote store once",
		Long: `Walk the directory, upload new and changed files, and exit.

The first sync of a directory registers a new remote repository, uploads
every eligible file and asks the remote to index it.`,
		Example: `  # Sync the project containing the working directory
  codesync sync

  # Sync a specific directory
  codesync sync ~/src/service`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := ""
			if len(args) == 1 {
				dir = args[0]
			}
			return runSync(cmd, dir)
		},
	}
}

func runSync(cmd *cobra.Command, dir string) error {
	ws, err := openWorkspace(dir)
	if err != nil {
		return err
	}
	defer func() { _ = ws.Close() }()

	if err := ws.acquire(); err != nil {
		return err
	}

	builder, err := orchestrator.NewBuilder(ws.cfg, ws.prefs)
	if err != nil {
		return err
	}
	defer builder.Close()

	o, err := builder.Build(ws.root)
	if err != nil {
		return err
	}
	defer o.Close()

	out := output.New(cmd.OutOrStdout())
	out.Statusf("→", "Syncing %s", ws.root)

	if err := startWithProgress(cmd.Context(), out, o, ws.root); err != nil {
		return err
	}
	printOutcome(out, o)
	return nil
}

// startWithProgress runs Start and, on a terminal, redraws a progress line
// until it returns.
func startWithProgress(ctx context.Context, out *output.Writer, o *orchestrator.Orchestrator, root string) error {
	done := make(chan error, 1)
	go func() { done <- o.Start(ctx, root) }()

	if !out.Terminal() {
		return <-done
	}

	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case err := <-done:
			out.ProgressDone()
			return err
		case <-ticker.C:
			drawProgress(out, o)
		}
	}
}

func drawProgress(out *output.Writer, o *orchestrator.Orchestrator) {
	state := o.State()
	sess := o.Session()
	if state == orchestrator.Uploading && sess != nil {
		out.Progress(sess.Progress(), fmt.Sprintf("uploading %d/%d files", sess.Uploaded(), sess.Total()))
		return
	}
	if state.Active() {
		out.Progress(0, state.String())
	}
}

func printOutcome(out *output.Writer, o *orchestrator.Orchestrator) {
	switch {
	case o.State() == orchestrator.Cancelled:
		out.Warning("Sync cancelled")
		return
	case o.Session() == nil:
		out.Warning("Uploads are disabled (offline, remote-backed directory, or turned off with 'codesync prefs uploads off')")
		return
	}

	report := o.LastReport()
	if report == nil {
		return
	}
	failed := report.Failed()
	out.Successf("Sync complete: %d transferred, %d failed", report.Transferred(), len(failed))
	if n := report.Gone(); n > 0 {
		out.Statusf("", "%d files disappeared before upload", n)
	}
	printFailures(out, failed)
}

func printFailures(out *output.Writer, failed []upload.Result) {
	var errs []upload.Result
	for _, res := range failed {
		if res.Kind != upload.KindGone {
			errs = append(errs, res)
		}
	}
	for i, res := range errs {
		if i == maxFailuresShown {
			out.Statusf("", "... and %d more (run with --debug for details)", len(errs)-i)
			return
		}
		out.Errorf("%s: %v", res.RelPath, res.Err)
	}
}
