package cmd

import (
	"github.com/spf13/cobra"

	serrors "github.com/Aman-CERP/codesync/internal/errors"
	"github.com/Aman-CERP/codesync/internal/orchestrator"
	"github.com/Aman-CERP/codesync/internal/output"
	"github.com/Aman-CERP/codesync/internal/prefs"
)

func newReindexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reindex [dir]",
		Short: "Ask the remote store to re-index a synced directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := ""
			if len(args) == 1 {
				dir = args[0]
			}
			return runReindex(cmd, dir)
		},
	}
}

func runReindex(cmd *cobra.Command, dir string) error {
	ws, err := openWorkspace(dir)
	if err != nil {
		return err
	}
	defer func() { _ = ws.Close() }()

	out := output.New(cmd.OutOrStdout())
	if !(orchestrator.PrefsGate{Config: ws.cfg, Prefs: ws.prefs}).UploadsAllowed() {
		out.Warning("Uploads are disabled, nothing sent")
		return nil
	}

	settings, err := prefs.LoadRepoSettings(ws.prefs, ws.root)
	if err != nil {
		return err
	}
	if settings.RepoID == "" {
		return serrors.ValidationError("directory has never been synced", nil).
			WithDetail("root", ws.root).
			WithSuggestion("Run 'codesync sync' first")
	}

	builder, err := orchestrator.NewBuilder(ws.cfg, ws.prefs)
	if err != nil {
		return err
	}
	defer builder.Close()

	if err := builder.Client.ForRoot(ws.root).FinishUpload(cmd.Context(), settings.RepoID); err != nil {
		return err
	}
	out.Successf("Re-index requested for %s", settings.RepoID)
	return nil
}
