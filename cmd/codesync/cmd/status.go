package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/codesync/internal/orchestrator"
	"github.com/Aman-CERP/codesync/internal/output"
	"github.com/Aman-CERP/codesync/internal/prefs"
	"github.com/Aman-CERP/codesync/internal/remote"
)

// statusReport is the status command's output.
type statusReport struct {
	Root           string                 `json:"root"`
	Endpoint       string                 `json:"endpoint"`
	RepoID         string                 `json:"repo_id,omitempty"`
	Uploaded       bool                   `json:"initial_upload_done"`
	UploadsEnabled bool                   `json:"uploads_enabled"`
	RemoteStatus   string                 `json:"remote_status,omitempty"`
	Index          *orchestrator.Progress `json:"index,omitempty"`
	Error          string                 `json:"error,omitempty"`
}

func newStatusCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status [dir]",
		Short: "Show the remote repository and indexing status of a directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := ""
			if len(args) == 1 {
				dir = args[0]
			}
			return runStatus(cmd, dir, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func runStatus(cmd *cobra.Command, dir string, jsonOutput bool) error {
	ws, err := openWorkspace(dir)
	if err != nil {
		return err
	}
	defer func() { _ = ws.Close() }()

	settings, err := prefs.LoadRepoSettings(ws.prefs, ws.root)
	if err != nil {
		return err
	}

	report := statusReport{
		Root:           ws.root,
		Endpoint:       ws.cfg.Remote.Endpoint,
		RepoID:         settings.RepoID,
		Uploaded:       settings.Uploaded,
		UploadsEnabled: orchestrator.PrefsGate{Config: ws.cfg, Prefs: ws.prefs}.UploadsAllowed(),
	}

	if settings.RepoID != "" && report.UploadsEnabled {
		builder, err := orchestrator.NewBuilder(ws.cfg, ws.prefs)
		if err != nil {
			return err
		}
		defer builder.Close()
		queryRemote(cmd.Context(), builder.Client.ForRoot(ws.root), &report)
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	printStatus(output.New(cmd.OutOrStdout()), report)
	return nil
}

// queryRemote fills in the remote status and indexing progress. Failures
// are recorded in the report rather than returned.
func queryRemote(ctx context.Context, store remote.Store, report *statusReport) {
	status, err := store.Status(ctx, report.RepoID)
	report.RemoteStatus = string(status)
	if err != nil {
		report.Error = err.Error()
		return
	}
	if status == remote.StatusNotFound {
		return
	}

	ip, err := store.IndexProgress(ctx, report.RepoID)
	if err != nil {
		report.Error = err.Error()
		return
	}
	p := orchestrator.Progress{State: orchestrator.Indexing, Fraction: ip.Fraction}
	if ip.Done {
		p = orchestrator.Progress{State: orchestrator.Complete, Fraction: 1}
	}
	report.Index = &p
}

func printStatus(out *output.Writer, r statusReport) {
	out.Header("codesync status")
	out.Field("Root", r.Root)
	out.Field("Endpoint", r.Endpoint)
	out.Field("Uploads", onOff(r.UploadsEnabled))

	if r.RepoID == "" {
		out.Field("Repository", "not registered (run 'codesync sync')")
		return
	}
	out.Field("Repository", r.RepoID)
	out.Field("Initial upload", doneOrPending(r.Uploaded))
	if r.RemoteStatus != "" {
		out.Field("Remote status", r.RemoteStatus)
	}
	if r.Index != nil {
		out.Field("Indexing", fmt.Sprintf("%s (%.0f%%)", r.Index.State, r.Index.Fraction*100))
	}
	if r.Error != "" {
		out.Warning(r.Error)
	}
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func doneOrPending(b bool) string {
	if b {
		return "done"
	}
	return "pending"
}
