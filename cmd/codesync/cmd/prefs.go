package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	serrors "github.com/Aman-CERP/codesync/internal/errors"
	"github.com/Aman-CERP/codesync/internal/output"
	"github.com/Aman-CERP/codesync/internal/prefs"
)

func newPrefsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prefs",
		Short: "Manage persisted preferences",
	}
	cmd.AddCommand(newPrefsUploadsCmd())
	return cmd
}

func newPrefsUploadsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "uploads [on|off]",
		Short: "Show or set whether codesync may upload files",
		Long: `Show or set the upload toggle. While uploads are off, sync and watch do
not contact the remote store at all.`,
		Example: `  codesync prefs uploads
  codesync prefs uploads off`,
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"on", "off"},
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openPrefs()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			out := output.New(cmd.OutOrStdout())
			if len(args) == 0 {
				enabled, err := prefs.UploadsEnabled(store)
				if err != nil {
					return err
				}
				out.Statusf("", "uploads: %s", onOff(enabled))
				return nil
			}

			enabled, err := parseOnOff(args[0])
			if err != nil {
				return err
			}
			if err := prefs.SetUploadsEnabled(store, enabled); err != nil {
				return err
			}
			out.Successf("Uploads turned %s", onOff(enabled))
			return nil
		},
	}
}

func parseOnOff(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on", "true", "1":
		return true, nil
	case "off", "false", "0":
		return false, nil
	default:
		return false, serrors.ValidationError(fmt.Sprintf("expected 'on' or 'off', got %q", s), nil)
	}
}
