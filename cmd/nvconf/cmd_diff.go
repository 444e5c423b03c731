package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/newtron-network/nvconf/pkg/cli"
	"github.com/newtron-network/nvconf/pkg/nvue"
)

var diffCmd = &cobra.Command{
	Use:   "diff",
	Short: "Show pending configuration changes",
	Long: `Show the pending (not yet applied) configuration diff. Read-only.

Examples:
  nvconf -H leaf1 diff
  nvconf -H leaf1 diff --json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		exec, release, err := connect()
		if err != nil {
			return fmt.Errorf("connecting to %s: %w", app.device(), err)
		}
		defer release()

		diff, err := nvue.NewSession(exec, nvue.WithDevice(app.device())).PendingDiff(cmd.Context())
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if app.jsonOutput {
			return writeJSON(out, map[string]interface{}{
				"device":  app.device(),
				"pending": diff != "",
				"diff":    diff,
			})
		}
		if diff == "" {
			fmt.Fprintln(out, green("No pending changes."))
			return nil
		}
		fmt.Fprintln(out, bold("Pending changes on "+app.device()+":"))
		fmt.Fprintln(out, cli.Indent(diff, "  "))
		return nil
	},
}
