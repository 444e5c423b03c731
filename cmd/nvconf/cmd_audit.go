package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/newtron-network/nvconf/pkg/audit"
	"github.com/newtron-network/nvconf/pkg/cli"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "View audit logs",
	Long: `View audit logs of configuration sessions.

Every run is logged with:
  - Timestamp and user
  - Device affected
  - Each nv command issued, with its exit code
  - Whether the configuration changed
  - Success/failure status

Examples:
  nvconf audit list --device leaf1
  nvconf audit list --last 24h
  nvconf audit list --changed --user alice`,
}

var (
	auditDevice   string
	auditUser     string
	auditLast     string
	auditLimit    int
	auditFailures bool
	auditChanged  bool
)

var auditListCmd = &cobra.Command{
	Use:   "list",
	Short: "List audit events",
	RunE: func(cmd *cobra.Command, args []string) error {
		filter := audit.Filter{
			Device:      auditDevice,
			User:        auditUser,
			Limit:       auditLimit,
			FailureOnly: auditFailures,
			ChangedOnly: auditChanged,
		}

		// Parse --last duration
		if auditLast != "" {
			duration, err := time.ParseDuration(auditLast)
			if err != nil {
				return fmt.Errorf("invalid duration: %s", auditLast)
			}
			filter.StartTime = time.Now().Add(-duration)
		}

		events, err := audit.Query(filter)
		if err != nil {
			return fmt.Errorf("querying audit log: %w", err)
		}

		out := cmd.OutOrStdout()
		if app.jsonOutput {
			return writeJSON(out, events)
		}

		if len(events) == 0 {
			fmt.Fprintln(out, "No audit events found")
			return nil
		}

		t := cli.NewTableTo(out, "TIMESTAMP", "USER", "DEVICE", "COMMANDS", "CHANGED", "STATUS")
		for _, event := range events {
			status := green("ok")
			if !event.Success {
				status = red("failed")
			} else if event.CheckMode {
				status = yellow("check")
			}
			changed := "no"
			if event.Changed {
				changed = "yes"
			}

			t.Row(
				event.Timestamp.Format("2006-01-02 15:04:05"),
				event.User,
				event.Device,
				fmt.Sprintf("%d", len(event.Invocations)),
				changed,
				status,
			)
		}
		t.Flush()

		return nil
	},
}

func init() {
	auditListCmd.Flags().StringVar(&auditDevice, "device", "", "Filter by device")
	auditListCmd.Flags().StringVar(&auditUser, "user", "", "Filter by user")
	auditListCmd.Flags().StringVar(&auditLast, "last", "", "Show events from last duration (e.g., 1h, 24h)")
	auditListCmd.Flags().IntVar(&auditLimit, "limit", 100, "Maximum events to show")
	auditListCmd.Flags().BoolVar(&auditFailures, "failures", false, "Show only failed sessions")
	auditListCmd.Flags().BoolVar(&auditChanged, "changed", false, "Show only sessions that changed the configuration")

	auditCmd.AddCommand(auditListCmd)
}
