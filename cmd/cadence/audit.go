package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Check event-log consistency",
	Long: `Cross-check the journey-event log against the review log and report
the mismatch rate with its health classification.

Example:
  cadence audit --user alice --window 30 --samples 10`,
	RunE: runAudit,
}

var (
	auditWindow  int
	auditSamples int
)

func init() {
	auditCmd.Flags().IntVar(&auditWindow, "window", 30, "Audit window in days")
	auditCmd.Flags().IntVar(&auditSamples, "samples", 10, "Maximum offending ids to list per issue")
}

func runAudit(cmd *cobra.Command, args []string) error {
	if err := requireUser(); err != nil {
		return err
	}

	client, err := newClient()
	if err != nil {
		return err
	}
	defer client.Close()

	report, err := client.Audit(cfgUserID, auditWindow, auditSamples)
	if err != nil {
		return fmt.Errorf("run audit: %w", err)
	}

	if outputJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Event Log Audit (last %d days)\n", auditWindow)
	fmt.Fprintln(cmd.OutOrStdout(), "------------------------------")
	fmt.Fprintf(cmd.OutOrStdout(), "Review log rows: %d\n", report.ReviewLogCount)
	fmt.Fprintf(cmd.OutOrStdout(), "Journey events:  %d\n", report.JourneyEventCount)
	fmt.Fprintf(cmd.OutOrStdout(), "Missing:         %d\n", report.MissingCount)
	fmt.Fprintf(cmd.OutOrStdout(), "Duplicates:      %d\n", report.DuplicateCount)
	fmt.Fprintf(cmd.OutOrStdout(), "Ordering issues: %d\n", report.OrderingIssueCount)
	fmt.Fprintf(cmd.OutOrStdout(), "Mismatch rate:   %.2f%%\n", report.MismatchRate*100)
	fmt.Fprintf(cmd.OutOrStdout(), "Health:          %s\n", report.HealthLevel)

	printSamples(cmd, "Missing", report.MissingSamples)
	printSamples(cmd, "Duplicate", report.DuplicateSamples)
	printSamples(cmd, "Out of order", report.OutOfOrderSamples)
	return nil
}

func printSamples(cmd *cobra.Command, label string, ids []string) {
	if len(ids) == 0 {
		return
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s samples:\n", label)
	for _, id := range ids {
		fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", id)
	}
}
