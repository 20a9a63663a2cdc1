package main

import (
	"encoding/json"
	"fmt"

	"github.com/cadencehq/cadence"
	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Evaluate health alert rules",
	Long: `Evaluate the alert rule catalog against the latest snapshot.

The auth refresh statistics come from outside the engine; pass them in via
flags when an auth subsystem is attached.

Example:
  cadence health --user alice
  cadence health --user alice --refresh-attempts 40 --refresh-failures 7`,
	RunE: runHealth,
}

var (
	healthRefreshFailures int
	healthRefreshAttempts int
	healthReuseDetected   int
)

func init() {
	healthCmd.Flags().IntVar(&healthRefreshFailures, "refresh-failures", 0, "Auth token refresh failure count")
	healthCmd.Flags().IntVar(&healthRefreshAttempts, "refresh-attempts", 0, "Auth token refresh attempt count")
	healthCmd.Flags().IntVar(&healthReuseDetected, "reuse-detected", 0, "Auth token reuse detection count")
}

func runHealth(cmd *cobra.Command, args []string) error {
	if err := requireUser(); err != nil {
		return err
	}

	client, err := newClient()
	if err != nil {
		return err
	}
	defer client.Close()

	result, err := client.Health(cfgUserID, cadence.AuthStats{
		RefreshFailureCount: healthRefreshFailures,
		RefreshAttemptCount: healthRefreshAttempts,
		ReuseDetectedCount:  healthReuseDetected,
	})
	if err != nil {
		return fmt.Errorf("evaluate health: %w", err)
	}

	if outputJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Health Alerts")
	fmt.Fprintln(cmd.OutOrStdout(), "-------------")
	for _, alert := range result.Alerts {
		status := "ok"
		if alert.Triggered {
			status = string(alert.Severity)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%-30s %-8s value=%.4f threshold=%.4f\n",
			alert.ID, status, alert.Value, alert.Threshold)
	}
	if result.HighestSeverity != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "\nHighest severity: %s\n", result.HighestSeverity)
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), "\nAll clear.")
	}
	return nil
}
