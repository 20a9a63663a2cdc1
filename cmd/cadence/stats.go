package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/cadencehq/cadence"
	"github.com/cadencehq/cadence/metrics"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show review statistics",
	Long: `Display store statistics and the user's calibration summary.

Example:
  cadence stats --user alice
  cadence stats --user alice --period 7 --category 01HX...`,
	RunE: runStats,
}

var (
	statsPeriod   int
	statsCategory string
	statsWindows  bool
)

func init() {
	statsCmd.Flags().IntVar(&statsPeriod, "period", 7, "Summary period in days")
	statsCmd.Flags().StringVar(&statsCategory, "category", "", "Restrict summary to one category id")
	statsCmd.Flags().BoolVar(&statsWindows, "windows", false, "Include fixed trailing windows")
}

func runStats(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	defer client.Close()

	stats, err := client.Stats()
	if err != nil {
		return fmt.Errorf("get stats: %w", err)
	}

	if cfgUserID == "" {
		if outputJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(stats)
		}
		printStoreStats(cmd, stats)
		return nil
	}

	summary, err := getSummary(client)
	if err != nil {
		return err
	}

	var windows []metrics.WindowStat
	if statsWindows {
		windows, err = client.Windows(cfgUserID)
		if err != nil {
			return fmt.Errorf("get windows: %w", err)
		}
	}

	if outputJSON {
		out := map[string]any{"store": stats, "summary": summary}
		if statsWindows {
			out["windows"] = windows
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	printStoreStats(cmd, stats)

	fmt.Fprintln(cmd.OutOrStdout())
	fmt.Fprintf(cmd.OutOrStdout(), "Last %d Days (vs previous %d)\n", statsPeriod, statsPeriod)
	fmt.Fprintln(cmd.OutOrStdout(), "-----------------------------")
	fmt.Fprintf(cmd.OutOrStdout(), "Reviews:          %d (%+d)\n", summary.Current.ReviewCount, summary.Deltas.ReviewCount)
	fmt.Fprintf(cmd.OutOrStdout(), "Recall rate:      %.1f%% (%+.1f)\n",
		summary.Current.ObservedRecallRate*100, summary.Deltas.ObservedRecallRate*100)
	fmt.Fprintf(cmd.OutOrStdout(), "Predicted recall: %.1f%%\n", summary.Current.AvgPredictedRecall*100)
	fmt.Fprintf(cmd.OutOrStdout(), "Brier score:      %.4f (%+.4f)\n",
		summary.Current.AvgBrierScore, summary.Deltas.AvgBrierScore)
	fmt.Fprintf(cmd.OutOrStdout(), "Reliability:      %s\n", summary.Current.Reliability)

	if statsWindows {
		fmt.Fprintln(cmd.OutOrStdout())
		fmt.Fprintln(cmd.OutOrStdout(), "Trailing Windows")
		fmt.Fprintln(cmd.OutOrStdout(), "----------------")
		for _, w := range windows {
			fmt.Fprintf(cmd.OutOrStdout(), "last %-5d %4d reviews  recall %.1f%%  brier %.4f  (%s)\n",
				w.Size, w.ReviewCount, w.ObservedRecallRate*100, w.AvgBrierScore, w.Reliability)
		}
	}
	return nil
}

func getSummary(client *cadence.Client) (*metrics.Summary, error) {
	if statsCategory != "" {
		s, err := client.CategorySummary(cfgUserID, statsCategory, statsPeriod)
		if err != nil {
			return nil, fmt.Errorf("get category summary: %w", err)
		}
		return s, nil
	}
	s, err := client.Summary(cfgUserID, statsPeriod)
	if err != nil {
		return nil, fmt.Errorf("get summary: %w", err)
	}
	return s, nil
}

func printStoreStats(cmd *cobra.Command, stats *cadence.StoreStats) {
	fmt.Fprintln(cmd.OutOrStdout(), "Local Store Statistics")
	fmt.Fprintln(cmd.OutOrStdout(), "----------------------")
	fmt.Fprintf(cmd.OutOrStdout(), "Memory states:  %d\n", stats.MemoryStateCount)
	fmt.Fprintf(cmd.OutOrStdout(), "Reviews:        %d\n", stats.ReviewCount)
	fmt.Fprintf(cmd.OutOrStdout(), "Journey events: %d\n", stats.JourneyEventCount)
	fmt.Fprintf(cmd.OutOrStdout(), "Schema version: %s\n", stats.SchemaVersion)

	if !stats.LastRefreshAt.IsZero() {
		fmt.Fprintf(cmd.OutOrStdout(), "Last refresh:   %s (%s ago)\n",
			stats.LastRefreshAt.Format(time.RFC3339),
			time.Since(stats.LastRefreshAt).Round(time.Minute))
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), "Last refresh:   never")
	}
}

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Recompute derived metrics",
	Long: `Recompute the daily and session aggregates over the backfill window.

Example:
  cadence refresh --user alice`,
	RunE: runRefresh,
}

func runRefresh(cmd *cobra.Command, args []string) error {
	if err := requireUser(); err != nil {
		return err
	}

	client, err := newClient()
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.RefreshMetrics(cfgUserID); err != nil {
		return fmt.Errorf("refresh metrics: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Metrics refreshed.")
	return nil
}
