package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export review data",
	Long: `Export the review log or the derived daily metrics as JSONL, or the
whole store as a sqlite database snapshot.

Example:
  cadence export --user alice --kind review_log --days 90 > reviews.jsonl
  cadence export --user alice --kind daily_metrics --days 30 -o metrics.jsonl
  cadence export --kind sqlite -o backup.db`,
	RunE: runExport,
}

var (
	exportKind string
	exportDays int
	exportOut  string
)

func init() {
	exportCmd.Flags().StringVar(&exportKind, "kind", "review_log", "Export kind: review_log, daily_metrics, or sqlite")
	exportCmd.Flags().IntVar(&exportDays, "days", 30, "Trailing window in days")
	exportCmd.Flags().StringVarP(&exportOut, "output", "o", "", "Output file (default: stdout)")
}

func runExport(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	// The sqlite snapshot covers the whole store and writes the file itself.
	if exportKind == "sqlite" {
		if exportOut == "" {
			return fmt.Errorf("export kind sqlite requires --output")
		}
		return client.ExportSQLite(ctx, exportOut)
	}

	if err := requireUser(); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if exportOut != "" {
		f, err := os.Create(exportOut)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	now := time.Now().UTC()
	from := now.AddDate(0, 0, -exportDays)

	switch exportKind {
	case "review_log":
		return client.ExportReviewLog(ctx, out, cfgUserID, from, now)
	case "daily_metrics":
		return client.ExportDailyMetrics(ctx, out, cfgUserID,
			from.Format("2006-01-02"), now.Format("2006-01-02"))
	default:
		return fmt.Errorf("unknown export kind %q", exportKind)
	}
}
