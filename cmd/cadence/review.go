package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cadencehq/cadence"
	"github.com/spf13/cobra"
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Submit a card rating",
	Long: `Submit one rating for a card and print the updated schedule.

Ratings: 1=again, 2=hard, 3=good, 4=easy.

Example:
  cadence review --user alice --card 01HX... --rating 3
  cadence review -u alice --card 01HX... --rating 4 --time-ms 4200 --json`,
	RunE: runReview,
}

var (
	reviewCardID   string
	reviewRating   int
	reviewTimeMs   int
	reviewCategory string
)

func init() {
	reviewCmd.Flags().StringVar(&reviewCardID, "card", "", "Card id (required)")
	reviewCmd.Flags().IntVar(&reviewRating, "rating", 0, "Rating 1-4 (required)")
	reviewCmd.Flags().IntVar(&reviewTimeMs, "time-ms", 0, "Review duration in milliseconds")
	reviewCmd.Flags().StringVar(&reviewCategory, "category", "", "Category id")

	reviewCmd.MarkFlagRequired("card")
	reviewCmd.MarkFlagRequired("rating")
}

func runReview(cmd *cobra.Command, args []string) error {
	if err := requireUser(); err != nil {
		return err
	}

	client, err := newClient()
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	result, err := client.SubmitReview(ctx, cadence.SubmitParams{
		UserID:       cfgUserID,
		CardID:       reviewCardID,
		Rating:       cadence.Rating(reviewRating),
		CategoryID:   reviewCategory,
		ReviewTimeMs: reviewTimeMs,
	})
	if err != nil {
		return fmt.Errorf("submit review: %w", err)
	}

	if outputJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Card %s rated %s\n", reviewCardID, cadence.Rating(reviewRating))
	fmt.Fprintf(cmd.OutOrStdout(), "  stability:   %.2f days\n", result.NewState.Stability)
	fmt.Fprintf(cmd.OutOrStdout(), "  difficulty:  %.2f\n", result.NewState.Difficulty)
	fmt.Fprintf(cmd.OutOrStdout(), "  recall est:  %.1f%%\n", result.RetrievabilityBefore*100)
	fmt.Fprintf(cmd.OutOrStdout(), "  next review: %s (%.1f days)\n",
		result.NewState.NextReviewAt.Format("2006-01-02"), result.NextIntervalDays)
	return nil
}

var dueCmd = &cobra.Command{
	Use:   "due",
	Short: "List cards due for review",
	Long: `List the cards whose next review date has passed, soonest first.

Example:
  cadence due --user alice --limit 20`,
	RunE: runDue,
}

var dueLimit int

func init() {
	dueCmd.Flags().IntVar(&dueLimit, "limit", 50, "Maximum cards to list")
}

func runDue(cmd *cobra.Command, args []string) error {
	if err := requireUser(); err != nil {
		return err
	}

	client, err := newClient()
	if err != nil {
		return err
	}
	defer client.Close()

	states, err := client.Due(cfgUserID, dueLimit)
	if err != nil {
		return fmt.Errorf("list due cards: %w", err)
	}

	if outputJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(states)
	}

	if len(states) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No cards due.")
		return nil
	}
	for _, s := range states {
		fmt.Fprintf(cmd.OutOrStdout(), "%s  due %s  S=%.1f D=%.1f %s\n",
			s.CardID, s.NextReviewAt.Format("2006-01-02"), s.Stability, s.Difficulty, s.ReviewState)
	}
	return nil
}
