package main

import (
	"fmt"

	"github.com/cadencehq/cadence"
	"github.com/cadencehq/cadence/internal/config"
	"github.com/spf13/cobra"
)

var (
	cfgFile    string
	cfgDBPath  string
	cfgUserID  string
	outputJSON bool
)

var rootCmd = &cobra.Command{
	Use:   "cadence",
	Short: "Cadence - spaced repetition memory engine",
	Long: `Cadence schedules flashcard reviews with a per-card memory model.

Every rating updates the card's stability and difficulty and produces the
next review date; the review log feeds calibration metrics, a consistency
audit, and health alerting.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to config file (default: .cadence.yaml)")
	rootCmd.PersistentFlags().StringVar(&cfgDBPath, "db-path", "", "Path to local review database (default: ./data/cadence.db)")
	rootCmd.PersistentFlags().StringVarP(&cfgUserID, "user", "u", "", "User id (required for most commands)")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "Output as JSON")

	rootCmd.AddCommand(reviewCmd)
	rootCmd.AddCommand(dueCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(refreshCmd)
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(exportCmd)
}

func loadConfig() (cadence.Config, error) {
	var (
		cfg cadence.Config
		err error
	)
	if cfgFile != "" {
		cfg, err = config.LoadFromFile(cfgFile)
	} else {
		cfg, err = config.LoadDefault()
	}
	if err != nil {
		return cadence.Config{}, err
	}

	// Flags override file and environment.
	if cfgDBPath != "" {
		cfg.DBPath = cfgDBPath
	}
	return cfg, nil
}

func newClient() (*cadence.Client, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	client, err := cadence.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("initialize client: %w", err)
	}
	return client, nil
}

func requireUser() error {
	if cfgUserID == "" {
		return fmt.Errorf("--user is required")
	}
	return nil
}
