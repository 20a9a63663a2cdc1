// Package config loads cadence configuration from YAML files and
// environment variables and produces a cadence.Config.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/cast"
	"github.com/spf13/viper"

	"github.com/cadencehq/cadence"
)

// Loader handles configuration loading from multiple sources.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	v := viper.New()

	v.SetConfigName(".cadence")
	v.SetConfigType("yaml")

	// Search paths in order of priority
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME")
	v.AddConfigPath("/etc/cadence")

	// Environment variable support
	v.SetEnvPrefix("CADENCE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return &Loader{v: v}
}

// SetConfigFile sets a specific config file to use.
func (l *Loader) SetConfigFile(path string) {
	l.v.SetConfigFile(path)
}

// ConfigFileUsed returns the path of the config file used, if any.
func (l *Loader) ConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// Load loads the configuration from all sources.
// Priority (highest to lowest):
// 1. Explicit config file (if set via SetConfigFile)
// 2. Environment variables (CADENCE_*)
// 3. Config file from search paths (.cadence.yaml)
// 4. Default values
func (l *Loader) Load() (cadence.Config, error) {
	defaults := cadence.DefaultConfig()
	l.setDefaults(defaults)

	if err := l.v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return cadence.Config{}, fmt.Errorf("config: read file: %w", err)
		}
		// No config file is fine, defaults and env apply.
	}

	cfg := cadence.Config{
		DBPath:                  l.v.GetString("db_path"),
		Weights:                 defaults.Weights,
		TargetRetention:         l.v.GetFloat64("target_retention"),
		AdaptiveTargetRetention: l.v.GetFloat64("adaptive_target_retention"),
		AdaptiveRetentionFlag:   l.v.GetString("adaptive_retention_flag"),
		SameDayCutoffHours:      l.v.GetFloat64("same_day_cutoff_hours"),
		MaxIntervalDays:         l.v.GetFloat64("max_interval_days"),
		BackfillDays:            l.v.GetInt("backfill_days"),
		ReliabilityMediumAt:     l.v.GetInt("reliability_medium_at"),
		ReliabilityHighAt:       l.v.GetInt("reliability_high_at"),
		DayStartHour:            l.v.GetInt("day_start_hour"),
		SourceID:                l.v.GetString("source_id"),
		Debug:                   l.v.GetBool("debug"),
		DebugLogPath:            l.v.GetString("debug_log"),
	}

	if raw := l.v.Get("weights"); raw != nil {
		weights, err := parseWeights(raw)
		if err != nil {
			return cadence.Config{}, err
		}
		cfg.Weights = weights
	}

	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return cadence.Config{}, err
	}
	return cfg, nil
}

// parseWeights converts the raw YAML weights list into a weight vector.
// A partial vector is rejected rather than padded.
func parseWeights(raw any) (cadence.WeightVector, error) {
	items, err := cast.ToSliceE(raw)
	if err != nil {
		return cadence.WeightVector{}, fmt.Errorf("config: weights must be a list: %w", err)
	}
	if len(items) != len(cadence.WeightVector{}) {
		return cadence.WeightVector{}, fmt.Errorf("config: weights must have %d elements, got %d",
			len(cadence.WeightVector{}), len(items))
	}

	var weights cadence.WeightVector
	for i, item := range items {
		f, err := cast.ToFloat64E(item)
		if err != nil {
			return cadence.WeightVector{}, fmt.Errorf("config: weights[%d]: %w", i, err)
		}
		weights[i] = f
	}
	return weights, nil
}

// setDefaults sets all default values in viper.
func (l *Loader) setDefaults(cfg cadence.Config) {
	l.v.SetDefault("db_path", cfg.DBPath)
	l.v.SetDefault("target_retention", cfg.TargetRetention)
	l.v.SetDefault("adaptive_target_retention", cfg.AdaptiveTargetRetention)
	l.v.SetDefault("adaptive_retention_flag", cfg.AdaptiveRetentionFlag)
	l.v.SetDefault("same_day_cutoff_hours", cfg.SameDayCutoffHours)
	l.v.SetDefault("max_interval_days", cfg.MaxIntervalDays)
	l.v.SetDefault("backfill_days", cfg.BackfillDays)
	l.v.SetDefault("reliability_medium_at", cfg.ReliabilityMediumAt)
	l.v.SetDefault("reliability_high_at", cfg.ReliabilityHighAt)
	l.v.SetDefault("day_start_hour", cfg.DayStartHour)
	l.v.SetDefault("source_id", cfg.SourceID)
	l.v.SetDefault("debug", cfg.Debug)
	l.v.SetDefault("debug_log", cfg.DebugLogPath)
}

// LoadFromFile loads configuration from a specific file.
func LoadFromFile(path string) (cadence.Config, error) {
	loader := NewLoader()
	loader.SetConfigFile(path)
	return loader.Load()
}

// LoadDefault loads configuration with default search paths.
func LoadDefault() (cadence.Config, error) {
	return NewLoader().Load()
}
