package cadence

import (
	"os"
	"path/filepath"
	"strconv"
)

// Config configures the cadence client.
type Config struct {
	// DBPath is the path to the local SQLite database.
	DBPath string

	// Weights is the 21-element weight vector driving the engine.
	// A zero vector means DefaultWeights.
	Weights WeightVector

	// TargetRetention is the retention the scheduler aims for.
	// Defaults to 0.9.
	TargetRetention float64

	// AdaptiveTargetRetention is used instead of TargetRetention when the
	// adaptive-retention feature flag is enabled for the user.
	// Defaults to 0.85.
	AdaptiveTargetRetention float64

	// AdaptiveRetentionFlag names the feature flag gating the adaptive
	// retention policy. Defaults to "adaptive-retention".
	AdaptiveRetentionFlag string

	// SameDayCutoffHours bounds the same-day stability update window.
	// Defaults to 24.
	SameDayCutoffHours float64

	// MaxIntervalDays caps the scheduled interval. Defaults to 36500.
	MaxIntervalDays float64

	// BackfillDays is the window the metrics refresh recomputes.
	// Defaults to 30.
	BackfillDays int

	// ReliabilityMediumAt and ReliabilityHighAt are the review counts at
	// which a variable-length period's reliability band becomes medium and
	// high. Defaults: 50 and 200.
	ReliabilityMediumAt int
	ReliabilityHighAt   int

	// DayStartHour shifts the day boundary used to bucket reviews into
	// calendar days (0 = midnight). Defaults to 0.
	DayStartHour int

	// SourceID identifies this client instance. Defaults to hostname.
	SourceID string

	// Debug enables verbose logging of engine and store operations.
	Debug bool

	// DebugLogPath is the path to write debug logs. Defaults to stderr.
	DebugLogPath string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	hostname, _ := os.Hostname()
	return Config{
		DBPath:                  filepath.Join("data", "cadence.db"),
		Weights:                 DefaultWeights,
		TargetRetention:         0.9,
		AdaptiveTargetRetention: 0.85,
		AdaptiveRetentionFlag:   "adaptive-retention",
		SameDayCutoffHours:      24,
		MaxIntervalDays:         36500,
		BackfillDays:            30,
		ReliabilityMediumAt:     50,
		ReliabilityHighAt:       200,
		SourceID:                hostname,
	}
}

// ConfigFromEnv reads configuration from environment variables.
//
//	CADENCE_DB_PATH           → DBPath
//	CADENCE_TARGET_RETENTION  → TargetRetention
//	CADENCE_SOURCE_ID         → SourceID
//	CADENCE_DEBUG             → Debug (any non-empty value enables)
//	CADENCE_DEBUG_LOG         → DebugLogPath
func ConfigFromEnv() Config {
	cfg := Config{
		DBPath:       os.Getenv("CADENCE_DB_PATH"),
		SourceID:     os.Getenv("CADENCE_SOURCE_ID"),
		Debug:        os.Getenv("CADENCE_DEBUG") != "",
		DebugLogPath: os.Getenv("CADENCE_DEBUG_LOG"),
	}
	if v := os.Getenv("CADENCE_TARGET_RETENTION"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.TargetRetention = f
		}
	}
	return cfg
}

// Validate checks the configuration for errors.
// Returns *ValidationError for invalid fields.
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return &ValidationError{Field: "DBPath", Message: "required: path to SQLite database"}
	}
	if err := c.Weights.Validate(); err != nil {
		return &ValidationError{Field: "Weights", Message: "invalid weight vector", Err: err}
	}
	if c.TargetRetention <= 0 || c.TargetRetention >= 1 {
		return &ValidationError{Field: "TargetRetention", Message: "must be in (0, 1)"}
	}
	if c.AdaptiveTargetRetention <= 0 || c.AdaptiveTargetRetention >= 1 {
		return &ValidationError{Field: "AdaptiveTargetRetention", Message: "must be in (0, 1)"}
	}
	if c.SameDayCutoffHours <= 0 {
		return &ValidationError{Field: "SameDayCutoffHours", Message: "must be positive"}
	}
	if c.MaxIntervalDays <= 0 {
		return &ValidationError{Field: "MaxIntervalDays", Message: "must be positive"}
	}
	if c.BackfillDays < 0 {
		return &ValidationError{Field: "BackfillDays", Message: "must be non-negative"}
	}
	if c.ReliabilityMediumAt <= 0 || c.ReliabilityHighAt <= 0 {
		return &ValidationError{Field: "ReliabilityMediumAt", Message: "reliability thresholds must be positive"}
	}
	if c.ReliabilityMediumAt > c.ReliabilityHighAt {
		return &ValidationError{Field: "ReliabilityHighAt", Message: "must be >= ReliabilityMediumAt"}
	}
	if c.DayStartHour < 0 || c.DayStartHour > 23 {
		return &ValidationError{Field: "DayStartHour", Message: "must be in [0, 23]"}
	}
	return nil
}

// WithDefaults fills in default values for unset fields.
func (c Config) WithDefaults() Config {
	defaults := DefaultConfig()

	if c.DBPath == "" {
		c.DBPath = defaults.DBPath
	}
	if c.Weights == (WeightVector{}) {
		c.Weights = defaults.Weights
	}
	if c.TargetRetention == 0 {
		c.TargetRetention = defaults.TargetRetention
	}
	if c.AdaptiveTargetRetention == 0 {
		c.AdaptiveTargetRetention = defaults.AdaptiveTargetRetention
	}
	if c.AdaptiveRetentionFlag == "" {
		c.AdaptiveRetentionFlag = defaults.AdaptiveRetentionFlag
	}
	if c.SameDayCutoffHours == 0 {
		c.SameDayCutoffHours = defaults.SameDayCutoffHours
	}
	if c.MaxIntervalDays == 0 {
		c.MaxIntervalDays = defaults.MaxIntervalDays
	}
	if c.BackfillDays == 0 {
		c.BackfillDays = defaults.BackfillDays
	}
	if c.ReliabilityMediumAt == 0 {
		c.ReliabilityMediumAt = defaults.ReliabilityMediumAt
	}
	if c.ReliabilityHighAt == 0 {
		c.ReliabilityHighAt = defaults.ReliabilityHighAt
	}
	if c.SourceID == "" {
		c.SourceID = defaults.SourceID
	}
	return c
}
