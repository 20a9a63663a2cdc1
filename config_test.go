package cadence_test

import (
	"errors"
	"testing"

	"github.com/cadencehq/cadence"
)

func TestConfig_Validate_Defaults(t *testing.T) {
	cfg := cadence.DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() returned error for default config: %v", err)
	}
}

func TestConfig_Validate_MissingDBPath(t *testing.T) {
	cfg := cadence.DefaultConfig()
	cfg.DBPath = ""

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() returned nil, want ValidationError for missing DBPath")
	}

	var ve *cadence.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("Validate() returned %T, want *ValidationError", err)
	}
	if ve.Field != "DBPath" {
		t.Errorf("ValidationError.Field = %q, want %q", ve.Field, "DBPath")
	}
}

func TestConfig_Validate_RetentionBounds(t *testing.T) {
	for _, retention := range []float64{-0.1, 1, 1.5} {
		cfg := cadence.DefaultConfig()
		cfg.TargetRetention = retention

		var ve *cadence.ValidationError
		if err := cfg.Validate(); !errors.As(err, &ve) {
			t.Errorf("Validate() with retention %v = %v, want *ValidationError", retention, err)
		}
	}
}

func TestConfig_Validate_InvalidWeightsUnwraps(t *testing.T) {
	cfg := cadence.DefaultConfig()
	cfg.Weights[20] = 0 // below the decay slot's lower bound

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() returned nil, want error for out-of-bounds weights")
	}
	if !errors.Is(err, cadence.ErrInvalidWeights) {
		t.Errorf("errors.Is(err, ErrInvalidWeights) = false for %v", err)
	}

	var ve *cadence.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("Validate() returned %T, want *ValidationError", err)
	}
	if ve.Field != "Weights" {
		t.Errorf("ValidationError.Field = %q, want %q", ve.Field, "Weights")
	}
}

func TestConfig_Validate_ReliabilityThresholdOrder(t *testing.T) {
	cfg := cadence.DefaultConfig()
	cfg.ReliabilityMediumAt = 300
	cfg.ReliabilityHighAt = 200

	var ve *cadence.ValidationError
	if err := cfg.Validate(); !errors.As(err, &ve) {
		t.Fatalf("Validate() = %v, want *ValidationError", err)
	}
	if ve.Field != "ReliabilityHighAt" {
		t.Errorf("ValidationError.Field = %q, want %q", ve.Field, "ReliabilityHighAt")
	}
}

func TestConfig_Validate_DayStartHour(t *testing.T) {
	cfg := cadence.DefaultConfig()
	cfg.DayStartHour = 24

	var ve *cadence.ValidationError
	if err := cfg.Validate(); !errors.As(err, &ve) {
		t.Errorf("Validate() with DayStartHour 24 = %v, want *ValidationError", err)
	}
}

func TestConfig_WithDefaults_FillsUnset(t *testing.T) {
	cfg := cadence.Config{DBPath: "/tmp/test.db"}.WithDefaults()

	if cfg.TargetRetention != 0.9 {
		t.Errorf("TargetRetention = %v, want 0.9", cfg.TargetRetention)
	}
	if cfg.AdaptiveTargetRetention != 0.85 {
		t.Errorf("AdaptiveTargetRetention = %v, want 0.85", cfg.AdaptiveTargetRetention)
	}
	if cfg.AdaptiveRetentionFlag != "adaptive-retention" {
		t.Errorf("AdaptiveRetentionFlag = %q, want adaptive-retention", cfg.AdaptiveRetentionFlag)
	}
	if cfg.SameDayCutoffHours != 24 {
		t.Errorf("SameDayCutoffHours = %v, want 24", cfg.SameDayCutoffHours)
	}
	if cfg.Weights != cadence.DefaultWeights {
		t.Errorf("Weights = %v, want DefaultWeights", cfg.Weights)
	}
	if cfg.ReliabilityMediumAt != 50 || cfg.ReliabilityHighAt != 200 {
		t.Errorf("reliability thresholds = %d/%d, want 50/200", cfg.ReliabilityMediumAt, cfg.ReliabilityHighAt)
	}
	if cfg.DBPath != "/tmp/test.db" {
		t.Errorf("DBPath = %q, want /tmp/test.db preserved", cfg.DBPath)
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("CADENCE_DB_PATH", "/tmp/env.db")
	t.Setenv("CADENCE_TARGET_RETENTION", "0.8")
	t.Setenv("CADENCE_DEBUG", "1")

	cfg := cadence.ConfigFromEnv()
	if cfg.DBPath != "/tmp/env.db" {
		t.Errorf("DBPath = %q, want /tmp/env.db", cfg.DBPath)
	}
	if cfg.TargetRetention != 0.8 {
		t.Errorf("TargetRetention = %v, want 0.8", cfg.TargetRetention)
	}
	if !cfg.Debug {
		t.Error("Debug = false, want true")
	}
}
