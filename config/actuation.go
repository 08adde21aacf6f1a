package config

import (
	"fmt"
	"time"

	"github.com/kilianp07/mixbot/core/actuation"
	"github.com/kilianp07/mixbot/core/factory"
)

// ActuationConfig selects the relay backend and its calibration.
type ActuationConfig struct {
	Backend             factory.ModuleConfig `json:"backend"`
	SecondsPerML        float64              `json:"seconds_per_ml"`
	TestDurationSeconds float64              `json:"test_duration_seconds"`
}

// SetDefaults applies sane defaults.
func (c *ActuationConfig) SetDefaults() {
	if c.Backend.Type == "" {
		c.Backend.Type = "log"
	}
	if c.SecondsPerML <= 0 {
		c.SecondsPerML = actuation.DefaultSecondsPerML
	}
	if c.TestDurationSeconds <= 0 {
		c.TestDurationSeconds = 2
	}
}

// Validate checks mandatory fields.
func (c ActuationConfig) Validate() error {
	if c.TestDurationSeconds > 60 {
		return fmt.Errorf("test_duration_seconds above 60")
	}
	return c.Calibration().Validate()
}

// Calibration returns the volume to duration conversion.
func (c ActuationConfig) Calibration() actuation.Calibration {
	return actuation.Calibration{SecondsPerML: c.SecondsPerML}
}

// TestDuration is the diagnostic actuation length.
func (c ActuationConfig) TestDuration() time.Duration {
	return time.Duration(c.TestDurationSeconds * float64(time.Second))
}
