package actuation

import (
	"fmt"
	"time"

	"github.com/kilianp07/mixbot/core/model"
)

// DefaultSecondsPerML matches pumps delivering 2 ml per second.
const DefaultSecondsPerML = 0.5

// Calibration converts volumes into pump durations.
type Calibration struct {
	SecondsPerML float64 `json:"seconds_per_ml"`
}

// Validate checks the calibration constant.
func (c Calibration) Validate() error {
	if c.SecondsPerML <= 0 {
		return fmt.Errorf("%w: seconds_per_ml must be positive", model.ErrValidation)
	}
	return nil
}

// Duration returns how long a channel must stay active to deliver ml.
func (c Calibration) Duration(ml float64) time.Duration {
	if ml <= 0 {
		return 0
	}
	spm := c.SecondsPerML
	if spm <= 0 {
		spm = DefaultSecondsPerML
	}
	return time.Duration(ml * spm * float64(time.Second))
}
