package metrics

import (
	"errors"
	"time"

	"github.com/kilianp07/mixbot/core/model"
)

// MultiSink fans records out to multiple sinks.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordMixResult forwards the record to all sinks. Every sink is attempted;
// the errors are joined.
func (m *MultiSink) RecordMixResult(rec MixRecord) error {
	var errs []error
	for _, s := range m.Sinks {
		if err := s.RecordMixResult(rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RecordInventoryLevels forwards levels to sinks supporting them.
func (m *MultiSink) RecordInventoryLevels(levels []model.Ingredient, at time.Time) error {
	var errs []error
	for _, s := range m.Sinks {
		if r, ok := s.(InventoryRecorder); ok {
			if err := r.RecordInventoryLevels(levels, at); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
