package metrics

import (
	"time"

	"github.com/kilianp07/mixbot/core/model"
)

// ChannelRecord is the outcome of one channel within a mix job.
type ChannelRecord struct {
	Channel      int
	IngredientID int
	Ingredient   string
	AmountML     float64
	Duration     time.Duration
	OK           bool
}

// MixRecord summarizes a finished mix job.
type MixRecord struct {
	JobID      string
	CocktailID int
	Cocktail   string
	Alcoholic  bool
	State      string
	Channels   []ChannelRecord
	Duration   time.Duration
	Time       time.Time
}

// MetricsSink records mix results for observability purposes.
type MetricsSink interface {
	RecordMixResult(rec MixRecord) error
}

// InventoryRecorder is implemented by sinks able to record fill levels.
type InventoryRecorder interface {
	RecordInventoryLevels(levels []model.Ingredient, at time.Time) error
}

// NopSink implements MetricsSink with no-op methods.
type NopSink struct{}

func (NopSink) RecordMixResult(MixRecord) error { return nil }

// Ensure NopSink implements InventoryRecorder.
func (NopSink) RecordInventoryLevels([]model.Ingredient, time.Time) error { return nil }
