package metrics

import (
	"time"

	coremetrics "github.com/kilianp07/mixbot/core/metrics"
	"github.com/kilianp07/mixbot/core/model"
	"github.com/kilianp07/mixbot/infra/logger"
)

// LogSink writes mix results to the structured log and warns about
// liquids running low.
type LogSink struct {
	log        logger.Logger
	lowLevelML float64
}

// NewLogSink returns a LogSink. Liquids at or below lowLevelML are reported.
func NewLogSink(log logger.Logger, lowLevelML float64) *LogSink {
	if log == nil {
		log = logger.NopLogger{}
	}
	return &LogSink{log: log, lowLevelML: lowLevelML}
}

func (s *LogSink) RecordMixResult(rec coremetrics.MixRecord) error {
	failed := 0
	var poured float64
	for _, ch := range rec.Channels {
		if !ch.OK {
			failed++
			continue
		}
		poured += ch.AmountML
	}
	s.log.Infow("mix finished", map[string]any{
		"job_id":          rec.JobID,
		"cocktail":        rec.Cocktail,
		"state":           rec.State,
		"poured_ml":       poured,
		"failed_channels": failed,
		"duration":        rec.Duration.String(),
	})
	return nil
}

func (s *LogSink) RecordInventoryLevels(levels []model.Ingredient, _ time.Time) error {
	for _, ing := range levels {
		if ing.IsLiquid() && ing.LevelML <= s.lowLevelML {
			s.log.Warnf("%s low: %gml left", ing.Name, ing.LevelML)
		}
	}
	return nil
}
