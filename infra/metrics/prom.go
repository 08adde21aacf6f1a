package metrics

import (
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/mixbot/core/metrics"
	"github.com/kilianp07/mixbot/core/model"
)

// PromSink records mix jobs and fill levels in Prometheus metrics.
type PromSink struct {
	mixes    *prometheus.CounterVec
	duration prometheus.Histogram
	poured   *prometheus.CounterVec
	levels   *prometheus.GaugeVec
}

// NewPromSink registers mix metrics on the default Prometheus registerer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	mixes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mix_jobs_total",
		Help: "Total number of finished mix jobs",
	}, []string{"cocktail", "state"})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "mix_job_duration_seconds",
		Help:    "Time from the first channel activation to the inventory commit",
		Buckets: []float64{5, 10, 20, 40, 60, 90, 120},
	})
	poured := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ingredient_poured_ml_total",
		Help: "Volume committed to the inventory per ingredient",
	}, []string{"ingredient"})
	levels := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ingredient_level_ml",
		Help: "Current fill level per ingredient",
	}, []string{"ingredient", "kind"})

	var err error
	if mixes, err = register(reg, mixes); err != nil {
		return nil, err
	}
	if duration, err = register(reg, duration); err != nil {
		return nil, err
	}
	if poured, err = register(reg, poured); err != nil {
		return nil, err
	}
	if levels, err = register(reg, levels); err != nil {
		return nil, err
	}
	return &PromSink{mixes: mixes, duration: duration, poured: poured, levels: levels}, nil
}

// RecordMixResult increments the job counter and the poured volume.
func (s *PromSink) RecordMixResult(rec coremetrics.MixRecord) error {
	s.mixes.WithLabelValues(rec.Cocktail, rec.State).Inc()
	s.duration.Observe(rec.Duration.Seconds())
	for _, ch := range rec.Channels {
		if ch.OK {
			s.poured.WithLabelValues(ch.Ingredient).Add(ch.AmountML)
		}
	}
	return nil
}

// RecordInventoryLevels sets the level gauge of every ingredient.
func (s *PromSink) RecordInventoryLevels(levels []model.Ingredient, _ time.Time) error {
	for _, ing := range levels {
		s.levels.WithLabelValues(ing.Name, ing.Kind.String()).Set(ing.LevelML)
	}
	return nil
}

func channelLabel(ch int) string { return strconv.Itoa(ch) }
