package actuation

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	actuations      *prometheus.CounterVec
	actuationTime   *prometheus.HistogramVec
	dispensedVolume *prometheus.CounterVec
	activeChannels  prometheus.Gauge
)

// newCollectors creates new metric collectors.
func newCollectors() (*prometheus.CounterVec, *prometheus.HistogramVec, *prometheus.CounterVec, prometheus.Gauge) {
	act := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "channel_actuations_total",
			Help: "Number of channel actuations by outcome",
		},
		[]string{"channel", "outcome"},
	)
	dur := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "channel_actuation_seconds",
			Help:    "Time a channel stayed active",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40, 80},
		},
		[]string{"channel"},
	)
	vol := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "channel_dispensed_ml_total",
			Help: "Volume dispensed per channel according to calibration",
		},
		[]string{"channel"},
	)
	active := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "channels_active",
			Help: "Number of channels currently active",
		},
	)
	return act, dur, vol, active
}

func init() {
	actuations, actuationTime, dispensedVolume, activeChannels = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers actuation metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(actuations, actuationTime, dispensedVolume, activeChannels)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	actuations, actuationTime, dispensedVolume, activeChannels = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
