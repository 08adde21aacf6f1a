package mixing

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	queueDepth     prometheus.Gauge
	ordersRejected *prometheus.CounterVec
)

// newCollectors creates new metric collectors.
func newCollectors() (prometheus.Gauge, *prometheus.CounterVec) {
	depth := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "mix_queue_depth",
			Help: "Number of accepted jobs not yet finished",
		},
	)
	rej := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mix_orders_rejected_total",
			Help: "Orders rejected before any actuation, by reason",
		},
		[]string{"reason"},
	)
	return depth, rej
}

func init() {
	queueDepth, ordersRejected = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers coordinator metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(queueDepth, ordersRejected)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	queueDepth, ordersRejected = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
