package metrics

import "github.com/kilianp07/mixbot/core/factory"

// Config defines settings for metrics sinks.
type Config struct {
	Sinks []factory.ModuleConfig `json:"sinks"`
	// PrometheusAddress exposes /metrics on a dedicated listener when set.
	// Leave empty to serve it from the API server.
	PrometheusAddress string `json:"prometheus_address"`
}
