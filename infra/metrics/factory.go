package metrics

import (
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/mixbot/core/factory"
	coremetrics "github.com/kilianp07/mixbot/core/metrics"
	"github.com/kilianp07/mixbot/infra/logger"
)

// DefaultLowLevelML is the warning threshold of the log sink.
const DefaultLowLevelML = 100

// init registers built-in metrics sinks.
func init() {
	_ = coremetrics.RegisterMetricsSink("nop", func(map[string]any) (coremetrics.MetricsSink, error) {
		return coremetrics.NopSink{}, nil
	})

	_ = coremetrics.RegisterMetricsSink("log", func(conf map[string]any) (coremetrics.MetricsSink, error) {
		c := struct {
			LowLevelML float64 `json:"low_level_ml"`
		}{LowLevelML: DefaultLowLevelML}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewLogSink(logger.New("mix-log"), c.LowLevelML), nil
	})

	_ = coremetrics.RegisterMetricsSink("prometheus", func(map[string]any) (coremetrics.MetricsSink, error) {
		return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
	})

	_ = coremetrics.RegisterMetricsSink("influx", func(conf map[string]any) (coremetrics.MetricsSink, error) {
		var c struct {
			URL   string `json:"url"`
			Token string `json:"token"`
			// TokenEnv names an environment variable holding the token.
			TokenEnv string `json:"token_env"`
			Org      string `json:"org"`
			Bucket   string `json:"bucket"`
		}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		if c.Token == "" && c.TokenEnv != "" {
			c.Token = os.Getenv(c.TokenEnv)
		}
		if c.URL == "" || c.Bucket == "" {
			return nil, fmt.Errorf("influx sink: url and bucket are required")
		}
		return NewInfluxSinkWithFallback(c.URL, c.Token, c.Org, c.Bucket), nil
	})
}
