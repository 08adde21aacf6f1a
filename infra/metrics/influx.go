package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/mixbot/core/metrics"
	"github.com/kilianp07/mixbot/core/model"
	"github.com/kilianp07/mixbot/infra/logger"
)

// InfluxSink writes mix jobs and levels to an InfluxDB instance using the
// official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.MetricsSink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordMixResult writes one mix_job point and one mix_channel point per channel.
func (s *InfluxSink) RecordMixResult(rec coremetrics.MixRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	points := make([]*write.Point, 0, len(rec.Channels)+1)
	points = append(points, write.NewPointWithMeasurement("mix_job").
		AddTag("job_id", rec.JobID).
		AddTag("cocktail", rec.Cocktail).
		AddTag("state", rec.State).
		AddTag("alcoholic", strconv.FormatBool(rec.Alcoholic)).
		AddField("cocktail_id", rec.CocktailID).
		AddField("duration_s", round3(rec.Duration.Seconds())).
		AddField("channels", len(rec.Channels)).
		SetTime(rec.Time))
	for _, ch := range rec.Channels {
		points = append(points, write.NewPointWithMeasurement("mix_channel").
			AddTag("job_id", rec.JobID).
			AddTag("channel", channelLabel(ch.Channel)).
			AddTag("ingredient", ch.Ingredient).
			AddTag("ok", strconv.FormatBool(ch.OK)).
			AddField("amount_ml", round3(ch.AmountML)).
			AddField("duration_s", round3(ch.Duration.Seconds())).
			SetTime(rec.Time))
	}
	return s.writeAPI.WritePoint(ctx, points...)
}

// RecordInventoryLevels writes one ingredient_level point per ingredient.
func (s *InfluxSink) RecordInventoryLevels(levels []model.Ingredient, at time.Time) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	points := make([]*write.Point, 0, len(levels))
	for _, ing := range levels {
		points = append(points, write.NewPointWithMeasurement("ingredient_level").
			AddTag("ingredient", ing.Name).
			AddTag("kind", ing.Kind.String()).
			AddField("level_ml", round3(ing.LevelML)).
			SetTime(at))
	}
	return s.writeAPI.WritePoint(ctx, points...)
}

// Close releases the underlying client.
func (s *InfluxSink) Close() { s.client.Close() }

func round3(v float64) float64 { return math.Round(v*1000) / 1000 }
