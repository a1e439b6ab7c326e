// Sensorium - Probabilistic Sensor Time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sensorium

// Package export writes published groups to InfluxDB.
package export

import (
	"context"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/tomtom215/sensorium/internal/logging"
	"github.com/tomtom215/sensorium/internal/metrics"
	"github.com/tomtom215/sensorium/internal/models"
)

// Config locates the InfluxDB bucket.
type Config struct {
	URL    string
	Token  string
	Org    string
	Bucket string
	// Measurement names the group series; member series use
	// <Measurement>_member.
	Measurement string
	Timeout     time.Duration
}

// InfluxSink is a publish.Sink writing one point per group and one per
// contributing sensor.
type InfluxSink struct {
	writer      api.WriteAPIBlocking
	measurement string
	client      influxdb2.Client
}

// New connects to InfluxDB and checks its health.
func New(ctx context.Context, cfg Config) (*InfluxSink, error) {
	opts := influxdb2.DefaultOptions()
	if cfg.Timeout > 0 {
		opts.SetHTTPRequestTimeout(uint(cfg.Timeout.Seconds()))
	}
	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, opts)

	health, err := client.Health(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("influx health check %s: %w", cfg.URL, err)
	}
	if health.Status != "pass" {
		client.Close()
		return nil, fmt.Errorf("influx at %s is %s", cfg.URL, health.Status)
	}

	logging.Info().
		Str("url", cfg.URL).
		Str("bucket", cfg.Bucket).
		Msg("InfluxDB export enabled")

	s := NewWithWriter(client.WriteAPIBlocking(cfg.Org, cfg.Bucket), cfg.Measurement)
	s.client = client
	return s, nil
}

// NewWithWriter writes through w. Close does nothing.
func NewWithWriter(w api.WriteAPIBlocking, measurement string) *InfluxSink {
	if measurement == "" {
		measurement = "sync_group"
	}
	return &InfluxSink{writer: w, measurement: measurement}
}

// GroupPublished writes g at its publish time.
func (s *InfluxSink) GroupPublished(ctx context.Context, g models.PublishedGroup) error {
	err := s.writer.WritePoint(ctx, s.points(g)...)
	metrics.RecordExport(err)
	if err != nil {
		return fmt.Errorf("export %s: %w", g.GroupID, err)
	}
	return nil
}

func (s *InfluxSink) points(g models.PublishedGroup) []*write.Point {
	ts := g.PublishedAt
	top, _ := g.Group.MostLikely()

	points := make([]*write.Point, 0, 1+len(g.Group.Members))
	points = append(points, influxdb2.NewPoint(
		s.measurement,
		map[string]string{
			"group_id": g.GroupID,
			"node_id":  g.NodeID,
		},
		map[string]interface{}{
			"t_global":        g.Group.TGlobal,
			"members":         len(g.Group.Members),
			"top_sensor":      top.SensorID,
			"top_probability": top.Probability,
		},
		ts,
	))

	// A sensor can contribute several observations to one group; points
	// with equal tags and time would overwrite each other, so sum first.
	bySensor := make(map[string]float64, len(g.Group.Members))
	order := make([]string, 0, len(g.Group.Members))
	for _, m := range g.Group.Members {
		if _, seen := bySensor[m.SensorID]; !seen {
			order = append(order, m.SensorID)
		}
		bySensor[m.SensorID] += m.Probability
	}
	for _, sensor := range order {
		points = append(points, influxdb2.NewPoint(
			s.measurement+"_member",
			map[string]string{
				"group_id":  g.GroupID,
				"sensor_id": sensor,
			},
			map[string]interface{}{"probability": bySensor[sensor]},
			ts,
		))
	}
	return points
}

// Close releases the client when New created it.
func (s *InfluxSink) Close() {
	if s.client != nil {
		s.client.Close()
	}
}
