// Sensorium - Probabilistic Sensor Time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sensorium

package main

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/tomtom215/sensorium/internal/config"
	"github.com/tomtom215/sensorium/internal/engine"
	"github.com/tomtom215/sensorium/internal/events"
	"github.com/tomtom215/sensorium/internal/export"
	"github.com/tomtom215/sensorium/internal/logging"
	"github.com/tomtom215/sensorium/internal/natsembed"
)

// sinks are the optional post-publish consumers.
type sinks struct {
	events *events.Publisher
	influx *export.InfluxSink
}

// openSinks connects the enabled sinks. natsURL overrides the configured
// events URL when the store runs its own NATS server.
func openSinks(ctx context.Context, cfg *config.Config, natsURL string) (*sinks, error) {
	s := &sinks{}

	if cfg.Events.Enabled {
		eventsURL := cfg.EventsURL()
		if cfg.Events.URL == "" && natsURL != "" {
			eventsURL = natsURL
		}
		if err := ensureEventStream(ctx, eventsURL, cfg); err != nil {
			return nil, err
		}

		ecfg := events.DefaultConfig(cfg.Node.ID)
		ecfg.TopicPrefix = cfg.Events.TopicPrefix
		ecfg.Timeout = cfg.Events.PublishTimeout
		pub, err := events.NewNATSPublisher(eventsURL, ecfg)
		if err != nil {
			return nil, err
		}
		s.events = pub
		logging.Info().Str("url", eventsURL).Str("prefix", ecfg.TopicPrefix).Msg("Event publishing enabled")
	}

	if cfg.Influx.Enabled {
		sink, err := export.New(ctx, export.Config{
			URL:         cfg.Influx.URL,
			Token:       cfg.Influx.Token,
			Org:         cfg.Influx.Org,
			Bucket:      cfg.Influx.Bucket,
			Measurement: cfg.Influx.Measurement,
			Timeout:     cfg.Influx.Timeout,
		})
		if err != nil {
			s.Close()
			return nil, err
		}
		s.influx = sink
	}

	return s, nil
}

func ensureEventStream(ctx context.Context, natsURL string, cfg *config.Config) error {
	nc, err := natsembed.Connect(natsURL, "sensorium-streams-"+cfg.Node.ID)
	if err != nil {
		return fmt.Errorf("connect nats for stream setup: %w", err)
	}
	defer nc.Close()

	js, err := jetstream.New(nc)
	if err != nil {
		return fmt.Errorf("create jetstream context: %w", err)
	}
	scfg := events.DefaultStreamConfig(cfg.Events.TopicPrefix)
	scfg.MemoryStorage = cfg.Store.NATS.MemoryStorage
	if _, err := events.EnsureStream(ctx, js, scfg); err != nil {
		return err
	}
	return nil
}

func (s *sinks) engineOptions() []engine.Option {
	var opts []engine.Option
	if s.events != nil {
		opts = append(opts, engine.WithSink(s.events), engine.WithMasterChange(s.events.MasterChanged))
	}
	if s.influx != nil {
		opts = append(opts, engine.WithSink(s.influx))
	}
	return opts
}

func (s *sinks) Close() {
	if s.events != nil {
		if err := s.events.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing event publisher")
		}
	}
	if s.influx != nil {
		s.influx.Close()
	}
}
