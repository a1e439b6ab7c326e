// Sensorium - Probabilistic Sensor Time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sensorium

package config

import (
	"github.com/tomtom215/sensorium/internal/engine"
	"github.com/tomtom215/sensorium/internal/logging"
	"github.com/tomtom215/sensorium/internal/store"
	"github.com/tomtom215/sensorium/internal/store/badgerstore"
	"github.com/tomtom215/sensorium/internal/store/natskv"
	"github.com/tomtom215/sensorium/internal/store/redisstore"
)

// EngineConfig returns the per-node step settings.
func (c *Config) EngineConfig() engine.Config {
	return engine.Config{
		NodeID:       c.Node.ID,
		HeartbeatTTL: c.Node.HeartbeatTTL,
		BucketSizeMS: c.Sync.BucketSizeMS,
		Mode:         engine.Mode(c.Sync.Mode),
		Calibrate:    c.Sync.Calibrate,
		ProcessNoise: c.Sync.ProcessNoise,
		ModelLoaders: c.Sync.ModelLoaders,
	}
}

// LoggingConfig returns the logger settings. Output stays the default.
func (c *Config) LoggingConfig() logging.Config {
	return logging.Config{
		Level:     c.Logging.Level,
		Format:    c.Logging.Format,
		Caller:    c.Logging.Caller,
		Timestamp: true,
	}
}

// BreakerConfig returns the breaker settings named after the backend.
func (c *Config) BreakerConfig() store.BreakerConfig {
	b := c.Store.Breaker
	return store.BreakerConfig{
		Name:             c.Store.Backend,
		MaxRequests:      b.MaxRequests,
		Interval:         b.Interval,
		Timeout:          b.Timeout,
		FailureThreshold: b.FailureThreshold,
	}
}

func (c *Config) RedisConfig() redisstore.Config {
	r := c.Store.Redis
	return redisstore.Config{
		Addr:         r.Addr,
		Username:     r.Username,
		Password:     r.Password,
		DB:           r.DB,
		DialTimeout:  r.DialTimeout,
		ReadTimeout:  r.ReadTimeout,
		WriteTimeout: r.WriteTimeout,
		ScanCount:    r.ScanCount,
	}
}

func (c *Config) BadgerConfig() badgerstore.Config {
	b := c.Store.Badger
	return badgerstore.Config{
		Path:       b.Path,
		InMemory:   b.InMemory,
		SyncWrites: b.SyncWrites,
		GCRatio:    b.GCRatio,
	}
}

func (c *Config) NATSKVConfig() natskv.Config {
	n := c.Store.NATS
	return natskv.Config{
		BucketPrefix:      n.BucketPrefix,
		MaxObservationTTL: n.MaxObservationTTL,
		MaxHeartbeatTTL:   n.MaxHeartbeatTTL,
		Replicas:          n.Replicas,
		MemoryStorage:     n.MemoryStorage,
	}
}

// EventsURL is the NATS URL the event publisher dials.
func (c *Config) EventsURL() string {
	if c.Events.URL != "" {
		return c.Events.URL
	}
	return c.Store.NATS.URL
}
