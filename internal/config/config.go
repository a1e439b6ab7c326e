// Sensorium - Probabilistic Sensor Time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sensorium

package config

import (
	"time"
)

// Config holds all coordinator configuration.
//
// Loading order (koanf v2):
//  1. Defaults built into defaultConfig
//  2. Optional YAML file (CONFIG_PATH or the default search paths)
//  3. Environment variables
//
// Example:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    logging.Fatal().Err(err).Msg("Failed to load config")
//	}
//	eng, err := engine.New(st, cfg.EngineConfig())
type Config struct {
	Node    NodeConfig    `koanf:"node"`
	Sync    SyncConfig    `koanf:"sync"`
	Store   StoreConfig   `koanf:"store"`
	Events  EventsConfig  `koanf:"events"`
	Influx  InfluxConfig  `koanf:"influx"`
	Server  ServerConfig  `koanf:"server"`
	Logging LoggingConfig `koanf:"logging"`
}

// NodeConfig identifies this coordinator within the cluster.
type NodeConfig struct {
	// ID takes part in the bully election. The greatest live ID by byte
	// order is master.
	ID string `koanf:"id"`

	// HeartbeatTTL is how long a heartbeat keeps the node live. A crashed
	// master is replaced at most this long after its last heartbeat.
	HeartbeatTTL time.Duration `koanf:"heartbeat_ttl"`
}

// SyncConfig controls the step loop.
type SyncConfig struct {
	// StepInterval is the period of the supervised step loop.
	StepInterval time.Duration `koanf:"step_interval"`

	// BucketSizeMS is the CandidateIndex bucket width in milliseconds.
	BucketSizeMS int64 `koanf:"bucket_size_ms"`

	// Mode is batch or slice.
	Mode string `koanf:"mode"`

	// Calibrate feeds published event times back into offset models.
	Calibrate bool `koanf:"calibrate"`

	ProcessNoise float64 `koanf:"process_noise"`

	// ObservationTTL is applied to ingested observations that do not
	// carry their own.
	ObservationTTL time.Duration `koanf:"observation_ttl"`

	ModelLoaders int `koanf:"model_loaders"`
}

// StoreConfig selects and configures the shared store.
type StoreConfig struct {
	// Backend is memory, redis, badger or nats.
	Backend string        `koanf:"backend"`
	Redis   RedisConfig   `koanf:"redis"`
	Badger  BadgerConfig  `koanf:"badger"`
	NATS    NATSConfig    `koanf:"nats"`
	Breaker BreakerConfig `koanf:"breaker"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr         string        `koanf:"addr"`
	Username     string        `koanf:"username"`
	Password     string        `koanf:"password"`
	DB           int           `koanf:"db"`
	DialTimeout  time.Duration `koanf:"dial_timeout"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
	ScanCount    int64         `koanf:"scan_count"`
}

// BadgerConfig configures the embedded single-node store.
type BadgerConfig struct {
	Path       string `koanf:"path"`
	InMemory   bool   `koanf:"in_memory"`
	SyncWrites bool   `koanf:"sync_writes"`

	// GCInterval is how often the supervisor runs value log GC.
	GCInterval time.Duration `koanf:"gc_interval"`
	GCRatio    float64       `koanf:"gc_ratio"`
}

// NATSConfig configures the JetStream connection shared by the KV store
// and the event publisher.
type NATSConfig struct {
	URL string `koanf:"url"`

	// Embedded starts an in-process server and ignores URL.
	Embedded bool   `koanf:"embedded"`
	StoreDir string `koanf:"store_dir"`

	BucketPrefix      string        `koanf:"bucket_prefix"`
	Replicas          int           `koanf:"replicas"`
	MemoryStorage     bool          `koanf:"memory_storage"`
	MaxObservationTTL time.Duration `koanf:"max_observation_ttl"`
	MaxHeartbeatTTL   time.Duration `koanf:"max_heartbeat_ttl"`
}

// BreakerConfig configures the circuit breaker in front of network backends.
type BreakerConfig struct {
	Enabled          bool          `koanf:"enabled"`
	MaxRequests      uint32        `koanf:"max_requests"`
	Interval         time.Duration `koanf:"interval"`
	Timeout          time.Duration `koanf:"timeout"`
	FailureThreshold uint32        `koanf:"failure_threshold"`
}

// EventsConfig controls domain event publishing over NATS.
type EventsConfig struct {
	Enabled bool `koanf:"enabled"`

	// URL defaults to store.nats.url when empty.
	URL string `koanf:"url"`

	// TopicPrefix is prepended to every topic, e.g. sensorium.groups.published.
	TopicPrefix string `koanf:"topic_prefix"`

	// PublishTimeout bounds one publish including breaker wait.
	PublishTimeout time.Duration `koanf:"publish_timeout"`
}

// InfluxConfig controls the optional time-series export.
type InfluxConfig struct {
	Enabled     bool          `koanf:"enabled"`
	URL         string        `koanf:"url"`
	Token       string        `koanf:"token"`
	Org         string        `koanf:"org"`
	Bucket      string        `koanf:"bucket"`
	Measurement string        `koanf:"measurement"`
	Timeout     time.Duration `koanf:"timeout"`
}

// ServerConfig holds HTTP API settings.
type ServerConfig struct {
	Enabled bool          `koanf:"enabled"`
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port"`
	Timeout time.Duration `koanf:"timeout"`

	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`

	CORSOrigins []string `koanf:"cors_origins"`

	// Environment is development or production.
	Environment string `koanf:"environment"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Load is the standard entry point. It is LoadWithKoanf.
func Load() (*Config, error) {
	return LoadWithKoanf()
}
