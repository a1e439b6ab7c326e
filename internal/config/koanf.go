// Sensorium - Probabilistic Sensor Time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sensorium

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths searched for a config file, in order.
var DefaultConfigPaths = []string{
	"sensorium.yaml",
	"sensorium.yml",
	"/etc/sensorium/config.yaml",
	"/etc/sensorium/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns every default. File and environment values are
// layered on top.
func defaultConfig() *Config {
	return &Config{
		Node: NodeConfig{
			ID:           "node-1",
			HeartbeatTTL: 5 * time.Second,
		},
		Sync: SyncConfig{
			StepInterval:   time.Second,
			BucketSizeMS:   1000,
			Mode:           "batch",
			Calibrate:      false,
			ProcessNoise:   1e-6,
			ObservationTTL: 60 * time.Second,
			ModelLoaders:   8,
		},
		Store: StoreConfig{
			Backend: "memory",
			Redis: RedisConfig{
				Addr:         "127.0.0.1:6379",
				DialTimeout:  5 * time.Second,
				ReadTimeout:  3 * time.Second,
				WriteTimeout: 3 * time.Second,
				ScanCount:    500,
			},
			Badger: BadgerConfig{
				Path:       "/data/sensorium",
				GCInterval: 5 * time.Minute,
				GCRatio:    0.5,
			},
			NATS: NATSConfig{
				URL:               "nats://127.0.0.1:4222",
				StoreDir:          "/data/nats/jetstream",
				BucketPrefix:      "sensorium",
				Replicas:          1,
				MaxObservationTTL: time.Hour,
				MaxHeartbeatTTL:   time.Minute,
			},
			Breaker: BreakerConfig{
				Enabled:          true,
				MaxRequests:      1,
				Interval:         time.Minute,
				Timeout:          10 * time.Second,
				FailureThreshold: 5,
			},
		},
		Events: EventsConfig{
			Enabled:        false,
			TopicPrefix:    "sensorium",
			PublishTimeout: 5 * time.Second,
		},
		Influx: InfluxConfig{
			Enabled:     false,
			URL:         "http://127.0.0.1:8086",
			Org:         "sensorium",
			Bucket:      "sync",
			Measurement: "sync_group",
			Timeout:     5 * time.Second,
		},
		Server: ServerConfig{
			Enabled:         true,
			Host:            "0.0.0.0",
			Port:            8742,
			Timeout:         30 * time.Second,
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
			CORSOrigins:     []string{"*"},
			Environment:     "development",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadWithKoanf loads defaults, then the optional YAML file, then the
// environment, and validates the result. Environment wins.
func LoadWithKoanf() (*Config, error) {
	return loadFrom(findConfigFile())
}

// LoadFile is LoadWithKoanf with an explicit file path. An empty path
// skips the file layer.
func LoadFile(path string) (*Config, error) {
	return loadFrom(path)
}

func loadFrom(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// NODE_ID -> node.id, STORE_BACKEND -> store.backend
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// findConfigFile returns the first existing config file, or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths are split on commas when they arrive as strings.
var sliceConfigPaths = []string{
	"server.cors_origins",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envMappings maps lower-cased environment variable names to koanf paths.
// Variables not listed are ignored.
var envMappings = map[string]string{
	// Node
	"node_id":       "node.id",
	"heartbeat_ttl": "node.heartbeat_ttl",

	// Sync
	"step_interval":   "sync.step_interval",
	"bucket_size_ms":  "sync.bucket_size_ms",
	"sync_mode":       "sync.mode",
	"sync_calibrate":  "sync.calibrate",
	"process_noise":   "sync.process_noise",
	"observation_ttl": "sync.observation_ttl",
	"model_loaders":   "sync.model_loaders",

	// Store
	"store_backend":        "store.backend",
	"redis_addr":           "store.redis.addr",
	"redis_username":       "store.redis.username",
	"redis_password":       "store.redis.password",
	"redis_db":             "store.redis.db",
	"redis_dial_timeout":   "store.redis.dial_timeout",
	"redis_read_timeout":   "store.redis.read_timeout",
	"redis_write_timeout":  "store.redis.write_timeout",
	"redis_scan_count":     "store.redis.scan_count",
	"badger_path":          "store.badger.path",
	"badger_in_memory":     "store.badger.in_memory",
	"badger_sync_writes":   "store.badger.sync_writes",
	"badger_gc_interval":   "store.badger.gc_interval",
	"badger_gc_ratio":      "store.badger.gc_ratio",
	"nats_url":             "store.nats.url",
	"nats_embedded":        "store.nats.embedded",
	"nats_store_dir":       "store.nats.store_dir",
	"nats_bucket_prefix":   "store.nats.bucket_prefix",
	"nats_replicas":        "store.nats.replicas",
	"nats_memory_storage":  "store.nats.memory_storage",
	"breaker_enabled":      "store.breaker.enabled",
	"breaker_max_requests": "store.breaker.max_requests",
	"breaker_interval":     "store.breaker.interval",
	"breaker_timeout":      "store.breaker.timeout",
	"breaker_threshold":    "store.breaker.failure_threshold",

	// Events
	"events_enabled":         "events.enabled",
	"events_url":             "events.url",
	"events_topic_prefix":    "events.topic_prefix",
	"events_publish_timeout": "events.publish_timeout",

	// Influx
	"influx_enabled":     "influx.enabled",
	"influx_url":         "influx.url",
	"influx_token":       "influx.token",
	"influx_org":         "influx.org",
	"influx_bucket":      "influx.bucket",
	"influx_measurement": "influx.measurement",
	"influx_timeout":     "influx.timeout",

	// Server
	"http_enabled":        "server.enabled",
	"http_host":           "server.host",
	"http_port":           "server.port",
	"http_timeout":        "server.timeout",
	"rate_limit_requests": "server.rate_limit_reqs",
	"rate_limit_window":   "server.rate_limit_window",
	"disable_rate_limit":  "server.rate_limit_disabled",
	"cors_origins":        "server.cors_origins",
	"environment":         "server.environment",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc returns "" for unmapped variables so that unrelated
// environment does not leak into the config.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
