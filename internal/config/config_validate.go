// Sensorium - Probabilistic Sensor Time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sensorium

package config

import (
	"fmt"
	"strings"

	"github.com/tomtom215/sensorium/internal/logging"
)

// Validate checks every section and returns the first problem found.
func (c *Config) Validate() error {
	if err := c.validateNode(); err != nil {
		return err
	}
	if err := c.validateSync(); err != nil {
		return err
	}
	if err := c.validateStore(); err != nil {
		return err
	}
	if err := c.validateEvents(); err != nil {
		return err
	}
	if err := c.validateInflux(); err != nil {
		return err
	}
	if err := c.validateServer(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateNode() error {
	if strings.TrimSpace(c.Node.ID) == "" {
		return fmt.Errorf("NODE_ID is required")
	}
	if c.Node.HeartbeatTTL <= 0 {
		return fmt.Errorf("HEARTBEAT_TTL must be positive, got %v", c.Node.HeartbeatTTL)
	}
	return nil
}

func (c *Config) validateSync() error {
	if c.Sync.StepInterval <= 0 {
		return fmt.Errorf("STEP_INTERVAL must be positive, got %v", c.Sync.StepInterval)
	}
	// The step loop must heartbeat well inside the TTL or the node flaps.
	if c.Sync.StepInterval >= c.Node.HeartbeatTTL {
		return fmt.Errorf("STEP_INTERVAL (%v) must be shorter than HEARTBEAT_TTL (%v)",
			c.Sync.StepInterval, c.Node.HeartbeatTTL)
	}
	if c.Sync.BucketSizeMS <= 0 {
		return fmt.Errorf("BUCKET_SIZE_MS must be positive, got %d", c.Sync.BucketSizeMS)
	}
	if !validSyncModes[c.Sync.Mode] {
		return fmt.Errorf("SYNC_MODE must be one of: batch, slice")
	}
	if c.Sync.ProcessNoise < 0 {
		return fmt.Errorf("PROCESS_NOISE must be >= 0, got %g", c.Sync.ProcessNoise)
	}
	if c.Sync.ObservationTTL <= 0 {
		return fmt.Errorf("OBSERVATION_TTL must be positive, got %v", c.Sync.ObservationTTL)
	}
	if c.Sync.ModelLoaders < 1 {
		return fmt.Errorf("MODEL_LOADERS must be at least 1, got %d", c.Sync.ModelLoaders)
	}
	return nil
}

func (c *Config) validateStore() error {
	switch c.Store.Backend {
	case "memory":
		if c.IsProduction() {
			return fmt.Errorf("STORE_BACKEND=memory is not shared between nodes; use redis, badger or nats in production")
		}
	case "redis":
		if c.Store.Redis.Addr == "" {
			return fmt.Errorf("REDIS_ADDR is required when STORE_BACKEND=redis")
		}
	case "badger":
		if !c.Store.Badger.InMemory && c.Store.Badger.Path == "" {
			return fmt.Errorf("BADGER_PATH is required when STORE_BACKEND=badger")
		}
		if c.Store.Badger.GCRatio <= 0 || c.Store.Badger.GCRatio >= 1 {
			return fmt.Errorf("BADGER_GC_RATIO must be in (0, 1), got %g", c.Store.Badger.GCRatio)
		}
	case "nats":
		if err := c.validateNATS(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("STORE_BACKEND must be one of: memory, redis, badger, nats")
	}
	return c.validateBreaker()
}

func (c *Config) validateNATS() error {
	if !c.Store.NATS.Embedded {
		if err := validateNATSURL(c.Store.NATS.URL); err != nil {
			return fmt.Errorf("NATS_URL: %w", err)
		}
	}
	if c.Store.NATS.BucketPrefix == "" {
		return fmt.Errorf("NATS_BUCKET_PREFIX is required")
	}
	if c.Store.NATS.Replicas < 1 {
		return fmt.Errorf("NATS_REPLICAS must be at least 1, got %d", c.Store.NATS.Replicas)
	}
	if c.Store.NATS.MaxHeartbeatTTL < c.Node.HeartbeatTTL {
		return fmt.Errorf("store.nats.max_heartbeat_ttl (%v) must not be below HEARTBEAT_TTL (%v)",
			c.Store.NATS.MaxHeartbeatTTL, c.Node.HeartbeatTTL)
	}
	if c.Store.NATS.MaxObservationTTL < c.Sync.ObservationTTL {
		return fmt.Errorf("store.nats.max_observation_ttl (%v) must not be below OBSERVATION_TTL (%v)",
			c.Store.NATS.MaxObservationTTL, c.Sync.ObservationTTL)
	}
	return nil
}

func (c *Config) validateBreaker() error {
	if !c.Store.Breaker.Enabled {
		return nil
	}
	if c.Store.Breaker.FailureThreshold == 0 {
		return fmt.Errorf("BREAKER_THRESHOLD must be at least 1")
	}
	if c.Store.Breaker.Timeout <= 0 {
		return fmt.Errorf("BREAKER_TIMEOUT must be positive, got %v", c.Store.Breaker.Timeout)
	}
	return nil
}

func (c *Config) validateEvents() error {
	if !c.Events.Enabled {
		return nil
	}
	if c.Events.URL != "" {
		if err := validateNATSURL(c.Events.URL); err != nil {
			return fmt.Errorf("EVENTS_URL: %w", err)
		}
	} else if !c.Store.NATS.Embedded {
		if err := validateNATSURL(c.Store.NATS.URL); err != nil {
			return fmt.Errorf("NATS_URL (used by events): %w", err)
		}
	}
	if c.Events.TopicPrefix == "" {
		return fmt.Errorf("EVENTS_TOPIC_PREFIX is required when EVENTS_ENABLED=true")
	}
	if c.Events.PublishTimeout <= 0 {
		return fmt.Errorf("EVENTS_PUBLISH_TIMEOUT must be positive, got %v", c.Events.PublishTimeout)
	}
	return nil
}

func (c *Config) validateInflux() error {
	if !c.Influx.Enabled {
		return nil
	}
	if err := validateHTTPURL(c.Influx.URL, "INFLUX_URL"); err != nil {
		return err
	}
	if c.Influx.Token == "" {
		return fmt.Errorf("INFLUX_TOKEN is required when INFLUX_ENABLED=true")
	}
	if containsPlaceholder(c.Influx.Token) {
		return fmt.Errorf("INFLUX_TOKEN contains a placeholder value")
	}
	if c.Influx.Org == "" || c.Influx.Bucket == "" {
		return fmt.Errorf("INFLUX_ORG and INFLUX_BUCKET are required when INFLUX_ENABLED=true")
	}
	if c.Influx.Measurement == "" {
		return fmt.Errorf("INFLUX_MEASUREMENT is required when INFLUX_ENABLED=true")
	}
	return nil
}

func (c *Config) validateServer() error {
	if !c.Server.Enabled {
		return nil
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive, got %v", c.Server.Timeout)
	}
	if !c.Server.RateLimitDisabled {
		if c.Server.RateLimitReqs < 1 {
			return fmt.Errorf("RATE_LIMIT_REQUESTS must be at least 1, got %d", c.Server.RateLimitReqs)
		}
		if c.Server.RateLimitWindow <= 0 {
			return fmt.Errorf("RATE_LIMIT_WINDOW must be positive, got %v", c.Server.RateLimitWindow)
		}
	}
	if c.Server.Environment != "development" && c.Server.Environment != "production" {
		return fmt.Errorf("ENVIRONMENT must be one of: development, production")
	}
	if c.IsProduction() && c.hasWildcardCORS() {
		return fmt.Errorf("CORS_ORIGINS must not contain * in production")
	}
	return nil
}

func (c *Config) hasWildcardCORS() bool {
	for _, origin := range c.Server.CORSOrigins {
		if origin == "*" {
			return true
		}
	}
	return false
}

// IsProduction reports whether ENVIRONMENT=production.
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

func (c *Config) validateLogging() error {
	if !logging.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("LOG_LEVEL must be one of: trace, debug, info, warn, error, disabled")
	}
	if c.Logging.Format != "" && !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("LOG_FORMAT must be one of: json, console")
	}
	return nil
}

var (
	validSyncModes  = map[string]bool{"batch": true, "slice": true}
	validLogFormats = map[string]bool{"json": true, "console": true}
)

// placeholderPatterns catch credentials copied from an example file.
var placeholderPatterns = []string{
	"REPLACE",
	"CHANGEME",
	"CHANGE_ME",
	"YOUR_TOKEN",
	"PLACEHOLDER",
}

func containsPlaceholder(value string) bool {
	upper := strings.ToUpper(value)
	for _, pattern := range placeholderPatterns {
		if strings.Contains(upper, pattern) {
			return true
		}
	}
	return false
}
