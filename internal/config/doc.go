// Sensorium - Probabilistic Sensor Time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sensorium

/*
Package config loads coordinator configuration with koanf.

Values come from built-in defaults, then an optional YAML file, then the
environment. The file is taken from CONFIG_PATH or the first of
DefaultConfigPaths that exists.

# Sections

  - node: election identity and heartbeat TTL
  - sync: step interval, bucket size, grouping mode, calibration
  - store: backend (memory, redis, badger, nats) and circuit breaker
  - events: domain events over NATS JetStream
  - influx: optional time-series export
  - server: HTTP API, rate limiting, CORS
  - logging: level and format

# Environment Variables

Only mapped variables are read; see envMappings. Common ones:

  - NODE_ID, HEARTBEAT_TTL
  - STEP_INTERVAL, SYNC_MODE, SYNC_CALIBRATE, OBSERVATION_TTL
  - STORE_BACKEND, REDIS_ADDR, BADGER_PATH, NATS_URL, NATS_EMBEDDED
  - EVENTS_ENABLED, INFLUX_ENABLED, INFLUX_TOKEN
  - HTTP_PORT, CORS_ORIGINS (comma separated), ENVIRONMENT
  - LOG_LEVEL, LOG_FORMAT

Example sensorium.yaml:

	node:
	  id: coord-2
	  heartbeat_ttl: 5s
	sync:
	  mode: slice
	store:
	  backend: redis
	  redis:
	    addr: redis:6379
*/
package config
