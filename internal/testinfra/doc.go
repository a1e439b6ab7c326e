// Sensorium - Probabilistic Sensor Time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sensorium

// Package testinfra starts real services in Docker for integration tests.
//
// Everything here is behind the integration build tag:
//
//	go test -tags integration ./internal/store/redisstore/...
//
// # Redis
//
//	func TestRedisBackend(t *testing.T) {
//	    addr := testinfra.StartRedis(t)
//	    s, err := redisstore.New(ctx, redisstore.Config{Addr: addr})
//	    ...
//	}
//
// StartRedis skips the test when Docker is not reachable, so the tagged
// suite still passes on machines without a daemon.
package testinfra
