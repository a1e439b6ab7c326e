// Sensorium - Probabilistic Sensor Time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sensorium

/*
Command server runs one Sensorium coordinator node.

Each node heartbeats into the shared store, runs a sync step on every
tick and, while it holds the greatest live node id, publishes the fused
group. Any number of nodes may share a store; they agree on the master
without talking to each other.

	RootSupervisor ("sensorium")
	├── "storage-layer"        badger GC or memory sweep
	├── "coordination-layer"   sync step loop
	└── "api-layer"            HTTP API

Startup order:

 1. Configuration: koanf (defaults, YAML file, environment)
 2. Logging: zerolog
 3. Store: memory, redis, badger or nats, optionally behind a breaker
 4. Sinks: NATS JetStream events and InfluxDB export, when enabled
 5. Engine and supervisor tree

# Examples

Single node with the in-memory store:

	NODE_ID=node-1 ./server

Three nodes sharing Redis:

	NODE_ID=node-a STORE_BACKEND=redis REDIS_ADDR=redis:6379 ./server
	NODE_ID=node-b STORE_BACKEND=redis REDIS_ADDR=redis:6379 ./server
	NODE_ID=node-c STORE_BACKEND=redis REDIS_ADDR=redis:6379 ./server

NATS KV with an embedded server and group events on the same server:

	STORE_BACKEND=nats NATS_EMBEDDED=true EVENTS_ENABLED=true ./server

# Signals

SIGINT and SIGTERM stop the tree. The step loop deletes this node's
heartbeat on the way out so a follower takes over on its next step.
*/
package main
