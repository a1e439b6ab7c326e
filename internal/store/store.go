// Sensorium - Probabilistic Sensor Time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sensorium

package store

import (
	"context"
	"time"

	"github.com/tomtom215/sensorium/internal/models"
	"github.com/tomtom215/sensorium/internal/timesync"
)

// ObservationStore retains raw observations until they expire.
type ObservationStore interface {
	// RawObservations returns every unexpired observation. Order is
	// unspecified.
	RawObservations(ctx context.Context) ([]models.Observation, error)
	PutObservation(ctx context.Context, obs models.Observation, ttl time.Duration) error
}

// OffsetStore persists per-sensor clock models.
type OffsetStore interface {
	// OffsetModel returns timesync.Uncalibrated when no state is stored.
	OffsetModel(ctx context.Context, sensorID string) (timesync.Calibration, error)
	PutOffsetModel(ctx context.Context, sensorID string, state models.OffsetState) error
}

// GroupWriter is the write half of GroupStore. Only the guarded publisher
// holds one.
type GroupWriter interface {
	PutSynchronizedGroup(ctx context.Context, groupID string, g models.SynchronizedGroup) error
}

// GroupReader reads published groups.
type GroupReader interface {
	// SynchronizedGroup returns ErrNotFound for unknown ids.
	SynchronizedGroup(ctx context.Context, groupID string) (models.SynchronizedGroup, error)
}

// GroupStore persists published synchronized groups.
type GroupStore interface {
	GroupWriter
	GroupReader
}

// HeartbeatStore keeps one expiring liveness marker per node.
type HeartbeatStore interface {
	PutHeartbeat(ctx context.Context, nodeID string, ttl time.Duration) error
	// LiveHeartbeatNodeIDs lists nodes whose marker has not expired.
	LiveHeartbeatNodeIDs(ctx context.Context) ([]string, error)
	DeleteHeartbeat(ctx context.Context, nodeID string) error
}

// Store is the full contract a backend implements.
type Store interface {
	ObservationStore
	OffsetStore
	GroupStore
	HeartbeatStore

	// Name identifies the backend in logs and metrics.
	Name() string
	Close() error
}
