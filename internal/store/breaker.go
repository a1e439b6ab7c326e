// Sensorium - Probabilistic Sensor Time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sensorium

package store

import (
	"context"
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/sensorium/internal/logging"
	"github.com/tomtom215/sensorium/internal/metrics"
	"github.com/tomtom215/sensorium/internal/models"
	"github.com/tomtom215/sensorium/internal/timesync"
)

// BreakerConfig configures the circuit breaker placed in front of a
// network backend.
type BreakerConfig struct {
	Name             string
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold uint32
}

// DefaultBreakerConfig returns production defaults.
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:             name,
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          10 * time.Second,
		FailureThreshold: 5,
	}
}

// NewCircuitBreaker builds a breaker that trips on consecutive failures.
// Misses (ErrNotFound) and caller cancellation do not count as failures.
func NewCircuitBreaker(cfg BreakerConfig) *gobreaker.CircuitBreaker[any] {
	metrics.CircuitBreakerState.WithLabelValues(cfg.Name).Set(0)
	return gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, ErrNotFound) ||
				errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state changed")
		},
	})
}

// BreakerStore guards every call of an inner Store with a circuit breaker.
// While the breaker is open calls fail fast with ErrCircuitOpen.
type BreakerStore struct {
	inner Store
	cb    *gobreaker.CircuitBreaker[any]
}

// NewBreakerStore wraps inner.
func NewBreakerStore(inner Store, cfg BreakerConfig) *BreakerStore {
	if cfg.Name == "" {
		cfg.Name = inner.Name()
	}
	return &BreakerStore{inner: inner, cb: NewCircuitBreaker(cfg)}
}

// State reports the breaker state ("closed", "half-open", "open").
func (b *BreakerStore) State() string {
	return b.cb.State().String()
}

func (b *BreakerStore) do(op string, fn func() (any, error)) (any, error) {
	start := time.Now()
	v, err := b.cb.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		err = Wrap(b.inner.Name(), op, "", ErrCircuitOpen)
	}
	recorded := err
	if errors.Is(err, ErrNotFound) {
		recorded = nil
	}
	metrics.RecordStoreOp(b.inner.Name(), op, time.Since(start), recorded)
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (b *BreakerStore) Name() string { return b.inner.Name() }

func (b *BreakerStore) Close() error { return b.inner.Close() }

func (b *BreakerStore) RawObservations(ctx context.Context) ([]models.Observation, error) {
	v, err := b.do("raw_observations", func() (any, error) { return b.inner.RawObservations(ctx) })
	if err != nil {
		return nil, err
	}
	return v.([]models.Observation), nil
}

func (b *BreakerStore) PutObservation(ctx context.Context, obs models.Observation, ttl time.Duration) error {
	_, err := b.do("put_observation", func() (any, error) { return nil, b.inner.PutObservation(ctx, obs, ttl) })
	return err
}

func (b *BreakerStore) OffsetModel(ctx context.Context, sensorID string) (timesync.Calibration, error) {
	v, err := b.do("get_offset", func() (any, error) { return b.inner.OffsetModel(ctx, sensorID) })
	if err != nil {
		return timesync.Uncalibrated(), err
	}
	return v.(timesync.Calibration), nil
}

func (b *BreakerStore) PutOffsetModel(ctx context.Context, sensorID string, state models.OffsetState) error {
	_, err := b.do("put_offset", func() (any, error) { return nil, b.inner.PutOffsetModel(ctx, sensorID, state) })
	return err
}

func (b *BreakerStore) PutSynchronizedGroup(ctx context.Context, groupID string, g models.SynchronizedGroup) error {
	_, err := b.do("put_group", func() (any, error) { return nil, b.inner.PutSynchronizedGroup(ctx, groupID, g) })
	return err
}

func (b *BreakerStore) SynchronizedGroup(ctx context.Context, groupID string) (models.SynchronizedGroup, error) {
	v, err := b.do("get_group", func() (any, error) { return b.inner.SynchronizedGroup(ctx, groupID) })
	if err != nil {
		return models.SynchronizedGroup{}, err
	}
	return v.(models.SynchronizedGroup), nil
}

func (b *BreakerStore) PutHeartbeat(ctx context.Context, nodeID string, ttl time.Duration) error {
	_, err := b.do("put_heartbeat", func() (any, error) { return nil, b.inner.PutHeartbeat(ctx, nodeID, ttl) })
	return err
}

func (b *BreakerStore) LiveHeartbeatNodeIDs(ctx context.Context) ([]string, error) {
	v, err := b.do("live_heartbeats", func() (any, error) { return b.inner.LiveHeartbeatNodeIDs(ctx) })
	if err != nil {
		return nil, err
	}
	return v.([]string), nil
}

func (b *BreakerStore) DeleteHeartbeat(ctx context.Context, nodeID string) error {
	_, err := b.do("delete_heartbeat", func() (any, error) { return nil, b.inner.DeleteHeartbeat(ctx, nodeID) })
	return err
}
