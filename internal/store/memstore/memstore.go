// Sensorium - Probabilistic Sensor Time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sensorium

// Package memstore is an in-process store with per-key expiry. It backs
// single-node development runs and every test that needs a store.
package memstore

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tomtom215/sensorium/internal/models"
	"github.com/tomtom215/sensorium/internal/store"
	"github.com/tomtom215/sensorium/internal/timesync"
)

const backendName = "memory"

type entry struct {
	value     []byte
	expiresAt time.Time // zero means no expiry
}

func (e entry) live(now time.Time) bool {
	return e.expiresAt.IsZero() || now.Before(e.expiresAt)
}

// Store keeps JSON values in a map, exactly as a remote backend would, so
// encoding bugs surface in tests.
type Store struct {
	mu     sync.RWMutex
	data   map[string]entry
	now    func() time.Time
	closed bool
}

var _ store.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithClock replaces the wall clock used for expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		data: make(map[string]entry),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Name() string { return backendName }

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *Store) set(op, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return store.Wrap(backendName, op, key, store.ErrClosed)
	}
	e := entry{value: value}
	if ttl > 0 {
		e.expiresAt = s.now().Add(ttl)
	}
	s.data[key] = e
	return nil
}

func (s *Store) get(op, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, store.Wrap(backendName, op, key, store.ErrClosed)
	}
	e, ok := s.data[key]
	if !ok || !e.live(s.now()) {
		return nil, store.ErrNotFound
	}
	return e.value, nil
}

// scan returns live keys with prefix and their values, sorted by key.
func (s *Store) scan(op, prefix string) ([]string, [][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, nil, store.Wrap(backendName, op, prefix, store.ErrClosed)
	}
	now := s.now()
	var keys []string
	for k, e := range s.data {
		if strings.HasPrefix(k, prefix) && e.live(now) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	values := make([][]byte, len(keys))
	for i, k := range keys {
		values[i] = s.data[k].value
	}
	return keys, values, nil
}

// Sweep drops expired entries and returns how many were removed.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	n := 0
	for k, e := range s.data {
		if !e.live(now) {
			delete(s.data, k)
			n++
		}
	}
	return n
}

func (s *Store) RawObservations(ctx context.Context) ([]models.Observation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	keys, values, err := s.scan("scan", store.ObservationPrefix)
	if err != nil {
		return nil, err
	}
	out := make([]models.Observation, 0, len(values))
	for i, v := range values {
		o, err := store.DecodeObservation(v)
		if err != nil {
			return nil, store.Wrap(backendName, "decode", keys[i], err)
		}
		out = append(out, o)
	}
	return out, nil
}

func (s *Store) PutObservation(ctx context.Context, obs models.Observation, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key := store.ObservationKey(obs)
	b, err := store.EncodeObservation(obs)
	if err != nil {
		return store.Wrap(backendName, "encode", key, err)
	}
	return s.set("set", key, b, ttl)
}

func (s *Store) OffsetModel(ctx context.Context, sensorID string) (timesync.Calibration, error) {
	if err := ctx.Err(); err != nil {
		return timesync.Uncalibrated(), err
	}
	key := store.OffsetStateKey(sensorID)
	b, err := s.get("get", key)
	if errors.Is(err, store.ErrNotFound) {
		return timesync.Uncalibrated(), nil
	}
	if err != nil {
		return timesync.Uncalibrated(), err
	}
	c, err := store.DecodeOffsetState(b)
	if err != nil {
		return timesync.Uncalibrated(), store.Wrap(backendName, "decode", key, err)
	}
	return c, nil
}

func (s *Store) PutOffsetModel(ctx context.Context, sensorID string, state models.OffsetState) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key := store.OffsetStateKey(sensorID)
	b, err := store.EncodeOffsetState(state)
	if err != nil {
		return store.Wrap(backendName, "encode", key, err)
	}
	return s.set("set", key, b, 0)
}

func (s *Store) PutSynchronizedGroup(ctx context.Context, groupID string, g models.SynchronizedGroup) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key := store.GroupKey(groupID)
	b, err := store.EncodeGroup(g)
	if err != nil {
		return store.Wrap(backendName, "encode", key, err)
	}
	return s.set("set", key, b, 0)
}

func (s *Store) SynchronizedGroup(ctx context.Context, groupID string) (models.SynchronizedGroup, error) {
	if err := ctx.Err(); err != nil {
		return models.SynchronizedGroup{}, err
	}
	key := store.GroupKey(groupID)
	b, err := s.get("get", key)
	if err != nil {
		return models.SynchronizedGroup{}, err
	}
	g, err := store.DecodeGroup(b)
	if err != nil {
		return models.SynchronizedGroup{}, store.Wrap(backendName, "decode", key, err)
	}
	return g, nil
}

func (s *Store) PutHeartbeat(ctx context.Context, nodeID string, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.set("set", store.HeartbeatKey(nodeID), []byte("1"), ttl)
}

func (s *Store) LiveHeartbeatNodeIDs(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	keys, _, err := s.scan("scan", store.HeartbeatPrefix)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(keys))
	for _, k := range keys {
		if id, ok := store.NodeIDFromHeartbeatKey(k); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s *Store) DeleteHeartbeat(ctx context.Context, nodeID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, store.HeartbeatKey(nodeID))
	return nil
}
