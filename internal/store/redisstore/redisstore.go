// Sensorium - Probabilistic Sensor Time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sensorium

// Package redisstore implements the store contract on Redis. Values are
// JSON strings; observations and heartbeats carry a native key TTL.
package redisstore

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tomtom215/sensorium/internal/models"
	"github.com/tomtom215/sensorium/internal/store"
	"github.com/tomtom215/sensorium/internal/timesync"
)

const backendName = "redis"

// Config holds Redis connection settings.
type Config struct {
	Addr         string
	Username     string
	Password     string
	DB           int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// ScanCount is the COUNT hint for SCAN.
	ScanCount int64
}

// Store is a Redis-backed store.
type Store struct {
	client    redis.UniversalClient
	scanCount int64
	closeOnce sync.Once
	closeErr  error
}

var _ store.Store = (*Store)(nil)

// New connects to Redis and verifies the connection with PING.
func New(ctx context.Context, cfg Config) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, store.Wrap(backendName, "ping", cfg.Addr, err)
	}
	return NewWithClient(client, cfg.ScanCount), nil
}

// NewWithClient wraps an existing client. The store takes ownership and
// closes it on Close.
func NewWithClient(client redis.UniversalClient, scanCount int64) *Store {
	if scanCount <= 0 {
		scanCount = 500
	}
	return &Store{client: client, scanCount: scanCount}
}

func (s *Store) Name() string { return backendName }

func (s *Store) Close() error {
	s.closeOnce.Do(func() { s.closeErr = s.client.Close() })
	return s.closeErr
}

// scanKeys collects every key matching pattern with cursor-based SCAN.
func (s *Store) scanKeys(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	seen := make(map[string]struct{})
	iter := s.client.Scan(ctx, 0, pattern, s.scanCount).Iterator()
	for iter.Next(ctx) {
		// SCAN may return a key more than once
		k := iter.Val()
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	if err := iter.Err(); err != nil {
		return nil, store.Wrap(backendName, "scan", pattern, err)
	}
	return keys, nil
}

func (s *Store) RawObservations(ctx context.Context) ([]models.Observation, error) {
	keys, err := s.scanKeys(ctx, store.ObservationPrefix+"*")
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return []models.Observation{}, nil
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, store.Wrap(backendName, "mget", store.ObservationPrefix+"*", err)
	}

	out := make([]models.Observation, 0, len(values))
	for i, v := range values {
		str, ok := v.(string)
		if !ok {
			// expired between SCAN and MGET
			continue
		}
		o, err := store.DecodeObservation([]byte(str))
		if err != nil {
			return nil, store.Wrap(backendName, "decode", keys[i], err)
		}
		out = append(out, o)
	}
	return out, nil
}

func (s *Store) PutObservation(ctx context.Context, obs models.Observation, ttl time.Duration) error {
	key := store.ObservationKey(obs)
	b, err := store.EncodeObservation(obs)
	if err != nil {
		return store.Wrap(backendName, "encode", key, err)
	}
	return store.Wrap(backendName, "set", key, s.client.Set(ctx, key, b, ttl).Err())
}

func (s *Store) OffsetModel(ctx context.Context, sensorID string) (timesync.Calibration, error) {
	key := store.OffsetStateKey(sensorID)
	b, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return timesync.Uncalibrated(), nil
	}
	if err != nil {
		return timesync.Uncalibrated(), store.Wrap(backendName, "get", key, err)
	}
	c, err := store.DecodeOffsetState(b)
	if err != nil {
		return timesync.Uncalibrated(), store.Wrap(backendName, "decode", key, err)
	}
	return c, nil
}

func (s *Store) PutOffsetModel(ctx context.Context, sensorID string, state models.OffsetState) error {
	key := store.OffsetStateKey(sensorID)
	b, err := store.EncodeOffsetState(state)
	if err != nil {
		return store.Wrap(backendName, "encode", key, err)
	}
	return store.Wrap(backendName, "set", key, s.client.Set(ctx, key, b, 0).Err())
}

func (s *Store) PutSynchronizedGroup(ctx context.Context, groupID string, g models.SynchronizedGroup) error {
	key := store.GroupKey(groupID)
	b, err := store.EncodeGroup(g)
	if err != nil {
		return store.Wrap(backendName, "encode", key, err)
	}
	return store.Wrap(backendName, "set", key, s.client.Set(ctx, key, b, 0).Err())
}

func (s *Store) SynchronizedGroup(ctx context.Context, groupID string) (models.SynchronizedGroup, error) {
	key := store.GroupKey(groupID)
	b, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.SynchronizedGroup{}, store.ErrNotFound
	}
	if err != nil {
		return models.SynchronizedGroup{}, store.Wrap(backendName, "get", key, err)
	}
	g, err := store.DecodeGroup(b)
	if err != nil {
		return models.SynchronizedGroup{}, store.Wrap(backendName, "decode", key, err)
	}
	return g, nil
}

// PutHeartbeat writes "1" with the TTL in one SET, so a crash can never
// leave a marker without expiry.
func (s *Store) PutHeartbeat(ctx context.Context, nodeID string, ttl time.Duration) error {
	key := store.HeartbeatKey(nodeID)
	return store.Wrap(backendName, "set", key, s.client.Set(ctx, key, "1", ttl).Err())
}

func (s *Store) LiveHeartbeatNodeIDs(ctx context.Context) ([]string, error) {
	keys, err := s.scanKeys(ctx, store.HeartbeatPrefix+"*")
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
	key := store.HeartbeatKey(nodeID)
	return store.Wrap(backendName, "del", key, s.client.Del(ctx, key).Err())
}
