// Sensorium - Probabilistic Sensor Time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sensorium

// Package natskv implements the store contract on NATS JetStream key-value
// buckets.
//
// JetStream KV keys may not contain ':' and its TTL applies to a whole
// bucket, so this backend differs from the Redis layout in two ways:
//
//   - each namespace (observations, states, groups, heartbeats) is its own
//     bucket and ids are base64url encoded
//   - every value is wrapped in an envelope carrying its own TTL, which
//     reads honour; the bucket MaxAge only garbage-collects
//
// An entry expires TTL after the server-assigned timestamp of its write, so
// the writer's clock never matters. The reader compares that instant with
// its own clock: a reader whose clock is off from the server by d sees
// heartbeats expire d early or late. Keep d well below
// HeartbeatTTL - StepInterval, or a live master can appear expired.
package natskv

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/tomtom215/sensorium/internal/models"
	"github.com/tomtom215/sensorium/internal/store"
	"github.com/tomtom215/sensorium/internal/timesync"
)

const backendName = "nats"

// Config names the buckets and bounds their retention.
type Config struct {
	// BucketPrefix is prepended to every bucket name.
	BucketPrefix string
	// MaxObservationTTL is the MaxAge of the observations bucket.
	MaxObservationTTL time.Duration
	// MaxHeartbeatTTL is the MaxAge of the heartbeats bucket.
	MaxHeartbeatTTL time.Duration
	Replicas        int
	MemoryStorage   bool
}

// DefaultConfig returns defaults suitable for a single server.
func DefaultConfig() Config {
	return Config{
		BucketPrefix:      "sensorium",
		MaxObservationTTL: time.Hour,
		MaxHeartbeatTTL:   time.Minute,
		Replicas:          1,
	}
}

type envelope struct {
	// TTL is in nanoseconds from the entry's server timestamp; 0 never
	// expires.
	TTL   int64           `json:"ttl,omitempty"`
	Value json.RawMessage `json:"v"`
}

// expired reports whether an entry created at created with the given TTL
// is past its expiry at now.
func expired(created time.Time, ttl time.Duration, now time.Time) bool {
	return ttl > 0 && !now.Before(created.Add(ttl))
}

// Store is a JetStream KV backed store.
type Store struct {
	nc         *nats.Conn
	ownsConn   bool
	obs        jetstream.KeyValue
	states     jetstream.KeyValue
	groups     jetstream.KeyValue
	heartbeats jetstream.KeyValue
	now        func() time.Time
	closeOnce  sync.Once
}

var _ store.Store = (*Store)(nil)

// New creates or updates the buckets on the connected server. When
// ownsConn is true Close also closes nc.
func New(ctx context.Context, nc *nats.Conn, cfg Config, ownsConn bool) (*Store, error) {
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, store.Wrap(backendName, "jetstream", "", err)
	}
	if cfg.BucketPrefix == "" {
		cfg.BucketPrefix = DefaultConfig().BucketPrefix
	}
	if cfg.Replicas <= 0 {
		cfg.Replicas = 1
	}
	storage := jetstream.FileStorage
	if cfg.MemoryStorage {
		storage = jetstream.MemoryStorage
	}

	bucket := func(name string, maxAge time.Duration) (jetstream.KeyValue, error) {
		full := cfg.BucketPrefix + "_" + name
		kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
			Bucket:   full,
			History:  1,
			TTL:      maxAge,
			Storage:  storage,
			Replicas: cfg.Replicas,
		})
		if err != nil {
			return nil, store.Wrap(backendName, "bucket", full, err)
		}
		return kv, nil
	}

	s := &Store{nc: nc, ownsConn: ownsConn, now: time.Now}
	if s.obs, err = bucket("observations", cfg.MaxObservationTTL); err != nil {
		return nil, err
	}
	if s.states, err = bucket("states", 0); err != nil {
		return nil, err
	}
	if s.groups, err = bucket("groups", 0); err != nil {
		return nil, err
	}
	if s.heartbeats, err = bucket("heartbeats", cfg.MaxHeartbeatTTL); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) Name() string { return backendName }

func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		if s.ownsConn {
			s.nc.Close()
		}
	})
	return nil
}

func encodeID(id string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(id))
}

func decodeID(key string) (string, bool) {
	b, err := base64.RawURLEncoding.DecodeString(key)
	if err != nil {
		return "", false
	}
	return string(b), true
}

func observationKey(o models.Observation) string {
	return encodeID(o.SensorID) + "." + strconv.FormatInt(o.LocalNanos(), 10)
}

func (s *Store) put(ctx context.Context, kv jetstream.KeyValue, key string, value []byte, ttl time.Duration) error {
	env := envelope{Value: value}
	if ttl > 0 {
		env.TTL = int64(ttl)
	}
	b, err := json.Marshal(env)
	if err != nil {
		return store.Wrap(backendName, "encode", key, err)
	}
	_, err = kv.Put(ctx, key, b)
	return store.Wrap(backendName, "put", kv.Bucket()+"/"+key, err)
}

func (s *Store) unwrap(entry jetstream.KeyValueEntry) ([]byte, bool, error) {
	var env envelope
	if err := json.Unmarshal(entry.Value(), &env); err != nil {
		return nil, false, err
	}
	if expired(entry.Created(), time.Duration(env.TTL), s.now()) {
		return nil, false, nil
	}
	return env.Value, true, nil
}

func (s *Store) get(ctx context.Context, kv jetstream.KeyValue, key string) ([]byte, error) {
	entry, err := kv.Get(ctx, key)
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, store.Wrap(backendName, "get", kv.Bucket()+"/"+key, err)
	}
	value, live, err := s.unwrap(entry)
	if err != nil {
		return nil, store.Wrap(backendName, "decode", kv.Bucket()+"/"+key, err)
	}
	if !live {
		return nil, store.ErrNotFound
	}
	return value, nil
}

// scan returns every live entry of a bucket by replaying its latest values.
func (s *Store) scan(ctx context.Context, kv jetstream.KeyValue, fn func(key string, value []byte) error) error {
	w, err := kv.WatchAll(ctx, jetstream.IgnoreDeletes())
	if err != nil {
		return store.Wrap(backendName, "watch", kv.Bucket(), err)
	}
	defer w.Stop() //nolint:errcheck

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case entry, ok := <-w.Updates():
			if !ok {
				return store.Wrap(backendName, "watch", kv.Bucket(), fmt.Errorf("watcher closed"))
			}
			// nil marks the end of the initial values
			if entry == nil {
				return nil
			}
			value, live, err := s.unwrap(entry)
			if err != nil {
				return store.Wrap(backendName, "decode", kv.Bucket()+"/"+entry.Key(), err)
			}
			if !live {
				continue
			}
			if err := fn(entry.Key(), value); err != nil {
				return err
			}
		}
	}
}

func (s *Store) RawObservations(ctx context.Context) ([]models.Observation, error) {
	out := []models.Observation{}
	err := s.scan(ctx, s.obs, func(key string, value []byte) error {
		o, err := store.DecodeObservation(value)
		if err != nil {
			return store.Wrap(backendName, "decode", key, err)
		}
		out = append(out, o)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) PutObservation(ctx context.Context, obs models.Observation, ttl time.Duration) error {
	b, err := store.EncodeObservation(obs)
	if err != nil {
		return store.Wrap(backendName, "encode", store.ObservationKey(obs), err)
	}
	return s.put(ctx, s.obs, observationKey(obs), b, ttl)
}

func (s *Store) OffsetModel(ctx context.Context, sensorID string) (timesync.Calibration, error) {
	b, err := s.get(ctx, s.states, encodeID(sensorID))
	if errors.Is(err, store.ErrNotFound) {
		return timesync.Uncalibrated(), nil
	}
	if err != nil {
		return timesync.Uncalibrated(), err
	}
	c, err := store.DecodeOffsetState(b)
	if err != nil {
		return timesync.Uncalibrated(), store.Wrap(backendName, "decode", store.OffsetStateKey(sensorID), err)
	}
	return c, nil
}

func (s *Store) PutOffsetModel(ctx context.Context, sensorID string, state models.OffsetState) error {
	b, err := store.EncodeOffsetState(state)
	if err != nil {
		return store.Wrap(backendName, "encode", store.OffsetStateKey(sensorID), err)
	}
	return s.put(ctx, s.states, encodeID(sensorID), b, 0)
}

func (s *Store) PutSynchronizedGroup(ctx context.Context, groupID string, g models.SynchronizedGroup) error {
	b, err := store.EncodeGroup(g)
	if err != nil {
		return store.Wrap(backendName, "encode", store.GroupKey(groupID), err)
	}
	return s.put(ctx, s.groups, encodeID(groupID), b, 0)
}

func (s *Store) SynchronizedGroup(ctx context.Context, groupID string) (models.SynchronizedGroup, error) {
	b, err := s.get(ctx, s.groups, encodeID(groupID))
	if err != nil {
		return models.SynchronizedGroup{}, err
	}
	g, err := store.DecodeGroup(b)
	if err != nil {
		return models.SynchronizedGroup{}, store.Wrap(backendName, "decode", store.GroupKey(groupID), err)
	}
	return g, nil
}

func (s *Store) PutHeartbeat(ctx context.Context, nodeID string, ttl time.Duration) error {
	return s.put(ctx, s.heartbeats, encodeID(nodeID), []byte("1"), ttl)
}

func (s *Store) LiveHeartbeatNodeIDs(ctx context.Context) ([]string, error) {
	ids := []string{}
	err := s.scan(ctx, s.heartbeats, func(key string, _ []byte) error {
		if id, ok := decodeID(strings.TrimSpace(key)); ok {
			ids = append(ids, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *Store) DeleteHeartbeat(ctx context.Context, nodeID string) error {
	key := encodeID(nodeID)
	err := s.heartbeats.Delete(ctx, key)
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return nil
	}
	return store.Wrap(backendName, "delete", s.heartbeats.Bucket()+"/"+key, err)
}
