// Sensorium - Probabilistic Sensor Time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sensorium

// Package badgerstore implements the store contract on an embedded BadgerDB.
//
// It suits a single node or an edge gateway that runs without Redis.
// Election still works, but only over the heartbeats written into this one
// database, so every node sharing it must run in the same process.
package badgerstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/tomtom215/sensorium/internal/logging"
	"github.com/tomtom215/sensorium/internal/models"
	"github.com/tomtom215/sensorium/internal/store"
	"github.com/tomtom215/sensorium/internal/timesync"
)

const backendName = "badger"

// Config configures the embedded database.
type Config struct {
	// Path is the data directory. Ignored when InMemory is set.
	Path       string
	InMemory   bool
	SyncWrites bool
	// GCRatio is the value log discard ratio passed to RunValueLogGC.
	GCRatio float64
}

// Store is a BadgerDB-backed store.
type Store struct {
	db      *badger.DB
	gcRatio float64

	mu     sync.RWMutex
	closed bool
}

var _ store.Store = (*Store)(nil)

// Open opens (or creates) the database.
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, fmt.Errorf("badgerstore: path is required unless in_memory is set")
	}

	opts := badger.DefaultOptions(cfg.Path)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.SyncWrites = cfg.SyncWrites
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}

	gcRatio := cfg.GCRatio
	if gcRatio <= 0 || gcRatio >= 1 {
		gcRatio = 0.5
	}

	logging.Info().
		Str("path", cfg.Path).
		Bool("in_memory", cfg.InMemory).
		Bool("sync_writes", cfg.SyncWrites).
		Msg("Badger store opened")
	return &Store{db: db, gcRatio: gcRatio}, nil
}

func (s *Store) Name() string { return backendName }

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func (s *Store) guard(op, key string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return store.Wrap(backendName, op, key, store.ErrClosed)
	}
	return nil
}

// RunGC reclaims value log space until badger reports nothing to rewrite.
func (s *Store) RunGC() error {
	if err := s.guard("gc", ""); err != nil {
		return err
	}
	for {
		err := s.db.RunValueLogGC(s.gcRatio)
		if errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrRejected) {
			return nil
		}
		if err != nil {
			return store.Wrap(backendName, "gc", "", err)
		}
	}
}

func (s *Store) set(op, key string, value []byte, ttl time.Duration) error {
	if err := s.guard(op, key); err != nil {
		return err
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(key), value)
		if ttl > 0 {
			e = e.WithTTL(ttl)
		}
		return txn.SetEntry(e)
	})
	return store.Wrap(backendName, op, key, err)
}

func (s *Store) get(key string) ([]byte, error) {
	if err := s.guard("get", key); err != nil {
		return nil, err
	}
	var out []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, store.Wrap(backendName, "get", key, err)
	}
	return out, nil
}

// scan visits every unexpired key under prefix. Expired entries are
// hidden by badger itself.
func (s *Store) scan(prefix string, withValues bool, fn func(key string, value []byte) error) error {
	if err := s.guard("scan", prefix); err != nil {
		return err
	}
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = withValues
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		p := []byte(prefix)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			item := it.Item()
			var value []byte
			if withValues {
				v, err := item.ValueCopy(nil)
				if err != nil {
					return err
				}
				value = v
			}
			if err := fn(string(item.Key()), value); err != nil {
				return err
			}
		}
		return nil
	})
	return store.Wrap(backendName, "scan", prefix, err)
}

func (s *Store) RawObservations(ctx context.Context) ([]models.Observation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := []models.Observation{}
	err := s.scan(store.ObservationPrefix, true, func(key string, value []byte) error {
		o, err := store.DecodeObservation(value)
		if err != nil {
			return fmt.Errorf("decode %s: %w", key, err)
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
	b, err := s.get(key)
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
	b, err := s.get(key)
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
	ids := []string{}
	err := s.scan(store.HeartbeatPrefix, false, func(key string, _ []byte) error {
		if id, ok := store.NodeIDFromHeartbeatKey(key); ok {
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
	if err := ctx.Err(); err != nil {
		return err
	}
	key := store.HeartbeatKey(nodeID)
	if err := s.guard("del", key); err != nil {
		return err
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	return store.Wrap(backendName, "del", key, err)
}
