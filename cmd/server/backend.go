// Sensorium - Probabilistic Sensor Time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sensorium

package main

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/sensorium/internal/config"
	"github.com/tomtom215/sensorium/internal/logging"
	"github.com/tomtom215/sensorium/internal/natsembed"
	"github.com/tomtom215/sensorium/internal/store"
	"github.com/tomtom215/sensorium/internal/store/badgerstore"
	"github.com/tomtom215/sensorium/internal/store/memstore"
	"github.com/tomtom215/sensorium/internal/store/natskv"
	"github.com/tomtom215/sensorium/internal/store/redisstore"
	"github.com/tomtom215/sensorium/internal/supervisor/services"
)

// backend is the opened store and whatever must live and die with it.
type backend struct {
	store store.Store
	// maintenance runs in the storage layer; nil when the backend needs none.
	maintenance suture.Service
	// natsURL is set for the nats backend, so events can share the server.
	natsURL  string
	embedded *natsembed.EmbeddedServer
}

func openBackend(ctx context.Context, cfg *config.Config) (*backend, error) {
	b := &backend{}

	switch cfg.Store.Backend {
	case "memory":
		ms := memstore.New()
		b.store = ms
		b.maintenance = services.NewPeriodicService("memory-sweep", cfg.Sync.ObservationTTL, func(context.Context) error {
			if n := ms.Sweep(); n > 0 {
				logging.Debug().Int("removed", n).Msg("Swept expired entries")
			}
			return nil
		})

	case "redis":
		rs, err := redisstore.New(ctx, cfg.RedisConfig())
		if err != nil {
			return nil, fmt.Errorf("open redis store: %w", err)
		}
		b.store = rs

	case "badger":
		bs, err := badgerstore.Open(cfg.BadgerConfig())
		if err != nil {
			return nil, fmt.Errorf("open badger store: %w", err)
		}
		b.store = bs
		if !cfg.Store.Badger.InMemory {
			b.maintenance = services.NewPeriodicService("badger-gc", cfg.Store.Badger.GCInterval, func(context.Context) error {
				return bs.RunGC()
			})
		}

	case "nats":
		if err := b.openNATS(ctx, cfg); err != nil {
			b.Close()
			return nil, err
		}

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}

	if cfg.Store.Breaker.Enabled {
		b.store = store.NewBreakerStore(b.store, cfg.BreakerConfig())
	}

	logging.Info().Str("store", b.store.Name()).Bool("breaker", cfg.Store.Breaker.Enabled).Msg("Store opened")
	return b, nil
}

func (b *backend) openNATS(ctx context.Context, cfg *config.Config) error {
	natsURL := cfg.Store.NATS.URL
	if cfg.Store.NATS.Embedded {
		scfg := natsembed.DefaultServerConfig()
		scfg.StoreDir = cfg.Store.NATS.StoreDir
		if port := portOf(natsURL); port > 0 {
			scfg.Port = port
		}
		srv, err := natsembed.Start(scfg)
		if err != nil {
			return fmt.Errorf("start embedded nats: %w", err)
		}
		b.embedded = srv
		natsURL = srv.ClientURL()
	}

	nc, err := natsembed.Connect(natsURL, "sensorium-store-"+cfg.Node.ID)
	if err != nil {
		return fmt.Errorf("connect nats: %w", err)
	}
	ks, err := natskv.New(ctx, nc, cfg.NATSKVConfig(), true)
	if err != nil {
		nc.Close()
		return fmt.Errorf("open nats kv store: %w", err)
	}
	b.store = ks
	b.natsURL = natsURL
	return nil
}

func portOf(raw string) int {
	u, err := url.Parse(raw)
	if err != nil {
		return 0
	}
	port, err := strconv.Atoi(u.Port())
	if err != nil {
		return 0
	}
	return port
}

// Close releases the store, then any embedded server under it.
func (b *backend) Close() {
	if b.store != nil {
		if err := b.store.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing store")
		}
	}
	if b.embedded != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := b.embedded.Shutdown(ctx); err != nil {
			logging.Error().Err(err).Msg("Error stopping embedded NATS")
		}
	}
}
