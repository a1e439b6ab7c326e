// Sensorium - Probabilistic Sensor Time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sensorium

//go:build integration

package redisstore

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomtom215/sensorium/internal/store"
	"github.com/tomtom215/sensorium/internal/store/storetest"
	"github.com/tomtom215/sensorium/internal/testinfra"
)

func TestRedisConformance(t *testing.T) {
	addr := testinfra.StartRedis(t)

	// Each subtest gets its own logical database so runs do not interfere.
	db := 0
	factory := func(t *testing.T) store.Store {
		db++
		s, err := New(context.Background(), Config{Addr: addr, DB: db % 16})
		require.NoError(t, err)
		require.NoError(t, s.client.FlushDB(context.Background()).Err())
		return s
	}

	storetest.Run(t, factory)
	storetest.RunExpiry(t, factory, time.Second)
}

func TestRedisKeyLayout(t *testing.T) {
	addr := testinfra.StartRedis(t)
	ctx := context.Background()

	s, err := New(ctx, Config{Addr: addr})
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.PutHeartbeat(ctx, "node-3", 5*time.Second))

	raw := redis.NewClient(&redis.Options{Addr: addr})
	defer raw.Close()

	val, err := raw.Get(ctx, "election:bully:hb:node-3").Result()
	require.NoError(t, err)
	assert.Equal(t, "1", val)

	ttl, err := raw.TTL(ctx, "election:bully:hb:node-3").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, 5*time.Second)

	// States written by external tooling without updated_at still decode.
	require.NoError(t, raw.Set(ctx, "sync:state:legacy", `{"offset_mean":0.05,"offset_var":0.1,"drift":1.0}`, 0).Err())
	c, err := s.OffsetModel(ctx, "legacy")
	require.NoError(t, err)
	m, ok := c.Model()
	require.True(t, ok)
	assert.Equal(t, 0.05, m.OffsetMean)
	assert.True(t, c.UpdatedAt().IsZero())
}

func TestRedisUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := New(ctx, Config{Addr: "127.0.0.1:1", DialTimeout: 200 * time.Millisecond})
	require.Error(t, err)

	var opErr *store.OpError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, "redis", opErr.Backend)
	assert.Equal(t, "ping", opErr.Op)
}
