// Sensorium - Probabilistic Sensor Time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sensorium

package memstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomtom215/sensorium/internal/store"
	"github.com/tomtom215/sensorium/internal/store/storetest"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		return New()
	})
}

func TestHeartbeatExpiry(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	s := New(WithClock(clock.Now))
	ctx := context.Background()

	require.NoError(t, s.PutHeartbeat(ctx, "node-1", 5*time.Second))
	require.NoError(t, s.PutHeartbeat(ctx, "node-2", 10*time.Second))

	clock.Advance(6 * time.Second)
	live, err := s.LiveHeartbeatNodeIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"node-2"}, live)

	// Refresh extends the lease.
	require.NoError(t, s.PutHeartbeat(ctx, "node-2", 10*time.Second))
	clock.Advance(9 * time.Second)
	live, err = s.LiveHeartbeatNodeIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"node-2"}, live)

	assert.Equal(t, 1, s.Sweep())
}

func TestClosed(t *testing.T) {
	s := New()
	require.NoError(t, s.Close())
	_, err := s.RawObservations(context.Background())
	assert.ErrorIs(t, err, store.ErrClosed)
}

func TestCanceledContext(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.PutHeartbeat(ctx, "n", time.Second), context.Canceled)
}
