// Sensorium - Probabilistic Sensor Time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sensorium

// Package storetest is a conformance suite run against every store backend.
package storetest

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomtom215/sensorium/internal/models"
	"github.com/tomtom215/sensorium/internal/store"
	"github.com/tomtom215/sensorium/internal/timesync"
)

// Factory returns a fresh, empty store. The suite closes it.
type Factory func(t *testing.T) store.Store

// Run executes the conformance suite.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	t.Run("observations", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()
		ctx := context.Background()

		empty, err := s.RawObservations(ctx)
		require.NoError(t, err)
		assert.Empty(t, empty)

		in := []models.Observation{
			{SensorID: "camera-1", SensorType: "camera", TLocal: 10.0, Sigma: 0.1, PayloadRef: "mem://camera-1/1"},
			{SensorID: "imu-1", SensorType: "imu", TLocal: 10.05, Sigma: 0.2},
			{SensorID: "camera-1", SensorType: "camera", TLocal: 11.0, Sigma: 0.1},
		}
		for _, o := range in {
			require.NoError(t, s.PutObservation(ctx, o, time.Minute))
		}
		// Same sensor and instant overwrites.
		require.NoError(t, s.PutObservation(ctx, in[0], time.Minute))

		got, err := s.RawObservations(ctx)
		require.NoError(t, err)
		assert.ElementsMatch(t, in, got)
	})

	t.Run("offset models", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()
		ctx := context.Background()

		c, err := s.OffsetModel(ctx, "unknown")
		require.NoError(t, err)
		assert.False(t, c.IsCalibrated(), "missing state must read as uncalibrated")

		updated := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
		state := models.OffsetState{OffsetMean: 0.05, OffsetVar: 0.002, Drift: 1.0001, UpdatedAt: updated}
		require.NoError(t, s.PutOffsetModel(ctx, "camera-1", state))

		c, err = s.OffsetModel(ctx, "camera-1")
		require.NoError(t, err)
		m, ok := c.Model()
		require.True(t, ok)
		assert.Equal(t, timesync.OffsetModel{OffsetMean: 0.05, OffsetVar: 0.002, Drift: 1.0001}, m)
		assert.True(t, updated.Equal(c.UpdatedAt()))
	})

	t.Run("groups", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()
		ctx := context.Background()

		_, err := s.SynchronizedGroup(ctx, "g:1")
		assert.ErrorIs(t, err, store.ErrNotFound)

		g := models.SynchronizedGroup{
			TGlobal: 10.008,
			Members: []models.GroupMember{
				{SensorID: "camera-1", Probability: 0.4},
				{SensorID: "imu-1", Probability: 0.6},
			},
		}
		require.NoError(t, s.PutSynchronizedGroup(ctx, "g:10008000000", g))
		got, err := s.SynchronizedGroup(ctx, "g:10008000000")
		require.NoError(t, err)
		assert.Equal(t, g, got)

		// Re-publishing the same id overwrites.
		g.Members[0].Probability, g.Members[1].Probability = 0.5, 0.5
		require.NoError(t, s.PutSynchronizedGroup(ctx, "g:10008000000", g))
		got, err = s.SynchronizedGroup(ctx, "g:10008000000")
		require.NoError(t, err)
		assert.Equal(t, g, got)

		obs, err := s.RawObservations(ctx)
		require.NoError(t, err)
		assert.Empty(t, obs, "groups must not leak into the observation namespace")
	})

	t.Run("heartbeats", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()
		ctx := context.Background()

		live, err := s.LiveHeartbeatNodeIDs(ctx)
		require.NoError(t, err)
		assert.Empty(t, live)

		for _, id := range []string{"node-1", "node-3", "node-2"} {
			require.NoError(t, s.PutHeartbeat(ctx, id, time.Minute))
		}
		require.NoError(t, s.PutHeartbeat(ctx, "node-1", time.Minute), "heartbeat is idempotent")

		live, err = s.LiveHeartbeatNodeIDs(ctx)
		require.NoError(t, err)
		sort.Strings(live)
		assert.Equal(t, []string{"node-1", "node-2", "node-3"}, live)

		require.NoError(t, s.DeleteHeartbeat(ctx, "node-3"))
		live, err = s.LiveHeartbeatNodeIDs(ctx)
		require.NoError(t, err)
		sort.Strings(live)
		assert.Equal(t, []string{"node-1", "node-2"}, live)
	})
}

// RunExpiry checks that heartbeats and observations disappear after their
// TTL. ttl must be at least the backend's expiry granularity.
func RunExpiry(t *testing.T, newStore Factory, ttl time.Duration) {
	t.Helper()
	if testing.Short() {
		t.Skip("expiry test sleeps")
	}

	s := newStore(t)
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.PutHeartbeat(ctx, "short", ttl))
	require.NoError(t, s.PutHeartbeat(ctx, "long", time.Hour))
	require.NoError(t, s.PutObservation(ctx, models.Observation{SensorID: "a", TLocal: 1, Sigma: 0.1}, ttl))

	require.Eventually(t, func() bool {
		live, err := s.LiveHeartbeatNodeIDs(ctx)
		if err != nil || len(live) != 1 || live[0] != "long" {
			return false
		}
		obs, err := s.RawObservations(ctx)
		return err == nil && len(obs) == 0
	}, ttl+5*time.Second, 100*time.Millisecond)
}
