// Sensorium - Probabilistic Sensor Time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sensorium

package badgerstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomtom215/sensorium/internal/models"
	"github.com/tomtom215/sensorium/internal/store"
	"github.com/tomtom215/sensorium/internal/store/storetest"
)

func openInMemory(t *testing.T) store.Store {
	t.Helper()
	s, err := Open(Config{InMemory: true})
	require.NoError(t, err)
	return s
}

func TestConformance(t *testing.T) {
	storetest.Run(t, openInMemory)
}

func TestExpiry(t *testing.T) {
	// badger stores expiry with one-second resolution
	storetest.RunExpiry(t, openInMemory, 2*time.Second)
}

func TestPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := Open(Config{Path: dir, SyncWrites: true})
	require.NoError(t, err)
	require.NoError(t, s.PutOffsetModel(ctx, "imu-1", models.OffsetState{OffsetMean: -0.02, OffsetVar: 0.01, Drift: 0.9999}))
	require.NoError(t, s.Close())
	require.NoError(t, s.Close(), "close is idempotent")

	s, err = Open(Config{Path: dir})
	require.NoError(t, err)
	defer s.Close()

	c, err := s.OffsetModel(ctx, "imu-1")
	require.NoError(t, err)
	m, ok := c.Model()
	require.True(t, ok)
	assert.Equal(t, -0.02, m.OffsetMean)
	assert.NoError(t, s.RunGC())
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open(Config{})
	assert.Error(t, err)
}

func TestClosedStore(t *testing.T) {
	s, err := Open(Config{InMemory: true})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = s.LiveHeartbeatNodeIDs(context.Background())
	assert.ErrorIs(t, err, store.ErrClosed)
	assert.ErrorIs(t, s.RunGC(), store.ErrClosed)
}
