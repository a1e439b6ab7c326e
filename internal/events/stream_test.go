// Sensorium - Probabilistic Sensor Time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sensorium

package events

import (
	"context"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomtom215/sensorium/internal/natsembed"
)

func TestNATSPublisherDeduplicatesGroups(t *testing.T) {
	cfg := natsembed.DefaultServerConfig()
	cfg.StoreDir = t.TempDir()
	srv, err := natsembed.Start(cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})

	nc, err := natsembed.Connect(srv.ClientURL(), t.Name())
	require.NoError(t, err)
	t.Cleanup(nc.Close)
	js, err := jetstream.New(nc)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	streamCfg := DefaultStreamConfig("sensorium")
	streamCfg.MemoryStorage = true
	stream, err := EnsureStream(ctx, js, streamCfg)
	require.NoError(t, err)
	assert.Equal(t, "SENSORIUM_EVENTS", stream.CachedInfo().Config.Name)

	// A second call updates in place.
	_, err = EnsureStream(ctx, js, streamCfg)
	require.NoError(t, err)

	p, err := NewNATSPublisher(srv.ClientURL(), DefaultConfig("node-3"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })

	require.NoError(t, p.GroupPublished(ctx, sampleGroup()))
	require.NoError(t, p.GroupPublished(ctx, sampleGroup()))
	p.MasterChanged(ctx, "", "node-3")

	info, err := stream.Info(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), info.State.Msgs)
}

func TestEnsureStreamRequiresName(t *testing.T) {
	_, err := EnsureStream(context.Background(), nil, StreamConfig{})
	require.Error(t, err)
}
