// Sensorium - Probabilistic Sensor Time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sensorium

package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomtom215/sensorium/internal/fusion"
	"github.com/tomtom215/sensorium/internal/models"
	"github.com/tomtom215/sensorium/internal/store"
	"github.com/tomtom215/sensorium/internal/store/memstore"
	"github.com/tomtom215/sensorium/internal/timesync"
)

var fixedNow = time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)

func seed(t *testing.T, s store.ObservationStore, obs ...models.Observation) {
	t.Helper()
	for _, o := range obs {
		require.NoError(t, s.PutObservation(context.Background(), o, time.Minute))
	}
}

func threeSensors() []models.Observation {
	return []models.Observation{
		{SensorID: "camera-1", SensorType: "camera", TLocal: 10.0, Sigma: 0.1},
		{SensorID: "imu-1", SensorType: "imu", TLocal: 10.05, Sigma: 0.2},
		{SensorID: "mic-1", SensorType: "microphone", TLocal: 9.98, Sigma: 0.15},
	}
}

func newEngine(t *testing.T, s Store, cfg Config, opts ...Option) *Engine {
	t.Helper()
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	e, err := New(s, cfg, opts...)
	require.NoError(t, err)
	return e
}

type sinkFunc func(ctx context.Context, pg models.PublishedGroup) error

func (f sinkFunc) GroupPublished(ctx context.Context, pg models.PublishedGroup) error {
	return f(ctx, pg)
}

func TestStepMasterPublishes(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	seed(t, s, threeSensors()...)

	var published []models.PublishedGroup
	e := newEngine(t, s, DefaultConfig("node-1"), WithSink(sinkFunc(func(_ context.Context, pg models.PublishedGroup) error {
		published = append(published, pg)
		return nil
	})))

	groups, err := e.Step(ctx)
	require.NoError(t, err)
	require.Len(t, groups, 1)

	g := groups[0]
	assert.Greater(t, g.TGlobal, 9.9)
	assert.Less(t, g.TGlobal, 10.1)
	require.Len(t, g.Members, 3)
	assert.InDelta(t, 1.0, g.ProbabilitySum(), 1e-9)

	stored, err := s.SynchronizedGroup(ctx, fusion.GroupID(g.TGlobal))
	require.NoError(t, err)
	assert.Equal(t, g, stored)

	require.Len(t, published, 1)
	assert.Equal(t, "node-1", published[0].NodeID)
	assert.Equal(t, fixedNow, published[0].PublishedAt)

	live, err := s.LiveHeartbeatNodeIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"node-1"}, live)
}

func TestStepNonMasterKeepsGroupLocal(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	seed(t, s, threeSensors()...)
	require.NoError(t, s.PutHeartbeat(ctx, "node-3", time.Minute))

	e := newEngine(t, s, DefaultConfig("node-1"))
	res, err := e.Run(ctx)
	require.NoError(t, err)

	assert.False(t, res.IsMaster)
	assert.Equal(t, 3, res.Observations)
	require.Len(t, res.Groups, 1, "non-master still computes the group")
	assert.Empty(t, res.Published)

	_, err = s.SynchronizedGroup(ctx, fusion.GroupID(res.Groups[0].TGlobal))
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestStepNoObservations(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	e := newEngine(t, s, DefaultConfig("node-1"))

	groups, err := e.Step(ctx)
	require.NoError(t, err)
	assert.Empty(t, groups)

	live, err := s.LiveHeartbeatNodeIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"node-1"}, live, "heartbeat is sent even on an idle step")
}

func TestStepUsesStoredModels(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	// camera-1 runs 2s ahead; its stored model maps it back.
	seed(t, s,
		models.Observation{SensorID: "camera-1", TLocal: 12.0, Sigma: 0.05},
		models.Observation{SensorID: "imu-1", TLocal: 10.0, Sigma: 0.05},
	)
	require.NoError(t, s.PutOffsetModel(ctx, "camera-1", models.OffsetState{OffsetMean: -2.0, OffsetVar: 0.001, Drift: 1.0}))
	require.NoError(t, s.PutOffsetModel(ctx, "imu-1", models.OffsetState{OffsetMean: 0, OffsetVar: 0.001, Drift: 1.0}))

	e := newEngine(t, s, DefaultConfig("node-1"))
	groups, err := e.Step(ctx)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.InDelta(t, 10.0, groups[0].TGlobal, 1e-9)
	assert.InDelta(t, 0.5, groups[0].Members[0].Probability, 1e-9)
}

func TestStepSliceModeDropsFarObservations(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	seed(t, s, threeSensors()...)
	seed(t, s, models.Observation{SensorID: "camera-2", SensorType: "camera", TLocal: 12.5, Sigma: 0.1})

	batch := newEngine(t, s, DefaultConfig("node-1"))
	bg, err := batch.Step(ctx)
	require.NoError(t, err)
	require.Len(t, bg, 1)
	assert.Len(t, bg[0].Members, 4)

	cfg := DefaultConfig("node-1")
	cfg.Mode = ModeSlice
	slice := newEngine(t, s, cfg)
	sg, err := slice.Step(ctx)
	require.NoError(t, err)
	require.Len(t, sg, 1)

	assert.Equal(t, bg[0].TGlobal, sg[0].TGlobal, "slice is centred on the batch estimate")
	require.Len(t, sg[0].Members, 3)
	for _, m := range sg[0].Members {
		assert.NotEqual(t, "camera-2", m.SensorID)
	}
	assert.InDelta(t, 1.0, sg[0].ProbabilitySum(), 1e-9)
}

func TestStepCalibrationFeedback(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	seed(t, s, threeSensors()...)

	cfg := DefaultConfig("node-1")
	cfg.Calibrate = true
	e := newEngine(t, s, cfg)

	_, err := e.Step(ctx)
	require.NoError(t, err)

	for _, o := range threeSensors() {
		c, err := s.OffsetModel(ctx, o.SensorID)
		require.NoError(t, err)
		m, ok := c.Model()
		require.True(t, ok, "%s should now be calibrated", o.SensorID)
		assert.Less(t, m.OffsetVar, timesync.DefaultOffsetVar)
		assert.Equal(t, timesync.DefaultDrift, m.Drift)
		assert.True(t, fixedNow.Equal(c.UpdatedAt()))
	}
}

func TestStepNoCalibrationWhenNotMaster(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	seed(t, s, threeSensors()...)
	require.NoError(t, s.PutHeartbeat(ctx, "node-9", time.Minute))

	cfg := DefaultConfig("node-1")
	cfg.Calibrate = true
	e := newEngine(t, s, cfg)
	_, err := e.Step(ctx)
	require.NoError(t, err)

	c, err := s.OffsetModel(ctx, "camera-1")
	require.NoError(t, err)
	assert.False(t, c.IsCalibrated())
}

type brokenObservations struct {
	*memstore.Store
}

var errBackend = errors.New("backend unavailable")

func (brokenObservations) RawObservations(context.Context) ([]models.Observation, error) {
	return nil, store.Wrap("redis", "scan", "obs:*", errBackend)
}

func TestStepPropagatesStoreErrors(t *testing.T) {
	e := newEngine(t, brokenObservations{memstore.New()}, DefaultConfig("node-1"))
	_, err := e.Step(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, errBackend)

	var opErr *store.OpError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, "scan", opErr.Op)
}

func TestStepCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	e := newEngine(t, memstore.New(), DefaultConfig("node-1"))
	_, err := e.Step(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMasterChangeCallback(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()

	var seen []string
	e := newEngine(t, s, DefaultConfig("node-1"), WithMasterChange(func(_ context.Context, _, current string) {
		seen = append(seen, current)
	}))
	seed(t, s, threeSensors()...)

	_, err := e.Step(ctx)
	require.NoError(t, err)
	require.NoError(t, s.PutHeartbeat(ctx, "node-2", time.Minute))
	_, err = e.Step(ctx)
	require.NoError(t, err)

	assert.Equal(t, []string{"node-2"}, seen)
}

func TestConfigValidate(t *testing.T) {
	c := Config{NodeID: "node-1"}
	require.NoError(t, c.Validate())
	assert.Equal(t, DefaultConfig("node-1"), c)

	c = Config{}
	assert.Error(t, c.Validate())

	c = Config{NodeID: "n", Mode: "stream"}
	assert.ErrorContains(t, c.Validate(), "unknown mode")

	c = Config{NodeID: "n", ProcessNoise: -1}
	assert.Error(t, c.Validate())
}
