// Sensorium - Probabilistic Sensor Time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sensorium

package simulate

import (
	"context"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomtom215/sensorium/internal/engine"
	"github.com/tomtom215/sensorium/internal/models"
)

func TestObserveDeterministic(t *testing.T) {
	a := New(7, DefaultSensors()...).Observe(10)
	b := New(7, DefaultSensors()...).Observe(10)
	assert.Equal(t, a, b)

	c := New(8, DefaultSensors()...).Observe(10)
	assert.NotEqual(t, a[0].TLocal, c[0].TLocal)
}

func TestObserveWithoutJitter(t *testing.T) {
	sim := New(1, SensorSpec{ID: "cam", Type: "camera", Offset: 0.5, Drift: 2})
	obs := sim.Observe(10.5)
	require.Len(t, obs, 1)
	assert.InDelta(t, 5.0, obs[0].TLocal, 1e-12)
	assert.Equal(t, "camera", obs[0].SensorType)
	assert.Equal(t, "mem://cam/5000000000", obs[0].PayloadRef)
}

func TestAlignmentErrorMS(t *testing.T) {
	assert.True(t, math.IsNaN(AlignmentErrorMS(nil, 1)))
	groups := []models.SynchronizedGroup{{TGlobal: 10.004}}
	assert.InDelta(t, 4.0, AlignmentErrorMS(groups, 10), 1e-6)

	assert.Nil(t, alignmentError(nil, 1))
	require.NotNil(t, alignmentError(groups, 10))
	assert.InDelta(t, 4.0, *alignmentError(groups, 10), 1e-6)
}

func TestReportsEncodeWithoutPublishedGroup(t *testing.T) {
	report := FailoverReport{
		FailedNode: "node-b",
		Steps: []FailoverStep{
			{Step: 0, TrueTime: 10, Master: "node-b", Published: true, ErrorMS: alignmentError([]models.SynchronizedGroup{{TGlobal: 10.002}}, 10)},
			{Step: 1, TrueTime: 11},
		},
	}
	b, err := json.Marshal(report)
	require.NoError(t, err)

	var decoded FailoverReport
	require.NoError(t, json.Unmarshal(b, &decoded))
	require.Len(t, decoded.Steps, 2)
	require.NotNil(t, decoded.Steps[0].ErrorMS)
	assert.InDelta(t, 2.0, *decoded.Steps[0].ErrorMS, 1e-6)
	assert.Nil(t, decoded.Steps[1].ErrorMS)

	_, err = json.Marshal(TrialResult{TrueTime: 3})
	require.NoError(t, err)
}

func TestFalseAssociationMass(t *testing.T) {
	assert.Zero(t, FalseAssociationMass(nil, "x"))
	groups := []models.SynchronizedGroup{{Members: []models.GroupMember{
		{SensorID: "cam", Probability: 0.5},
		{SensorID: "imu", Probability: 0.2},
		{SensorID: "imu", Probability: 0.3},
	}}}
	assert.InDelta(t, 0.5, FalseAssociationMass(groups, "imu"), 1e-12)
	assert.Zero(t, FalseAssociationMass(groups, "lidar"))
}

func TestNearestBaselineFalse(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	// A distractor 1s away with 1ms jitter never wins.
	for range 100 {
		assert.Zero(t, NearestBaselineFalse(rng, 0.001, 1))
	}
}

func TestTrial(t *testing.T) {
	sim := New(42, DefaultSensors()...)
	res, err := Trial(context.Background(), sim, 10, engine.DefaultConfig("node-1"))
	require.NoError(t, err)
	require.Len(t, res.Groups, 1)
	assert.Len(t, res.Observations, 2)
	assert.Len(t, res.Groups[0].Members, 2)
	require.NotNil(t, res.ErrorMS)
	assert.Less(t, *res.ErrorMS, 100.0)
}

func TestFailover(t *testing.T) {
	cfg := DefaultFailoverConfig()
	report, err := Failover(context.Background(), cfg)
	require.NoError(t, err)

	assert.Equal(t, "node-b", report.FailedNode)
	require.Len(t, report.Steps, cfg.Steps)
	for _, row := range report.Steps {
		want := "node-b"
		if row.Step >= cfg.FailStep {
			want = "node-a"
		}
		assert.Equal(t, want, row.Master, "step %d", row.Step)
		assert.True(t, row.Published, "step %d", row.Step)
		require.NotNil(t, row.ErrorMS, "step %d", row.Step)
		assert.Less(t, *row.ErrorMS, 100.0, "step %d", row.Step)
	}
}

func TestFailoverRejectsBadConfig(t *testing.T) {
	cfg := DefaultFailoverConfig()
	cfg.Nodes = []string{"solo"}
	_, err := Failover(context.Background(), cfg)
	require.Error(t, err)

	cfg = DefaultFailoverConfig()
	cfg.Steps = 0
	_, err = Failover(context.Background(), cfg)
	require.Error(t, err)
}
