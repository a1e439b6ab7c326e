// Sensorium - Probabilistic Sensor Time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sensorium

package timesync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultModel(t *testing.T) {
	m := DefaultModel()
	assert.Equal(t, 0.0, m.OffsetMean)
	assert.Equal(t, 0.1, m.OffsetVar)
	assert.Equal(t, 1.0, m.Drift)
}

func TestPredict(t *testing.T) {
	t.Run("grows with elapsed time", func(t *testing.T) {
		m := DefaultModel()
		m.Predict(2.0, 0.01)
		assert.InDelta(t, 0.12, m.OffsetVar, 1e-12)
		assert.Equal(t, 0.0, m.OffsetMean, "predict must not move the mean")
	})

	t.Run("negative elapsed uses magnitude", func(t *testing.T) {
		m := DefaultModel()
		m.Predict(-2.0, 0.01)
		assert.InDelta(t, 0.12, m.OffsetVar, 1e-12)
	})

	t.Run("capped", func(t *testing.T) {
		m := DefaultModel()
		m.Predict(1e6, 1.0)
		assert.Equal(t, MaxOffsetVar, m.OffsetVar)
	})
}

func TestUpdate(t *testing.T) {
	t.Run("kalman correction", func(t *testing.T) {
		m := DefaultModel()
		m.Update(10.0, 10.5, 0.1)
		// gain 0.5, innovation 0.5
		assert.InDelta(t, 0.25, m.OffsetMean, 1e-12)
		assert.InDelta(t, 0.05, m.OffsetVar, 1e-12)
	})

	t.Run("degenerate innovation variance is a no-op", func(t *testing.T) {
		m := OffsetModel{OffsetMean: 1, OffsetVar: 0.1, Drift: 1}
		m.Update(10.0, 20.0, -0.1)
		assert.Equal(t, OffsetModel{OffsetMean: 1, OffsetVar: 0.1, Drift: 1}, m)
	})

	t.Run("variance floored", func(t *testing.T) {
		m := DefaultModel()
		m.Update(1.0, 1.0, 0)
		assert.Equal(t, MinOffsetVar, m.OffsetVar)
	})

	t.Run("converges to true offset", func(t *testing.T) {
		const trueOffset = 0.37
		m := DefaultModel()
		prevVar := m.OffsetVar
		for i := 0; i < 200; i++ {
			tLocal := float64(i) * 0.5
			m.Update(tLocal, tLocal+trueOffset, 0.01)
			require.LessOrEqual(t, m.OffsetVar, prevVar, "variance increased at step %d", i)
			prevVar = m.OffsetVar
		}
		assert.InDelta(t, trueOffset, m.OffsetMean, 1e-3)
	})
}

func TestPredictGlobalTimeRoundTrip(t *testing.T) {
	m := OffsetModel{OffsetMean: 0.25, OffsetVar: 0.1, Drift: 1.0002}
	tg := m.PredictGlobalTime(42.0)
	assert.InDelta(t, 0.25+1.0002*42.0, tg, 1e-12)
	assert.InDelta(t, 42.0, m.LocalTimeFor(tg), 1e-9)

	zeroDrift := OffsetModel{OffsetMean: 1, Drift: 0}
	assert.Equal(t, 4.0, zeroDrift.LocalTimeFor(5))
}

func TestEffectiveVariance(t *testing.T) {
	m := DefaultModel()
	assert.InDelta(t, 0.11, m.EffectiveVariance(0.1), 1e-12)

	negative := OffsetModel{OffsetVar: -1}
	assert.InDelta(t, 0.04, negative.EffectiveVariance(0.2), 1e-12)
}

func TestStateRoundTrip(t *testing.T) {
	ts := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	m := OffsetModel{OffsetMean: -0.02, OffsetVar: 0.003, Drift: 0.9999}
	s := m.State(ts)
	assert.Equal(t, ts, s.UpdatedAt)
	assert.Equal(t, m, FromState(s))
}
