// Sensorium - Probabilistic Sensor Time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sensorium

package timesync

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCalibration(t *testing.T) {
	t.Run("uncalibrated resolves to default", func(t *testing.T) {
		c := Uncalibrated()
		assert.False(t, c.IsCalibrated())
		_, ok := c.Model()
		assert.False(t, ok)
		assert.Equal(t, DefaultModel(), c.Resolve())
		assert.Equal(t, "uncalibrated", c.String())
	})

	t.Run("calibrated zero offset is distinguishable", func(t *testing.T) {
		c := Calibrated(OffsetModel{OffsetMean: 0, OffsetVar: 0.1, Drift: 1}, time.Time{})
		assert.True(t, c.IsCalibrated())
		m, ok := c.Model()
		assert.True(t, ok)
		assert.Equal(t, DefaultModel(), m)
		assert.NotEqual(t, Uncalibrated(), c)
	})
}

func TestFeedback(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 10, 0, time.UTC)

	t.Run("zero probability leaves model alone", func(t *testing.T) {
		m, ok := Feedback(Uncalibrated(), Measurement{TLocal: 10, TGlobal: 11, Probability: 0}, 0.01, now)
		assert.False(t, ok)
		assert.Equal(t, DefaultModel(), m)
	})

	t.Run("non-finite global time rejected", func(t *testing.T) {
		_, ok := Feedback(Uncalibrated(), Measurement{TLocal: 10, TGlobal: math.NaN(), Probability: 1}, 0.01, now)
		assert.False(t, ok)
	})

	t.Run("moves toward measured offset", func(t *testing.T) {
		m, ok := Feedback(Uncalibrated(), Measurement{TLocal: 10, Sigma: 0.1, TGlobal: 10.2, Probability: 1}, 0.01, now)
		assert.True(t, ok)
		assert.Greater(t, m.OffsetMean, 0.0)
		assert.Less(t, m.OffsetMean, 0.2)
		assert.Less(t, m.OffsetVar, DefaultOffsetVar)
	})

	t.Run("low probability moves less", func(t *testing.T) {
		strong, _ := Feedback(Uncalibrated(), Measurement{TLocal: 10, Sigma: 0.1, TGlobal: 10.2, Probability: 0.9}, 0, now)
		weak, _ := Feedback(Uncalibrated(), Measurement{TLocal: 10, Sigma: 0.1, TGlobal: 10.2, Probability: 0.1}, 0, now)
		assert.Greater(t, strong.OffsetMean, weak.OffsetMean)
	})

	t.Run("elapsed time inflates prior", func(t *testing.T) {
		base := OffsetModel{OffsetMean: 0, OffsetVar: 0.001, Drift: 1}
		fresh, _ := Feedback(Calibrated(base, now), Measurement{TLocal: 10, Sigma: 0.1, TGlobal: 10.2, Probability: 1}, 0.01, now)
		stale, _ := Feedback(Calibrated(base, now.Add(-100*time.Second)), Measurement{TLocal: 10, Sigma: 0.1, TGlobal: 10.2, Probability: 1}, 0.01, now)
		assert.Greater(t, stale.OffsetMean, fresh.OffsetMean)
	})
}
