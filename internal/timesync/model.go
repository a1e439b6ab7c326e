// Sensorium - Probabilistic Sensor Time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sensorium

package timesync

import (
	"math"
	"time"

	"github.com/tomtom215/sensorium/internal/models"
)

const (
	// DefaultOffsetMean is the offset assumed for a sensor with no history.
	DefaultOffsetMean = 0.0
	// DefaultOffsetVar is the prior variance (s^2) for a sensor with no history.
	DefaultOffsetVar = 0.1
	// DefaultDrift is the clock rate ratio assumed for a sensor with no history.
	DefaultDrift = 1.0

	// MinOffsetVar floors the variance after an update so the filter keeps
	// accepting corrections.
	MinOffsetVar = 1e-6
	// MaxOffsetVar caps the variance growth during prediction.
	MaxOffsetVar = 10.0
)

// OffsetModel is a one-dimensional Kalman filter over a sensor's clock
// offset. It models t_global ≈ OffsetMean + Drift·t_local with OffsetVar as
// the uncertainty of OffsetMean.
//
// The zero value is not useful; start from DefaultModel.
type OffsetModel struct {
	OffsetMean float64
	OffsetVar  float64
	Drift      float64
}

// DefaultModel returns the prior used for uncalibrated sensors.
func DefaultModel() OffsetModel {
	return OffsetModel{
		OffsetMean: DefaultOffsetMean,
		OffsetVar:  DefaultOffsetVar,
		Drift:      DefaultDrift,
	}
}

// FromState converts a persisted state into a model.
func FromState(s models.OffsetState) OffsetModel {
	return OffsetModel{
		OffsetMean: s.OffsetMean,
		OffsetVar:  s.OffsetVar,
		Drift:      s.Drift,
	}
}

// State converts the model into its persisted form stamped with updatedAt.
func (m OffsetModel) State(updatedAt time.Time) models.OffsetState {
	return models.OffsetState{
		OffsetMean: m.OffsetMean,
		OffsetVar:  m.OffsetVar,
		Drift:      m.Drift,
		UpdatedAt:  updatedAt,
	}
}

// Predict propagates uncertainty forward by elapsed seconds under a
// constant-offset process model. The mean is unchanged; the variance grows
// by processNoise·|elapsed| and is capped at MaxOffsetVar.
func (m *OffsetModel) Predict(elapsed, processNoise float64) {
	m.OffsetVar += processNoise * math.Abs(elapsed)
	if m.OffsetVar > MaxOffsetVar {
		m.OffsetVar = MaxOffsetVar
	}
}

// Update applies a Kalman correction from one measurement: the sensor saw
// tLocal on its clock for an event whose global time was measured as
// tGlobalMeasured with variance measurementVar.
//
// A non-positive innovation variance leaves the model untouched.
func (m *OffsetModel) Update(tLocal, tGlobalMeasured, measurementVar float64) {
	innovation := tGlobalMeasured - m.PredictGlobalTime(tLocal)
	innovationVar := m.OffsetVar + measurementVar
	if innovationVar <= 0 || math.IsNaN(innovationVar) {
		return
	}

	gain := m.OffsetVar / innovationVar
	m.OffsetMean += gain * innovation
	m.OffsetVar = (1 - gain) * m.OffsetVar
	if m.OffsetVar < MinOffsetVar {
		m.OffsetVar = MinOffsetVar
	}
}

// PredictGlobalTime maps a local timestamp onto the global timeline.
func (m OffsetModel) PredictGlobalTime(tLocal float64) float64 {
	return m.OffsetMean + m.Drift*tLocal
}

// LocalTimeFor is the inverse of PredictGlobalTime. A zero drift would make
// the mapping singular and is treated as 1.
func (m OffsetModel) LocalTimeFor(tGlobal float64) float64 {
	drift := m.Drift
	if drift == 0 {
		drift = 1
	}
	return (tGlobal - m.OffsetMean) / drift
}

// EffectiveVariance is the total timing uncertainty of one observation made
// by this sensor: offset uncertainty plus measurement noise.
func (m OffsetModel) EffectiveVariance(sigma float64) float64 {
	return math.Max(m.OffsetVar, 0) + sigma*sigma
}
