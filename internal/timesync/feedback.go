// Sensorium - Probabilistic Sensor Time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sensorium

package timesync

import (
	"math"
	"time"
)

// Measurement is a published global time used as ground truth for one
// sensor's observation.
type Measurement struct {
	TLocal float64
	Sigma  float64
	// TGlobal is the fused event time the observation was assigned to.
	TGlobal float64
	// FusedVar is the variance of TGlobal itself.
	FusedVar float64
	// Probability is the sensor's membership weight in the group.
	Probability float64
}

// Feedback folds a published event time back into a sensor's model.
//
// The model is first predicted forward from its last update to now, then
// corrected with a measurement whose variance is inflated by the inverse of
// the membership probability, so weakly associated observations barely move
// the estimate. A zero probability leaves the model unchanged and reports
// false.
func Feedback(c Calibration, m Measurement, processNoise float64, now time.Time) (OffsetModel, bool) {
	model := c.Resolve()
	if !(m.Probability > 0) || math.IsInf(m.TGlobal, 0) || math.IsNaN(m.TGlobal) {
		return model, false
	}

	if updated := c.UpdatedAt(); !updated.IsZero() && now.After(updated) {
		model.Predict(now.Sub(updated).Seconds(), processNoise)
	}

	measurementVar := (m.Sigma*m.Sigma + math.Max(m.FusedVar, 0)) / m.Probability
	if math.IsInf(measurementVar, 0) || math.IsNaN(measurementVar) {
		return c.Resolve(), false
	}
	model.Update(m.TLocal, m.TGlobal, measurementVar)
	return model, true
}
