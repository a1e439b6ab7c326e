// Sensorium - Probabilistic Sensor Time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sensorium

package timesync

import "time"

// Calibration is what is known about a sensor's clock: either a learned
// model (Calibrated) or nothing yet (Uncalibrated).
//
// Keeping the two apart lets callers tell "no data" from "data says the
// offset is exactly zero", which the default model alone cannot express.
type Calibration struct {
	model     OffsetModel
	updatedAt time.Time
	known     bool
}

// Calibrated wraps a learned model. updatedAt may be zero when unknown.
func Calibrated(m OffsetModel, updatedAt time.Time) Calibration {
	return Calibration{model: m, updatedAt: updatedAt, known: true}
}

// Uncalibrated is the calibration of a sensor with no stored state.
func Uncalibrated() Calibration {
	return Calibration{}
}

// IsCalibrated reports whether a learned model is present.
func (c Calibration) IsCalibrated() bool {
	return c.known
}

// Model returns the learned model and true, or a zero model and false.
func (c Calibration) Model() (OffsetModel, bool) {
	return c.model, c.known
}

// UpdatedAt returns when the model was last written, zero if unknown.
func (c Calibration) UpdatedAt() time.Time {
	return c.updatedAt
}

// Resolve returns the learned model, substituting DefaultModel for an
// uncalibrated sensor.
func (c Calibration) Resolve() OffsetModel {
	if !c.known {
		return DefaultModel()
	}
	return c.model
}

func (c Calibration) String() string {
	if !c.known {
		return "uncalibrated"
	}
	return "calibrated"
}
