// Sensorium - Probabilistic Sensor Time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sensorium

package store

import (
	"github.com/goccy/go-json"

	"github.com/tomtom215/sensorium/internal/models"
	"github.com/tomtom215/sensorium/internal/timesync"
)

// Values are JSON documents in every backend.

// EncodeObservation serializes an observation value.
func EncodeObservation(o models.Observation) ([]byte, error) {
	return json.Marshal(o)
}

// DecodeObservation parses an observation value.
func DecodeObservation(b []byte) (models.Observation, error) {
	var o models.Observation
	err := json.Unmarshal(b, &o)
	return o, err
}

// EncodeOffsetState serializes an offset state value.
func EncodeOffsetState(s models.OffsetState) ([]byte, error) {
	return json.Marshal(s)
}

// DecodeOffsetState parses an offset state into a calibrated model. A
// stored drift of 0 is invalid and replaced by the default drift. The
// offset variance is floored at timesync.MinOffsetVar.
func DecodeOffsetState(b []byte) (timesync.Calibration, error) {
	var s models.OffsetState
	if err := json.Unmarshal(b, &s); err != nil {
		return timesync.Uncalibrated(), err
	}
	if s.Drift == 0 {
		s.Drift = timesync.DefaultDrift
	}
	if !(s.OffsetVar >= timesync.MinOffsetVar) {
		s.OffsetVar = timesync.MinOffsetVar
	}
	return timesync.Calibrated(timesync.FromState(s), s.UpdatedAt), nil
}

// EncodeGroup serializes a synchronized group value.
func EncodeGroup(g models.SynchronizedGroup) ([]byte, error) {
	return json.Marshal(g)
}

// DecodeGroup parses a synchronized group value.
func DecodeGroup(b []byte) (models.SynchronizedGroup, error) {
	var g models.SynchronizedGroup
	err := json.Unmarshal(b, &g)
	return g, err
}
