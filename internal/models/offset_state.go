// Sensorium - Probabilistic Sensor Time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sensorium

package models

import "time"

// OffsetState is the persisted form of a sensor's clock offset model,
// stored under sync:state:<sensor_id>.
//
// UpdatedAt is zero for states written by tools that do not track it.
// Readers treat a zero value as "unknown", not as the epoch.
type OffsetState struct {
	OffsetMean float64   `json:"offset_mean"`
	OffsetVar  float64   `json:"offset_var"`
	Drift      float64   `json:"drift"`
	UpdatedAt  time.Time `json:"updated_at,omitempty"`
}
