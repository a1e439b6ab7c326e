// Sensorium - Probabilistic Sensor Time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sensorium

package models

import "time"

// Observation is a single timestamped detection reported by a sensor.
//
// TLocal is expressed on the sensor's own clock in seconds and has no
// relation to global time until it is mapped through the sensor's offset
// model. Sigma is the standard deviation of the timestamp measurement.
// PayloadRef is an opaque pointer to the raw data (an object key, a file
// path) and is never interpreted by the synchronization core.
//
// Observations are immutable once received.
type Observation struct {
	SensorID   string  `json:"sensor_id" validate:"required,max=128,printascii"`
	SensorType string  `json:"sensor_type" validate:"max=64"`
	TLocal     float64 `json:"t_local" validate:"localtime"`
	Sigma      float64 `json:"sigma" validate:"gte=0,finite"`
	PayloadRef string  `json:"payload_ref,omitempty" validate:"max=1024"`
}

// LocalNanos returns TLocal truncated to integer nanoseconds.
// Store keys use this value so that one sensor cannot report two
// observations at the same local instant.
func (o Observation) LocalNanos() int64 {
	return int64(o.TLocal * 1e9)
}

// IngestRequest is the body accepted by the observation ingest endpoint.
type IngestRequest struct {
	Observations []Observation `json:"observations" validate:"required,min=1,max=1000,dive"`
	// TTLSeconds overrides the configured observation retention when > 0.
	TTLSeconds int `json:"ttl_seconds,omitempty" validate:"gte=0,lte=86400"`
}

// IngestResponse reports how many observations were stored.
type IngestResponse struct {
	Accepted int           `json:"accepted"`
	TTL      time.Duration `json:"ttl_ns"`
}
