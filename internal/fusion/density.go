// Sensorium - Probabilistic Sensor Time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sensorium

package fusion

import "math"

var invSqrt2Pi = 1 / math.Sqrt(2*math.Pi)

// Density evaluates the normal probability density with the given mean and
// variance at x. A non-positive (or NaN) variance yields 0.
func Density(x, mean, variance float64) float64 {
	if !(variance > 0) {
		return 0
	}
	sigma := math.Sqrt(variance)
	z := (x - mean) / sigma
	return invSqrt2Pi / sigma * math.Exp(-0.5*z*z)
}

// weight clamps a density into a usable non-negative finite weight.
func weight(d float64) float64 {
	if !(d > 0) || math.IsInf(d, 0) {
		return 0
	}
	return d
}
