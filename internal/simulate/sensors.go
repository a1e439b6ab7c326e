// Sensorium - Probabilistic Sensor Time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sensorium

// Package simulate generates deterministic synthetic sensor observations
// and runs synchronization scenarios against an in-memory cluster.
package simulate

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/tomtom215/sensorium/internal/models"
	"github.com/tomtom215/sensorium/internal/store"
)

// SensorSpec describes a synthetic sensor clock.
type SensorSpec struct {
	ID   string `json:"id" yaml:"id"`
	Type string `json:"type" yaml:"type"`
	// Offset is the true global-minus-local offset in seconds.
	Offset float64 `json:"offset" yaml:"offset"`
	// Drift is the true clock rate ratio; 1 means no drift.
	Drift float64 `json:"drift" yaml:"drift"`
	// Jitter is the timestamp noise standard deviation in seconds. It is
	// also reported as the observation's sigma.
	Jitter float64 `json:"jitter" yaml:"jitter"`
}

// DefaultSensors is a camera slightly ahead and an IMU slightly behind.
func DefaultSensors() []SensorSpec {
	return []SensorSpec{
		{ID: "cam", Type: "camera", Offset: 0.02, Drift: 1.0001, Jitter: 0.01},
		{ID: "imu", Type: "imu", Offset: -0.01, Drift: 0.9999, Jitter: 0.02},
	}
}

// Simulator produces observations from a fixed set of sensors. The same
// seed always yields the same sequence. Not safe for concurrent use.
type Simulator struct {
	rng     *rand.Rand
	sensors []SensorSpec
}

// New returns a simulator seeded with seed.
func New(seed uint64, sensors ...SensorSpec) *Simulator {
	return &Simulator{
		rng:     NewRand(seed),
		sensors: sensors,
	}
}

// NewRand returns the generator New uses for seed.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Sensors returns the simulated sensors.
func (s *Simulator) Sensors() []SensorSpec {
	return s.sensors
}

// Observe returns one observation per sensor of an event at trueTime: the
// local timestamp is the inverse clock mapping plus Gaussian jitter.
func (s *Simulator) Observe(trueTime float64) []models.Observation {
	out := make([]models.Observation, 0, len(s.sensors))
	for _, spec := range s.sensors {
		drift := spec.Drift
		if drift == 0 {
			drift = 1
		}
		tLocal := (trueTime - spec.Offset) / drift
		if spec.Jitter > 0 {
			tLocal += s.rng.NormFloat64() * spec.Jitter
		}
		o := models.Observation{
			SensorID:   spec.ID,
			SensorType: spec.Type,
			TLocal:     tLocal,
			Sigma:      spec.Jitter,
		}
		o.PayloadRef = fmt.Sprintf("mem://%s/%d", spec.ID, o.LocalNanos())
		out = append(out, o)
	}
	return out
}

// Seed observes an event at trueTime and writes the observations to s.
func (s *Simulator) Seed(ctx context.Context, dst store.ObservationStore, trueTime float64, ttl time.Duration) ([]models.Observation, error) {
	obs := s.Observe(trueTime)
	for _, o := range obs {
		if err := dst.PutObservation(ctx, o, ttl); err != nil {
			return nil, fmt.Errorf("seed %s: %w", o.SensorID, err)
		}
	}
	return obs, nil
}

// AlignmentErrorMS is |t_global - trueTime| in milliseconds for the first
// group, or NaN when there are no groups.
func AlignmentErrorMS(groups []models.SynchronizedGroup, trueTime float64) float64 {
	if len(groups) == 0 {
		return math.NaN()
	}
	return math.Abs(groups[0].TGlobal-trueTime) * 1000
}

// alignmentError is AlignmentErrorMS for reports: nil when there is no
// group to measure.
func alignmentError(groups []models.SynchronizedGroup, trueTime float64) *float64 {
	e := AlignmentErrorMS(groups, trueTime)
	if math.IsNaN(e) {
		return nil
	}
	return &e
}

// FalseAssociationMass is the total probability the first group assigns
// to members from sensorID. Used with a distractor sensor it measures how
// much weight a wrong association receives.
func FalseAssociationMass(groups []models.SynchronizedGroup, sensorID string) float64 {
	if len(groups) == 0 {
		return 0
	}
	var mass float64
	for _, m := range groups[0].Members {
		if m.SensorID == sensorID {
			mass += m.Probability
		}
	}
	return mass
}

// NearestBaselineFalse runs one trial of nearest-timestamp matching: it
// reports 1 when a distractor offset by delta lands nearer the true time
// than the correct sensor, else 0. Averaged over trials it is the false
// association rate of a deterministic matcher.
func NearestBaselineFalse(rng *rand.Rand, jitter, delta float64) float64 {
	correct := rng.NormFloat64() * jitter
	distractor := delta + rng.NormFloat64()*jitter
	if math.Abs(distractor) < math.Abs(correct) {
		return 1
	}
	return 0
}
