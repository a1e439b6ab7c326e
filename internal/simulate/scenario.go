// Sensorium - Probabilistic Sensor Time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sensorium

package simulate

import (
	"context"
	"time"

	"github.com/tomtom215/sensorium/internal/engine"
	"github.com/tomtom215/sensorium/internal/models"
	"github.com/tomtom215/sensorium/internal/store/memstore"
)

// TrialResult is the outcome of one isolated trial.
type TrialResult struct {
	TrueTime     float64                    `json:"true_time"`
	Observations []models.Observation       `json:"observations"`
	Groups       []models.SynchronizedGroup `json:"groups"`
	ErrorMS      *float64                   `json:"alignment_error_ms,omitempty"`
}

// Trial observes one event at trueTime on a fresh in-memory store and runs
// a single step as the only node.
func Trial(ctx context.Context, sim *Simulator, trueTime float64, cfg engine.Config) (TrialResult, error) {
	s := memstore.New()
	defer s.Close()

	obs, err := sim.Seed(ctx, s, trueTime, time.Minute)
	if err != nil {
		return TrialResult{}, err
	}
	e, err := engine.New(s, cfg)
	if err != nil {
		return TrialResult{}, err
	}
	groups, err := e.Step(ctx)
	if err != nil {
		return TrialResult{}, err
	}
	return TrialResult{
		TrueTime:     trueTime,
		Observations: obs,
		Groups:       groups,
		ErrorMS:      alignmentError(groups, trueTime),
	}, nil
}
