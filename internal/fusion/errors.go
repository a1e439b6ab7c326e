// Sensorium - Probabilistic Sensor Time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sensorium

package fusion

import (
	"errors"
	"fmt"

	"github.com/tomtom215/sensorium/internal/models"
	"github.com/tomtom215/sensorium/internal/timesync"
)

// ErrLengthMismatch is matched by every ContractError about parallel slices.
var ErrLengthMismatch = errors.New("observations and models must have equal length")

// ContractError reports a caller bug. It is never a data-quality problem
// and retrying with the same input cannot succeed.
type ContractError struct {
	Observations int
	Models       int
}

func (e *ContractError) Error() string {
	return fmt.Sprintf("fusion: %d observations but %d models: %v", e.Observations, e.Models, ErrLengthMismatch)
}

func (e *ContractError) Unwrap() error {
	return ErrLengthMismatch
}

func checkParallel(obs []models.Observation, mdl []timesync.OffsetModel) error {
	if len(obs) != len(mdl) {
		return &ContractError{Observations: len(obs), Models: len(mdl)}
	}
	return nil
}
