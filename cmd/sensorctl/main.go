// Sensorium - Probabilistic Sensor Time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sensorium

// Command sensorctl talks to a running coordinator and runs offline
// synchronization experiments.
//
//	sensorctl ingest observations.json
//	sensorctl ingest cam-1 camera 10.0125 --sigma 0.004
//	sensorctl step
//	sensorctl group g:10000000000
//	sensorctl election
//	sensorctl simulate --trials 20
//	sensorctl failover --fail-step 7
package main

import (
	"os"

	"github.com/tomtom215/sensorium/internal/logging"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logging.Error().Err(err).Msg("sensorctl failed")
		os.Exit(1)
	}
}
