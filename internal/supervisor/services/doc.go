// Sensorium - Probabilistic Sensor Time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sensorium

// Package services holds the suture.Service implementations the
// coordinator runs: StepService drives the sync loop, HTTPServerService
// owns the API listener and PeriodicService runs backend maintenance.
//
// Each Serve blocks until its context is canceled and then returns
// ctx.Err(). Only HTTPServerService returns early, when the listener
// fails, so the supervisor can restart it.
package services
