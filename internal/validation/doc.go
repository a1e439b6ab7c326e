// Sensorium - Probabilistic Sensor Time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sensorium

// Package validation validates API request bodies with
// go-playground/validator v10.
//
// One validator instance is shared by the process. Field names in errors
// are JSON names with their path, so a bad sigma in the third observation
// of an ingest request is reported as observations[2].sigma.
//
// Besides the built-in tags, two float tags are registered: finite, and
// localtime for sensor-local timestamps that must fit the nanosecond
// store key.
package validation
