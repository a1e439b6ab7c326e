// Sensorium - Probabilistic Sensor Time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sensorium

/*
Package models defines the data structures shared across Sensorium.

Key types:

  - Observation: a sensor's timestamp on its own clock, with measurement sigma
  - OffsetState: persisted form of a per-sensor clock offset model
  - SynchronizedGroup / GroupMember: one fused event with membership weights
  - PublishedGroup: a group plus its storage id and publishing node
  - APIResponse / APIError: HTTP envelope

All types serialize with snake_case JSON field names. The observation and
offset state layouts are shared with the ingest tooling, so field names are
part of the storage contract and must not change.

Types in this package carry no behaviour beyond small read-only helpers.
Offset estimation lives in internal/timesync and grouping in internal/fusion.
*/
package models
