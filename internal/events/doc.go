// Sensorium - Probabilistic Sensor Time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sensorium

// Package events publishes coordinator events with watermill.
//
// Two topics exist under a configurable prefix:
//
//	<prefix>.groups.published   models.PublishedGroup, message id = group id
//	<prefix>.election.changed   ElectionChanged
//
// In production the publisher writes to a NATS JetStream stream created by
// EnsureStream; the stream's duplicate window turns the deterministic
// group id into exactly-once delivery for republished groups. Tests use
// watermill's in-process gochannel.
package events
