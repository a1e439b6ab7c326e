// Sensorium - Probabilistic Sensor Time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sensorium

package store

import (
	"strconv"
	"strings"

	"github.com/tomtom215/sensorium/internal/models"
)

// Key prefixes shared by every backend. They match the layout used by the
// ingest tooling, so a Redis database can be inspected by hand.
const (
	ObservationPrefix = "obs:"
	OffsetStatePrefix = "sync:state:"
	GroupPrefix       = "sync:group:"
	HeartbeatPrefix   = "election:bully:hb:"
)

// ObservationKey is obs:<sensor_id>:<t_local in integer nanoseconds>.
func ObservationKey(o models.Observation) string {
	return ObservationPrefix + o.SensorID + ":" + strconv.FormatInt(o.LocalNanos(), 10)
}

// OffsetStateKey is sync:state:<sensor_id>.
func OffsetStateKey(sensorID string) string {
	return OffsetStatePrefix + sensorID
}

// GroupKey is sync:group:<group_id>.
func GroupKey(groupID string) string {
	return GroupPrefix + groupID
}

// HeartbeatKey is election:bully:hb:<node_id>.
func HeartbeatKey(nodeID string) string {
	return HeartbeatPrefix + nodeID
}

// NodeIDFromHeartbeatKey strips the heartbeat prefix. ok is false for keys
// outside the heartbeat namespace.
func NodeIDFromHeartbeatKey(key string) (nodeID string, ok bool) {
	if !strings.HasPrefix(key, HeartbeatPrefix) {
		return "", false
	}
	return key[len(HeartbeatPrefix):], true
}
