// Sensorium - Probabilistic Sensor Time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sensorium

package fusion

import (
	"math"
	"strconv"
)

// SentinelGroupID is used for any non-finite event time.
const SentinelGroupID = "g:0"

// GroupID derives the storage id of a group from its event time, rounded
// to the nanosecond. The same event time always yields the same id, so a
// repeated publish overwrites instead of duplicating.
func GroupID(tGlobal float64) string {
	if math.IsNaN(tGlobal) || math.IsInf(tGlobal, 0) {
		return SentinelGroupID
	}
	ns := math.Round(tGlobal * 1e9)
	var id int64
	switch {
	// float64(math.MaxInt64) rounds up to 2^63, which int64 cannot hold
	case ns >= math.MaxInt64:
		id = math.MaxInt64
	case ns <= math.MinInt64:
		id = math.MinInt64
	default:
		id = int64(ns)
	}
	return "g:" + strconv.FormatInt(id, 10)
}
