// Sensorium - Probabilistic Sensor Time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sensorium

package fusion

import (
	"math"
	"sort"

	"github.com/tomtom215/sensorium/internal/models"
	"github.com/tomtom215/sensorium/internal/timesync"
)

// DefaultBucketSizeMS is the candidate bucket width used when none is configured.
const DefaultBucketSizeMS int64 = 1000

// BucketOf returns the coarse time bucket containing a local timestamp.
// Non-positive and non-finite times map to bucket 0, as does a non-positive
// bucket size.
func BucketOf(tLocal float64, bucketSizeMS int64) int64 {
	if bucketSizeMS <= 0 || !(tLocal > 0) || math.IsInf(tLocal, 0) {
		return 0
	}
	b := math.Floor(tLocal * 1000 / float64(bucketSizeMS))
	if b >= math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(b)
}

// CandidateBuckets returns the buckets in which a sensor described by model
// would have recorded an event that happened at tGlobal: the bucket of the
// inverted timestamp and its two neighbours, clamped at 0, sorted and
// without duplicates.
func CandidateBuckets(tGlobal float64, model timesync.OffsetModel, bucketSizeMS int64) []int64 {
	center := BucketOf(model.LocalTimeFor(tGlobal), bucketSizeMS)
	out := make([]int64, 0, 3)
	if center > 0 {
		out = append(out, center-1)
	}
	out = append(out, center)
	if center < math.MaxInt64 {
		out = append(out, center+1)
	}
	return out
}

// CandidateIndex buckets observations per sensor so that a global-time
// hypothesis only touches the few buckets each sensor could have used.
// It is not safe for concurrent mutation.
type CandidateIndex struct {
	bucketSizeMS int64
	obs          []models.Observation
	// sensor -> bucket -> positions in obs
	buckets map[string]map[int64][]int
}

// NewCandidateIndex indexes obs. The slice is retained, not copied.
func NewCandidateIndex(obs []models.Observation, bucketSizeMS int64) *CandidateIndex {
	if bucketSizeMS <= 0 {
		bucketSizeMS = DefaultBucketSizeMS
	}
	idx := &CandidateIndex{
		bucketSizeMS: bucketSizeMS,
		obs:          obs,
		buckets:      make(map[string]map[int64][]int),
	}
	for i, o := range obs {
		bySensor, ok := idx.buckets[o.SensorID]
		if !ok {
			bySensor = make(map[int64][]int)
			idx.buckets[o.SensorID] = bySensor
		}
		b := BucketOf(o.TLocal, bucketSizeMS)
		bySensor[b] = append(bySensor[b], i)
	}
	return idx
}

// BucketSizeMS returns the bucket width the index was built with.
func (idx *CandidateIndex) BucketSizeMS() int64 {
	return idx.bucketSizeMS
}

// Len returns the number of indexed observations.
func (idx *CandidateIndex) Len() int {
	return len(idx.obs)
}

// Candidates returns the observations that may belong to an event at
// tGlobal, in their original order. Sensors missing from modelsBySensor are
// skipped.
func (idx *CandidateIndex) Candidates(tGlobal float64, modelsBySensor map[string]timesync.OffsetModel) []models.Observation {
	var positions []int
	for sensorID, bySensor := range idx.buckets {
		model, ok := modelsBySensor[sensorID]
		if !ok {
			continue
		}
		for _, b := range CandidateBuckets(tGlobal, model, idx.bucketSizeMS) {
			positions = append(positions, bySensor[b]...)
		}
	}
	sort.Ints(positions)

	out := make([]models.Observation, len(positions))
	for i, p := range positions {
		out[i] = idx.obs[p]
	}
	return out
}
