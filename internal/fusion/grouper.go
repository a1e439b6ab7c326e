// Sensorium - Probabilistic Sensor Time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sensorium

package fusion

import (
	"math"

	"github.com/tomtom215/sensorium/internal/models"
	"github.com/tomtom215/sensorium/internal/timesync"
)

// minVariance keeps inverse-variance weights finite.
const minVariance = 1e-12

// EstimateEventTime fuses the observations into one global event time by
// inverse-variance weighting of each observation's mapped timestamp.
// models[i] must describe the sensor of obs[i]. An empty batch, or one whose
// total weight is zero, yields 0.
func EstimateEventTime(obs []models.Observation, mdl []timesync.OffsetModel) (float64, error) {
	tHat, _, err := fuse(obs, mdl)
	return tHat, err
}

// FusedVariance returns the variance of the EstimateEventTime result,
// 1/Σ(1/effective variance). It is +Inf when there is nothing to fuse.
func FusedVariance(obs []models.Observation, mdl []timesync.OffsetModel) (float64, error) {
	_, v, err := fuse(obs, mdl)
	return v, err
}

// effectiveVariance floors the model's effective variance so that a perfectly
// certain observation keeps a finite weight in both fusion and membership.
func effectiveVariance(m timesync.OffsetModel, sigma float64) float64 {
	return math.Max(m.EffectiveVariance(sigma), minVariance)
}

func fuse(obs []models.Observation, mdl []timesync.OffsetModel) (tHat, variance float64, err error) {
	if err := checkParallel(obs, mdl); err != nil {
		return 0, 0, err
	}
	var sumW, sumWT float64
	for i, o := range obs {
		v := effectiveVariance(mdl[i], o.Sigma)
		w := 1 / v
		if math.IsNaN(w) || math.IsInf(w, 0) {
			continue
		}
		sumW += w
		sumWT += w * mdl[i].PredictGlobalTime(o.TLocal)
	}
	if sumW <= 0 {
		return 0, math.Inf(1), nil
	}
	return sumWT / sumW, 1 / sumW, nil
}

// GroupObservations turns one batch of observations into a single
// synchronized group. The event time is estimated with EstimateEventTime,
// then every observation is weighted by the density of its deviation from
// that time under its own effective variance, and the weights are
// normalized to sum to 1. Members keep the input order.
//
// obs and mdl are parallel slices. A length mismatch returns a
// *ContractError and no group. An empty batch returns an empty group.
func GroupObservations(obs []models.Observation, mdl []timesync.OffsetModel) (models.SynchronizedGroup, error) {
	tHat, err := EstimateEventTime(obs, mdl)
	if err != nil {
		return models.SynchronizedGroup{}, err
	}
	if len(obs) == 0 {
		return models.SynchronizedGroup{TGlobal: 0, Members: []models.GroupMember{}}, nil
	}

	weights := make([]float64, len(obs))
	for i, o := range obs {
		mapped := mdl[i].PredictGlobalTime(o.TLocal)
		weights[i] = weight(Density(mapped-tHat, 0, effectiveVariance(mdl[i], o.Sigma)))
	}
	return models.SynchronizedGroup{
		TGlobal: tHat,
		Members: normalize(obs, weights),
	}, nil
}

// GroupTimeSlice groups the observations that fall near a fixed global time
// hypothesis. Observations outside their sensor's candidate buckets are
// dropped, observations from sensors with no model are skipped, and the
// survivors are weighted against tGlobal itself rather than a re-estimate.
func GroupTimeSlice(tGlobal float64, obs []models.Observation, modelsBySensor map[string]timesync.OffsetModel, bucketSizeMS int64) models.SynchronizedGroup {
	return NewCandidateIndex(obs, bucketSizeMS).GroupTimeSlice(tGlobal, modelsBySensor)
}

// GroupTimeSlice is GroupTimeSlice over an already built index, for callers
// that test several hypotheses against the same batch.
func (idx *CandidateIndex) GroupTimeSlice(tGlobal float64, modelsBySensor map[string]timesync.OffsetModel) models.SynchronizedGroup {
	candidates := idx.Candidates(tGlobal, modelsBySensor)
	weights := make([]float64, len(candidates))
	for i, o := range candidates {
		m := modelsBySensor[o.SensorID]
		weights[i] = weight(Density(m.PredictGlobalTime(o.TLocal), tGlobal, effectiveVariance(m, o.Sigma)))
	}
	return models.SynchronizedGroup{
		TGlobal: tGlobal,
		Members: normalize(candidates, weights),
	}
}

// AssociationProbability is the likelihood that observations a and b
// record the same event: the density of the difference of their mapped
// times under the sum of their effective variances.
func AssociationProbability(a models.Observation, ma timesync.OffsetModel, b models.Observation, mb timesync.OffsetModel) float64 {
	dt := ma.PredictGlobalTime(a.TLocal) - mb.PredictGlobalTime(b.TLocal)
	return weight(Density(dt, 0, effectiveVariance(ma, a.Sigma)+effectiveVariance(mb, b.Sigma)))
}

func normalize(obs []models.Observation, weights []float64) []models.GroupMember {
	var total float64
	for _, w := range weights {
		total += w
	}
	members := make([]models.GroupMember, len(obs))
	for i, o := range obs {
		p := 0.0
		if total > 0 && !math.IsInf(total, 0) {
			p = weights[i] / total
		}
		members[i] = models.GroupMember{SensorID: o.SensorID, Probability: p}
	}
	return members
}
