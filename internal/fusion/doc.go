// Sensorium - Probabilistic Sensor Time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sensorium

/*
Package fusion groups differently-clocked observations into globally
time-anchored events.

There is no association threshold anywhere in this package. Every decision
is a continuous weight:

  - Density is the Gaussian PDF used for all likelihoods
  - EstimateEventTime fuses a batch by inverse effective variance
  - GroupObservations weights each observation by the density of its
    deviation from the fused time and normalizes the weights to 1
  - GroupTimeSlice does the same against a fixed hypothesis, after pruning
    with a CandidateIndex

The CandidateIndex maps observations into coarse buckets of local time. For
a global time hypothesis each sensor's model is inverted to find the bucket
it would have used, and only that bucket and its two neighbours are
examined. The ±1 neighbourhood favours recall; false candidates are
suppressed by the density weighting, never by bucket membership alone.

Everything here is pure and synchronous. Degenerate numbers (zero or
negative variances, empty batches) produce zeros rather than NaN or panics.
Mismatched parallel slices are a caller bug and return *ContractError.
*/
package fusion
