// Sensorium - Probabilistic Sensor Time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sensorium

/*
Package timesync estimates how each sensor's local clock maps onto global time.

Every sensor owns an OffsetModel, a scalar Kalman filter over the affine
relation

	t_global ≈ offset_mean + drift · t_local

with offset_var describing how uncertain offset_mean is. Two transitions
mutate the model, in any order and any number of times:

  - Predict(elapsed, q) widens the variance by q·|elapsed| (capped at 10 s²)
  - Update(t_local, t_global, r) applies a Kalman correction (variance
    floored at 1e-6)

Repeated consistent updates converge offset_mean to the true offset and shrink
offset_var monotonically.

Whether a sensor has a model at all is expressed by Calibration, which is
either Calibrated(model) or Uncalibrated. Resolve substitutes DefaultModel
(0, 0.1, 1.0) for uncalibrated sensors at the point of use.

Feedback closes the loop: once a group has been published, each member's
observation is treated as a measurement of the fused event time and folded
back into its model.
*/
package timesync
