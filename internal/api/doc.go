// Sensorium - Probabilistic Sensor Time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sensorium

/*
Package api serves the coordinator's HTTP interface on a chi router.

Routes:

	GET  /health                  store reachability and election view
	GET  /metrics                 Prometheus exposition
	POST /api/v1/observations     ingest a batch of raw observations
	POST /api/v1/sync/step        run one sync step on this node
	GET  /api/v1/groups/{id}      read a published group, id is g:<ns>
	GET  /api/v1/election         live nodes and current master

Every response uses the models.APIResponse envelope. Failures carry one of
the Code* constants: VALIDATION_ERROR for bad input, NOT_FOUND for unknown
groups, STORE_ERROR when the backend is unreachable and RATE_LIMIT_EXCEEDED
from the per-IP limiter on /api/v1.

The middleware stack is chi's RequestID (bridged into the logging context),
RealIP, Recoverer, go-chi/cors and the Prometheus middleware from
internal/middleware.
*/
package api
