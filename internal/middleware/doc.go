// Sensorium - Probabilistic Sensor Time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sensorium

/*
Package middleware holds HTTP middleware that the chi ecosystem does not
already provide.

PrometheusMetrics records sensorium_api_requests_total and
sensorium_api_request_duration_seconds for every request. It labels by chi
route pattern rather than raw path, so group ids in URLs do not create new
series:

	r := chi.NewRouter()
	r.Use(middleware.PrometheusMetrics)
	r.Get("/api/v1/groups/{id}", h.GetGroup)

Request IDs, panic recovery, CORS and rate limiting come from
go-chi/chi/v5/middleware, go-chi/cors and go-chi/httprate and are wired in
internal/api.
*/
package middleware
