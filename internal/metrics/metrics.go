// Sensorium - Probabilistic Sensor Time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sensorium

package metrics

import (
	"math"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "sensorium"

var (
	// Sync step
	StepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "step_duration_seconds",
			Help:      "Duration of one sync step",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"mode"},
	)

	StepsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "steps_total",
			Help:      "Sync steps by outcome",
		},
		[]string{"mode", "result"}, // result: "ok", "error"
	)

	StepObservations = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "step_observations",
			Help:      "Observations loaded per sync step",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		},
	)

	GroupsFormed = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "groups_formed_total",
			Help:      "Non-empty synchronized groups formed",
		},
	)

	GroupFusedStdDev = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "group_fused_stddev_seconds",
			Help:      "Standard deviation of the fused event time",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		},
	)

	// Publishing
	GroupsPublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "groups_published_total",
			Help:      "Synchronized groups written to the store",
		},
	)

	PublishRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_rejected_total",
			Help:      "Publish attempts refused",
		},
		[]string{"reason"}, // "not_master", "empty", "non_finite", "store_error"
	)

	// Election
	IsMaster = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "is_master",
			Help:      "1 when this node currently believes it is master",
		},
	)

	LiveNodes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "live_nodes",
			Help:      "Nodes with an unexpired heartbeat",
		},
	)

	MasterChanges = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "master_changes_total",
			Help:      "Observed changes of the elected master",
		},
	)

	HeartbeatErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "heartbeat_errors_total",
			Help:      "Failed heartbeat writes",
		},
	)

	// Calibration
	CalibrationUpdates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calibration_updates_total",
			Help:      "Offset model feedback updates",
		},
		[]string{"result"}, // "applied", "skipped", "error"
	)

	// Ingest
	ObservationsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "observations_ingested_total",
			Help:      "Observations accepted for storage",
		},
		[]string{"sensor_type"},
	)

	// Store
	StoreOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "store_operation_duration_seconds",
			Help:      "Store call latency",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 1},
		},
		[]string{"backend", "op"},
	)

	StoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_errors_total",
			Help:      "Failed store calls",
		},
		[]string{"backend", "op"},
	)

	// Circuit breakers
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state_transitions_total",
			Help:      "Circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Events and export
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Domain events handed to the message bus",
		},
		[]string{"topic", "result"},
	)

	ExportWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "export_writes_total",
			Help:      "Points written to the time-series export",
		},
		[]string{"result"},
	)

	// HTTP API
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_requests_total",
			Help:      "API requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "api_request_duration_seconds",
			Help:      "API request latency",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"method", "endpoint"},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_rate_limit_hits_total",
			Help:      "Requests refused by the rate limiter",
		},
		[]string{"endpoint"},
	)
)

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// RecordStep records one sync step.
func RecordStep(mode string, duration time.Duration, observations int, err error) {
	StepDuration.WithLabelValues(mode).Observe(duration.Seconds())
	StepsTotal.WithLabelValues(mode, result(err)).Inc()
	if err == nil {
		StepObservations.Observe(float64(observations))
	}
}

// RecordGroupFormed records a non-empty group and its fused variance.
func RecordGroupFormed(fusedVariance float64) {
	GroupsFormed.Inc()
	if fusedVariance >= 0 && !math.IsInf(fusedVariance, 1) {
		GroupFusedStdDev.Observe(math.Sqrt(fusedVariance))
	}
}

// RecordStoreOp records latency and failure of one store call.
func RecordStoreOp(backend, op string, duration time.Duration, err error) {
	StoreOpDuration.WithLabelValues(backend, op).Observe(duration.Seconds())
	if err != nil {
		StoreErrors.WithLabelValues(backend, op).Inc()
	}
}

// SetElection publishes the latest election view.
func SetElection(isMaster bool, liveNodes int) {
	if isMaster {
		IsMaster.Set(1)
	} else {
		IsMaster.Set(0)
	}
	LiveNodes.Set(float64(liveNodes))
}

// RecordEvent records a bus publish.
func RecordEvent(topic string, err error) {
	EventsPublished.WithLabelValues(topic, result(err)).Inc()
}

// RecordExport records a time-series write.
func RecordExport(err error) {
	ExportWrites.WithLabelValues(result(err)).Inc()
}

// RecordAPIRequest records one HTTP request.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}
