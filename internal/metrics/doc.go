// Sensorium - Probabilistic Sensor Time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sensorium

/*
Package metrics defines the Prometheus metrics every Sensorium component
records. All metrics use the "sensorium" namespace and register with the
default registry through promauto; internal/api serves them at /metrics.

# Available Metrics

Sync step:
  - sensorium_step_duration_seconds{mode}
  - sensorium_steps_total{mode,result}
  - sensorium_step_observations
  - sensorium_groups_formed_total
  - sensorium_group_fused_stddev_seconds

Publishing and election:
  - sensorium_groups_published_total
  - sensorium_publish_rejected_total{reason}
  - sensorium_is_master, sensorium_live_nodes
  - sensorium_master_changes_total
  - sensorium_heartbeat_errors_total
  - sensorium_calibration_updates_total{result}

Store, breakers and sinks:
  - sensorium_store_operation_duration_seconds{backend,op}
  - sensorium_store_errors_total{backend,op}
  - sensorium_circuit_breaker_state{name}
  - sensorium_circuit_breaker_state_transitions_total{name,from_state,to_state}
  - sensorium_events_published_total{topic,result}
  - sensorium_export_writes_total{result}

HTTP:
  - sensorium_observations_ingested_total{sensor_type}
  - sensorium_api_requests_total{method,endpoint,status}
  - sensorium_api_request_duration_seconds{method,endpoint}
  - sensorium_api_rate_limit_hits_total{endpoint}

The endpoint label is the chi route pattern, never the raw path.

# Example PromQL

Master flapping:

	increase(sensorium_master_changes_total[10m]) > 2

Fused timing quality:

	histogram_quantile(0.95, rate(sensorium_group_fused_stddev_seconds_bucket[5m]))
*/
package metrics
