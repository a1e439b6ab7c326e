// Sensorium - Probabilistic Sensor Time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sensorium

// Package logging provides the process-wide zerolog logger.
//
// Initialise once from main:
//
//	logging.Init(logging.Config{Level: "info", Format: "json"})
//
// Log with structured fields and always end the chain with Msg or Send:
//
//	logging.Info().Str("node_id", id).Msg("Became master")
//
// Inside a sync step or an HTTP request, use Ctx so the correlation ID,
// request ID and node ID travel with every entry:
//
//	ctx = logging.ContextWithNewCorrelationID(ctx)
//	logging.Ctx(ctx).Debug().Int("observations", n).Msg("Loaded observations")
//
// SlogHandler bridges libraries that want a *slog.Logger, such as the
// suture supervisor, onto the same output.
package logging
