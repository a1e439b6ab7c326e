// Sensorium - Probabilistic Sensor Time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sensorium

package services

import (
	"context"
	"time"

	"github.com/tomtom215/sensorium/internal/logging"
)

// PeriodicService runs a maintenance task on a fixed interval, such as
// badger value log GC or the in-memory expiry sweep. Task errors are
// logged, not returned.
type PeriodicService struct {
	name     string
	interval time.Duration
	task     func(ctx context.Context) error
}

func NewPeriodicService(name string, interval time.Duration, task func(ctx context.Context) error) *PeriodicService {
	if interval <= 0 {
		interval = time.Minute
	}
	return &PeriodicService{name: name, interval: interval, task: task}
}

func (p *PeriodicService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			start := time.Now()
			if err := p.task(ctx); err != nil {
				logging.Warn().Err(err).Str("task", p.name).Msg("Maintenance task failed")
				continue
			}
			logging.Debug().Str("task", p.name).Dur("took", time.Since(start)).Msg("Maintenance task done")
		}
	}
}

func (p *PeriodicService) String() string {
	return p.name
}
