// Sensorium - Probabilistic Sensor Time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sensorium

package services

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/tomtom215/sensorium/internal/logging"
	"github.com/tomtom215/sensorium/internal/models"
)

// DefaultResignTimeout bounds the heartbeat delete on shutdown.
const DefaultResignTimeout = 2 * time.Second

// Stepper runs one sync step. *engine.Engine implements it.
type Stepper interface {
	Run(ctx context.Context) (models.StepResult, error)
}

// Resigner drops a node's heartbeat. *election.Elector implements it.
type Resigner interface {
	Resign(ctx context.Context, nodeID string) error
}

type StepOption func(*StepService)

// WithResigner makes the service give up mastership when it stops, so a
// follower takes over without waiting for the heartbeat to expire.
func WithResigner(r Resigner, nodeID string) StepOption {
	return func(s *StepService) {
		s.resigner = r
		s.nodeID = nodeID
	}
}

// StepService calls Run once at start and then on every tick. Step errors
// are logged and the loop keeps going; the next tick retries.
type StepService struct {
	stepper  Stepper
	interval time.Duration
	resigner Resigner
	nodeID   string
	name     string

	steps     atomic.Int64
	failures  atomic.Int64
	published atomic.Int64
}

func NewStepService(stepper Stepper, interval time.Duration, opts ...StepOption) *StepService {
	if interval <= 0 {
		interval = time.Second
	}
	s := &StepService{stepper: stepper, interval: interval, name: "sync-step"}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *StepService) Serve(ctx context.Context) error {
	logging.Info().Dur("interval", s.interval).Msg("Step loop started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.step(ctx)
	for {
		select {
		case <-ctx.Done():
			s.resign()
			logging.Info().
				Int64("steps", s.steps.Load()).
				Int64("published", s.published.Load()).
				Msg("Step loop stopped")
			return ctx.Err()
		case <-ticker.C:
			s.step(ctx)
		}
	}
}

func (s *StepService) step(ctx context.Context) {
	res, err := s.stepper.Run(ctx)
	s.steps.Add(1)
	if err != nil {
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return
		}
		n := s.failures.Add(1)
		logging.Warn().Err(err).Int64("consecutive_failures", n).Msg("Sync step failed")
		return
	}
	s.failures.Store(0)
	s.published.Add(int64(len(res.Published)))
}

func (s *StepService) resign() {
	if s.resigner == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), DefaultResignTimeout)
	defer cancel()
	if err := s.resigner.Resign(ctx, s.nodeID); err != nil {
		logging.Warn().Err(err).Str("node_id", s.nodeID).Msg("Failed to resign on shutdown")
		return
	}
	logging.Info().Str("node_id", s.nodeID).Msg("Resigned")
}

// Steps is the number of Run calls so far.
func (s *StepService) Steps() int64 { return s.steps.Load() }

// Published is the number of groups this loop has published.
func (s *StepService) Published() int64 { return s.published.Load() }

func (s *StepService) String() string {
	return s.name
}
