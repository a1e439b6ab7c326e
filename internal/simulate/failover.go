// Sensorium - Probabilistic Sensor Time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sensorium

package simulate

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/sensorium/internal/election"
	"github.com/tomtom215/sensorium/internal/engine"
	"github.com/tomtom215/sensorium/internal/models"
	"github.com/tomtom215/sensorium/internal/store/memstore"
)

// FailoverConfig describes a master crash scenario.
//
// ObservationTTL should stay below Interval so each step groups only the
// event observed at that step.
type FailoverConfig struct {
	// Nodes run concurrently every step. The greatest ID starts as master.
	Nodes []string
	Steps int
	// FailStep is the first step at which the original master is down.
	FailStep int
	Seed     uint64
	Sensors  []SensorSpec
	// BaseTime is the true time of the first event; events are Interval
	// apart and the simulated clock advances by Interval per step.
	BaseTime       float64
	Interval       time.Duration
	HeartbeatTTL   time.Duration
	ObservationTTL time.Duration
	Mode           engine.Mode
}

// DefaultFailoverConfig mirrors the reference experiment: 15 steps 200ms
// apart with the master lost at step 7.
func DefaultFailoverConfig() FailoverConfig {
	return FailoverConfig{
		Nodes:          []string{"node-a", "node-b"},
		Steps:          15,
		FailStep:       7,
		Seed:           2024,
		Sensors:        DefaultSensors(),
		BaseTime:       10.0,
		Interval:       200 * time.Millisecond,
		HeartbeatTTL:   election.DefaultHeartbeatTTL,
		ObservationTTL: 100 * time.Millisecond,
		Mode:           engine.ModeBatch,
	}
}

// FailoverStep is what the cluster produced at one step. Master is the
// node that published, or "" if none did, in which case ErrorMS is nil.
type FailoverStep struct {
	Step      int      `json:"step"`
	Elapsed   float64  `json:"elapsed_s"`
	TrueTime  float64  `json:"true_time"`
	Master    string   `json:"master"`
	Published bool     `json:"published"`
	ErrorMS   *float64 `json:"alignment_error_ms,omitempty"`
}

// FailoverReport is the full run.
type FailoverReport struct {
	FailedNode string         `json:"failed_node"`
	Steps      []FailoverStep `json:"steps"`
}

type simClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *simClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *simClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Failover runs every node's step concurrently on a shared in-memory store.
// At FailStep the master stops stepping and its heartbeat is deleted, as if
// the process died and its key was reaped; the next greatest node takes
// over at once.
func Failover(ctx context.Context, cfg FailoverConfig) (FailoverReport, error) {
	if len(cfg.Nodes) < 2 {
		return FailoverReport{}, errors.New("failover: need at least two nodes")
	}
	if cfg.Steps <= 0 || cfg.FailStep < 0 {
		return FailoverReport{}, fmt.Errorf("failover: invalid steps %d / fail step %d", cfg.Steps, cfg.FailStep)
	}

	clock := &simClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	s := memstore.New(memstore.WithClock(clock.Now))
	defer s.Close()

	engines := make(map[string]*engine.Engine, len(cfg.Nodes))
	for _, id := range cfg.Nodes {
		ec := engine.DefaultConfig(id)
		ec.HeartbeatTTL = cfg.HeartbeatTTL
		ec.Mode = cfg.Mode
		e, err := engine.New(s, ec, engine.WithClock(clock.Now))
		if err != nil {
			return FailoverReport{}, err
		}
		engines[id] = e
	}

	failed, _ := election.CurrentMaster(cfg.Nodes)
	report := FailoverReport{FailedNode: failed}
	sim := New(cfg.Seed, cfg.Sensors...)

	for step := 0; step < cfg.Steps; step++ {
		trueTime := cfg.BaseTime + float64(step)*cfg.Interval.Seconds()
		if _, err := sim.Seed(ctx, s, trueTime, cfg.ObservationTTL); err != nil {
			return report, err
		}

		up := cfg.Nodes
		if step >= cfg.FailStep {
			up = slices.DeleteFunc(slices.Clone(cfg.Nodes), func(id string) bool { return id == failed })
			if err := s.DeleteHeartbeat(ctx, failed); err != nil {
				return report, err
			}
		}

		// Heartbeat everyone first so all nodes step on the same liveness view.
		for _, id := range up {
			if err := engines[id].Elector().Heartbeat(ctx, id, cfg.HeartbeatTTL); err != nil {
				return report, err
			}
		}

		results := make([]models.StepResult, len(up))
		g, gctx := errgroup.WithContext(ctx)
		for i, id := range up {
			g.Go(func() error {
				res, err := engines[id].Run(gctx)
				if err != nil {
					return fmt.Errorf("%s step %d: %w", id, step, err)
				}
				results[i] = res
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return report, err
		}

		row := FailoverStep{
			Step:     step,
			Elapsed:  float64(step) * cfg.Interval.Seconds(),
			TrueTime: trueTime,
		}
		for _, res := range results {
			if len(res.Published) == 0 {
				continue
			}
			row.Master = res.NodeID
			row.Published = true
			row.ErrorMS = alignmentError(res.Groups, trueTime)
		}
		report.Steps = append(report.Steps, row)
		clock.advance(cfg.Interval)
	}
	return report, nil
}
