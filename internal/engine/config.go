// Sensorium - Probabilistic Sensor Time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sensorium

package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/sensorium/internal/election"
	"github.com/tomtom215/sensorium/internal/fusion"
)

// Mode selects how a step forms its group.
type Mode string

const (
	// ModeBatch fuses every retained observation into one group.
	ModeBatch Mode = "batch"
	// ModeSlice estimates the event time from the batch, then regroups
	// only the observations whose buckets fall near that time.
	ModeSlice Mode = "slice"
)

// DefaultProcessNoise is the offset variance added per second of silence
// when calibration feedback predicts a model forward.
const DefaultProcessNoise = 1e-6

// Config holds per-node step settings.
type Config struct {
	NodeID       string
	HeartbeatTTL time.Duration
	BucketSizeMS int64
	Mode         Mode
	// Calibrate feeds published event times back into offset models.
	Calibrate    bool
	ProcessNoise float64
	// ModelLoaders bounds concurrent offset model reads per step.
	ModelLoaders int
}

// DefaultConfig returns defaults for nodeID.
func DefaultConfig(nodeID string) Config {
	return Config{
		NodeID:       nodeID,
		HeartbeatTTL: election.DefaultHeartbeatTTL,
		BucketSizeMS: fusion.DefaultBucketSizeMS,
		Mode:         ModeBatch,
		ProcessNoise: DefaultProcessNoise,
		ModelLoaders: 8,
	}
}

// Validate checks the config and fills zero values with defaults.
func (c *Config) Validate() error {
	if c.NodeID == "" {
		return errors.New("engine: node id is required")
	}
	d := DefaultConfig(c.NodeID)
	if c.HeartbeatTTL <= 0 {
		c.HeartbeatTTL = d.HeartbeatTTL
	}
	if c.BucketSizeMS <= 0 {
		c.BucketSizeMS = d.BucketSizeMS
	}
	if c.Mode == "" {
		c.Mode = d.Mode
	}
	if c.Mode != ModeBatch && c.Mode != ModeSlice {
		return fmt.Errorf("engine: unknown mode %q", c.Mode)
	}
	switch {
	case c.ProcessNoise < 0:
		return fmt.Errorf("engine: process noise must be >= 0, got %g", c.ProcessNoise)
	case c.ProcessNoise == 0:
		c.ProcessNoise = d.ProcessNoise
	}
	if c.ModelLoaders <= 0 {
		c.ModelLoaders = d.ModelLoaders
	}
	return nil
}
