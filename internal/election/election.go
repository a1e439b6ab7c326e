// Sensorium - Probabilistic Sensor Time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sensorium

// Package election picks the master coordinator from live heartbeats.
//
// The rule is bully-style: among nodes with an unexpired heartbeat the one
// with the greatest node ID, compared as byte strings, is master. There is
// no voting and no fencing token. Two nodes with different snapshots can
// both believe they are master for a moment; published groups are keyed by
// their estimated time, so duplicate writes overwrite the same key.
package election

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/tomtom215/sensorium/internal/logging"
	"github.com/tomtom215/sensorium/internal/metrics"
	"github.com/tomtom215/sensorium/internal/models"
	"github.com/tomtom215/sensorium/internal/store"
)

// DefaultHeartbeatTTL is how long a heartbeat keeps a node live.
const DefaultHeartbeatTTL = 5 * time.Second

// CurrentMaster returns the greatest node ID in live. ok is false when
// live is empty.
func CurrentMaster(live []string) (master string, ok bool) {
	for _, id := range live {
		if !ok || id > master {
			master, ok = id, true
		}
	}
	return master, ok
}

// IsMaster reports whether nodeID is the master of live.
func IsMaster(nodeID string, live []string) bool {
	m, ok := CurrentMaster(live)
	return ok && m == nodeID
}

// ChangeFunc is told when the observed master differs from the previous
// observation. Either value may be "" when no node was live.
type ChangeFunc func(ctx context.Context, previous, current string)

// Elector evaluates the election rule against a heartbeat store. Every
// query takes a fresh snapshot; nothing is cached between calls.
type Elector struct {
	hb       store.HeartbeatStore
	onChange ChangeFunc

	mu         sync.Mutex
	lastMaster string
	observed   bool
}

// Option configures an Elector.
type Option func(*Elector)

// WithChangeFunc registers fn for master changes.
func WithChangeFunc(fn ChangeFunc) Option {
	return func(e *Elector) { e.onChange = fn }
}

// New returns an Elector reading hb.
func New(hb store.HeartbeatStore, opts ...Option) *Elector {
	e := &Elector{hb: hb}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Heartbeat marks nodeID live for ttl.
func (e *Elector) Heartbeat(ctx context.Context, nodeID string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultHeartbeatTTL
	}
	if err := e.hb.PutHeartbeat(ctx, nodeID, ttl); err != nil {
		metrics.HeartbeatErrors.Inc()
		return fmt.Errorf("heartbeat %s: %w", nodeID, err)
	}
	return nil
}

// Resign removes nodeID's heartbeat so another node can take over
// without waiting for the TTL.
func (e *Elector) Resign(ctx context.Context, nodeID string) error {
	if err := e.hb.DeleteHeartbeat(ctx, nodeID); err != nil {
		return fmt.Errorf("resign %s: %w", nodeID, err)
	}
	return nil
}

// LiveNodes returns the IDs of nodes with an unexpired heartbeat.
func (e *Elector) LiveNodes(ctx context.Context) ([]string, error) {
	live, err := e.hb.LiveHeartbeatNodeIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list heartbeats: %w", err)
	}
	e.observe(ctx, live)
	return live, nil
}

// Master returns the current master, or ok=false when no node is live.
func (e *Elector) Master(ctx context.Context) (master string, ok bool, err error) {
	live, err := e.LiveNodes(ctx)
	if err != nil {
		return "", false, err
	}
	master, ok = CurrentMaster(live)
	return master, ok, nil
}

// IsMaster reports whether nodeID is master right now.
func (e *Elector) IsMaster(ctx context.Context, nodeID string) (bool, error) {
	live, err := e.LiveNodes(ctx)
	if err != nil {
		return false, err
	}
	return IsMaster(nodeID, live), nil
}

// Status reports the election as seen by nodeID.
func (e *Elector) Status(ctx context.Context, nodeID string) (models.ElectionStatus, error) {
	live, err := e.LiveNodes(ctx)
	if err != nil {
		return models.ElectionStatus{}, err
	}
	live = slices.Clone(live)
	slices.Sort(live)
	master, _ := CurrentMaster(live)
	isMaster := master != "" && master == nodeID
	metrics.SetElection(isMaster, len(live))
	return models.ElectionStatus{
		NodeID:    nodeID,
		LiveNodes: live,
		Master:    master,
		IsMaster:  isMaster,
	}, nil
}

func (e *Elector) observe(ctx context.Context, live []string) {
	master, _ := CurrentMaster(live)

	e.mu.Lock()
	changed := e.observed && master != e.lastMaster
	previous := e.lastMaster
	e.lastMaster = master
	e.observed = true
	e.mu.Unlock()

	if !changed {
		return
	}
	metrics.MasterChanges.Inc()
	logging.Ctx(ctx).Info().
		Str("previous_master", previous).
		Str("master", master).
		Int("live_nodes", len(live)).
		Msg("Master changed")
	if e.onChange != nil {
		e.onChange(ctx, previous, master)
	}
}
