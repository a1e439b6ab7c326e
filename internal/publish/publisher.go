// Sensorium - Probabilistic Sensor Time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sensorium

// Package publish is the only path by which synchronized groups reach the
// store. Every write is admitted by the election rule first.
package publish

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/tomtom215/sensorium/internal/election"
	"github.com/tomtom215/sensorium/internal/fusion"
	"github.com/tomtom215/sensorium/internal/logging"
	"github.com/tomtom215/sensorium/internal/metrics"
	"github.com/tomtom215/sensorium/internal/models"
	"github.com/tomtom215/sensorium/internal/store"
)

// LiveNodes supplies a fresh liveness snapshot. *election.Elector
// implements it.
type LiveNodes interface {
	LiveNodes(ctx context.Context) ([]string, error)
}

// Sink is notified after a group has been durably written. Sink errors are
// logged and never undo or fail the publish.
type Sink interface {
	GroupPublished(ctx context.Context, pg models.PublishedGroup) error
}

// GuardedPublisher writes groups only while the caller is master.
type GuardedPublisher struct {
	writer store.GroupWriter
	live   LiveNodes
	sinks  []Sink
	now    func() time.Time
}

// Option configures a GuardedPublisher.
type Option func(*GuardedPublisher)

// WithSink adds a post-publish sink. Sinks run in registration order.
func WithSink(s Sink) Option {
	return func(p *GuardedPublisher) {
		if s != nil {
			p.sinks = append(p.sinks, s)
		}
	}
}

// WithClock replaces the clock stamped on published groups.
func WithClock(now func() time.Time) Option {
	return func(p *GuardedPublisher) { p.now = now }
}

// New returns a publisher writing to writer and checking leadership
// against live.
func New(writer store.GroupWriter, live LiveNodes, opts ...Option) *GuardedPublisher {
	p := &GuardedPublisher{writer: writer, live: live, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish takes a fresh liveness snapshot and then behaves like
// PublishIfMaster.
func (p *GuardedPublisher) Publish(ctx context.Context, nodeID string, group models.SynchronizedGroup) (string, error) {
	live, err := p.live.LiveNodes(ctx)
	if err != nil {
		return "", fmt.Errorf("publish: %w", err)
	}
	return p.PublishIfMaster(ctx, nodeID, group, live)
}

// PublishIfMaster writes group under sync:group:<id> when nodeID is master
// of live and returns the id. A non-master gets a *NotMasterError and
// nothing is written.
//
// Empty groups return ErrEmptyGroup. A NaN or infinite TGlobal returns
// ErrNonFiniteTime: although fusion.GroupID maps such times to the "g:0"
// sentinel, the publisher never writes that key, so unrelated degenerate
// groups cannot overwrite each other.
func (p *GuardedPublisher) PublishIfMaster(ctx context.Context, nodeID string, group models.SynchronizedGroup, live []string) (string, error) {
	if !election.IsMaster(nodeID, live) {
		master, _ := election.CurrentMaster(live)
		metrics.PublishRejected.WithLabelValues("not_master").Inc()
		return "", &NotMasterError{NodeID: nodeID, Master: master}
	}
	if group.Empty() {
		metrics.PublishRejected.WithLabelValues("empty").Inc()
		return "", ErrEmptyGroup
	}
	if math.IsNaN(group.TGlobal) || math.IsInf(group.TGlobal, 0) {
		metrics.PublishRejected.WithLabelValues("non_finite").Inc()
		return "", ErrNonFiniteTime
	}

	groupID := fusion.GroupID(group.TGlobal)
	if err := p.writer.PutSynchronizedGroup(ctx, groupID, group); err != nil {
		metrics.PublishRejected.WithLabelValues("store_error").Inc()
		return "", fmt.Errorf("publish %s: %w", groupID, err)
	}
	metrics.GroupsPublished.Inc()

	pg := models.PublishedGroup{
		GroupID:     groupID,
		NodeID:      nodeID,
		PublishedAt: p.now().UTC(),
		Group:       group,
	}
	for _, s := range p.sinks {
		if err := s.GroupPublished(ctx, pg); err != nil {
			logging.Ctx(ctx).Warn().Err(err).
				Str("group_id", groupID).
				Msg("Post-publish sink failed")
		}
	}
	return groupID, nil
}
