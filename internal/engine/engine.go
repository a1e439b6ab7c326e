// Sensorium - Probabilistic Sensor Time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sensorium

// Package engine runs one synchronization step on one node: heartbeat,
// load observations, load offset models, group, and publish if master.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/sensorium/internal/election"
	"github.com/tomtom215/sensorium/internal/fusion"
	"github.com/tomtom215/sensorium/internal/logging"
	"github.com/tomtom215/sensorium/internal/metrics"
	"github.com/tomtom215/sensorium/internal/models"
	"github.com/tomtom215/sensorium/internal/publish"
	"github.com/tomtom215/sensorium/internal/store"
	"github.com/tomtom215/sensorium/internal/timesync"
)

var tracer = otel.Tracer("sensorium.engine")

// Store is what a step needs from the backend.
type Store interface {
	store.ObservationStore
	store.OffsetStore
	store.GroupWriter
	store.HeartbeatStore
}

// Engine is safe for concurrent use, though steps on one node are normally
// run one at a time by the step loop.
type Engine struct {
	cfg       Config
	store     Store
	elector   *election.Elector
	publisher *publish.GuardedPublisher
	now       func() time.Time
}

// Option configures an Engine.
type Option func(*options)

type options struct {
	sinks    []publish.Sink
	onChange election.ChangeFunc
	now      func() time.Time
}

// WithSink adds a post-publish sink such as the event bus or the
// time-series export.
func WithSink(s publish.Sink) Option {
	return func(o *options) { o.sinks = append(o.sinks, s) }
}

// WithMasterChange registers a callback for observed master changes.
func WithMasterChange(fn election.ChangeFunc) Option {
	return func(o *options) { o.onChange = fn }
}

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// New validates cfg and builds an Engine over s.
func New(s Store, cfg Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	var electorOpts []election.Option
	if o.onChange != nil {
		electorOpts = append(electorOpts, election.WithChangeFunc(o.onChange))
	}
	elector := election.New(s, electorOpts...)

	pubOpts := []publish.Option{publish.WithClock(o.now)}
	for _, sink := range o.sinks {
		pubOpts = append(pubOpts, publish.WithSink(sink))
	}

	return &Engine{
		cfg:       cfg,
		store:     s,
		elector:   elector,
		publisher: publish.New(s, elector, pubOpts...),
		now:       o.now,
	}, nil
}

// NodeID returns the node this engine acts for.
func (e *Engine) NodeID() string { return e.cfg.NodeID }

// Mode returns the grouping mode.
func (e *Engine) Mode() Mode { return e.cfg.Mode }

// Elector exposes the engine's elector for status queries.
func (e *Engine) Elector() *election.Elector { return e.elector }

// Step runs one pass and returns the groups it formed: none when there were
// no observations, otherwise one. Groups are returned whether or not this
// node was allowed to publish them.
func (e *Engine) Step(ctx context.Context) ([]models.SynchronizedGroup, error) {
	res, err := e.Run(ctx)
	if err != nil {
		return nil, err
	}
	return res.Groups, nil
}

// Run is Step with the full outcome.
func (e *Engine) Run(ctx context.Context) (res models.StepResult, err error) {
	if ctx.Err() != nil {
		return models.StepResult{}, ctx.Err()
	}
	ctx = logging.ContextWithNewCorrelationID(ctx)
	ctx = logging.ContextWithNodeID(ctx, e.cfg.NodeID)
	ctx, span := tracer.Start(ctx, "engine.Step", trace.WithAttributes(
		attribute.String("node.id", e.cfg.NodeID),
		attribute.String("sync.mode", string(e.cfg.Mode)),
	))
	start := time.Now()
	defer func() {
		metrics.RecordStep(string(e.cfg.Mode), time.Since(start), res.Observations, err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			logging.Ctx(ctx).Warn().Err(err).Msg("Sync step failed")
		} else {
			span.SetAttributes(
				attribute.Int("sync.observations", res.Observations),
				attribute.Int("sync.groups", len(res.Groups)),
				attribute.Bool("election.is_master", res.IsMaster),
			)
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}()

	res = models.StepResult{NodeID: e.cfg.NodeID, Groups: []models.SynchronizedGroup{}}

	if err := e.elector.Heartbeat(ctx, e.cfg.NodeID, e.cfg.HeartbeatTTL); err != nil {
		return res, err
	}

	obs, err := e.loadObservations(ctx)
	if err != nil {
		return res, err
	}
	res.Observations = len(obs)
	if len(obs) == 0 {
		logging.Ctx(ctx).Debug().Msg("No observations retained")
		return res, nil
	}

	cals, err := e.loadModels(ctx, obs)
	if err != nil {
		return res, err
	}

	group, members, fusedVar, err := e.group(ctx, obs, cals)
	if err != nil {
		return res, err
	}
	if group.Empty() {
		return res, nil
	}
	res.Groups = append(res.Groups, group)
	metrics.RecordGroupFormed(fusedVar)

	live, err := e.elector.LiveNodes(ctx)
	if err != nil {
		return res, err
	}
	res.IsMaster = election.IsMaster(e.cfg.NodeID, live)
	metrics.SetElection(res.IsMaster, len(live))
	if !res.IsMaster {
		logging.Ctx(ctx).Debug().
			Float64("t_global", group.TGlobal).
			Msg("Not master, group kept local")
		return res, nil
	}

	groupID, err := e.publisher.PublishIfMaster(ctx, e.cfg.NodeID, group, live)
	switch {
	case errors.Is(err, publish.ErrNotMaster),
		errors.Is(err, publish.ErrNonFiniteTime):
		logging.Ctx(ctx).Debug().Err(err).Msg("Group not published")
		return res, nil
	case err != nil:
		return res, err
	}
	res.Published = append(res.Published, groupID)
	logging.Ctx(ctx).Info().
		Str("group_id", groupID).
		Float64("t_global", group.TGlobal).
		Int("members", len(group.Members)).
		Msg("Published synchronized group")

	if e.cfg.Calibrate {
		e.calibrate(ctx, group, members, fusedVar, cals)
	}
	return res, nil
}

func (e *Engine) loadObservations(ctx context.Context) ([]models.Observation, error) {
	ctx, span := tracer.Start(ctx, "engine.loadObservations")
	defer span.End()

	obs, err := e.store.RawObservations(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("load observations: %w", err)
	}
	span.SetAttributes(attribute.Int("sync.observations", len(obs)))
	return obs, nil
}

// loadModels reads each distinct sensor's calibration once. A sensor with
// no stored state is Uncalibrated; a failing read fails the step.
func (e *Engine) loadModels(ctx context.Context, obs []models.Observation) (map[string]timesync.Calibration, error) {
	ctx, span := tracer.Start(ctx, "engine.loadModels")
	defer span.End()

	var sensors []string
	seen := make(map[string]struct{}, len(obs))
	for _, o := range obs {
		if _, ok := seen[o.SensorID]; !ok {
			seen[o.SensorID] = struct{}{}
			sensors = append(sensors, o.SensorID)
		}
	}
	span.SetAttributes(attribute.Int("sync.sensors", len(sensors)))

	var mu sync.Mutex
	cals := make(map[string]timesync.Calibration, len(sensors))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.ModelLoaders)
	for _, id := range sensors {
		g.Go(func() error {
			c, err := e.store.OffsetModel(gctx, id)
			if err != nil {
				return fmt.Errorf("load offset model %s: %w", id, err)
			}
			mu.Lock()
			cals[id] = c
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return nil, err
	}
	return cals, nil
}

// group returns the group, the observations its members correspond to in
// order, and the fused variance of the batch estimate.
func (e *Engine) group(ctx context.Context, obs []models.Observation, cals map[string]timesync.Calibration) (models.SynchronizedGroup, []models.Observation, float64, error) {
	_, span := tracer.Start(ctx, "engine.group")
	defer span.End()

	mdl := make([]timesync.OffsetModel, len(obs))
	for i, o := range obs {
		mdl[i] = cals[o.SensorID].Resolve()
	}
	fusedVar, err := fusion.FusedVariance(obs, mdl)
	if err != nil {
		return models.SynchronizedGroup{}, nil, 0, err
	}
	group, err := fusion.GroupObservations(obs, mdl)
	if err != nil {
		return models.SynchronizedGroup{}, nil, 0, err
	}
	if e.cfg.Mode == ModeBatch {
		return group, obs, fusedVar, nil
	}

	bySensor := make(map[string]timesync.OffsetModel, len(cals))
	for id, c := range cals {
		bySensor[id] = c.Resolve()
	}
	idx := fusion.NewCandidateIndex(obs, e.cfg.BucketSizeMS)
	members := idx.Candidates(group.TGlobal, bySensor)
	slice := idx.GroupTimeSlice(group.TGlobal, bySensor)
	span.SetAttributes(attribute.Int("sync.candidates", len(members)))
	return slice, members, fusedVar, nil
}

// calibrate feeds the published time back into every member's model and
// persists the result. Failures are logged; the group is already durable.
func (e *Engine) calibrate(ctx context.Context, group models.SynchronizedGroup, members []models.Observation, fusedVar float64, cals map[string]timesync.Calibration) {
	ctx, span := tracer.Start(ctx, "engine.calibrate")
	defer span.End()

	now := e.now().UTC()
	updated := make(map[string]timesync.OffsetModel)
	var order []string

	for i, o := range members {
		c := cals[o.SensorID]
		if m, ok := updated[o.SensorID]; ok {
			c = timesync.Calibrated(m, now)
		}
		m, applied := timesync.Feedback(c, timesync.Measurement{
			TLocal:      o.TLocal,
			Sigma:       o.Sigma,
			TGlobal:     group.TGlobal,
			FusedVar:    fusedVar,
			Probability: group.Members[i].Probability,
		}, e.cfg.ProcessNoise, now)
		if !applied {
			metrics.CalibrationUpdates.WithLabelValues("skipped").Inc()
			continue
		}
		if _, ok := updated[o.SensorID]; !ok {
			order = append(order, o.SensorID)
		}
		updated[o.SensorID] = m
	}

	for _, id := range order {
		if err := e.store.PutOffsetModel(ctx, id, updated[id].State(now)); err != nil {
			metrics.CalibrationUpdates.WithLabelValues("error").Inc()
			span.RecordError(err)
			logging.Ctx(ctx).Warn().Err(err).Str("sensor_id", id).Msg("Failed to persist offset model")
			continue
		}
		metrics.CalibrationUpdates.WithLabelValues("applied").Inc()
	}
}
