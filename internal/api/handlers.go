// Sensorium - Probabilistic Sensor Time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sensorium

package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/tomtom215/sensorium/internal/logging"
	"github.com/tomtom215/sensorium/internal/metrics"
	"github.com/tomtom215/sensorium/internal/models"
	"github.com/tomtom215/sensorium/internal/store"
)

// DefaultMaxBodyBytes bounds an ingest request body.
const DefaultMaxBodyBytes = 1 << 20

// Stepper runs one sync step. *engine.Engine implements it.
type Stepper interface {
	Run(ctx context.Context) (models.StepResult, error)
}

// ElectionReader reports the election view of a node.
type ElectionReader interface {
	Status(ctx context.Context, nodeID string) (models.ElectionStatus, error)
}

// Store is the part of a backend the HTTP surface touches.
type Store interface {
	store.ObservationStore
	store.GroupReader
	Name() string
}

type HandlerConfig struct {
	NodeID string
	// ObservationTTL applies when a request does not set ttl_seconds.
	ObservationTTL time.Duration
	MaxBodyBytes   int64
}

// Handler serves the HTTP API of one coordinator node.
type Handler struct {
	store    Store
	stepper  Stepper
	election ElectionReader
	cfg      HandlerConfig
}

func NewHandler(s Store, stepper Stepper, election ElectionReader, cfg HandlerConfig) *Handler {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	return &Handler{store: s, stepper: stepper, election: election, cfg: cfg}
}

// GroupResponse is the body of GET /api/v1/groups/{id}.
type GroupResponse struct {
	GroupID string                   `json:"group_id"`
	Group   models.SynchronizedGroup `json:"group"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status    string `json:"status"`
	NodeID    string `json:"node_id"`
	Store     string `json:"store"`
	IsMaster  bool   `json:"is_master"`
	LiveNodes int    `json:"live_nodes"`
}

func (h *Handler) respondOK(w http.ResponseWriter, status int, data interface{}, start time.Time) {
	respondJSON(w, status, &models.APIResponse{
		Status: "success",
		Data:   data,
		Metadata: models.Metadata{
			Timestamp:   time.Now(),
			NodeID:      h.cfg.NodeID,
			QueryTimeMS: time.Since(start).Milliseconds(),
		},
	})
}

// IngestObservations stores a batch of raw observations.
//
// POST /api/v1/observations
func (h *Handler) IngestObservations(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxBodyBytes)

	var req models.IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, CodeValidation,
				fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit), nil)
			return
		}
		respondError(w, http.StatusBadRequest, CodeValidation, "request body is not valid JSON", nil)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondAPIError(w, http.StatusBadRequest, apiErr)
		return
	}

	ttl := h.cfg.ObservationTTL
	if req.TTLSeconds > 0 {
		ttl = time.Duration(req.TTLSeconds) * time.Second
	}

	for i, obs := range req.Observations {
		if err := h.store.PutObservation(r.Context(), obs, ttl); err != nil {
			respondError(w, http.StatusServiceUnavailable, CodeStore,
				fmt.Sprintf("stored %d of %d observations", i, len(req.Observations)), err)
			return
		}
		metrics.ObservationsIngested.WithLabelValues(sensorTypeLabel(obs.SensorType)).Inc()
	}

	logging.Ctx(r.Context()).Debug().
		Int("observations", len(req.Observations)).
		Dur("ttl", ttl).
		Msg("Ingested observations")

	h.respondOK(w, http.StatusAccepted, models.IngestResponse{
		Accepted: len(req.Observations),
		TTL:      ttl,
	}, start)
}

func sensorTypeLabel(t string) string {
	if t == "" {
		return "unknown"
	}
	return t
}

// Step runs one sync step on this node. A follower answers with its groups
// and an empty published list.
//
// POST /api/v1/sync/step
func (h *Handler) Step(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	res, err := h.stepper.Run(r.Context())
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, CodeStore, "sync step failed", err)
		return
	}
	h.respondOK(w, http.StatusOK, res, start)
}

// GetGroup reads one published group.
//
// GET /api/v1/groups/{id}
func (h *Handler) GetGroup(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	id := chi.URLParam(r, "id")
	if !validGroupID(id) {
		respondError(w, http.StatusBadRequest, CodeValidation, "group id must have the form g:<nanoseconds>", nil)
		return
	}

	group, err := h.store.SynchronizedGroup(r.Context(), id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		respondError(w, http.StatusNotFound, CodeNotFound, "group "+id+" not found", nil)
		return
	case err != nil:
		respondError(w, http.StatusServiceUnavailable, CodeStore, "failed to read group", err)
		return
	}

	h.respondOK(w, http.StatusOK, GroupResponse{GroupID: id, Group: group}, start)
}

func validGroupID(id string) bool {
	rest, ok := strings.CutPrefix(id, "g:")
	if !ok || rest == "" {
		return false
	}
	_, err := strconv.ParseInt(rest, 10, 64)
	return err == nil
}

// Election reports live nodes and the current master.
//
// GET /api/v1/election
func (h *Handler) Election(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status, err := h.election.Status(r.Context(), h.cfg.NodeID)
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, CodeStore, "failed to read election state", err)
		return
	}
	h.respondOK(w, http.StatusOK, status, start)
}

// Health answers 200 while the store can list heartbeats and 503 otherwise.
//
// GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	resp := HealthResponse{Status: "healthy", NodeID: h.cfg.NodeID, Store: h.store.Name()}

	status, err := h.election.Status(r.Context(), h.cfg.NodeID)
	if err != nil {
		logging.Ctx(r.Context()).Warn().Err(err).Msg("Health check could not reach store")
		resp.Status = "unhealthy"
		h.respondOK(w, http.StatusServiceUnavailable, resp, start)
		return
	}
	resp.IsMaster = status.IsMaster
	resp.LiveNodes = len(status.LiveNodes)
	h.respondOK(w, http.StatusOK, resp, start)
}
