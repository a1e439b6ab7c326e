// Sensorium - Probabilistic Sensor Time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sensorium

package api

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/sensorium/internal/engine"
	"github.com/tomtom215/sensorium/internal/models"
	"github.com/tomtom215/sensorium/internal/store/memstore"
)

type testEnv struct {
	store  *memstore.Store
	engine *engine.Engine
	server http.Handler
}

func newTestEnv(t *testing.T, mwCfg *MiddlewareConfig) *testEnv {
	t.Helper()
	s := memstore.New()
	t.Cleanup(func() { _ = s.Close() })

	eng, err := engine.New(s, engine.DefaultConfig("node-a"))
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	h := NewHandler(s, eng, eng.Elector(), HandlerConfig{
		NodeID:         "node-a",
		ObservationTTL: time.Minute,
	})
	if mwCfg == nil {
		mwCfg = DefaultMiddlewareConfig()
		mwCfg.RateLimitDisabled = true
	}
	return &testEnv{
		store:  s,
		engine: eng,
		server: NewRouter(h, NewMiddleware(mwCfg)).Setup(),
	}
}

func (env *testEnv) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, models.APIResponse) {
	t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	env.server.ServeHTTP(rec, req)

	var resp models.APIResponse
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode response: %v (body %q)", err, rec.Body.String())
		}
	}
	return rec, resp
}

// decodeData re-encodes the generic Data field into out.
func decodeData(t *testing.T, resp models.APIResponse, out interface{}) {
	t.Helper()
	raw, err := json.Marshal(resp.Data)
	if err != nil {
		t.Fatalf("marshal data: %v", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		t.Fatalf("unmarshal data: %v", err)
	}
}

const twoCameras = `{"observations":[
	{"sensor_id":"cam-1","sensor_type":"camera","t_local":10.000,"sigma":0.001},
	{"sensor_id":"cam-2","sensor_type":"camera","t_local":10.002,"sigma":0.001}
]}`

func TestIngestObservations(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)

	rec, resp := env.do(t, http.MethodPost, "/api/v1/observations", twoCameras)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("Expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	if resp.Status != "success" {
		t.Errorf("Expected success status, got %q", resp.Status)
	}
	if resp.Metadata.NodeID != "node-a" {
		t.Errorf("Expected node_id node-a, got %q", resp.Metadata.NodeID)
	}

	var ingest models.IngestResponse
	decodeData(t, resp, &ingest)
	if ingest.Accepted != 2 {
		t.Errorf("Expected 2 accepted, got %d", ingest.Accepted)
	}
	if ingest.TTL != time.Minute {
		t.Errorf("Expected default TTL 1m, got %v", ingest.TTL)
	}

	stored, err := env.store.RawObservations(context.Background())
	if err != nil {
		t.Fatalf("RawObservations: %v", err)
	}
	if len(stored) != 2 {
		t.Errorf("Expected 2 stored observations, got %d", len(stored))
	}
}

func TestIngestObservations_TTLOverride(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)

	body := `{"ttl_seconds":5,"observations":[{"sensor_id":"imu","t_local":1.5,"sigma":0.01}]}`
	rec, resp := env.do(t, http.MethodPost, "/api/v1/observations", body)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("Expected 202, got %d", rec.Code)
	}
	var ingest models.IngestResponse
	decodeData(t, resp, &ingest)
	if ingest.TTL != 5*time.Second {
		t.Errorf("Expected TTL 5s, got %v", ingest.TTL)
	}
}

func TestIngestObservations_Rejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		body      string
		wantInMsg string
	}{
		{"malformed json", `{"observations":`, "not valid JSON"},
		{"empty batch", `{"observations":[]}`, "observations"},
		{"missing sensor id", `{"observations":[{"t_local":1,"sigma":0.1}]}`, "sensor_id"},
		{"negative sigma", `{"observations":[{"sensor_id":"a","t_local":1,"sigma":-1}]}`, "sigma"},
		{"time out of range", `{"observations":[{"sensor_id":"a","t_local":1e12,"sigma":0.1}]}`, "t_local"},
		{"ttl too long", `{"ttl_seconds":100000,"observations":[{"sensor_id":"a","t_local":1,"sigma":0.1}]}`, "ttl_seconds"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			env := newTestEnv(t, nil)
			rec, resp := env.do(t, http.MethodPost, "/api/v1/observations", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("Expected 400, got %d: %s", rec.Code, rec.Body.String())
			}
			if resp.Error == nil || resp.Error.Code != CodeValidation {
				t.Fatalf("Expected %s error, got %+v", CodeValidation, resp.Error)
			}
			if !strings.Contains(resp.Error.Message, tt.wantInMsg) {
				t.Errorf("Expected message to mention %q, got %q", tt.wantInMsg, resp.Error.Message)
			}

			stored, _ := env.store.RawObservations(context.Background())
			if len(stored) != 0 {
				t.Errorf("Expected nothing stored, got %d", len(stored))
			}
		})
	}
}

func TestStepAndGetGroup(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)

	if rec, _ := env.do(t, http.MethodPost, "/api/v1/observations", twoCameras); rec.Code != http.StatusAccepted {
		t.Fatalf("ingest: %d", rec.Code)
	}

	rec, resp := env.do(t, http.MethodPost, "/api/v1/sync/step", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var step models.StepResult
	decodeData(t, resp, &step)
	if !step.IsMaster {
		t.Error("Expected the only node to be master")
	}
	if step.Observations != 2 {
		t.Errorf("Expected 2 observations, got %d", step.Observations)
	}
	if len(step.Groups) != 1 || len(step.Published) != 1 {
		t.Fatalf("Expected one group published, got groups=%d published=%v", len(step.Groups), step.Published)
	}

	rec, resp = env.do(t, http.MethodGet, "/api/v1/groups/"+step.Published[0], "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var got GroupResponse
	decodeData(t, resp, &got)
	if got.GroupID != step.Published[0] {
		t.Errorf("Expected group id %s, got %s", step.Published[0], got.GroupID)
	}
	if len(got.Group.Members) != 2 {
		t.Errorf("Expected 2 members, got %d", len(got.Group.Members))
	}
	if diff := got.Group.TGlobal - 10.001; diff > 1e-6 || diff < -1e-6 {
		t.Errorf("Expected t_global near 10.001, got %v", got.Group.TGlobal)
	}
	if rec.Header().Get("ETag") == "" {
		t.Error("Expected an ETag header")
	}
}

func TestStep_NoObservations(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)

	rec, resp := env.do(t, http.MethodPost, "/api/v1/sync/step", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var step models.StepResult
	decodeData(t, resp, &step)
	if len(step.Groups) != 0 || len(step.Published) != 0 {
		t.Errorf("Expected no groups, got %+v", step)
	}
}

type failingStepper struct{}

func (failingStepper) Run(context.Context) (models.StepResult, error) {
	return models.StepResult{}, errors.New("redis: connection refused")
}

func TestStep_StoreError(t *testing.T) {
	t.Parallel()
	s := memstore.New()
	eng, err := engine.New(s, engine.DefaultConfig("node-a"))
	if err != nil {
		t.Fatal(err)
	}
	h := NewHandler(s, failingStepper{}, eng.Elector(), HandlerConfig{NodeID: "node-a"})

	rec := httptest.NewRecorder()
	h.Step(rec, httptest.NewRequest(http.MethodPost, "/api/v1/sync/step", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("Expected 503, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "connection refused") {
		t.Error("Expected backend error text to stay out of the response")
	}
}

func TestGetGroup_Errors(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)

	rec, resp := env.do(t, http.MethodGet, "/api/v1/groups/g:42", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", rec.Code)
	}
	if resp.Error == nil || resp.Error.Code != CodeNotFound {
		t.Errorf("Expected NOT_FOUND, got %+v", resp.Error)
	}

	for _, bad := range []string{"42", "g:", "g:abc", "x:1"} {
		rec, _ := env.do(t, http.MethodGet, "/api/v1/groups/"+bad, "")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("id %q: expected 400, got %d", bad, rec.Code)
		}
	}
}

func TestElectionAndHealth(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)

	// Before any heartbeat nobody is live.
	rec, resp := env.do(t, http.MethodGet, "/api/v1/election", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var status models.ElectionStatus
	decodeData(t, resp, &status)
	if status.IsMaster || len(status.LiveNodes) != 0 {
		t.Errorf("Expected empty election view, got %+v", status)
	}

	if err := env.engine.Elector().Heartbeat(context.Background(), "node-a", time.Minute); err != nil {
		t.Fatal(err)
	}
	if err := env.engine.Elector().Heartbeat(context.Background(), "node-0", time.Minute); err != nil {
		t.Fatal(err)
	}

	_, resp = env.do(t, http.MethodGet, "/api/v1/election", "")
	decodeData(t, resp, &status)
	if !status.IsMaster || status.Master != "node-a" {
		t.Errorf("Expected node-a master, got %+v", status)
	}

	rec, resp = env.do(t, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var health HealthResponse
	decodeData(t, resp, &health)
	if health.Status != "healthy" || health.Store != "memory" || health.LiveNodes != 2 || !health.IsMaster {
		t.Errorf("Unexpected health %+v", health)
	}
}

func TestRouter_NotFoundAndMethod(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)

	rec, resp := env.do(t, http.MethodGet, "/api/v1/nope", "")
	if rec.Code != http.StatusNotFound || resp.Error == nil {
		t.Errorf("Expected JSON 404, got %d", rec.Code)
	}
	rec, _ = env.do(t, http.MethodGet, "/api/v1/sync/step", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405, got %d", rec.Code)
	}
}

func TestRouter_Metrics(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)

	rec := httptest.NewRecorder()
	env.server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "sensorium_") {
		t.Error("Expected sensorium metrics in exposition")
	}
}
