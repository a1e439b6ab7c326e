// Sensorium - Probabilistic Sensor Time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sensorium

package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tomtom215/sensorium/internal/engine"
	"github.com/tomtom215/sensorium/internal/models"
	"github.com/tomtom215/sensorium/internal/store/memstore"
)

func TestStepService_PublishesAndResigns(t *testing.T) {
	s := memstore.New()
	defer s.Close()
	ctx := context.Background()

	for _, obs := range []models.Observation{
		{SensorID: "cam", TLocal: 20.000, Sigma: 0.001},
		{SensorID: "lidar", TLocal: 20.004, Sigma: 0.002},
	} {
		if err := s.PutObservation(ctx, obs, time.Minute); err != nil {
			t.Fatal(err)
		}
	}

	eng, err := engine.New(s, engine.DefaultConfig("node-a"))
	if err != nil {
		t.Fatal(err)
	}
	svc := NewStepService(eng, 10*time.Millisecond, WithResigner(eng.Elector(), "node-a"))
	if svc.String() != "sync-step" {
		t.Errorf("expected name sync-step, got %q", svc.String())
	}

	runCtx, cancel := context.WithCancel(ctx)
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Serve(runCtx) }()

	deadline := time.Now().Add(2 * time.Second)
	for svc.Steps() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}

	if svc.Steps() < 3 {
		t.Errorf("expected at least 3 steps, got %d", svc.Steps())
	}
	// Same observations every step, so the same group id is rewritten.
	if svc.Published() < 1 {
		t.Errorf("expected published groups, got %d", svc.Published())
	}

	live, err := s.LiveHeartbeatNodeIDs(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(live) != 0 {
		t.Errorf("expected heartbeat removed on shutdown, live=%v", live)
	}
}

type flakyStepper struct {
	calls atomic.Int32
}

func (f *flakyStepper) Run(context.Context) (models.StepResult, error) {
	if f.calls.Add(1)%2 == 1 {
		return models.StepResult{}, errors.New("store unavailable")
	}
	return models.StepResult{Published: []string{"g:1"}}, nil
}

func TestStepService_KeepsRunningAfterErrors(t *testing.T) {
	stepper := &flakyStepper{}
	svc := NewStepService(stepper, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Serve(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for stepper.calls.Load() < 4 && time.Now().Before(deadline) {
		time.Sleep(2 * time.Millisecond)
	}
	cancel()
	<-errCh

	if stepper.calls.Load() < 4 {
		t.Fatalf("expected the loop to survive failures, got %d calls", stepper.calls.Load())
	}
	if svc.Published() < 2 {
		t.Errorf("expected successful steps to count, got %d", svc.Published())
	}
}

func TestPeriodicService(t *testing.T) {
	var runs atomic.Int32
	svc := NewPeriodicService("memory-sweep", 5*time.Millisecond, func(context.Context) error {
		if runs.Add(1) == 1 {
			return errors.New("first run fails")
		}
		return nil
	})
	if svc.String() != "memory-sweep" {
		t.Errorf("expected name memory-sweep, got %q", svc.String())
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Serve(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for runs.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(2 * time.Millisecond)
	}
	cancel()
	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if runs.Load() < 3 {
		t.Errorf("expected task to keep running after a failure, got %d runs", runs.Load())
	}
}
