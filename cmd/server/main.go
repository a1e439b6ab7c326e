// Sensorium - Probabilistic Sensor Time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sensorium

package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/tomtom215/sensorium/internal/api"
	"github.com/tomtom215/sensorium/internal/config"
	"github.com/tomtom215/sensorium/internal/engine"
	"github.com/tomtom215/sensorium/internal/logging"
	"github.com/tomtom215/sensorium/internal/supervisor"
	"github.com/tomtom215/sensorium/internal/supervisor/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logging.Init(cfg.LoggingConfig())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		stop()
		logging.Fatal().Err(err).Msg("Sensorium stopped")
	}
	logging.Info().Msg("Sensorium stopped")
}

func run(ctx context.Context, cfg *config.Config) error {
	logging.Info().
		Str("node_id", cfg.Node.ID).
		Str("store", cfg.Store.Backend).
		Str("mode", cfg.Sync.Mode).
		Dur("step_interval", cfg.Sync.StepInterval).
		Msg("Starting Sensorium")

	b, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	sinks, err := openSinks(ctx, cfg, b.natsURL)
	if err != nil {
		return err
	}
	defer sinks.Close()

	eng, err := engine.New(b.store, cfg.EngineConfig(), sinks.engineOptions()...)
	if err != nil {
		return fmt.Errorf("create engine: %w", err)
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
		return fmt.Errorf("create supervisor tree: %w", err)
	}
	if b.maintenance != nil {
		tree.AddStorageService(b.maintenance)
	}
	tree.AddCoordinationService(services.NewStepService(
		eng, cfg.Sync.StepInterval,
		services.WithResigner(eng.Elector(), cfg.Node.ID),
	))
	if cfg.Server.Enabled {
		tree.AddAPIService(services.NewHTTPServerService(newHTTPServer(cfg, b, eng), cfg.Server.Timeout))
	}

	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("supervisor: %w", err)
	}
	return nil
}

func newHTTPServer(cfg *config.Config, b *backend, eng *engine.Engine) *http.Server {
	handler := api.NewHandler(b.store, eng, eng.Elector(), api.HandlerConfig{
		NodeID:         cfg.Node.ID,
		ObservationTTL: cfg.Sync.ObservationTTL,
	})

	mwCfg := api.DefaultMiddlewareConfig()
	mwCfg.CORSAllowedOrigins = cfg.Server.CORSOrigins
	mwCfg.RateLimitRequests = cfg.Server.RateLimitReqs
	mwCfg.RateLimitWindow = cfg.Server.RateLimitWindow
	mwCfg.RateLimitDisabled = cfg.Server.RateLimitDisabled

	return &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Handler:           api.NewRouter(handler, api.NewMiddleware(mwCfg)).Setup(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       2 * cfg.Server.Timeout,
	}
}
