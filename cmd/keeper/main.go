// Keeper - Backup Scheduling and Restore Engine for PepTrack
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/keeper

// Package main is the entry point for the Keeper server.
//
// Keeper schedules, writes and restores backups of a PepTrack data store.
// The server initializes components in the following order:
//
//  1. Configuration: layered load from defaults, config.yaml and environment
//     variables (Koanf v2)
//  2. Store: BadgerDB holding the live protocol, dose log and literature
//     records
//  3. Sinks: local filesystem destination, plus S3 when enabled
//  4. Run coordinator: schedule state, run lock, retention and history
//  5. Supervisor tree: scheduler loop and HTTP server under suture
//
// # Signal Handling
//
// The server handles graceful shutdown on SIGINT and SIGTERM: the HTTP
// server drains in-flight requests, the scheduler loop stops, and when the
// schedule enables backup-on-close a final backup is attempted before the
// store closes.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/keeper/internal/api"
	"github.com/tomtom215/keeper/internal/config"
	"github.com/tomtom215/keeper/internal/engine"
	"github.com/tomtom215/keeper/internal/logging"
	"github.com/tomtom215/keeper/internal/sink"
	"github.com/tomtom215/keeper/internal/store"
	"github.com/tomtom215/keeper/internal/supervisor"
)

// version is stamped into snapshot metadata and the health endpoint.
// Overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("version", version).
		Str("data_dir", cfg.Data.Dir).
		Bool("s3_enabled", cfg.S3.Enabled).
		Msg("Starting Keeper")

	db, err := store.Open(cfg.Data.StoreDir)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open data store")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing data store")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sinks, err := buildSinks(ctx, cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to configure backup destinations")
	}

	coordinator := engine.New(engine.Config{
		DataDir:            cfg.Data.Dir,
		AppVersion:         version,
		EncryptionPassword: cfg.Backup.EncryptionPassword,
	}, db, sinks)

	handler := api.NewHandler(coordinator, version)
	router := api.NewRouter(handler, api.RouterConfig{
		CORSAllowedOrigins: cfg.API.CORSOrigins,
		RateLimitRequests:  cfg.API.RateLimitReqs,
		RateLimitWindow:    cfg.API.RateLimitWindow,
	})

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router.Setup(),
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout,
		ReadHeaderTimeout: 10 * time.Second,
	}

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	tree.Add(supervisor.NewSchedulerService(coordinator.RunScheduler))
	tree.Add(supervisor.NewHTTPService(server, cfg.Server.ShutdownTimeout))
	logging.Info().Str("addr", server.Addr).Msg("Scheduler and HTTP server added to supervisor tree")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	// ServeBackground delivers exactly one terminal error and never closes
	// the channel, so wait with a single receive.
	if err := <-tree.ServeBackground(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("Supervisor tree error")
	}

	// The HTTP server and scheduler are stopped, so the final backup
	// cannot race a live run.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	coordinator.Shutdown(shutdownCtx)

	logging.Info().Msg("Keeper stopped gracefully")
}

// buildSinks constructs the destination set. The local sink always exists;
// S3 joins it when enabled.
func buildSinks(ctx context.Context, cfg *config.Config) (map[sink.Kind]sink.Sink, error) {
	local, err := sink.NewLocal(cfg.Data.BackupDir)
	if err != nil {
		return nil, fmt.Errorf("local sink: %w", err)
	}
	sinks := map[sink.Kind]sink.Sink{sink.KindLocal: local}

	if cfg.S3.Enabled {
		s3Sink, err := sink.NewS3(ctx, sink.S3Config{
			Bucket:            cfg.S3.Bucket,
			Prefix:            cfg.S3.Prefix,
			Region:            cfg.S3.Region,
			Endpoint:          cfg.S3.Endpoint,
			AccessKeyID:       cfg.S3.AccessKeyID,
			SecretAccessKey:   cfg.S3.SecretAccessKey,
			RequestsPerSecond: cfg.S3.RequestsPerSecond,
		})
		if err != nil {
			return nil, fmt.Errorf("s3 sink: %w", err)
		}
		sinks[sink.KindS3] = s3Sink
		logging.Info().Str("bucket", cfg.S3.Bucket).Msg("S3 destination enabled")
	}

	return sinks, nil
}
