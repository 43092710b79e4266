// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/fixflow/services/api"
	"github.com/AleutianAI/fixflow/services/config"
	"github.com/AleutianAI/fixflow/services/telemetry"
)

const readHeaderTimeout = 10 * time.Second

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the fixflow HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts, true)
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}
}

func runServe(parent context.Context, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := setupTelemetry(ctx, cfg, cfg.Telemetry.ServiceName)
	if err != nil {
		return err
	}
	defer shutdownTelemetry()

	a, err := newApp(cfg)
	if err != nil {
		return err
	}

	setGinMode(cfg)
	handlers := api.NewHandlers(api.Deps{
		Executor:     a.dispatcher,
		Forwarder:    a.forwarder,
		Resolver:     a.resolver,
		WorkspaceDir: cfg.Resolver.WorkspaceDir,
	})
	router := api.NewRouter(handlers, cfg.Telemetry.ServiceName, api.NewLimiter(cfg.Agent.RateLimit, cfg.Agent.Burst))

	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	slog.Info("fixflow control server starting",
		slog.String("address", srv.Addr),
		slog.String("editor", cfg.Editor.BaseURL),
		slog.Bool("agent", a.dispatcher.Available()),
	)
	return serveHTTP(ctx, srv, nil, cfg.Server.ShutdownTimeout)
}

// serveHTTP runs srv until ctx is done, then drains in-flight requests for
// at most shutdownTimeout. A nil listener means srv.Addr is used.
func serveHTTP(ctx context.Context, srv *http.Server, ln net.Listener, shutdownTimeout time.Duration) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		if ln != nil {
			err = srv.Serve(ln)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down, draining in-flight requests", slog.Duration("timeout", shutdownTimeout))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				slog.Warn("shutdown timed out, forcing close")
				return srv.Close()
			}
			return fmt.Errorf("shutdown failed: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// setupTelemetry installs OpenTelemetry providers and returns a flush func
// that never fails the command.
func setupTelemetry(ctx context.Context, cfg *config.Config, serviceName string) (func(), error) {
	shutdown, err := telemetry.Setup(ctx, telemetry.Config{
		ServiceName:  serviceName,
		Traces:       cfg.Telemetry.Traces,
		Metrics:      cfg.Telemetry.Metrics,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
	})
	if err != nil {
		return func() {}, err
	}
	return func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(flushCtx); err != nil {
			slog.Warn("telemetry shutdown failed", slog.String("error", err.Error()))
		}
	}, nil
}

func setGinMode(cfg *config.Config) {
	if cfg.Log.Level == "debug" {
		gin.SetMode(gin.DebugMode)
		return
	}
	gin.SetMode(gin.ReleaseMode)
}
