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
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/fixflow/services/config"
	"github.com/AleutianAI/fixflow/services/window"
)

func newWindowsCmd(opts *rootOptions) *cobra.Command {
	windows := &cobra.Command{
		Use:   "windows",
		Short: "List, switch and serve editor windows on this machine",
	}

	windows.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List editor window titles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts, false)
			if err != nil {
				return err
			}
			titles, err := newWindowService(cfg).List(cmd.Context())
			if err != nil {
				return err
			}
			for _, t := range titles {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), t)
			}
			return nil
		},
	})

	windows.AddCommand(&cobra.Command{
		Use:   "switch <title...>",
		Short: "Raise the first window whose title contains the text",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts, false)
			if err != nil {
				return err
			}
			title, err := newWindowService(cfg).Switch(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Switched to window: %s\n", title)
			return nil
		},
	})

	windows.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Serve /listWindows and /switchWindow for the forwarder",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts, false)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			shutdownTelemetry, err := setupTelemetry(ctx, cfg, cfg.Telemetry.ServiceName+"-window")
			if err != nil {
				return err
			}
			defer shutdownTelemetry()

			setGinMode(cfg)
			srv := &http.Server{
				Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Window.Port),
				Handler:           window.NewRouter(window.NewHandlers(newWindowService(cfg))),
				ReadHeaderTimeout: readHeaderTimeout,
			}
			slog.Info("window service starting", slog.String("address", srv.Addr))
			return serveHTTP(ctx, srv, nil, cfg.Server.ShutdownTimeout)
		},
	})
	return windows
}

func newWindowService(cfg *config.Config) *window.Service {
	return window.NewService(window.NewPlatform(cfg.Window.Application, cfg.Window.Process))
}
