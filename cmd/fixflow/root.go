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
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/fixflow/services/config"
)

// rootOptions holds persistent flag values shared by every subcommand.
type rootOptions struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:          "fixflow",
		Short:        "Drive editor tabs and windows from natural language",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", os.Getenv("FIXFLOW_CONFIG"),
		"path to a YAML config file (env FIXFLOW_CONFIG)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "",
		"override log.level (debug, info, warn, error)")

	root.AddCommand(
		newServeCmd(opts),
		newExecCmd(opts),
		newChatCmd(opts),
		newFilesCmd(opts),
		newWindowsCmd(opts),
	)
	return root
}

// loadConfig loads configuration and installs the default logger.
//
// withAgent=false forces agent.enabled off so commands that never run the
// agent start without an API key.
func loadConfig(opts *rootOptions, withAgent bool) (*config.Config, error) {
	lookup := os.LookupEnv
	if !withAgent {
		lookup = func(key string) (string, bool) {
			if key == "AGENT_ENABLED" {
				return "false", true
			}
			return os.LookupEnv(key)
		}
	}
	cfg, err := config.LoadWithEnv(opts.configPath, lookup)
	if err != nil {
		return nil, err
	}
	if opts.logLevel != "" {
		cfg.Log.Level = strings.ToLower(opts.logLevel)
	}

	fd := os.Stderr.Fd()
	tty := isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
	slog.SetDefault(newLogger(os.Stderr, tty, cfg.Log.Level, cfg.Log.Format))
	return cfg, nil
}

// newLogger builds the process logger. Format "auto" picks text on a
// terminal and JSON otherwise.
func newLogger(w io.Writer, tty bool, level, format string) *slog.Logger {
	hopts := &slog.HandlerOptions{Level: parseLevel(level)}
	useText := format == "text" || (format != "json" && tty)
	if useText {
		return slog.New(slog.NewTextHandler(w, hopts))
	}
	return slog.New(slog.NewJSONHandler(w, hopts))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// isTerminal reports whether v is a terminal file.
func isTerminal(v any) bool {
	f, ok := v.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func printErr(cmd *cobra.Command, format string, args ...any) {
	_, _ = fmt.Fprintf(cmd.ErrOrStderr(), format+"\n", args...)
}
