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

	"github.com/AleutianAI/fixflow/services/agent"
	"github.com/AleutianAI/fixflow/services/config"
	"github.com/AleutianAI/fixflow/services/editor"
	"github.com/AleutianAI/fixflow/services/filesearch"
	"github.com/AleutianAI/fixflow/services/llm"
)

// app is the object graph built once per process and injected into
// handlers and commands.
type app struct {
	cfg        *config.Config
	client     llm.Client
	forwarder  *editor.Forwarder
	resolver   *filesearch.Resolver
	dispatcher *agent.Dispatcher
}

// newApp wires the completion client, forwarder, resolver and dispatcher.
//
// Without an API key the client is nil: the resolver then fails with
// filesearch.ErrCompletion and the dispatcher reports unavailable.
func newApp(cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg}

	a.forwarder = editor.NewForwarder(editor.ForwarderConfig{
		EditorBaseURL: cfg.Editor.BaseURL,
		WindowBaseURL: cfg.Window.BaseURL,
		Timeout:       cfg.Editor.Timeout,
	})

	if cfg.LLM.APIKey != "" {
		// Only the enclave keeps the key from here on.
		key := llm.NewCredential(cfg.LLM.APIKey)
		cfg.LLM.APIKey = ""
		client, err := llm.NewClient(llm.ClientConfig{
			Backend:    cfg.LLM.Provider,
			APIKey:     key,
			BaseURL:    cfg.LLM.BaseURL,
			Model:      cfg.LLM.Model,
			TimeoutSec: int(cfg.LLM.Timeout.Seconds()),
		})
		if err != nil {
			return nil, fmt.Errorf("creating completion client: %w", err)
		}
		a.client = client
	}

	// Interfaces are only assigned from a non-nil client so a missing
	// client stays a nil interface downstream.
	var completer llm.JSONCompleter
	var caller llm.ToolCaller
	if a.client != nil {
		completer = a.client
		if cfg.Agent.Enabled {
			caller = a.client
		}
	}

	a.resolver = filesearch.NewResolver(completer, filesearch.Config{
		Extensions: cfg.Resolver.Extensions,
		SkipDirs:   cfg.Resolver.SkipDirs,
		Model:      cfg.LLM.ResolverModel,
	})
	a.dispatcher = agent.NewDispatcher(caller, a.forwarder, a.resolver, agent.Config{
		MaxIterations: cfg.Agent.MaxIterations,
		WorkspaceDir:  cfg.Resolver.WorkspaceDir,
		Model:         cfg.LLM.Model,
	})

	slog.Debug("fixflow wired",
		slog.Any("llm", cfg.LLM),
		slog.Bool("completion_client", a.client != nil),
		slog.String("editor", cfg.Editor.BaseURL),
		slog.String("window", cfg.Window.BaseURL),
		slog.Bool("agent", a.dispatcher.Available()),
		slog.String("workspace", cfg.Resolver.WorkspaceDir),
	)
	return a, nil
}
