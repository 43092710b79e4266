// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package llm contains the completion-service clients used by fixflow.
//
// Two backends are provided: OpenAIClient talks to the Chat Completions REST
// API directly, LangChainClient goes through langchaingo. Both implement
// ToolCaller (agent tool selection) and JSONCompleter (fuzzy file ranking).
//
// Thread Safety:
//
//	All clients in this package are safe for concurrent use.
package llm

import (
	"context"
	"errors"
	"fmt"
)

// Backend names accepted by NewClient.
const (
	BackendOpenAI    = "openai"
	BackendLangChain = "langchain"
)

// ErrMissingAPIKey is returned when a client is constructed without a key.
var ErrMissingAPIKey = errors.New("api key is missing")

// GenerationParams holds per-request generation settings.
type GenerationParams struct {
	// Temperature is omitted from the request when nil.
	Temperature *float32

	// MaxTokens is omitted from the request when nil.
	MaxTokens *int

	// ModelOverride replaces the client's default model for one request.
	ModelOverride string
}

// ToolCaller sends a conversation plus tool definitions and returns the
// model's reply, which may contain tool calls.
//
// Thread Safety: Implementations must be safe for concurrent use.
type ToolCaller interface {
	ChatWithTools(ctx context.Context, messages []ChatMessage,
		params GenerationParams, tools []ToolDef) (*ChatWithToolsResult, error)
}

// JSONCompleter asks the model for a single reply constrained to a JSON object.
//
// Thread Safety: Implementations must be safe for concurrent use.
type JSONCompleter interface {
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string, params GenerationParams) (string, error)
}

// Client is the full completion-service surface used by fixflow.
type Client interface {
	ToolCaller
	JSONCompleter
	Name() string
}

// EmptyResponseError reports a reply without any choices or content.
type EmptyResponseError struct {
	Backend string
	Model   string
}

func (e *EmptyResponseError) Error() string {
	return fmt.Sprintf("%s: model %s returned an empty response", e.Backend, e.Model)
}

// ClientConfig configures NewClient.
type ClientConfig struct {
	Backend    string
	APIKey     *Credential
	BaseURL    string
	Model      string
	TimeoutSec int
}

// NewClient creates the completion-service client selected by cfg.Backend.
//
// Outputs:
//   - Client: The configured client.
//   - error: ErrMissingAPIKey if no credential is set, or an error for an
//     unknown backend name.
func NewClient(cfg ClientConfig) (Client, error) {
	if cfg.APIKey == nil {
		return nil, fmt.Errorf("%s: %w", cfg.Backend, ErrMissingAPIKey)
	}
	switch cfg.Backend {
	case BackendOpenAI, "":
		return NewOpenAIClientWithConfig(cfg), nil
	case BackendLangChain:
		return NewLangChainClient(cfg)
	default:
		return nil, fmt.Errorf("unknown completion backend %q", cfg.Backend)
	}
}
