// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// LangChainClient implements Client on top of a langchaingo llms.Model.
//
// Description:
//
//	Converts fixflow's ChatMessage/ToolDef types to langchaingo
//	MessageContent parts and tools. Tool calls without an ID get a
//	synthetic one so tool results can still be correlated.
//
// Thread Safety: LangChainClient is safe for concurrent use if the
// underlying model is.
type LangChainClient struct {
	model     llms.Model
	modelName string
}

// NewLangChainClient builds a langchaingo OpenAI-compatible model from cfg.
//
// Outputs:
//   - Client: The configured client.
//   - error: ErrMissingAPIKey or a langchaingo construction error.
func NewLangChainClient(cfg ClientConfig) (Client, error) {
	key, err := cfg.APIKey.Reveal()
	if err != nil {
		return nil, fmt.Errorf("langchain: %w", err)
	}

	modelName := cfg.Model
	if modelName == "" {
		modelName = "gpt-4o"
	}
	timeout := 120 * time.Second
	if cfg.TimeoutSec > 0 {
		timeout = time.Duration(cfg.TimeoutSec) * time.Second
	}

	opts := []openai.Option{
		openai.WithToken(key),
		openai.WithModel(modelName),
		openai.WithHTTPClient(&http.Client{Timeout: timeout}),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(strings.TrimRight(cfg.BaseURL, "/")))
	}

	model, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("langchain: creating model: %w", err)
	}

	slog.Info("Initializing LangChain client", slog.String("model", modelName))
	return newLangChainClientWithModel(model, modelName), nil
}

func newLangChainClientWithModel(model llms.Model, modelName string) *LangChainClient {
	return &LangChainClient{model: model, modelName: modelName}
}

// Name returns the backend name.
func (l *LangChainClient) Name() string { return BackendLangChain }

// ChatWithTools implements ToolCaller.
func (l *LangChainClient) ChatWithTools(ctx context.Context, messages []ChatMessage,
	params GenerationParams, tools []ToolDef) (*ChatWithToolsResult, error) {

	ctx, span := otel.Tracer(llmTracerName).Start(ctx, "llm.LangChainClient.ChatWithTools",
		trace.WithAttributes(
			attribute.String("model", l.resolveModel(params)),
			attribute.Int("message_count", len(messages)),
			attribute.Int("tool_count", len(tools)),
		),
	)
	defer span.End()

	opts := l.callOptions(params)
	if len(tools) > 0 {
		opts = append(opts, llms.WithTools(toLangChainTools(tools)))
	}

	start := time.Now()
	choice, err := l.generate(ctx, toLangChainMessages(messages), opts)
	recordLLMMetrics(BackendLangChain, "chat_with_tools", time.Since(start), err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	result := &ChatWithToolsResult{Content: choice.Content, StopReason: "end"}
	for _, tc := range choice.ToolCalls {
		if tc.FunctionCall == nil {
			continue
		}
		id := tc.ID
		if id == "" {
			id = "call_" + uuid.NewString()
		}
		result.ToolCalls = append(result.ToolCalls, ToolCallResponse{
			ID:        id,
			Name:      tc.FunctionCall.Name,
			Arguments: json.RawMessage(tc.FunctionCall.Arguments),
		})
	}
	if len(result.ToolCalls) > 0 {
		result.StopReason = "tool_use"
	}
	span.SetAttributes(attribute.Int("tool_calls", len(result.ToolCalls)))
	return result, nil
}

// CompleteJSON implements JSONCompleter using langchaingo's JSON mode.
func (l *LangChainClient) CompleteJSON(ctx context.Context, systemPrompt, userPrompt string, params GenerationParams) (string, error) {
	ctx, span := otel.Tracer(llmTracerName).Start(ctx, "llm.LangChainClient.CompleteJSON",
		trace.WithAttributes(attribute.String("model", l.resolveModel(params))),
	)
	defer span.End()

	msgs := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, userPrompt),
	}
	opts := append(l.callOptions(params), llms.WithJSONMode())

	start := time.Now()
	choice, err := l.generate(ctx, msgs, opts)
	if err == nil && strings.TrimSpace(choice.Content) == "" {
		err = &EmptyResponseError{Backend: BackendLangChain, Model: l.resolveModel(params)}
	}
	recordLLMMetrics(BackendLangChain, "complete_json", time.Since(start), err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	return choice.Content, nil
}

func (l *LangChainClient) resolveModel(params GenerationParams) string {
	if params.ModelOverride != "" {
		return params.ModelOverride
	}
	return l.modelName
}

func (l *LangChainClient) callOptions(params GenerationParams) []llms.CallOption {
	var opts []llms.CallOption
	if params.ModelOverride != "" {
		opts = append(opts, llms.WithModel(params.ModelOverride))
	}
	if params.Temperature != nil {
		opts = append(opts, llms.WithTemperature(float64(*params.Temperature)))
	}
	if params.MaxTokens != nil {
		opts = append(opts, llms.WithMaxTokens(*params.MaxTokens))
	}
	return opts
}

func (l *LangChainClient) generate(ctx context.Context, msgs []llms.MessageContent, opts []llms.CallOption) (*llms.ContentChoice, error) {
	llmActiveRequests.WithLabelValues(BackendLangChain).Inc()
	defer llmActiveRequests.WithLabelValues(BackendLangChain).Dec()

	resp, err := l.model.GenerateContent(ctx, msgs, opts...)
	if err != nil {
		return nil, fmt.Errorf("langchain: generate content: %s", SafeLogString(err.Error()))
	}
	if resp == nil || len(resp.Choices) == 0 || resp.Choices[0] == nil {
		return nil, &EmptyResponseError{Backend: BackendLangChain, Model: l.modelName}
	}
	return resp.Choices[0], nil
}

// toLangChainMessages converts the conversation into langchaingo parts.
func toLangChainMessages(messages []ChatMessage) []llms.MessageContent {
	out := make([]llms.MessageContent, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case "system":
			out = append(out, llms.TextParts(llms.ChatMessageTypeSystem, msg.Content))
		case "user":
			out = append(out, llms.TextParts(llms.ChatMessageTypeHuman, msg.Content))
		case "assistant":
			mc := llms.MessageContent{Role: llms.ChatMessageTypeAI}
			if msg.Content != "" {
				mc.Parts = append(mc.Parts, llms.TextContent{Text: msg.Content})
			}
			for _, tc := range msg.ToolCalls {
				mc.Parts = append(mc.Parts, llms.ToolCall{
					ID:   tc.ID,
					Type: "function",
					FunctionCall: &llms.FunctionCall{
						Name:      tc.Name,
						Arguments: tc.ArgumentsString(),
					},
				})
			}
			out = append(out, mc)
		case "tool":
			out = append(out, llms.MessageContent{
				Role: llms.ChatMessageTypeTool,
				Parts: []llms.ContentPart{llms.ToolCallResponse{
					ToolCallID: msg.ToolCallID,
					Name:       msg.ToolName,
					Content:    msg.Content,
				}},
			})
		}
	}
	return out
}

func toLangChainTools(tools []ToolDef) []llms.Tool {
	out := make([]llms.Tool, 0, len(tools))
	for _, td := range tools {
		out = append(out, llms.Tool{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        td.Function.Name,
				Description: td.Function.Description,
				Parameters:  td.Function.Parameters,
			},
		})
	}
	return out
}
