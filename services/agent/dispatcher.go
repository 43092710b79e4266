// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package agent turns a natural-language request into editor commands.
//
// The Dispatcher offers every registry command to the completion service as
// a tool, runs the tool calls it selects through editor.Bind and
// editor.Forwarder, and feeds each result back until the model answers in
// plain text or the iteration cap is reached.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/AleutianAI/fixflow/services/editor"
	"github.com/AleutianAI/fixflow/services/filesearch"
	"github.com/AleutianAI/fixflow/services/llm"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultMaxIterations is the completion round-trip cap per Execute.
const DefaultMaxIterations = 15

// noMatchMessage is the open-file failure when the resolver finds no file.
const noMatchMessage = "No matching file found"

// MaxIterationsOutput is the Output of an execution that hit the cap.
const MaxIterationsOutput = "Agent stopped due to max iterations."

var (
	// ErrAgentUnavailable means no completion client is configured or the
	// completion service failed.
	ErrAgentUnavailable = errors.New("agent unavailable")

	// ErrEmptyInput is returned for a blank request.
	ErrEmptyInput = errors.New("command is empty")
)

// Forwarder sends one bound command to its remote collaborator.
type Forwarder interface {
	Forward(ctx context.Context, cmd editor.Command, bound map[string]any) editor.ForwardResult
}

// FileResolver maps a loose file description to an absolute path.
type FileResolver interface {
	Resolve(ctx context.Context, dir, term string) (filesearch.MatchResult, error)
}

// Step records one tool invocation.
type Step struct {
	Tool   string               `json:"tool"`
	Args   map[string]any       `json:"args"`
	Result editor.ForwardResult `json:"result"`
}

// Result is the outcome of Execute.
type Result struct {
	Output string `json:"output"`
	Steps  []Step `json:"steps"`
}

// Config configures a Dispatcher.
type Config struct {
	// MaxIterations caps completion round trips. Zero means DefaultMaxIterations.
	MaxIterations int

	// WorkspaceDir is searched when open-file names a file loosely.
	WorkspaceDir string

	// Model overrides the client's default model.
	Model string
}

// Dispatcher runs the tool-calling loop.
//
// Description:
//
//	Holds only immutable collaborators and configuration; each Execute
//	builds its own conversation. One Dispatcher is constructed in main and
//	shared by all requests.
//
// Thread Safety: Dispatcher is safe for concurrent use.
type Dispatcher struct {
	client        llm.ToolCaller
	forwarder     Forwarder
	resolver      FileResolver
	tools         []llm.ToolDef
	maxIterations int
	workspaceDir  string
	model         string
}

// NewDispatcher creates a Dispatcher over the full command registry.
//
// Inputs:
//   - client: Completion service. Nil makes every Execute fail fast with
//     ErrAgentUnavailable.
//   - forwarder: Required.
//   - resolver: Optional. Nil forwards open-file paths unchanged.
//   - cfg: Loop settings.
func NewDispatcher(client llm.ToolCaller, forwarder Forwarder, resolver FileResolver, cfg Config) *Dispatcher {
	maxIter := cfg.MaxIterations
	if maxIter <= 0 {
		maxIter = DefaultMaxIterations
	}
	return &Dispatcher{
		client:        client,
		forwarder:     forwarder,
		resolver:      resolver,
		tools:         ToolDefs(editor.Commands()),
		maxIterations: maxIter,
		workspaceDir:  cfg.WorkspaceDir,
		model:         cfg.Model,
	}
}

// Available reports whether Execute can reach a completion service.
func (d *Dispatcher) Available() bool {
	return d != nil && d.client != nil
}

// Execute runs one natural-language request to completion.
//
// Description:
//
//	Sends the system prompt, the request and every registry command as a
//	tool. Each tool call is executed and its ForwardResult JSON returned to
//	the model as the tool message. A reply without tool calls ends the loop
//	and becomes Output. Tool failures never abort the loop; the model sees
//	them and decides what to tell the user.
//
// Outputs:
//   - Result: Output plus every executed step, also on the max-iterations path.
//   - error: ErrEmptyInput, or ErrAgentUnavailable (wrapping the completion
//     error when there is one).
//
// Thread Safety: Safe for concurrent use.
func (d *Dispatcher) Execute(ctx context.Context, input string) (Result, error) {
	result := Result{Steps: []Step{}}
	if !d.Available() {
		executionsTotal.WithLabelValues("unavailable").Inc()
		return result, ErrAgentUnavailable
	}
	if strings.TrimSpace(input) == "" {
		return result, ErrEmptyInput
	}

	ctx, span := otel.Tracer(agentTracerName).Start(ctx, "agent.Dispatcher.Execute",
		trace.WithAttributes(attribute.Int("max_iterations", d.maxIterations)),
	)
	defer span.End()

	messages := []llm.ChatMessage{
		{Role: "system", Content: SystemPrompt},
		{Role: "user", Content: input},
	}
	params := llm.GenerationParams{ModelOverride: d.model}

	for iter := 1; iter <= d.maxIterations; iter++ {
		reply, err := d.client.ChatWithTools(ctx, messages, params, d.tools)
		if err != nil {
			iterationsHistogram.Observe(float64(iter))
			executionsTotal.WithLabelValues("unavailable").Inc()
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return result, fmt.Errorf("%w: %w", ErrAgentUnavailable, err)
		}

		if len(reply.ToolCalls) == 0 {
			result.Output = reply.Content
			iterationsHistogram.Observe(float64(iter))
			executionsTotal.WithLabelValues("answered").Inc()
			span.SetAttributes(
				attribute.Int("iterations", iter),
				attribute.Int("steps", len(result.Steps)),
			)
			return result, nil
		}

		calls := make([]llm.ToolCallResponse, len(reply.ToolCalls))
		for i, tc := range reply.ToolCalls {
			if tc.ID == "" {
				tc.ID = "call_" + uuid.NewString()
			}
			calls[i] = tc
		}
		messages = append(messages, llm.ChatMessage{
			Role:      "assistant",
			Content:   reply.Content,
			ToolCalls: calls,
		})

		for _, tc := range calls {
			step := d.runTool(ctx, tc)
			result.Steps = append(result.Steps, step)
			messages = append(messages, llm.ChatMessage{
				Role:       "tool",
				Content:    toolContent(step.Result),
				ToolCallID: tc.ID,
				ToolName:   tc.Name,
			})
		}
	}

	slog.Warn("agent hit iteration cap",
		slog.Int("max_iterations", d.maxIterations),
		slog.Int("steps", len(result.Steps)),
	)
	iterationsHistogram.Observe(float64(d.maxIterations))
	executionsTotal.WithLabelValues("max_iterations").Inc()
	span.SetAttributes(attribute.Int("iterations", d.maxIterations), attribute.Int("steps", len(result.Steps)))
	result.Output = MaxIterationsOutput
	return result, nil
}

// runTool executes a single tool call and never fails; problems become an
// error ForwardResult the model can read.
func (d *Dispatcher) runTool(ctx context.Context, tc llm.ToolCallResponse) Step {
	step := Step{Tool: tc.Name, Args: map[string]any{}}

	cmd, ok := editor.Lookup(tc.Name)
	if !ok {
		step.Result = editor.Failure(tc.Name, editor.KindValidation, fmt.Sprintf("unknown tool %q", tc.Name))
		d.logStep(step, "unknown")
		return step
	}

	args, err := tc.DecodeArguments()
	if err != nil {
		step.Result = editor.Failure(cmd.Name, editor.KindValidation, err.Error())
		d.logStep(step, cmd.Name)
		return step
	}
	step.Args = args

	if cmd.Name == editor.CommandOpenFile {
		if failure, ok := d.resolvePath(ctx, cmd, args); !ok {
			step.Result = failure
			d.logStep(step, cmd.Name)
			return step
		}
	}

	step.Result = d.forwarder.Forward(ctx, cmd, editor.Bind(cmd, args))
	d.logStep(step, cmd.Name)
	return step
}

// resolvePath replaces args["path"] with the resolved absolute path.
func (d *Dispatcher) resolvePath(ctx context.Context, cmd editor.Command, args map[string]any) (editor.ForwardResult, bool) {
	term, _ := args["path"].(string)
	if d.resolver == nil || strings.TrimSpace(term) == "" {
		// Forward validation reports a missing path.
		return editor.ForwardResult{}, true
	}

	match, err := d.resolver.Resolve(ctx, d.workspaceDir, term)
	if err != nil {
		return editor.Failure(cmd.Name, editor.KindResolution, "File search error: "+llm.SafeLogString(err.Error())), false
	}
	if !match.Resolved() {
		return editor.Failure(cmd.Name, editor.KindResolution, noMatchMessage), false
	}

	slog.Info("agent resolved file",
		slog.String("term", term),
		slog.String("path", match.Path),
		slog.Float64("score", match.SimilarityScore),
	)
	args["path"] = match.Path
	return editor.ForwardResult{}, true
}

func (d *Dispatcher) logStep(step Step, tool string) {
	outcome := "ok"
	if !step.Result.OK() {
		outcome = string(step.Result.Kind)
	}
	if _, known := editor.Lookup(tool); !known {
		tool = "unknown"
	}
	toolCallsTotal.WithLabelValues(tool, outcome).Inc()
	slog.Info("agent step",
		slog.String("tool", step.Tool),
		slog.String("outcome", outcome),
		slog.String("message", step.Result.Message),
	)
}

func toolContent(r editor.ForwardResult) string {
	b, err := json.Marshal(r)
	if err != nil {
		fallback, _ := json.Marshal(map[string]string{
			"status":  string(editor.StatusError),
			"message": "An error occurred: " + err.Error(),
		})
		return string(fallback)
	}
	return string(b)
}
