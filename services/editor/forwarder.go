// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package editor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// DefaultTimeout bounds one forwarded call when the config leaves it unset.
const DefaultTimeout = 10 * time.Second

// maxBodyBytes caps how much of a remote response is read.
const maxBodyBytes = 4 << 20

// ForwarderConfig configures NewForwarder.
type ForwarderConfig struct {
	// EditorBaseURL is the editor extension root, e.g. http://localhost:3068.
	EditorBaseURL string

	// WindowBaseURL is the window platform root. Empty means EditorBaseURL.
	WindowBaseURL string

	// Timeout applies to each call. Zero means DefaultTimeout.
	Timeout time.Duration

	// HTTPClient overrides the client built from Timeout.
	HTTPClient *http.Client
}

// Forwarder turns a Command plus bound arguments into one HTTP GET on the
// remote collaborator and normalizes every outcome into a ForwardResult.
//
// Thread Safety: Forwarder is safe for concurrent use.
type Forwarder struct {
	client  *http.Client
	bases   map[Target]string
	counter metric.Int64Counter
}

// NewForwarder creates a Forwarder.
func NewForwarder(cfg ForwarderConfig) *Forwarder {
	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	editorBase := strings.TrimRight(cfg.EditorBaseURL, "/")
	windowBase := strings.TrimRight(cfg.WindowBaseURL, "/")
	if windowBase == "" {
		windowBase = editorBase
	}
	return &Forwarder{
		client: client,
		bases: map[Target]string{
			TargetEditor: editorBase,
			TargetWindow: windowBase,
		},
		counter: newForwardCounter(),
	}
}

// BaseURL returns the root URL commands with target t are sent to.
func (f *Forwarder) BaseURL(t Target) string {
	return f.bases[t]
}

// Forward invokes cmd on its remote collaborator.
//
// Description:
//
//	Validates bound first and returns a validation result without any
//	network I/O when it is rejected. Probe commands are answered from the
//	reachability of the remote root. Otherwise issues
//	GET {base}/{endpoint}?{query} and normalizes the reply.
//
// Inputs:
//   - ctx: Carries the deadline and the trace context propagated to the remote.
//   - cmd: A command from the registry.
//   - bound: Arguments, normally produced by Bind. Undeclared keys are ignored.
//
// Outputs:
//   - ForwardResult: Never panics and never returns a Go error; every
//     failure is an error result with a Kind.
//
// Thread Safety: Safe for concurrent use.
func (f *Forwarder) Forward(ctx context.Context, cmd Command, bound map[string]any) ForwardResult {
	ctx, span := otel.Tracer(editorTracerName).Start(ctx, "editor.Forwarder.Forward",
		trace.WithAttributes(
			attribute.String("command", cmd.Name),
			attribute.String("endpoint", cmd.Endpoint),
			attribute.String("target", string(cmd.Target)),
		),
	)
	defer span.End()

	start := time.Now()
	result := f.forward(ctx, cmd, bound)
	f.recordForward(ctx, result, time.Since(start))

	span.SetAttributes(attribute.String("outcome", outcomeLabel(result)))
	if !result.OK() {
		span.SetStatus(codes.Error, result.Message)
		slog.Warn("editor command failed",
			slog.String("command", cmd.Name),
			slog.String("kind", string(result.Kind)),
			slog.String("message", result.Message),
		)
	} else {
		slog.Debug("editor command forwarded", slog.String("command", cmd.Name))
	}
	return result
}

func (f *Forwarder) forward(ctx context.Context, cmd Command, bound map[string]any) ForwardResult {
	if err := validateArgs(cmd, bound); err != nil {
		return Failure(cmd.Name, KindValidation, err.Error())
	}
	if cmd.Probe {
		return f.probe(ctx, cmd)
	}

	target := f.BaseURL(cmd.Target) + "/" + cmd.Endpoint
	if q := encodeQuery(cmd, bound); len(q) > 0 {
		target += "?" + q.Encode()
	}

	req, err := newRequest(ctx, target)
	if err != nil {
		return Failure(cmd.Name, KindInternal, "An error occurred: building request: "+err.Error())
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return transportFailure(cmd, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return Failure(cmd.Name, KindInternal, "An error occurred: reading response: "+err.Error())
	}

	payload, parseErr := decodeBody(body)
	if envelope, ok := payload.(map[string]any); ok && envelope["status"] == string(StatusError) {
		msg, _ := envelope["message"].(string)
		if msg == "" {
			msg = fmt.Sprintf("%s failed on the remote", cmd.Endpoint)
		}
		return ForwardResult{
			Status:       StatusError,
			Command:      cmd.Name,
			Payload:      envelope,
			Message:      msg,
			Kind:         KindUpstream,
			RemoteStatus: resp.StatusCode,
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		r := Failure(cmd.Name, KindUpstream, fmt.Sprintf("HTTP error occurred: remote returned status %d", resp.StatusCode))
		r.RemoteStatus = resp.StatusCode
		return r
	}
	if parseErr != nil {
		return Failure(cmd.Name, KindInternal, "An error occurred: invalid JSON response: "+parseErr.Error())
	}

	r := Success(cmd.Name, payload)
	r.RemoteStatus = resp.StatusCode
	return r
}

// probe reports whether the remote answers at all. Any HTTP response,
// whatever its status, means the process is up.
func (f *Forwarder) probe(ctx context.Context, cmd Command) ForwardResult {
	req, err := newRequest(ctx, f.BaseURL(cmd.Target)+"/")
	if err != nil {
		return Failure(cmd.Name, KindInternal, "An error occurred: building request: "+err.Error())
	}
	resp, err := f.client.Do(req)
	if err != nil {
		slog.Debug("editor probe failed", slog.String("error", err.Error()))
		return Success(cmd.Name, map[string]any{
			"status":  "disconnected",
			"message": "editor extension is not running",
		})
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
	resp.Body.Close()
	return Success(cmd.Name, map[string]any{
		"status":  "connected",
		"message": "editor extension is running",
	})
}

func newRequest(ctx context.Context, target string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))
	return req, nil
}

func transportFailure(cmd Command, err error) ForwardResult {
	var urlErr interface{ Timeout() bool }
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return Failure(cmd.Name, KindTransport, "HTTP error occurred: request timed out: "+err.Error())
	}
	return Failure(cmd.Name, KindTransport, "HTTP error occurred: "+err.Error())
}

// decodeBody parses a JSON body keeping numbers exact. An empty body
// decodes to nil.
func decodeBody(body []byte) (any, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}
