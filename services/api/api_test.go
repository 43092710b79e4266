// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/fixflow/services/agent"
	"github.com/AleutianAI/fixflow/services/editor"
	"github.com/AleutianAI/fixflow/services/filesearch"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeExecutor struct {
	available bool
	result    agent.Result
	err       error
	inputs    []string
}

func (f *fakeExecutor) Execute(_ context.Context, input string) (agent.Result, error) {
	f.inputs = append(f.inputs, input)
	return f.result, f.err
}

func (f *fakeExecutor) Available() bool { return f.available }

type recordingForwarder struct {
	mu     sync.Mutex
	calls  []string
	bounds []map[string]any
	result editor.ForwardResult
}

func (r *recordingForwarder) Forward(_ context.Context, cmd editor.Command, bound map[string]any) editor.ForwardResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, cmd.Name)
	r.bounds = append(r.bounds, bound)
	if r.result.Status == "" {
		return editor.Success(cmd.Name, map[string]any{"status": "success", "command": cmd.Endpoint})
	}
	return r.result
}

type fakeResolver struct {
	match   filesearch.MatchResult
	err     error
	gotDir  string
	gotTerm string
}

func (f *fakeResolver) Resolve(_ context.Context, dir, term string) (filesearch.MatchResult, error) {
	f.gotDir, f.gotTerm = dir, term
	return f.match, f.err
}

func newTestRouter(d Deps) *gin.Engine {
	if d.Forwarder == nil {
		d.Forwarder = &recordingForwarder{}
	}
	return NewRouter(NewHandlers(d), "fixflow-test", nil)
}

func do(t *testing.T, router http.Handler, method, target, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var out map[string]any
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	}
	return w, out
}

func TestRoot_Health_Commands(t *testing.T) {
	router := newTestRouter(Deps{Executor: &fakeExecutor{available: true}})

	w, body := do(t, router, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "fixflow control server is running", body["message"])

	w, body = do(t, router, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["agent"])

	w, body = do(t, router, http.MethodGet, "/commands", "")
	assert.Equal(t, http.StatusOK, w.Code)
	cmds, ok := body["commands"].([]any)
	require.True(t, ok)
	assert.Len(t, cmds, len(editor.Commands()))
}

func TestMetricsEndpoint(t *testing.T) {
	router := newTestRouter(Deps{})
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestExecute_Success(t *testing.T) {
	exec := &fakeExecutor{available: true, result: agent.Result{
		Output: "The editor extension is running.",
		Steps: []agent.Step{{
			Tool:   "status",
			Args:   map[string]any{},
			Result: editor.Success("status", map[string]any{"status": "connected"}),
		}},
	}}
	router := newTestRouter(Deps{Executor: exec})

	w, body := do(t, router, http.MethodPost, "/execute", `{"command":"check if the extension is running"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, "The editor extension is running.", body["output"])
	steps := body["steps"].([]any)
	require.Len(t, steps, 1)
	step := steps[0].(map[string]any)
	assert.Equal(t, "status", step["tool"])
	assert.Equal(t, map[string]any{"status": "connected"}, step["result"])
	assert.Equal(t, []string{"check if the extension is running"}, exec.inputs)
}

func TestExecute_Errors(t *testing.T) {
	tests := []struct {
		name     string
		exec     Executor
		body     string
		wantCode int
	}{
		{"empty command", &fakeExecutor{available: true}, `{"command":"  "}`, http.StatusBadRequest},
		{"malformed body", &fakeExecutor{available: true}, `{"command":`, http.StatusBadRequest},
		{"no executor", nil, `{"command":"next tab"}`, http.StatusServiceUnavailable},
		{"unavailable", &fakeExecutor{available: false}, `{"command":"next tab"}`, http.StatusServiceUnavailable},
		{
			"completion failure",
			&fakeExecutor{available: true, err: fmt.Errorf("%w: %w", agent.ErrAgentUnavailable, errors.New("openai: API returned status 500"))},
			`{"command":"next tab"}`,
			http.StatusBadGateway,
		},
		{
			"other failure",
			&fakeExecutor{available: true, err: errors.New("boom")},
			`{"command":"next tab"}`,
			http.StatusInternalServerError,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(Deps{Executor: tt.exec})
			w, body := do(t, router, http.MethodPost, "/execute", tt.body)
			assert.Equal(t, tt.wantCode, w.Code)
			assert.Equal(t, "error", body["status"])
			assert.NotEmpty(t, body["message"])
		})
	}
}

func TestExecute_RedactsUpstreamSecrets(t *testing.T) {
	exec := &fakeExecutor{available: true, err: fmt.Errorf("%w: %w", agent.ErrAgentUnavailable,
		errors.New("openai: bad key sk-abcdefghijklmnopqrstuvwxyz123456"))}
	router := newTestRouter(Deps{Executor: exec})

	w, body := do(t, router, http.MethodPost, "/execute", `{"command":"next tab"}`)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.NotContains(t, body["message"], "abcdefghijklmnopqrstuvwxyz")
}

func TestExecute_RateLimited(t *testing.T) {
	exec := &fakeExecutor{available: true, result: agent.Result{Output: "ok", Steps: []agent.Step{}}}
	router := NewRouter(NewHandlers(Deps{Executor: exec, Forwarder: &recordingForwarder{}}), "fixflow-test", NewLimiter(0.001, 1))

	w, _ := do(t, router, http.MethodPost, "/execute", `{"command":"a"}`)
	assert.Equal(t, http.StatusOK, w.Code)

	w, body := do(t, router, http.MethodPost, "/execute", `{"command":"b"}`)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "error", body["status"])
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
	assert.Len(t, exec.inputs, 1)

	// Passthroughs are not limited.
	w, _ = do(t, router, http.MethodGet, "/nextTab", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestNewLimiter(t *testing.T) {
	assert.Nil(t, NewLimiter(0, 5))
	l := NewLimiter(2, 0)
	require.NotNil(t, l)
	assert.Equal(t, 1, l.Burst())
}

func TestPassthrough_BindsDeclaredParamsOnly(t *testing.T) {
	fwd := &recordingForwarder{}
	router := newTestRouter(Deps{Forwarder: fwd})

	w, body := do(t, router, http.MethodGet, "/goToLine?line=42&extra=1", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "success", body["status"])
	require.Equal(t, []string{editor.CommandGoToLine}, fwd.calls)
	assert.Equal(t, map[string]any{"line": int64(42)}, fwd.bounds[0])
}

func TestPassthrough_BadIntegerNeverForwards(t *testing.T) {
	fwd := &recordingForwarder{}
	router := newTestRouter(Deps{Forwarder: fwd})

	w, body := do(t, router, http.MethodGet, "/goToLine?line=ten", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "error", body["status"])
	assert.Equal(t, editor.CommandGoToLine, body["command"])
	assert.Empty(t, fwd.calls)
}

func TestPassthrough_StatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		result editor.ForwardResult
		want   int
	}{
		{"transport", editor.Failure("next-tab", editor.KindTransport, "HTTP error occurred: refused"), http.StatusServiceUnavailable},
		{"validation", editor.Failure("next-tab", editor.KindValidation, "bad"), http.StatusBadRequest},
		{"upstream", editor.Failure("next-tab", editor.KindUpstream, "remote failed"), http.StatusBadGateway},
		{"internal", editor.Failure("next-tab", editor.KindInternal, "An error occurred: x"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(Deps{Forwarder: &recordingForwarder{result: tt.result}})
			w, body := do(t, router, http.MethodGet, "/nextTab", "")
			assert.Equal(t, tt.want, w.Code)
			assert.Equal(t, "error", body["status"])
			assert.Equal(t, "next-tab", body["command"])
		})
	}
}

// The passthrough against a real Forwarder: the line is rejected locally.
func TestPassthrough_GoToLineZeroWithRealForwarder(t *testing.T) {
	var hits int
	var mu sync.Mutex
	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits++
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"success","command":"goToLine"}`))
	}))
	defer remote.Close()

	fwd := editor.NewForwarder(editor.ForwarderConfig{EditorBaseURL: remote.URL, Timeout: 2 * time.Second})
	router := newTestRouter(Deps{Forwarder: fwd})

	w, body := do(t, router, http.MethodGet, "/goToLine?line=0", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "error", body["status"])

	w, body = do(t, router, http.MethodGet, "/goToLine?line=7", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "goToLine", body["command"])

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, hits)
}

func TestSearchFiles(t *testing.T) {
	res := &fakeResolver{match: filesearch.MatchResult{
		BestMatch:       "config.yml",
		SimilarityScore: 0.9,
		Path:            "/ws/config.yml",
		FilesSearched:   2,
	}}
	router := newTestRouter(Deps{Resolver: res, WorkspaceDir: "/ws"})

	w, body := do(t, router, http.MethodPost, "/files/search", `{"search_term":"main config"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "/ws/config.yml", body["full_path"])
	assert.Equal(t, float64(2), body["files_searched"])
	assert.Equal(t, "/ws", res.gotDir)
	assert.Equal(t, "main config", res.gotTerm)

	_, _ = do(t, router, http.MethodPost, "/files/search", `{"directory":"/other","search_term":"x"}`)
	assert.Equal(t, "/other", res.gotDir)
}

func TestSearchFiles_Errors(t *testing.T) {
	tests := []struct {
		name     string
		resolver FileResolver
		body     string
		want     int
	}{
		{"missing term", &fakeResolver{}, `{}`, http.StatusBadRequest},
		{"not configured", nil, `{"search_term":"x"}`, http.StatusServiceUnavailable},
		{"empty term", &fakeResolver{err: filesearch.ErrEmptySearchTerm}, `{"search_term":" "}`, http.StatusBadRequest},
		{"no files", &fakeResolver{err: filesearch.ErrNoFilesFound}, `{"search_term":"x"}`, http.StatusNotFound},
		{"missing dir", &fakeResolver{err: fmt.Errorf("walk: %w", fs.ErrNotExist)}, `{"search_term":"x"}`, http.StatusNotFound},
		{"completion", &fakeResolver{err: fmt.Errorf("%w: timeout", filesearch.ErrCompletion)}, `{"search_term":"x"}`, http.StatusBadGateway},
		{"other", &fakeResolver{err: errors.New("permission denied")}, `{"search_term":"x"}`, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Deps{WorkspaceDir: "/ws"}
			if tt.resolver != nil {
				d.Resolver = tt.resolver
			}
			w, body := do(t, newTestRouter(d), http.MethodPost, "/files/search", tt.body)
			assert.Equal(t, tt.want, w.Code)
			assert.Equal(t, "error", body["status"])
		})
	}
}

func TestRequestIDAndCORS(t *testing.T) {
	router := newTestRouter(Deps{})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "bad id with spaces")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	got := w.Header().Get(RequestIDHeader)
	assert.NotEmpty(t, got)
	assert.NotEqual(t, "bad id with spaces", got)

	req = httptest.NewRequest(http.MethodOptions, "/execute", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestRecoveryKeepsServing(t *testing.T) {
	router := newTestRouter(Deps{Forwarder: panicForwarder{}})

	req := httptest.NewRequest(http.MethodGet, "/nextTab", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	w2, _ := do(t, router, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, w2.Code)
}

type panicForwarder struct{}

func (panicForwarder) Forward(context.Context, editor.Command, map[string]any) editor.ForwardResult {
	panic("unexpected")
}

func TestSanitizeRequestID(t *testing.T) {
	assert.Equal(t, "a.b:c_d-e", sanitizeRequestID(" a.b:c_d-e "))
	assert.Empty(t, sanitizeRequestID(strings.Repeat("a", 65)))
	assert.Empty(t, sanitizeRequestID("a/b"))
}
