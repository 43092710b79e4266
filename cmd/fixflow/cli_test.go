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
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/fixflow/services/agent"
	"github.com/AleutianAI/fixflow/services/config"
	"github.com/AleutianAI/fixflow/services/editor"
	"github.com/AleutianAI/fixflow/services/filesearch"
)

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

func TestRootCommand_Subcommands(t *testing.T) {
	root := newRootCmd()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"serve", "exec", "chat", "files", "windows"} {
		assert.Contains(t, names, want)
	}
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warn"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel("nonsense"))
}

func TestNewLogger_Format(t *testing.T) {
	var buf bytes.Buffer
	newLogger(&buf, false, "info", "auto").Info("hello", slog.String("k", "v"))
	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "hello", rec["msg"])

	buf.Reset()
	newLogger(&buf, true, "info", "auto").Info("hello")
	assert.Contains(t, buf.String(), "msg=hello")

	buf.Reset()
	newLogger(&buf, true, "warn", "json").Info("dropped")
	assert.Empty(t, buf.String())
}

func TestLoadConfig_WithoutAgentNeedsNoKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	os.Unsetenv("OPENAI_API_KEY")
	t.Setenv("AGENT_ENABLED", "true")
	opts := &rootOptions{}

	_, err := loadConfig(opts, true)
	assert.ErrorIs(t, err, config.ErrMissingAPIKey)

	cfg, err := loadConfig(opts, false)
	require.NoError(t, err)
	assert.False(t, cfg.Agent.Enabled)
}

func TestNewApp_WithoutKey(t *testing.T) {
	cfg := config.Default()
	cfg.Agent.Enabled = false
	cfg.Resolver.WorkspaceDir = t.TempDir()

	a, err := newApp(cfg)
	require.NoError(t, err)
	assert.Nil(t, a.client)
	assert.False(t, a.dispatcher.Available())
	require.NotNil(t, a.resolver)

	require.NoError(t, os.WriteFile(filepath.Join(cfg.Resolver.WorkspaceDir, "a.go"), []byte("package a"), 0o600))
	_, err = a.resolver.Resolve(context.Background(), cfg.Resolver.WorkspaceDir, "a")
	assert.ErrorIs(t, err, filesearch.ErrCompletion)
}

func TestNewApp_WithKeyAgentDisabled(t *testing.T) {
	cfg := config.Default()
	cfg.LLM.APIKey = "test-key"
	cfg.Agent.Enabled = false

	a, err := newApp(cfg)
	require.NoError(t, err)
	assert.NotNil(t, a.client)
	assert.False(t, a.dispatcher.Available())
	assert.Empty(t, cfg.LLM.APIKey, "the plaintext key does not outlive wiring")
}

// End to end through the real wiring: a scripted completion service asks
// for the status tool once, then answers.
func TestExec_EndToEnd(t *testing.T) {
	extension := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"message":"ok"}`))
	}))
	defer extension.Close()

	calls := 0
	completion := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		calls++
		w.Header().Set("Content-Type", "application/json")
		if calls == 1 {
			_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","tool_calls":[` +
				`{"id":"call_1","type":"function","function":{"name":"status","arguments":"{}"}}]},"finish_reason":"tool_calls"}]}`))
			return
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"The extension is running."},"finish_reason":"stop"}]}`))
	}))
	defer completion.Close()

	cfg := config.Default()
	cfg.Editor.BaseURL = extension.URL
	cfg.Window.BaseURL = extension.URL
	cfg.LLM.APIKey = "test-key"
	cfg.LLM.BaseURL = completion.URL
	cfg.Resolver.WorkspaceDir = t.TempDir()

	a, err := newApp(cfg)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, runExec(context.Background(), &out, a.dispatcher, "check if the extension is running", true))

	var resp map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	assert.Equal(t, "success", resp["status"])
	assert.Equal(t, "The extension is running.", resp["output"])
	steps := resp["steps"].([]any)
	require.Len(t, steps, 1)
	step := steps[0].(map[string]any)
	assert.Equal(t, "status", step["tool"])
	assert.Equal(t, "connected", step["result"].(map[string]any)["status"])
	assert.Equal(t, 2, calls)
}

func TestRunExec_Unavailable(t *testing.T) {
	err := runExec(context.Background(), io.Discard, &fakeExecutor{}, "x", false)
	assert.ErrorIs(t, err, agent.ErrAgentUnavailable)
}

func TestRunExec_PlainOutput(t *testing.T) {
	ex := &fakeExecutor{available: true, result: agent.Result{
		Output: "Opened config.yml",
		Steps: []agent.Step{
			{Tool: "open-file", Args: map[string]any{"path": "/ws/config.yml"}, Result: editor.Success("open-file", map[string]any{})},
			{Tool: "go-to-line", Args: map[string]any{"line": 0}, Result: editor.Failure("go-to-line", editor.KindValidation, "line must be >= 1")},
		},
	}}
	var out bytes.Buffer
	require.NoError(t, runExec(context.Background(), &out, ex, "open config", false))

	text := out.String()
	assert.Contains(t, text, `open-file {"path":"/ws/config.yml"} -> ok`)
	assert.Contains(t, text, `go-to-line {"line":0} -> error: line must be >= 1`)
	assert.True(t, strings.HasSuffix(text, "Opened config.yml\n"))
}

func TestRunChat(t *testing.T) {
	ex := &fakeExecutor{available: true, result: agent.Result{Output: "done"}}
	in := strings.NewReader("next tab\n\n  \nprevious tab\nexit\nnever\n")
	var out bytes.Buffer

	require.NoError(t, runChat(context.Background(), &out, ex, scannerPrompt(bufio.NewScanner(in))))
	assert.Equal(t, []string{"next tab", "previous tab"}, ex.inputs)
	assert.Contains(t, out.String(), "Goodbye.")
}

func TestRunChat_ErrorsDoNotEndSession(t *testing.T) {
	ex := &fakeExecutor{available: true, err: errors.New("agent unavailable: timeout")}
	in := strings.NewReader("a\nb\n")
	var out bytes.Buffer

	require.NoError(t, runChat(context.Background(), &out, ex, scannerPrompt(bufio.NewScanner(in))))
	assert.Len(t, ex.inputs, 2)
	assert.Equal(t, 2, strings.Count(out.String(), "Error: agent unavailable: timeout"))
}

type stubResolver struct {
	match filesearch.MatchResult
	err   error
}

func (s stubResolver) Resolve(context.Context, string, string) (filesearch.MatchResult, error) {
	return s.match, s.err
}

func TestRunFileSearch(t *testing.T) {
	var out bytes.Buffer
	r := stubResolver{match: filesearch.MatchResult{BestMatch: "config.yml", SimilarityScore: 0.91, Path: "/ws/config.yml", FilesSearched: 2}}
	require.NoError(t, runFileSearch(context.Background(), &out, r, "/ws", "main config", false))
	assert.Contains(t, out.String(), "/ws/config.yml")
	assert.Contains(t, out.String(), "0.91")

	out.Reset()
	r = stubResolver{match: filesearch.MatchResult{BestMatch: "ghost.md", FilesSearched: 3}}
	require.NoError(t, runFileSearch(context.Background(), &out, r, "/ws", "x", false))
	assert.Contains(t, out.String(), "No matching file found (searched 3 files)")

	out.Reset()
	r = stubResolver{match: filesearch.MatchResult{BestMatch: "a.go", Path: "/ws/a.go", FilesSearched: 1}}
	require.NoError(t, runFileSearch(context.Background(), &out, r, "/ws", "a", true))
	var m map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &m))
	assert.Equal(t, "/ws/a.go", m["full_path"])

	err := runFileSearch(context.Background(), io.Discard, stubResolver{err: filesearch.ErrNoFilesFound}, "/ws", "a", false)
	assert.ErrorIs(t, err, filesearch.ErrNoFilesFound)
}

func TestServeHTTP_GracefulShutdown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serveHTTP(ctx, srv, ln, time.Second) }()

	resp, err := http.Get("http://" + ln.Addr().String())
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestServeHTTP_ListenFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	srv := &http.Server{Addr: ln.Addr().String(), Handler: http.NotFoundHandler()}
	err = serveHTTP(context.Background(), srv, nil, time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listen failed")
}

func TestSpinnerDisabledStopsImmediately(t *testing.T) {
	var buf bytes.Buffer
	s := startSpinner(&buf, false, "x")
	s.stop()
	s.stop()
	assert.Empty(t, buf.String())
}
