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
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "sk-testkeytestkeytestkeytestkey"

func newTestOpenAI(t *testing.T, handler http.HandlerFunc) *OpenAIClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewOpenAIClientWithConfig(ClientConfig{
		APIKey:  NewCredential(testKey),
		BaseURL: srv.URL + "/",
		Model:   "gpt-4o",
	})
}

func TestOpenAIClient_ChatWithTools_ParsesToolCalls(t *testing.T) {
	var got openaiRequest
	client := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer "+testKey, r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","choices":[{"index":0,"finish_reason":"tool_calls","message":{"role":"assistant","tool_calls":[{"id":"call_1","type":"function","function":{"name":"go-to-line","arguments":"{\"line\":4}"}}]}}]}`))
	})

	tools := []ToolDef{{
		Type: "function",
		Function: ToolFunction{
			Name:        "go-to-line",
			Description: "Go to a line",
			Parameters: ToolParameters{
				Type:       "object",
				Properties: map[string]ToolParamDef{"line": {Type: "integer"}},
				Required:   []string{"line"},
			},
		},
	}}
	msgs := []ChatMessage{
		{Role: "system", Content: "sys"},
		{Role: "user", Content: "go to line 4"},
	}

	res, err := client.ChatWithTools(context.Background(), msgs, GenerationParams{}, tools)
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o", got.Model)
	require.Len(t, got.Tools, 1)
	assert.Equal(t, "go-to-line", got.Tools[0].Function.Name)
	assert.Nil(t, got.ResponseFormat)

	assert.Equal(t, "tool_use", res.StopReason)
	require.Len(t, res.ToolCalls, 1)
	assert.Equal(t, "call_1", res.ToolCalls[0].ID)
	assert.JSONEq(t, `{"line":4}`, string(res.ToolCalls[0].Arguments))
}

func TestOpenAIClient_ChatWithTools_EchoesToolResults(t *testing.T) {
	var got openaiRequest
	client := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"done"},"finish_reason":"stop"}]}`))
	})

	msgs := []ChatMessage{
		{Role: "user", Content: "next tab"},
		{Role: "assistant", ToolCalls: []ToolCallResponse{{ID: "c1", Name: "next-tab", Arguments: json.RawMessage(`{}`)}}},
		{Role: "tool", ToolCallID: "c1", ToolName: "next-tab", Content: `{"status":"success"}`},
	}
	res, err := client.ChatWithTools(context.Background(), msgs, GenerationParams{ModelOverride: "gpt-4o-mini"}, nil)
	require.NoError(t, err)

	assert.Equal(t, "done", res.Content)
	assert.Equal(t, "end", res.StopReason)
	assert.Equal(t, "gpt-4o-mini", got.Model)
	require.Len(t, got.Messages, 3)
	require.Len(t, got.Messages[1].ToolCalls, 1)
	assert.Equal(t, "{}", got.Messages[1].ToolCalls[0].Function.Arguments)
	assert.Equal(t, "c1", got.Messages[2].ToolCallID)
}

func TestOpenAIClient_CompleteJSON_RequestsJSONObject(t *testing.T) {
	var got openaiRequest
	client := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"{\"best_match\":\"main.py\"}"}}]}`))
	})

	out, err := client.CompleteJSON(context.Background(), "sys", "user", GenerationParams{})
	require.NoError(t, err)

	assert.JSONEq(t, `{"best_match":"main.py"}`, out)
	require.NotNil(t, got.ResponseFormat)
	assert.Equal(t, "json_object", got.ResponseFormat.Type)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
}

func TestOpenAIClient_ErrorStatusIsRedacted(t *testing.T) {
	client := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"Incorrect API key provided: ` + testKey + `"}}`))
	})

	_, err := client.CompleteJSON(context.Background(), "s", "u", GenerationParams{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
	assert.NotContains(t, err.Error(), testKey)
	assert.Equal(t, "auth", classifyError(err))
}

func TestOpenAIClient_EmptyChoices(t *testing.T) {
	client := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	})

	_, err := client.ChatWithTools(context.Background(), []ChatMessage{{Role: "user", Content: "x"}}, GenerationParams{}, nil)
	var empty *EmptyResponseError
	require.True(t, errors.As(err, &empty))
	assert.Equal(t, BackendOpenAI, empty.Backend)
}

func TestNewClient(t *testing.T) {
	_, err := NewClient(ClientConfig{Backend: BackendOpenAI})
	assert.ErrorIs(t, err, ErrMissingAPIKey)

	c, err := NewClient(ClientConfig{Backend: "", APIKey: NewCredential(testKey)})
	require.NoError(t, err)
	assert.Equal(t, BackendOpenAI, c.Name())

	_, err = NewClient(ClientConfig{Backend: "bogus", APIKey: NewCredential(testKey)})
	assert.Error(t, err)
}

func TestCredential(t *testing.T) {
	assert.Nil(t, NewCredential(""))

	var nilCred *Credential
	_, err := nilCred.Reveal()
	assert.ErrorIs(t, err, ErrMissingAPIKey)

	cred := NewCredential("secret")
	got, err := cred.Reveal()
	require.NoError(t, err)
	assert.Equal(t, "secret", got)
}
