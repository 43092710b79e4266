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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

type fakeModel struct {
	resp     *llms.ContentResponse
	err      error
	messages []llms.MessageContent
	opts     llms.CallOptions
}

func (f *fakeModel) GenerateContent(_ context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	f.messages = messages
	for _, o := range options {
		o(&f.opts)
	}
	return f.resp, f.err
}

func (f *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, options...)
}

func TestLangChainClient_ChatWithTools(t *testing.T) {
	model := &fakeModel{resp: &llms.ContentResponse{Choices: []*llms.ContentChoice{{
		ToolCalls: []llms.ToolCall{
			{ID: "", Type: "function", FunctionCall: &llms.FunctionCall{Name: "open-file", Arguments: `{"path":"main.py"}`}},
		},
	}}}}
	client := newLangChainClientWithModel(model, "gpt-4o")

	msgs := []ChatMessage{
		{Role: "system", Content: "sys"},
		{Role: "user", Content: "open main"},
		{Role: "assistant", ToolCalls: []ToolCallResponse{{ID: "c0", Name: "next-tab"}}},
		{Role: "tool", ToolCallID: "c0", ToolName: "next-tab", Content: "{}"},
	}
	tools := []ToolDef{{Type: "function", Function: ToolFunction{Name: "open-file"}}}

	res, err := client.ChatWithTools(context.Background(), msgs, GenerationParams{}, tools)
	require.NoError(t, err)

	require.Len(t, res.ToolCalls, 1)
	assert.Equal(t, "open-file", res.ToolCalls[0].Name)
	assert.NotEmpty(t, res.ToolCalls[0].ID, "missing ids are synthesized")
	assert.JSONEq(t, `{"path":"main.py"}`, string(res.ToolCalls[0].Arguments))
	assert.Equal(t, "tool_use", res.StopReason)

	require.Len(t, model.messages, 4)
	assert.Equal(t, llms.ChatMessageTypeSystem, model.messages[0].Role)
	assert.Equal(t, llms.ChatMessageTypeHuman, model.messages[1].Role)
	assert.Equal(t, llms.ChatMessageTypeAI, model.messages[2].Role)
	assert.Equal(t, llms.ChatMessageTypeTool, model.messages[3].Role)
	resp, ok := model.messages[3].Parts[0].(llms.ToolCallResponse)
	require.True(t, ok)
	assert.Equal(t, "c0", resp.ToolCallID)

	require.Len(t, model.opts.Tools, 1)
	assert.Equal(t, "open-file", model.opts.Tools[0].Function.Name)
}

func TestLangChainClient_CompleteJSON(t *testing.T) {
	model := &fakeModel{resp: &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: `{"best_match":"a.md"}`}}}}
	client := newLangChainClientWithModel(model, "gpt-4o")

	out, err := client.CompleteJSON(context.Background(), "sys", "user", GenerationParams{ModelOverride: "gpt-4o-mini"})
	require.NoError(t, err)

	var parsed map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &parsed))
	assert.Equal(t, "a.md", parsed["best_match"])
	assert.True(t, model.opts.JSONMode)
	assert.Equal(t, "gpt-4o-mini", model.opts.Model)
}

func TestLangChainClient_Errors(t *testing.T) {
	client := newLangChainClientWithModel(&fakeModel{err: errors.New("boom")}, "gpt-4o")
	_, err := client.ChatWithTools(context.Background(), nil, GenerationParams{}, nil)
	assert.ErrorContains(t, err, "boom")

	client = newLangChainClientWithModel(&fakeModel{resp: &llms.ContentResponse{}}, "gpt-4o")
	_, err = client.CompleteJSON(context.Background(), "s", "u", GenerationParams{})
	var empty *EmptyResponseError
	assert.True(t, errors.As(err, &empty))
}

func TestNewClient_LangChain(t *testing.T) {
	c, err := NewClient(ClientConfig{Backend: BackendLangChain, APIKey: NewCredential(testKey), BaseURL: "http://localhost:1"})
	require.NoError(t, err)
	assert.Equal(t, BackendLangChain, c.Name())
}
