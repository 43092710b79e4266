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
	"bytes"
	"encoding/json"
	"fmt"
)

// ToolDef is the generic tool definition passed to ChatWithTools.
// Follows the OpenAI function calling schema.
//
// Description:
//
//	Each editor command is described to the completion service as one
//	ToolDef. Backends convert it into their own wire format.
//
// Thread Safety: ToolDef is immutable and safe for concurrent read access.
type ToolDef struct {
	// Type is the tool type. Always "function" for function calling.
	Type string `json:"type"`

	// Function contains the function definition.
	Function ToolFunction `json:"function"`
}

// ToolFunction contains the function name, description, and parameter schema.
type ToolFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  ToolParameters `json:"parameters"`
}

// ToolParameters defines the JSON Schema for tool parameters.
type ToolParameters struct {
	// Type is the JSON Schema type. Always "object" for tool parameters.
	Type string `json:"type"`

	// Properties maps parameter names to their definitions.
	Properties map[string]ToolParamDef `json:"properties"`

	// Required lists parameter names that must be provided.
	Required []string `json:"required,omitempty"`
}

// ToolParamDef defines a single parameter in JSON Schema format.
type ToolParamDef struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

// ChatMessage is a message that carries tool call metadata.
//
// Description:
//
//	Regular messages use Role + Content. Tool results set ToolCallID and
//	ToolName. Assistant messages that requested tools carry ToolCalls so the
//	next round trip can be correlated by the completion service.
//
// Thread Safety: ChatMessage is safe for concurrent read access.
type ChatMessage struct {
	// Role is the message role: "system", "user", "assistant", or "tool".
	Role string `json:"role"`

	Content string `json:"content,omitempty"`

	// ToolCalls contains tool invocations (for assistant messages).
	ToolCalls []ToolCallResponse `json:"tool_calls,omitempty"`

	// ToolCallID links a tool result message back to its call.
	ToolCallID string `json:"tool_call_id,omitempty"`

	// ToolName is the tool name for tool result messages.
	ToolName string `json:"tool_name,omitempty"`
}

// ToolCallResponse represents a tool call requested by the completion service.
//
// Thread Safety: ToolCallResponse is safe for concurrent read access.
type ToolCallResponse struct {
	// ID is the unique identifier for this tool call. Backends that do not
	// provide one get a synthetic ID.
	ID string `json:"id"`

	// Name is the function name to call.
	Name string `json:"name"`

	// Arguments is the raw JSON arguments for the function.
	Arguments json.RawMessage `json:"arguments"`
}

// ArgumentsString returns the arguments as a JSON string.
//
// Description:
//
//	If arguments is already a JSON string value (starts with quote),
//	it returns the unquoted string. If arguments is an object or other
//	JSON value, it returns the raw JSON as-is. Returns "{}" for nil/empty.
//
// Thread Safety: This method is safe for concurrent use.
func (t *ToolCallResponse) ArgumentsString() string {
	if len(t.Arguments) == 0 {
		return "{}"
	}

	// Some models double-encode the arguments object as a string.
	if t.Arguments[0] == '"' {
		var s string
		if err := json.Unmarshal(t.Arguments, &s); err == nil {
			return s
		}
	}

	return string(t.Arguments)
}

// DecodeArguments parses the arguments into an argument bag.
//
// Description:
//
//	Numbers are kept as json.Number so integer parameters such as line
//	numbers survive without float rounding. Empty or "null" arguments
//	decode to an empty bag.
//
// Outputs:
//   - map[string]any: The decoded arguments. Never nil on success.
//   - error: Non-nil if the arguments are not a JSON object.
//
// Thread Safety: This method is safe for concurrent use.
func (t *ToolCallResponse) DecodeArguments() (map[string]any, error) {
	raw := t.ArgumentsString()
	args := make(map[string]any)
	if raw == "" || raw == "null" {
		return args, nil
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	if err := dec.Decode(&args); err != nil {
		return nil, fmt.Errorf("tool %q: arguments are not a JSON object: %w", t.Name, err)
	}
	if args == nil {
		args = make(map[string]any)
	}
	return args, nil
}

// ChatWithToolsResult is the backend-agnostic result from ChatWithTools.
//
// Thread Safety: ChatWithToolsResult is safe for concurrent read access.
type ChatWithToolsResult struct {
	// Content is the text response (may be empty if only tool calls).
	Content string

	// ToolCalls contains tool calls from the model.
	ToolCalls []ToolCallResponse

	// StopReason is "end" (normal completion) or "tool_use".
	StopReason string
}
