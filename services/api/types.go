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
	"github.com/AleutianAI/fixflow/services/agent"
	"github.com/AleutianAI/fixflow/services/editor"
)

// ErrorResponse is the body of every non-passthrough error.
type ErrorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Error codes carried in ErrorResponse.Code.
const (
	CodeInvalidRequest   = "INVALID_REQUEST"
	CodeRateLimited      = "RATE_LIMITED"
	CodeAgentUnavailable = "AGENT_UNAVAILABLE"
	CodeUpstream         = "UPSTREAM_ERROR"
	CodeNotFound         = "NOT_FOUND"
	CodeInternal         = "INTERNAL_ERROR"
)

func errorResponse(code, message string) ErrorResponse {
	return ErrorResponse{Status: "error", Message: message, Code: code}
}

// ExecuteRequest is the body of POST /execute.
type ExecuteRequest struct {
	Command string `json:"command"`
}

// ExecuteResponse is the 200 body of POST /execute.
type ExecuteResponse struct {
	Status string       `json:"status"`
	Output string       `json:"output"`
	Steps  []agent.Step `json:"steps"`
}

// SearchRequest is the body of POST /files/search.
type SearchRequest struct {
	// Directory defaults to the configured workspace.
	Directory  string `json:"directory"`
	SearchTerm string `json:"search_term" binding:"required"`
}

// CommandsResponse is the body of GET /commands.
type CommandsResponse struct {
	Commands []editor.Command `json:"commands"`
}
