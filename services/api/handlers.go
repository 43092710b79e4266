// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package api is the fixflow HTTP surface: the agent endpoint, one
// passthrough per registry command and file search.
package api

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/fixflow/services/agent"
	"github.com/AleutianAI/fixflow/services/editor"
	"github.com/AleutianAI/fixflow/services/filesearch"
	"github.com/AleutianAI/fixflow/services/llm"
)

// Executor runs natural-language requests.
type Executor interface {
	Execute(ctx context.Context, input string) (agent.Result, error)
	Available() bool
}

// Forwarder sends one bound command to its collaborator.
type Forwarder interface {
	Forward(ctx context.Context, cmd editor.Command, bound map[string]any) editor.ForwardResult
}

// FileResolver ranks workspace files against a search term.
type FileResolver interface {
	Resolve(ctx context.Context, dir, term string) (filesearch.MatchResult, error)
}

// Handlers holds the collaborators injected from main.
//
// Thread Safety: Safe for concurrent use; all fields are read-only.
type Handlers struct {
	executor     Executor
	forwarder    Forwarder
	resolver     FileResolver
	workspaceDir string
}

// Deps are the Handlers collaborators. Executor and Resolver may be nil.
type Deps struct {
	Executor     Executor
	Forwarder    Forwarder
	Resolver     FileResolver
	WorkspaceDir string
}

// NewHandlers creates Handlers.
func NewHandlers(d Deps) *Handlers {
	return &Handlers{
		executor:     d.Executor,
		forwarder:    d.Forwarder,
		resolver:     d.Resolver,
		workspaceDir: d.WorkspaceDir,
	}
}

// HandleRoot handles GET /.
func (h *Handlers) HandleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "fixflow control server is running"})
}

// HandleHealth handles GET /health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"agent":  h.executor != nil && h.executor.Available(),
	})
}

// HandleCommands handles GET /commands.
func (h *Handlers) HandleCommands(c *gin.Context) {
	c.JSON(http.StatusOK, CommandsResponse{Commands: editor.Commands()})
}

// HandleExecute handles POST /execute.
//
// Request Body:
//
//	{"command": "<natural language request>"}
//
// Response:
//
//	200 OK: ExecuteResponse
//	400 Bad Request: Malformed body or empty command
//	503 Service Unavailable: No completion service configured
//	502 Bad Gateway: Completion service failed
//	500 Internal Server Error: Anything else
//
// Thread Safety: Safe for concurrent use.
func (h *Handlers) HandleExecute(c *gin.Context) {
	logger := slog.With("request_id", requestID(c), "handler", "HandleExecute")

	var req ExecuteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(CodeInvalidRequest, "invalid request body: "+err.Error()))
		return
	}
	if strings.TrimSpace(req.Command) == "" {
		c.JSON(http.StatusBadRequest, errorResponse(CodeInvalidRequest, agent.ErrEmptyInput.Error()))
		return
	}
	if h.executor == nil || !h.executor.Available() {
		c.JSON(http.StatusServiceUnavailable, errorResponse(CodeAgentUnavailable,
			"agent is not configured; set OPENAI_API_KEY to enable it"))
		return
	}

	result, err := h.executor.Execute(c.Request.Context(), req.Command)
	if err != nil {
		msg := llm.SafeLogString(err.Error())
		switch {
		case errors.Is(err, agent.ErrEmptyInput):
			c.JSON(http.StatusBadRequest, errorResponse(CodeInvalidRequest, msg))
		case errors.Is(err, agent.ErrAgentUnavailable):
			logger.Error("completion service failed", slog.String("error", msg))
			c.JSON(http.StatusBadGateway, errorResponse(CodeUpstream, msg))
		default:
			logger.Error("execute failed", slog.String("error", msg))
			c.JSON(http.StatusInternalServerError, errorResponse(CodeInternal, msg))
		}
		return
	}

	logger.Info("execute complete", slog.Int("steps", len(result.Steps)))
	c.JSON(http.StatusOK, ExecuteResponse{Status: "success", Output: result.Output, Steps: result.Steps})
}

// commandHandler returns the passthrough for one registry command.
//
// Query values are converted per declared parameter type and forwarded.
// The ForwardResult is written as-is with its mapped status code.
func (h *Handlers) commandHandler(cmd editor.Command) gin.HandlerFunc {
	return func(c *gin.Context) {
		args, err := editor.ArgsFromQuery(cmd, c.Request.URL.Query())
		if err != nil {
			res := editor.Failure(cmd.Name, editor.KindValidation, err.Error())
			c.JSON(res.HTTPStatus(), res)
			return
		}
		res := h.forwarder.Forward(c.Request.Context(), cmd, args)
		c.JSON(res.HTTPStatus(), res)
	}
}

// HandleSearchFiles handles POST /files/search.
//
// Request Body:
//
//	{"directory": "<optional, defaults to workspace>", "search_term": "..."}
//
// Response:
//
//	200 OK: MatchResult (full_path is "" when nothing matched)
//	400 Bad Request: Missing search_term
//	404 Not Found: Directory missing or holds no eligible files
//	502 Bad Gateway: Completion service failed
//	503 Service Unavailable: No completion service configured
func (h *Handlers) HandleSearchFiles(c *gin.Context) {
	logger := slog.With("request_id", requestID(c), "handler", "HandleSearchFiles")

	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(CodeInvalidRequest, "search_term is required"))
		return
	}
	if h.resolver == nil {
		c.JSON(http.StatusServiceUnavailable, errorResponse(CodeAgentUnavailable, "file search is not configured"))
		return
	}
	dir := req.Directory
	if dir == "" {
		dir = h.workspaceDir
	}

	match, err := h.resolver.Resolve(c.Request.Context(), dir, req.SearchTerm)
	if err != nil {
		msg := llm.SafeLogString(err.Error())
		switch {
		case errors.Is(err, filesearch.ErrEmptySearchTerm):
			c.JSON(http.StatusBadRequest, errorResponse(CodeInvalidRequest, msg))
		case errors.Is(err, filesearch.ErrNoFilesFound), errors.Is(err, fs.ErrNotExist):
			c.JSON(http.StatusNotFound, errorResponse(CodeNotFound, msg))
		case errors.Is(err, filesearch.ErrCompletion):
			logger.Warn("file ranking failed", slog.String("error", msg))
			c.JSON(http.StatusBadGateway, errorResponse(CodeUpstream, msg))
		default:
			logger.Error("file search failed", slog.String("error", msg))
			c.JSON(http.StatusInternalServerError, errorResponse(CodeInternal, msg))
		}
		return
	}
	c.JSON(http.StatusOK, match)
}
