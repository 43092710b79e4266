// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package window

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// Handlers serves the window endpoints the editor forwarder targets.
type Handlers struct {
	svc *Service
}

// NewHandlers creates Handlers.
func NewHandlers(svc *Service) *Handlers {
	return &Handlers{svc: svc}
}

// RegisterRoutes registers the window endpoints.
//
// Endpoints:
//
//	GET /              - liveness banner, also answers the status probe
//	GET /listWindows   - {status, windows}
//	GET /switchWindow  - ?title=<substring>
func RegisterRoutes(r gin.IRoutes, h *Handlers) {
	r.GET("/", h.HandleRoot)
	r.GET("/listWindows", h.HandleListWindows)
	r.GET("/switchWindow", h.HandleSwitchWindow)
}

// NewRouter builds the gin engine for `fixflow windows serve`.
func NewRouter(h *Handlers) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("fixflow-window"))
	RegisterRoutes(router, h)
	return router
}

// HandleRoot handles GET /.
func (h *Handlers) HandleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "window service is running"})
}

// HandleListWindows handles GET /listWindows.
//
// Response:
//
//	200 OK: {"status":"success","windows":[...]}
//	500 Internal Server Error: platform failure
func (h *Handlers) HandleListWindows(c *gin.Context) {
	titles, err := h.svc.List(c.Request.Context())
	if err != nil {
		slog.Error("list windows failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, errorBody("listWindows", err.Error()))
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "windows": titles})
}

// HandleSwitchWindow handles GET /switchWindow.
//
// Query Parameters:
//
//	title: Substring of the target window title (required)
//
// Response:
//
//	200 OK: {"status":"success","command":"switchWindow","message":...}
//	400 Bad Request: missing or blank title, no platform call made
//	404 Not Found: no window title contains the query
//	500 Internal Server Error: platform failure
func (h *Handlers) HandleSwitchWindow(c *gin.Context) {
	title, err := h.svc.Switch(c.Request.Context(), c.Query("title"))
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{
			"status":  "success",
			"command": "switchWindow",
			"message": "Switched to window: " + title,
		})
	case errors.Is(err, ErrEmptyTitle):
		c.JSON(http.StatusBadRequest, errorBody("switchWindow", err.Error()))
	case errors.Is(err, ErrWindowNotFound):
		c.JSON(http.StatusNotFound, errorBody("switchWindow", err.Error()))
	default:
		slog.Error("switch window failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, errorBody("switchWindow", err.Error()))
	}
}

func errorBody(command, message string) gin.H {
	return gin.H{"status": "error", "command": command, "message": message}
}
