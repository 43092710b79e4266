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
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/fixflow/services/editor"
)

// RegisterRoutes registers every fixflow endpoint.
//
// Description:
//
//	limiter guards POST /execute only; nil disables it. One GET route is
//	registered per registry command at its endpoint name.
//
// Endpoints:
//
//	GET  /              - banner
//	GET  /health        - liveness and agent availability
//	GET  /metrics       - Prometheus exposition
//	GET  /commands      - registry listing
//	POST /execute       - natural-language request through the agent
//	POST /files/search  - fuzzy file resolution
//	GET  /nextTab, /openFile?path=, /goToLine?line=, ... - passthroughs
func RegisterRoutes(r gin.IRoutes, h *Handlers, limiter *rate.Limiter) {
	r.GET("/", h.HandleRoot)
	r.GET("/health", h.HandleHealth)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/commands", h.HandleCommands)
	r.POST("/execute", RateLimit(limiter), h.HandleExecute)
	r.POST("/files/search", h.HandleSearchFiles)

	for _, cmd := range editor.Commands() {
		r.GET("/"+cmd.Endpoint, h.commandHandler(cmd))
	}
}

// NewRouter builds the gin engine for `fixflow serve`.
func NewRouter(h *Handlers, serviceName string, limiter *rate.Limiter) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))
	router.Use(RequestID())
	router.Use(CORS())
	router.Use(AccessLog())
	RegisterRoutes(router, h, limiter)
	return router
}
