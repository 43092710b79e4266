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
	"errors"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// llmTracerName is the shared OTel tracer name for completion-service clients.
const llmTracerName = "fixflow.llm"

// Package-level Prometheus metrics for completion-service calls.
// Auto-registered via promauto so no explicit registry wiring is needed.
var (
	// llmCallDuration measures the duration of completion-service calls.
	//
	// Labels:
	//   - backend: "openai" or "langchain"
	//   - operation: "chat_with_tools" or "complete_json"
	//   - status: "success" or "error"
	llmCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fixflow",
			Subsystem: "llm",
			Name:      "call_duration_seconds",
			Help:      "Duration of completion-service calls in seconds.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"backend", "operation", "status"},
	)

	llmCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fixflow",
			Subsystem: "llm",
			Name:      "calls_total",
			Help:      "Total number of completion-service calls.",
		},
		[]string{"backend", "operation", "status"},
	)

	// llmErrorsTotal counts errors by type.
	//
	// Labels:
	//   - error_type: "timeout", "auth", "rate_limit", "server", "empty_response", "unknown"
	llmErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fixflow",
			Subsystem: "llm",
			Name:      "errors_total",
			Help:      "Total completion-service errors by type.",
		},
		[]string{"backend", "error_type"},
	)

	llmActiveRequests = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "fixflow",
			Subsystem: "llm",
			Name:      "active_requests",
			Help:      "Number of in-flight completion-service requests.",
		},
		[]string{"backend"},
	)
)

// classifyError maps an error to a label-safe error type string.
//
// Description:
//
//	Inspects the error to categorize it into one of the predefined error
//	types used as Prometheus label values. This avoids high-cardinality
//	labels from raw error messages.
//
// Outputs:
//
//	string - One of: "timeout", "auth", "rate_limit", "server",
//	         "empty_response", "unknown". Returns empty string for nil error.
//
// Thread Safety: Safe for concurrent use.
func classifyError(err error) string {
	if err == nil {
		return ""
	}

	var empty *EmptyResponseError
	if errors.As(err, &empty) {
		return "empty_response"
	}

	msg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(msg, "context deadline exceeded") ||
		strings.Contains(msg, "context canceled") ||
		strings.Contains(msg, "timeout"):
		return "timeout"
	case strings.Contains(msg, "status 401") ||
		strings.Contains(msg, "status 403") ||
		strings.Contains(msg, "unauthorized") ||
		strings.Contains(msg, "api key"):
		return "auth"
	case strings.Contains(msg, "status 429") ||
		strings.Contains(msg, "rate limit"):
		return "rate_limit"
	case strings.Contains(msg, "status 500") ||
		strings.Contains(msg, "status 502") ||
		strings.Contains(msg, "status 503") ||
		strings.Contains(msg, "server error"):
		return "server"
	default:
		return "unknown"
	}
}

// recordLLMMetrics records Prometheus metrics for a completed call.
//
// Thread Safety: Safe for concurrent use.
func recordLLMMetrics(backend, operation string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
		llmErrorsTotal.WithLabelValues(backend, classifyError(err)).Inc()
	}

	llmCallDuration.WithLabelValues(backend, operation, status).Observe(duration.Seconds())
	llmCallsTotal.WithLabelValues(backend, operation, status).Inc()
}
