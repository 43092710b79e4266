// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package agent

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const agentTracerName = "fixflow.agent"

var (
	executionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fixflow",
			Subsystem: "agent",
			Name:      "executions_total",
			Help:      "Agent executions by outcome (answered, max_iterations, unavailable).",
		},
		[]string{"outcome"},
	)

	// toolCallsTotal labels:
	//   - tool: command name, or "unknown" for names outside the registry
	//   - outcome: "ok" or an editor.ErrorKind
	toolCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fixflow",
			Subsystem: "agent",
			Name:      "tool_calls_total",
			Help:      "Tool calls made by the agent.",
		},
		[]string{"tool", "outcome"},
	)

	iterationsHistogram = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "fixflow",
			Subsystem: "agent",
			Name:      "iterations",
			Help:      "Completion round trips per execution.",
			Buckets:   []float64{1, 2, 3, 4, 5, 8, 12, 15, 20},
		},
	)
)
