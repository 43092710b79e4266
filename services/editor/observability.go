// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package editor

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const editorTracerName = "fixflow.editor"

var (
	// forwardDuration labels:
	//   - command: registry name
	//   - outcome: "ok" or an ErrorKind
	forwardDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fixflow",
			Subsystem: "editor",
			Name:      "forward_duration_seconds",
			Help:      "Duration of forwarded editor commands in seconds.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"command", "outcome"},
	)

	forwardTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fixflow",
			Subsystem: "editor",
			Name:      "forward_total",
			Help:      "Total forwarded editor commands by outcome.",
		},
		[]string{"command", "outcome"},
	)
)

// newForwardCounter creates the OTel counter mirrored into whichever
// MeterProvider services/telemetry installed.
func newForwardCounter() metric.Int64Counter {
	counter, err := otel.Meter(editorTracerName).Int64Counter(
		"fixflow.editor.forwards",
		metric.WithDescription("Forwarded editor commands"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		slog.Warn("editor: creating OTel counter failed", slog.String("error", err.Error()))
		return noop.Int64Counter{}
	}
	return counter
}

func outcomeLabel(r ForwardResult) string {
	if r.OK() {
		return string(StatusOK)
	}
	if r.Kind == KindNone {
		return string(KindInternal)
	}
	return string(r.Kind)
}

func (f *Forwarder) recordForward(ctx context.Context, r ForwardResult, elapsed time.Duration) {
	outcome := outcomeLabel(r)
	forwardDuration.WithLabelValues(r.Command, outcome).Observe(elapsed.Seconds())
	forwardTotal.WithLabelValues(r.Command, outcome).Inc()
	f.counter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("command", r.Command),
		attribute.String("outcome", outcome),
	))
}
