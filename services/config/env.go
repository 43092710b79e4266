// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// applyEnv overrides cfg from environment variables. Unset variables leave
// the field alone; set but malformed values are an error.
func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	e := envReader{lookup: lookup}

	e.int("FIXFLOW_PORT", &cfg.Server.Port)
	e.str("FIXFLOW_HOST", &cfg.Server.Host)

	e.str("EDITOR_BASE_URL", &cfg.Editor.BaseURL)
	e.duration("EDITOR_TIMEOUT", &cfg.Editor.Timeout)

	e.str("WINDOW_BASE_URL", &cfg.Window.BaseURL)
	e.int("WINDOW_PORT", &cfg.Window.Port)
	e.str("WINDOW_APPLICATION", &cfg.Window.Application)
	e.str("WINDOW_PROCESS", &cfg.Window.Process)

	e.str("LLM_PROVIDER", &cfg.LLM.Provider)
	e.str("OPENAI_API_KEY", &cfg.LLM.APIKey)
	e.str("OPENAI_BASE_URL", &cfg.LLM.BaseURL)
	e.str("OPENAI_MODEL", &cfg.LLM.Model)
	e.str("RESOLVER_MODEL", &cfg.LLM.ResolverModel)
	e.duration("LLM_TIMEOUT", &cfg.LLM.Timeout)

	e.boolean("AGENT_ENABLED", &cfg.Agent.Enabled)
	e.int("AGENT_MAX_ITERATIONS", &cfg.Agent.MaxIterations)
	e.float("AGENT_RATE_LIMIT", &cfg.Agent.RateLimit)
	e.int("AGENT_RATE_BURST", &cfg.Agent.Burst)

	e.str("WORKSPACE_DIR", &cfg.Resolver.WorkspaceDir)
	e.list("RESOLVER_EXTENSIONS", &cfg.Resolver.Extensions)

	e.str("LOG_LEVEL", &cfg.Log.Level)
	e.str("LOG_FORMAT", &cfg.Log.Format)

	e.str("OTEL_SERVICE_NAME", &cfg.Telemetry.ServiceName)
	e.str("OTEL_TRACES_EXPORTER", &cfg.Telemetry.Traces)
	e.str("OTEL_METRICS_EXPORTER", &cfg.Telemetry.Metrics)
	e.str("OTEL_EXPORTER_OTLP_ENDPOINT", &cfg.Telemetry.OTLPEndpoint)

	return e.err
}

// envReader records the first parse error and ignores later variables.
type envReader struct {
	lookup func(string) (string, bool)
	err    error
}

func (e *envReader) get(key string) (string, bool) {
	if e.err != nil {
		return "", false
	}
	v, ok := e.lookup(key)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func (e *envReader) fail(key, value string, err error) {
	e.err = fmt.Errorf("config: environment variable %s=%q: %w", key, value, err)
}

func (e *envReader) str(key string, dst *string) {
	if v, ok := e.get(key); ok {
		*dst = v
	}
}

func (e *envReader) int(key string, dst *int) {
	if v, ok := e.get(key); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			e.fail(key, v, err)
			return
		}
		*dst = n
	}
}

func (e *envReader) float(key string, dst *float64) {
	if v, ok := e.get(key); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			e.fail(key, v, err)
			return
		}
		*dst = f
	}
}

func (e *envReader) boolean(key string, dst *bool) {
	if v, ok := e.get(key); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			e.fail(key, v, err)
			return
		}
		*dst = b
	}
}

func (e *envReader) duration(key string, dst *time.Duration) {
	if v, ok := e.get(key); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			e.fail(key, v, err)
			return
		}
		*dst = d
	}
}

func (e *envReader) list(key string, dst *[]string) {
	if v, ok := e.get(key); ok {
		var out []string
		for _, part := range strings.Split(v, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
		*dst = out
	}
}
