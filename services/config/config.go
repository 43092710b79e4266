// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads fixflow's configuration.
//
// Sources, lowest precedence first: built-in defaults, an optional YAML
// file, environment variables. The result is validated once; configuration
// errors are the only errors that abort startup.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// MaxFileSize bounds the YAML file read by Load.
const MaxFileSize = 1 << 20

// ErrMissingAPIKey aborts startup when the agent is enabled without a key.
var ErrMissingAPIKey = errors.New("OPENAI_API_KEY is required when the agent is enabled")

// Config is the complete fixflow configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Editor    EditorConfig    `yaml:"editor"`
	Window    WindowConfig    `yaml:"window"`
	LLM       LLMConfig       `yaml:"llm"`
	Agent     AgentConfig     `yaml:"agent"`
	Resolver  ResolverConfig  `yaml:"resolver"`
	Log       LogConfig       `yaml:"log"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig configures the main HTTP API.
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port" validate:"min=1,max=65535"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"gt=0"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string { return fmt.Sprintf("%s:%d", s.Host, s.Port) }

// EditorConfig points at the editor extension.
type EditorConfig struct {
	BaseURL string        `yaml:"base_url" validate:"required,url"`
	Timeout time.Duration `yaml:"timeout" validate:"gt=0"`
}

// WindowConfig configures both the window client side (BaseURL) and the
// `windows serve` side (Port, Application, Process).
type WindowConfig struct {
	BaseURL     string `yaml:"base_url" validate:"omitempty,url"`
	Port        int    `yaml:"port" validate:"min=1,max=65535"`
	Application string `yaml:"application"`
	Process     string `yaml:"process"`
}

// LLMConfig configures the completion service.
type LLMConfig struct {
	Provider      string        `yaml:"provider" validate:"oneof=openai langchain"`
	APIKey        string        `yaml:"api_key"`
	BaseURL       string        `yaml:"base_url" validate:"required,url"`
	Model         string        `yaml:"model" validate:"required"`
	ResolverModel string        `yaml:"resolver_model"`
	Timeout       time.Duration `yaml:"timeout" validate:"gt=0"`
}

// LogValue keeps the API key out of logs.
func (l LLMConfig) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("provider", l.Provider),
		slog.String("base_url", l.BaseURL),
		slog.String("model", l.Model),
		slog.String("resolver_model", l.ResolverModel),
		slog.Bool("api_key_set", l.APIKey != ""),
	)
}

// AgentConfig configures the tool-calling loop and its rate limit.
type AgentConfig struct {
	Enabled       bool    `yaml:"enabled"`
	MaxIterations int     `yaml:"max_iterations" validate:"min=1,max=100"`
	RateLimit     float64 `yaml:"rate_limit" validate:"gte=0"`
	Burst         int     `yaml:"burst" validate:"min=1"`
}

// ResolverConfig configures fuzzy file resolution.
type ResolverConfig struct {
	WorkspaceDir string   `yaml:"workspace_dir"`
	Extensions   []string `yaml:"extensions" validate:"min=1,dive,required"`
	SkipDirs     []string `yaml:"skip_dirs"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=auto text json"`
}

// TelemetryConfig selects OpenTelemetry exporters.
type TelemetryConfig struct {
	ServiceName  string `yaml:"service_name" validate:"required"`
	Traces       string `yaml:"traces" validate:"oneof=none stdout otlp"`
	Metrics      string `yaml:"metrics" validate:"oneof=none stdout prometheus"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Port: 3000, ShutdownTimeout: 10 * time.Second},
		Editor: EditorConfig{BaseURL: "http://localhost:3068", Timeout: 10 * time.Second},
		Window: WindowConfig{Port: 3069},
		LLM: LLMConfig{
			Provider: "openai",
			BaseURL:  "https://api.openai.com/v1",
			Model:    "gpt-4o",
			Timeout:  120 * time.Second,
		},
		Agent: AgentConfig{Enabled: true, MaxIterations: 15, RateLimit: 2, Burst: 5},
		Resolver: ResolverConfig{
			Extensions: []string{"py", "yml", "yaml", "md", "js", "ts", "json", "go", "txt"},
			SkipDirs:   []string{".git", "node_modules"},
		},
		Log: LogConfig{Level: "info", Format: "auto"},
		Telemetry: TelemetryConfig{
			ServiceName:  "fixflow",
			Traces:       "none",
			Metrics:      "prometheus",
			OTLPEndpoint: "localhost:4317",
		},
	}
}

// Load reads path (optional) and the process environment.
func Load(path string) (*Config, error) {
	return LoadWithEnv(path, os.LookupEnv)
}

// LoadWithEnv is Load with an injectable environment lookup.
//
// Outputs:
//   - *Config: Validated configuration with derived defaults filled in.
//   - error: File, parse, environment or validation error. ErrMissingAPIKey
//     when the agent is enabled without a key.
func LoadWithEnv(path string, lookup func(string) (string, bool)) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
		if len(data) > MaxFileSize {
			return nil, fmt.Errorf("config: %s exceeds maximum size (%d > %d)", path, len(data), MaxFileSize)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parsing %s: %w", path, err)
		}
	}

	if err := applyEnv(cfg, lookup); err != nil {
		return nil, err
	}
	if err := cfg.fillDerived(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) fillDerived() error {
	if c.Window.BaseURL == "" {
		c.Window.BaseURL = fmt.Sprintf("http://localhost:%d", c.Window.Port)
	}
	if c.LLM.ResolverModel == "" {
		c.LLM.ResolverModel = c.LLM.Model
	}
	if c.Resolver.WorkspaceDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("config: determining workspace directory: %w", err)
		}
		c.Resolver.WorkspaceDir = wd
	}
	c.Log.Level = strings.ToLower(c.Log.Level)
	c.Log.Format = strings.ToLower(c.Log.Format)
	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and cross-field rules.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
			}
			return fmt.Errorf("config: invalid configuration: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("config: %w", err)
	}
	if c.Agent.Enabled && strings.TrimSpace(c.LLM.APIKey) == "" {
		return ErrMissingAPIKey
	}
	return nil
}
