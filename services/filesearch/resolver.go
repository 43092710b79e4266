// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package filesearch resolves a loose description of a file ("the main
// config") to an absolute path inside a workspace by asking the completion
// service to rank the workspace's file names.
package filesearch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"path/filepath"
	"strings"

	"github.com/AleutianAI/fixflow/services/llm"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	// ErrNoFilesFound means the walk produced no candidate with an allowed extension.
	ErrNoFilesFound = errors.New("no matching files found in directory")

	// ErrCompletion wraps a failed or malformed completion-service reply.
	ErrCompletion = errors.New("completion service failed to rank files")

	// ErrEmptySearchTerm is returned before any I/O for a blank term.
	ErrEmptySearchTerm = errors.New("search term is empty")
)

// DefaultExtensions is the extension allow-list used when none is configured.
var DefaultExtensions = []string{"py", "yml", "yaml", "md", "js", "ts", "json", "go", "txt"}

// DefaultSkipDirs are directory names never descended into.
var DefaultSkipDirs = []string{".git", "node_modules"}

var resolutionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "fixflow",
		Subsystem: "filesearch",
		Name:      "resolutions_total",
		Help:      "File resolutions by outcome (resolved, unresolved, no_files, error).",
	},
	[]string{"outcome"},
)

// FileCandidate is one file eligible for matching.
type FileCandidate struct {
	Path string `json:"path"`
	Name string `json:"name"`
}

// MatchResult is the outcome of one resolution.
type MatchResult struct {
	BestMatch       string  `json:"best_match"`
	SimilarityScore float64 `json:"similarity_score"`
	Explanation     string  `json:"explanation"`

	// Path is absolute, or empty when BestMatch names no candidate.
	Path string `json:"full_path"`

	FilesSearched int `json:"files_searched"`
}

// Resolved reports whether Path points at a candidate file.
func (m MatchResult) Resolved() bool { return m.Path != "" }

// Config configures a Resolver.
type Config struct {
	// Extensions without the leading dot, case-insensitive. Empty means DefaultExtensions.
	Extensions []string

	// SkipDirs are directory base names to prune. Nil means DefaultSkipDirs.
	SkipDirs []string

	// Model overrides the completion client's default model.
	Model string
}

// Resolver ranks workspace files against a search term.
//
// Thread Safety: Resolver is safe for concurrent use. It keeps no state
// between calls; candidates are re-walked on every Resolve.
type Resolver struct {
	completer  llm.JSONCompleter
	extensions map[string]bool
	skipDirs   map[string]bool
	model      string
}

// NewResolver creates a Resolver. completer may be nil, in which case every
// Resolve that reaches the ranking step fails with ErrCompletion.
func NewResolver(completer llm.JSONCompleter, cfg Config) *Resolver {
	exts := cfg.Extensions
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	skip := cfg.SkipDirs
	if skip == nil {
		skip = DefaultSkipDirs
	}

	r := &Resolver{
		completer:  completer,
		extensions: make(map[string]bool, len(exts)),
		skipDirs:   make(map[string]bool, len(skip)),
		model:      cfg.Model,
	}
	for _, e := range exts {
		e = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(e), "."))
		if e != "" {
			r.extensions["."+e] = true
		}
	}
	for _, d := range skip {
		r.skipDirs[d] = true
	}
	return r
}

// Candidates walks dir and returns every file with an allowed extension, in
// lexical walk order.
func (r *Resolver) Candidates(dir string) ([]FileCandidate, error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving %q: %w", dir, err)
	}

	var out []FileCandidate
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if path == root {
				return walkErr
			}
			slog.Debug("filesearch: skipping unreadable entry", slog.String("path", path), slog.String("error", walkErr.Error()))
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if path != root && r.skipDirs[d.Name()] {
				return fs.SkipDir
			}
			return nil
		}
		if r.extensions[strings.ToLower(filepath.Ext(d.Name()))] {
			out = append(out, FileCandidate{Path: path, Name: d.Name()})
		}
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %w", ErrNoFilesFound, err)
	}
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}
	return out, nil
}

// Resolve finds the file in dir whose name best matches term.
//
// Description:
//
//	Walks dir, sends the candidate names and term to the completion service
//	in one JSON-mode request, then maps the returned best_match back to a
//	candidate by exact name. The first candidate in walk order wins when
//	names repeat across directories.
//
// Inputs:
//   - ctx: Deadline for the completion round trip.
//   - dir: Workspace root.
//   - term: Free-form description of the wanted file.
//
// Outputs:
//   - MatchResult: Path is "" when the service named no candidate; this is
//     not an error.
//   - error: ErrEmptySearchTerm, ErrNoFilesFound, ErrCompletion, or a walk error.
//
// Thread Safety: Safe for concurrent use.
func (r *Resolver) Resolve(ctx context.Context, dir, term string) (MatchResult, error) {
	ctx, span := otel.Tracer("fixflow.filesearch").Start(ctx, "filesearch.Resolver.Resolve",
		trace.WithAttributes(attribute.String("directory", dir)),
	)
	defer span.End()

	result, outcome, err := r.resolve(ctx, dir, term)
	resolutionsTotal.WithLabelValues(outcome).Inc()
	span.SetAttributes(
		attribute.Int("files_searched", result.FilesSearched),
		attribute.String("outcome", outcome),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return result, err
}

func (r *Resolver) resolve(ctx context.Context, dir, term string) (MatchResult, string, error) {
	if strings.TrimSpace(term) == "" {
		return MatchResult{}, "error", ErrEmptySearchTerm
	}

	candidates, err := r.Candidates(dir)
	if err != nil {
		return MatchResult{}, "error", err
	}
	if len(candidates) == 0 {
		return MatchResult{}, "no_files", ErrNoFilesFound
	}

	result := MatchResult{FilesSearched: len(candidates)}
	if r.completer == nil {
		return result, "error", fmt.Errorf("%w: no completion client configured", ErrCompletion)
	}

	names := make([]string, len(candidates))
	for i, c := range candidates {
		names[i] = c.Name
	}
	userPrompt, err := buildUserPrompt(term, names)
	if err != nil {
		return result, "error", fmt.Errorf("%w: %v", ErrCompletion, err)
	}

	raw, err := r.completer.CompleteJSON(ctx, systemPrompt, userPrompt, llm.GenerationParams{ModelOverride: r.model})
	if err != nil {
		return result, "error", fmt.Errorf("%w: %w", ErrCompletion, err)
	}

	reply, err := parseReply(raw)
	if err != nil {
		return result, "error", fmt.Errorf("%w: %w", ErrCompletion, err)
	}
	result.BestMatch = reply.BestMatch
	result.SimilarityScore = reply.score
	result.Explanation = reply.Explanation

	for _, c := range candidates {
		if c.Name == reply.BestMatch {
			result.Path = c.Path
			break
		}
	}

	if !result.Resolved() {
		slog.Info("filesearch: model named no candidate",
			slog.String("term", term),
			slog.String("best_match", reply.BestMatch),
		)
		return result, "unresolved", nil
	}
	slog.Debug("filesearch: resolved",
		slog.String("term", term),
		slog.String("path", result.Path),
		slog.Float64("score", result.SimilarityScore),
	)
	return result, "resolved", nil
}

type rankingReply struct {
	BestMatch       string      `json:"best_match"`
	SimilarityScore json.Number `json:"similarity_score"`
	Explanation     string      `json:"explanation"`

	score float64
}

func parseReply(raw string) (rankingReply, error) {
	var reply rankingReply
	dec := json.NewDecoder(bytes.NewReader([]byte(strings.TrimSpace(raw))))
	if err := dec.Decode(&reply); err != nil {
		return rankingReply{}, fmt.Errorf("parsing ranking reply: %w", err)
	}
	if reply.SimilarityScore != "" {
		f, err := reply.SimilarityScore.Float64()
		if err != nil {
			return rankingReply{}, fmt.Errorf("parsing similarity_score: %w", err)
		}
		reply.score = clamp01(f)
	}
	return reply, nil
}

func clamp01(f float64) float64 {
	switch {
	case f < 0 || math.IsNaN(f):
		return 0
	case f > 1:
		return 1
	default:
		return f
	}
}
