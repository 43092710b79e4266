// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package window lists and raises editor windows through the operating
// system and serves that capability over HTTP as /listWindows and
// /switchWindow, the two window commands of the editor registry.
package window

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

var (
	// ErrEmptyTitle is returned before any platform call for a blank title.
	ErrEmptyTitle = errors.New("title parameter is required")

	// ErrWindowNotFound means no enumerated title contains the query.
	ErrWindowNotFound = errors.New("window not found")

	// ErrUnsupported is returned by platforms without window control.
	ErrUnsupported = errors.New("window control is not supported on this platform")
)

// Platform is the OS-level window capability.
//
// Thread Safety: Implementations must be safe for concurrent use.
type Platform interface {
	// Windows returns the editor's window titles in front-to-back order.
	Windows(ctx context.Context) ([]string, error)

	// Raise activates the window whose title is exactly title.
	Raise(ctx context.Context, title string) error
}

// Match returns the first title containing query. Duplicate titles are
// allowed; the earliest one wins.
func Match(titles []string, query string) (string, bool) {
	for _, t := range titles {
		if strings.Contains(t, query) {
			return t, true
		}
	}
	return "", false
}

// Service implements list and switch on top of a Platform.
type Service struct {
	platform Platform
}

// NewService creates a Service.
func NewService(p Platform) *Service {
	return &Service{platform: p}
}

// List returns the current window titles. Never nil on success.
func (s *Service) List(ctx context.Context) ([]string, error) {
	titles, err := s.platform.Windows(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing windows: %w", err)
	}
	if titles == nil {
		titles = []string{}
	}
	return titles, nil
}

// Switch raises the first window whose title contains query and returns
// the full title.
//
// Outputs:
//   - string: The raised window's title.
//   - error: ErrEmptyTitle (no platform call), ErrWindowNotFound, or a
//     platform failure.
func (s *Service) Switch(ctx context.Context, query string) (string, error) {
	if strings.TrimSpace(query) == "" {
		return "", ErrEmptyTitle
	}
	titles, err := s.List(ctx)
	if err != nil {
		return "", err
	}
	title, ok := Match(titles, query)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrWindowNotFound, query)
	}
	if err := s.platform.Raise(ctx, title); err != nil {
		return "", fmt.Errorf("raising %q: %w", title, err)
	}
	slog.Info("window raised", slog.String("query", query), slog.String("title", title))
	return title, nil
}
