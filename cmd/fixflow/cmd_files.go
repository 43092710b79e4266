// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/fixflow/services/filesearch"
)

type fileResolver interface {
	Resolve(ctx context.Context, dir, term string) (filesearch.MatchResult, error)
}

func newFilesCmd(opts *rootOptions) *cobra.Command {
	files := &cobra.Command{
		Use:   "files",
		Short: "Workspace file utilities",
	}

	var dir string
	var asJSON bool
	search := &cobra.Command{
		Use:   "search <term...>",
		Short: "Find the workspace file that best matches a loose description",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts, false)
			if err != nil {
				return err
			}
			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			if dir == "" {
				dir = cfg.Resolver.WorkspaceDir
			}
			return runFileSearch(cmd.Context(), cmd.OutOrStdout(), a.resolver, dir, strings.Join(args, " "), asJSON)
		},
	}
	search.Flags().StringVarP(&dir, "dir", "d", "", "directory to search (default: workspace)")
	search.Flags().BoolVar(&asJSON, "json", false, "print the match as JSON")

	files.AddCommand(search)
	return files
}

func runFileSearch(ctx context.Context, out io.Writer, r fileResolver, dir, term string, asJSON bool) error {
	match, err := r.Resolve(ctx, dir, term)
	if err != nil {
		return err
	}
	if asJSON {
		return writeJSON(out, match)
	}

	if !match.Resolved() {
		_, _ = fmt.Fprintf(out, "No matching file found (searched %d files)\n", match.FilesSearched)
		if match.BestMatch != "" {
			_, _ = fmt.Fprintf(out, "Suggested name %q is not in the workspace\n", match.BestMatch)
		}
		return nil
	}
	_, _ = fmt.Fprintf(out, "Best match:  %s\n", match.BestMatch)
	_, _ = fmt.Fprintf(out, "Path:        %s\n", match.Path)
	_, _ = fmt.Fprintf(out, "Similarity:  %.2f\n", match.SimilarityScore)
	_, _ = fmt.Fprintf(out, "Explanation: %s\n", match.Explanation)
	_, _ = fmt.Fprintf(out, "Searched:    %d files\n", match.FilesSearched)
	return nil
}
