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
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/fixflow/services/agent"
	"github.com/AleutianAI/fixflow/services/api"
)

// executor is the part of the dispatcher the CLI uses.
type executor interface {
	Execute(ctx context.Context, input string) (agent.Result, error)
	Available() bool
}

func newExecCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "exec <request...>",
		Short: "Run one natural-language request through the agent",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts, true)
			if err != nil {
				return err
			}
			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runExec(ctx, cmd.OutOrStdout(), a.dispatcher, strings.Join(args, " "), asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the /execute response body instead of formatted output")
	return cmd
}

// runExec executes input once and prints the result.
func runExec(ctx context.Context, out io.Writer, ex executor, input string, asJSON bool) error {
	if !ex.Available() {
		return agent.ErrAgentUnavailable
	}
	tty := isTerminal(out)

	sp := startSpinner(os.Stderr, tty && !asJSON, "Working")
	res, err := ex.Execute(ctx, input)
	sp.stop()
	if err != nil {
		return err
	}

	if asJSON {
		return writeJSON(out, api.ExecuteResponse{Status: "success", Output: res.Output, Steps: res.Steps})
	}
	newRenderer(out, tty).result(res)
	return nil
}

func newChatCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Interactive agent loop (exit, quit or q to leave)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts, true)
			if err != nil {
				return err
			}
			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			var prompt promptFunc
			if isTerminal(os.Stdin) && isTerminal(cmd.OutOrStdout()) {
				prompt = huhPrompt
			} else {
				prompt = scannerPrompt(bufio.NewScanner(cmd.InOrStdin()))
			}
			return runChat(ctx, cmd.OutOrStdout(), a.dispatcher, prompt)
		},
	}
}

// promptFunc reads one line. io.EOF ends the session.
type promptFunc func() (string, error)

func huhPrompt() (string, error) {
	var line string
	err := huh.NewInput().
		Title("fixflow").
		Placeholder("switch to the window with app.py").
		Value(&line).
		Run()
	if errors.Is(err, huh.ErrUserAborted) {
		return "", io.EOF
	}
	return line, err
}

func scannerPrompt(scanner *bufio.Scanner) promptFunc {
	return func() (string, error) {
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return "", err
			}
			return "", io.EOF
		}
		return scanner.Text(), nil
	}
}

// runChat loops until the prompt reports EOF, an exit word or ctx ends.
// Request failures are printed and the loop continues.
func runChat(ctx context.Context, out io.Writer, ex executor, prompt promptFunc) error {
	if !ex.Available() {
		return agent.ErrAgentUnavailable
	}
	r := newRenderer(out, isTerminal(out))
	r.title("fixflow chat - type exit to leave")

	for ctx.Err() == nil {
		line, err := prompt()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		switch line {
		case "exit", "quit", "q":
			_, _ = fmt.Fprintln(out, "Goodbye.")
			return nil
		}

		res, err := ex.Execute(ctx, line)
		if err != nil {
			_, _ = fmt.Fprintf(out, "Error: %v\n", err)
			continue
		}
		r.result(res)
	}
	return nil
}
