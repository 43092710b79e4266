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
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/AleutianAI/fixflow/services/agent"
	"github.com/AleutianAI/fixflow/services/editor"
)

var (
	toolStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	argsStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("13"))
)

// renderer prints agent results. Styling and markdown rendering are only
// applied when output is a terminal.
type renderer struct {
	out    io.Writer
	styled bool
	md     *glamour.TermRenderer
}

func newRenderer(out io.Writer, tty bool) *renderer {
	r := &renderer{out: out, styled: tty}
	if tty {
		md, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(80),
		)
		if err == nil {
			r.md = md
		}
	}
	return r
}

func (r *renderer) style(s lipgloss.Style, text string) string {
	if !r.styled {
		return text
	}
	return s.Render(text)
}

// result prints the steps followed by the output.
func (r *renderer) result(res agent.Result) {
	for _, step := range res.Steps {
		_, _ = fmt.Fprintln(r.out, r.stepLine(step))
	}
	if len(res.Steps) > 0 {
		_, _ = fmt.Fprintln(r.out)
	}
	_, _ = fmt.Fprintln(r.out, r.markdown(res.Output))
}

func (r *renderer) markdown(text string) string {
	if r.md == nil {
		return text
	}
	out, err := r.md.Render(text)
	if err != nil {
		return text
	}
	return strings.TrimRight(out, "\n")
}

// stepLine formats one step as "tool {args} -> ok|error: message".
func (r *renderer) stepLine(step agent.Step) string {
	args := "{}"
	if len(step.Args) > 0 {
		if b, err := json.Marshal(step.Args); err == nil {
			args = string(b)
		}
	}

	outcome := r.style(okStyle, "ok")
	if !step.Result.OK() {
		outcome = r.style(errStyle, "error: "+step.Result.Message)
	}
	return fmt.Sprintf("%s %s -> %s", r.style(toolStyle, step.Tool), r.style(argsStyle, args), outcome)
}

// title prints a heading line.
func (r *renderer) title(text string) {
	_, _ = fmt.Fprintln(r.out, r.style(titleStyle, text))
}

// forwardResult prints a direct command result as indented JSON.
func (r *renderer) forwardResult(res editor.ForwardResult) error {
	b, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(r.out, string(b))
	return err
}

// writeJSON prints v as indented JSON.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// spinner animates msg on w until stop is called. It is a no-op when
// styling is off.
type spinner struct {
	done chan struct{}
	wait chan struct{}
}

func startSpinner(w io.Writer, enabled bool, msg string) *spinner {
	s := &spinner{done: make(chan struct{}), wait: make(chan struct{})}
	if !enabled {
		close(s.wait)
		return s
	}
	go func() {
		defer close(s.wait)
		chars := []string{"▖", "▘", "▝", "▗"}
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()

		_, _ = fmt.Fprint(w, "\033[?25l")
		defer fmt.Fprint(w, "\r\033[K\033[?25h")
		for i := 0; ; i++ {
			_, _ = fmt.Fprintf(w, "\r%s  %s... \033[K", chars[i%len(chars)], msg)
			select {
			case <-s.done:
				return
			case <-ticker.C:
			}
		}
	}()
	return s
}

func (s *spinner) stop() {
	select {
	case <-s.done:
	default:
		close(s.done)
	}
	<-s.wait
}
