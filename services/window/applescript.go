// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package window

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

// Default application and process names for Visual Studio Code.
const (
	DefaultApplication = "Visual Studio Code"
	DefaultProcess     = "Code"
)

// scriptRunner executes one AppleScript program and returns its stdout.
type scriptRunner func(ctx context.Context, script string) (string, error)

// AppleScriptPlatform drives windows through osascript and System Events.
//
// Thread Safety: Safe for concurrent use; each call runs its own process.
type AppleScriptPlatform struct {
	application string
	process     string
	run         scriptRunner
}

// NewAppleScriptPlatform creates a platform for the given application and
// its System Events process name. Empty values select VS Code.
func NewAppleScriptPlatform(application, process string) *AppleScriptPlatform {
	if application == "" {
		application = DefaultApplication
	}
	if process == "" {
		process = DefaultProcess
	}
	return &AppleScriptPlatform{application: application, process: process, run: runOSAScript}
}

// NewPlatform returns the platform for the running OS.
func NewPlatform(application, process string) Platform {
	if runtime.GOOS == "darwin" {
		return NewAppleScriptPlatform(application, process)
	}
	return unsupportedPlatform{}
}

// Windows implements Platform.
func (p *AppleScriptPlatform) Windows(ctx context.Context) ([]string, error) {
	script := fmt.Sprintf(`tell application "System Events"
	if not (exists process "%s") then return ""
	tell process "%s"
		set AppleScript's text item delimiters to linefeed
		return (name of every window) as text
	end tell
end tell`, quote(p.process), quote(p.process))

	out, err := p.run(ctx, script)
	if err != nil {
		return nil, err
	}
	var titles []string
	for _, line := range strings.Split(out, "\n") {
		if t := strings.TrimSpace(line); t != "" {
			titles = append(titles, t)
		}
	}
	return titles, nil
}

// Raise implements Platform.
func (p *AppleScriptPlatform) Raise(ctx context.Context, title string) error {
	script := fmt.Sprintf(`tell application "%s" to activate
tell application "System Events"
	tell process "%s"
		set frontmost to true
		repeat with w in windows
			if name of w is "%s" then
				perform action "AXRaise" of w
				return "raised"
			end if
		end repeat
	end tell
end tell
return "missing"`, quote(p.application), quote(p.process), quote(title))

	out, err := p.run(ctx, script)
	if err != nil {
		return err
	}
	if strings.TrimSpace(out) != "raised" {
		return ErrWindowNotFound
	}
	return nil
}

// quote escapes s for use inside an AppleScript string literal.
func quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"`, `\"`)
}

func runOSAScript(ctx context.Context, script string) (string, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "osascript", "-e", script)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("osascript: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}

type unsupportedPlatform struct{}

func (unsupportedPlatform) Windows(context.Context) ([]string, error) { return nil, ErrUnsupported }

func (unsupportedPlatform) Raise(context.Context, string) error { return ErrUnsupported }
