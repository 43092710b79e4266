// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package editor holds the closed table of editor and window commands and the
// HTTP forwarder that invokes them on the remote editor extension.
//
// Every command is reachable two ways: directly through the REST passthroughs
// in services/api, and indirectly through the tool-calling agent in
// services/agent. Both paths go through Bind and Forwarder.Forward, so argument
// filtering, validation and error normalization are identical.
//
// Thread Safety:
//
//	The registry is read-only after package initialization. Forwarder is safe
//	for concurrent use.
package editor

// Target selects which collaborator base URL a command is sent to.
type Target string

const (
	// TargetEditor is the editor extension HTTP server.
	TargetEditor Target = "editor"

	// TargetWindow is the OS window platform service.
	TargetWindow Target = "window"
)

// ParamType is the declared type of a command parameter.
type ParamType string

const (
	ParamString  ParamType = "string"
	ParamInteger ParamType = "integer"
)

// Param describes one named parameter of a Command.
type Param struct {
	Name        string    `json:"name"`
	Type        ParamType `json:"type"`
	Description string    `json:"description"`
	Required    bool      `json:"required"`
}

// Command is one entry of the closed command table.
//
// Description:
//
//	Name is the stable identifier exposed to callers and to the completion
//	service as a tool name. Endpoint is the path segment on the remote.
//	Probe marks the connectivity check, which is answered from the remote's
//	root instead of its own endpoint.
//
// Thread Safety: Command values are immutable and safe to share.
type Command struct {
	Name        string  `json:"name"`
	Endpoint    string  `json:"endpoint"`
	Description string  `json:"description"`
	Params      []Param `json:"params"`
	Target      Target  `json:"target"`
	Probe       bool    `json:"probe,omitempty"`
}

// Param returns the declared parameter called name.
func (c Command) Param(name string) (Param, bool) {
	for _, p := range c.Params {
		if p.Name == name {
			return p, true
		}
	}
	return Param{}, false
}

// Command names. The agent special-cases CommandOpenFile.
const (
	CommandNextTab          = "next-tab"
	CommandPreviousTab      = "previous-tab"
	CommandCloseTab         = "close-tab"
	CommandCloseAllTabs     = "close-all-tabs"
	CommandCloseTabsToRight = "close-tabs-to-right"
	CommandOpenFile         = "open-file"
	CommandListOpenTabs     = "list-open-tabs"
	CommandGoToTab          = "go-to-tab"
	CommandGoToLine         = "go-to-line"
	CommandRecentFiles      = "recent-files"
	CommandStatus           = "status"
	CommandListWindows      = "list-windows"
	CommandSwitchWindow     = "switch-window"
)

var registry = []Command{
	{
		Name:        CommandNextTab,
		Endpoint:    "nextTab",
		Description: "Switch to the next tab in the editor",
		Target:      TargetEditor,
	},
	{
		Name:        CommandPreviousTab,
		Endpoint:    "previousTab",
		Description: "Switch to the previous tab in the editor",
		Target:      TargetEditor,
	},
	{
		Name:        CommandCloseTab,
		Endpoint:    "closeTab",
		Description: "Close the current tab in the editor",
		Target:      TargetEditor,
	},
	{
		Name:        CommandCloseAllTabs,
		Endpoint:    "closeAllTabs",
		Description: "Close all tabs in the editor",
		Target:      TargetEditor,
	},
	{
		Name:        CommandCloseTabsToRight,
		Endpoint:    "closeTabsToRight",
		Description: "Close all tabs to the right of the current tab",
		Target:      TargetEditor,
	},
	{
		Name:     CommandOpenFile,
		Endpoint: "openFile",
		Description: "Open a specific file. Required parameter: 'path', the name or path of the file to open. " +
			"The workspace is searched for the closest matching file name if there is no exact match.",
		Params: []Param{
			{Name: "path", Type: ParamString, Description: "File name, partial name, relative path or description of the file", Required: true},
		},
		Target: TargetEditor,
	},
	{
		Name:        CommandListOpenTabs,
		Endpoint:    "listOpenTabs",
		Description: "Get a list of all currently open tabs in the editor",
		Target:      TargetEditor,
	},
	{
		Name:        CommandGoToTab,
		Endpoint:    "goToTabName",
		Description: "Switch to a specific tab by providing its name",
		Params: []Param{
			{Name: "name", Type: ParamString, Description: "Label of the tab to activate", Required: true},
		},
		Target: TargetEditor,
	},
	{
		Name:        CommandGoToLine,
		Endpoint:    "goToLine",
		Description: "Go to a specific line number in the current file",
		Params: []Param{
			{Name: "line", Type: ParamInteger, Description: "1-based line number", Required: true},
		},
		Target: TargetEditor,
	},
	{
		Name:        CommandRecentFiles,
		Endpoint:    "recentFiles",
		Description: "Get a list of recently opened files in the editor",
		Target:      TargetEditor,
	},
	{
		Name:        CommandStatus,
		Endpoint:    "status",
		Description: "Check if the editor extension is running",
		Target:      TargetEditor,
		Probe:       true,
	},
	{
		Name:        CommandListWindows,
		Endpoint:    "listWindows",
		Description: "Get a list of all open editor window titles",
		Target:      TargetWindow,
	},
	{
		Name:        CommandSwitchWindow,
		Endpoint:    "switchWindow",
		Description: "Switch to a specific editor window by its title",
		Params: []Param{
			{Name: "title", Type: ParamString, Description: "Window title, or a unique part of it, as returned by list-windows", Required: true},
		},
		Target: TargetWindow,
	},
}

var (
	byName     = make(map[string]Command, len(registry))
	byEndpoint = make(map[string]Command, len(registry))
)

func init() {
	for _, c := range registry {
		byName[c.Name] = c
		byEndpoint[c.Endpoint] = c
	}
}

// Lookup returns the command registered under name.
func Lookup(name string) (Command, bool) {
	c, ok := byName[name]
	return c, ok
}

// LookupEndpoint returns the command whose remote endpoint is endpoint.
func LookupEndpoint(endpoint string) (Command, bool) {
	c, ok := byEndpoint[endpoint]
	return c, ok
}

// Commands returns the full table in registration order.
//
// The returned slice is a copy; callers may reorder it freely.
func Commands() []Command {
	out := make([]Command, len(registry))
	copy(out, registry)
	return out
}
