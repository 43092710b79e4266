// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package agent

import (
	"github.com/AleutianAI/fixflow/services/editor"
	"github.com/AleutianAI/fixflow/services/llm"
)

// ToolDefs converts registry commands to the generic tool format.
//
// Description:
//
//	One function tool per command. The tool name is the command name and
//	the parameter schema mirrors the declared parameters, with Required
//	kept in declaration order.
//
// Thread Safety: This function is safe for concurrent use.
func ToolDefs(cmds []editor.Command) []llm.ToolDef {
	if len(cmds) == 0 {
		return nil
	}

	result := make([]llm.ToolDef, 0, len(cmds))
	for _, c := range cmds {
		properties := make(map[string]llm.ToolParamDef, len(c.Params))
		var required []string
		for _, p := range c.Params {
			properties[p.Name] = llm.ToolParamDef{
				Type:        string(p.Type),
				Description: p.Description,
			}
			if p.Required {
				required = append(required, p.Name)
			}
		}

		result = append(result, llm.ToolDef{
			Type: "function",
			Function: llm.ToolFunction{
				Name:        c.Name,
				Description: c.Description,
				Parameters: llm.ToolParameters{
					Type:       "object",
					Properties: properties,
					Required:   required,
				},
			},
		})
	}
	return result
}
