// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package editor

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Bind filters args down to the parameters cmd declares.
//
// Description:
//
//	Declared parameters are copied only when present in args. Unknown keys
//	are dropped. Values are not converted; Forward validates them.
//
// Outputs:
//   - map[string]any: A new map. Never nil.
//
// Thread Safety: Pure function, safe for concurrent use.
func Bind(cmd Command, args map[string]any) map[string]any {
	bound := make(map[string]any, len(cmd.Params))
	for _, p := range cmd.Params {
		if v, ok := args[p.Name]; ok {
			bound[p.Name] = v
		}
	}
	return bound
}

// ArgsFromQuery converts URL query values into an argument bag for cmd.
//
// Description:
//
//	Used by the REST passthroughs. Only declared parameters are read.
//	Integer parameters are parsed; an unparsable integer is a
//	*ValidationError so the caller can answer 400 without forwarding.
//	An empty query value is kept as an empty string and left to Forward's
//	required-parameter checks.
//
// Outputs:
//   - map[string]any: Bound arguments.
//   - error: *ValidationError on a malformed integer.
func ArgsFromQuery(cmd Command, query url.Values) (map[string]any, error) {
	args := make(map[string]any, len(cmd.Params))
	for _, p := range cmd.Params {
		if !query.Has(p.Name) {
			continue
		}
		raw := query.Get(p.Name)
		if p.Type == ParamInteger && strings.TrimSpace(raw) != "" {
			n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
			if err != nil {
				return nil, &ValidationError{
					Command: cmd.Name,
					Param:   p.Name,
					Reason:  fmt.Sprintf("%q is not an integer", raw),
				}
			}
			args[p.Name] = n
			continue
		}
		args[p.Name] = raw
	}
	return args, nil
}
