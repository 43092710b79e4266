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
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
)

// ValidationError reports an argument that cannot be forwarded.
type ValidationError struct {
	Command string
	Param   string
	Reason  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid parameter %q for %s: %s", e.Param, e.Command, e.Reason)
}

// validateArgs checks bound against the declared parameters of cmd.
func validateArgs(cmd Command, bound map[string]any) error {
	for _, p := range cmd.Params {
		v, present := bound[p.Name]
		if !present || v == nil {
			if p.Required {
				return &ValidationError{Command: cmd.Name, Param: p.Name, Reason: "required parameter is missing"}
			}
			continue
		}

		switch p.Type {
		case ParamInteger:
			n, ok := toInt64(v)
			if !ok {
				return &ValidationError{Command: cmd.Name, Param: p.Name, Reason: fmt.Sprintf("%v is not a whole number", v)}
			}
			if n < 1 {
				return &ValidationError{Command: cmd.Name, Param: p.Name, Reason: "must be a positive integer"}
			}
		default:
			if p.Required && strings.TrimSpace(stringValue(v)) == "" {
				return &ValidationError{Command: cmd.Name, Param: p.Name, Reason: "must not be empty"}
			}
		}
	}
	return nil
}

// encodeQuery renders the declared parameters present in bound.
// validateArgs must have accepted bound first.
func encodeQuery(cmd Command, bound map[string]any) url.Values {
	q := url.Values{}
	for _, p := range cmd.Params {
		v, ok := bound[p.Name]
		if !ok || v == nil {
			continue
		}
		if p.Type == ParamInteger {
			n, _ := toInt64(v)
			q.Set(p.Name, strconv.FormatInt(n, 10))
			continue
		}
		q.Set(p.Name, stringValue(v))
	}
	return q
}

func stringValue(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case json.Number:
		return s.String()
	case fmt.Stringer:
		return s.String()
	default:
		return fmt.Sprint(v)
	}
}

// toInt64 accepts the integer shapes produced by JSON decoding, query
// parsing and Go callers.
func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), n <= math.MaxInt64
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), n <= math.MaxInt64
	case float32:
		return wholeFloat(float64(n))
	case float64:
		return wholeFloat(n)
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, true
		}
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return wholeFloat(f)
	case string:
		s := strings.TrimSpace(n)
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, true
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return wholeFloat(f)
	default:
		return 0, false
	}
}

func wholeFloat(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	if f > math.MaxInt64 || f < math.MinInt64 {
		return 0, false
	}
	return int64(f), true
}
