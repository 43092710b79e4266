// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"regexp"
)

type redactionRule struct {
	re          *regexp.Regexp
	replacement string
}

// redactionRules are applied in order. Project keys must be matched before
// the generic "sk-" rule or only their prefix would be replaced.
var redactionRules = []redactionRule{
	{regexp.MustCompile(`sk-proj-[A-Za-z0-9_-]{20,}`), "[REDACTED:openai_project_key]"},
	{regexp.MustCompile(`sk-[A-Za-z0-9_-]{20,}`), "[REDACTED:openai_key]"},
	{regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9._~+/=-]{10,}`), "Bearer [REDACTED]"},
	{regexp.MustCompile(`(?i)\b(api_key|apikey|key|token)=[^\s&"]{8,}`), "${1}=[REDACTED]"},
	{regexp.MustCompile(`(?i)"(api_key|authorization)"\s*:\s*"[^"]+"`), `"${1}":"[REDACTED]"`},
}

// SafeLogString redacts API keys and tokens from s before it reaches a log
// line or an error message.
//
// Description:
//
//	Completion-service error bodies sometimes echo the request headers or
//	the offending key. Every string built from a remote response passes
//	through here first.
//
// Examples:
//
//	SafeLogString("invalid key sk-abcdefghijklmnopqrstuvwx")
//	// Returns: "invalid key [REDACTED:openai_key]"
//
// Limitations:
//   - Pattern based. Keys in an unknown format are not detected.
//
// Thread Safety: This function is safe for concurrent use.
func SafeLogString(s string) string {
	if s == "" {
		return s
	}
	for _, r := range redactionRules {
		s = r.re.ReplaceAllString(s, r.replacement)
	}
	return s
}
