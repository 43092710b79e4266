// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package filesearch

import (
	"encoding/json"
	"fmt"
)

const systemPrompt = `You find the most semantically similar file name in a list.
Consider what the search term means, not only its spelling, and pick the best matching name.
Reply with a single JSON object and no other text.`

const userPromptTemplate = `Search term: %q

File names:
%s

Reply with a JSON object:
{
  "best_match": "<one file name copied exactly from the list>",
  "similarity_score": <number between 0 and 1, 1 is a perfect match>,
  "explanation": "<short reason for the match>"
}`

func buildUserPrompt(term string, names []string) (string, error) {
	list, err := json.MarshalIndent(names, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding file names: %w", err)
	}
	return fmt.Sprintf(userPromptTemplate, term, list), nil
}
