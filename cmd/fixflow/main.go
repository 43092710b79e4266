// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command fixflow drives editor tabs and windows from natural language.
//
// Usage:
//
//	fixflow serve                         # HTTP API on :3000
//	fixflow exec "open the main config"   # one request through the agent
//	fixflow chat                          # interactive loop
//	fixflow files search config           # fuzzy file resolution
//	fixflow windows list|switch|serve     # OS window platform
package main

import (
	"context"
	"os"

	"github.com/awnumar/memguard"
)

func main() {
	os.Exit(run())
}

func run() int {
	defer memguard.Purge()
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		return 1
	}
	return 0
}
