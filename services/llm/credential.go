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
	"fmt"

	"github.com/awnumar/memguard"
)

// Credential holds the completion-service API key in an encrypted enclave.
//
// Description:
//
//	The key is sealed at startup and only decrypted for the duration of a
//	single outbound request. A nil *Credential means "no key configured".
//
// Thread Safety: Safe for concurrent use; each Reveal opens its own buffer.
type Credential struct {
	enclave *memguard.Enclave
}

// NewCredential seals secret into a new enclave. Returns nil for an empty secret.
func NewCredential(secret string) *Credential {
	if secret == "" {
		return nil
	}
	return &Credential{enclave: memguard.NewEnclave([]byte(secret))}
}

// Reveal decrypts the key and returns a copy of it.
func (c *Credential) Reveal() (string, error) {
	if c == nil || c.enclave == nil {
		return "", ErrMissingAPIKey
	}
	buf, err := c.enclave.Open()
	if err != nil {
		return "", fmt.Errorf("opening credential enclave: %w", err)
	}
	defer buf.Destroy()
	return string(buf.Bytes()), nil
}
