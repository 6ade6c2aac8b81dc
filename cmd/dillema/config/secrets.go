// Copyright (C) 2025 Dillema AI (dev@dillema.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"os"
	"strings"

	"github.com/awnumar/memguard"
)

// hfEnclave holds the HF token in encrypted memory between load and use.
// The plaintext only exists briefly inside HFToken callers.
var hfEnclave *memguard.Enclave

// sealHFToken moves the token out of the parsed config struct and into a
// memguard enclave. The HF_TOKEN environment variable wins over the
// config file so CI and one-off shells can override it.
func sealHFToken(cfg *DillemaConfig) {
	token := strings.TrimSpace(os.Getenv("HF_TOKEN"))
	if token == "" {
		token = strings.TrimSpace(cfg.Secrets.HFToken)
	}
	// Scrub the struct copy regardless; Global should never carry the
	// token in plain form.
	cfg.Secrets.HFToken = ""

	if token == "" {
		hfEnclave = nil
		return
	}
	hfEnclave = memguard.NewEnclave([]byte(token))
}

// HasHFToken reports whether a token was configured.
func HasHFToken() bool {
	return hfEnclave != nil
}

// HFToken opens the enclave and returns the token. Returns "" when no
// token was configured. Callers should not retain the value longer than
// the request that needs it.
func HFToken() (string, error) {
	if hfEnclave == nil {
		return "", nil
	}
	buf, err := hfEnclave.Open()
	if err != nil {
		return "", err
	}
	defer buf.Destroy()
	// buf.String() aliases the locked buffer, which Destroy re-protects;
	// copy the bytes so the returned string outlives the buffer.
	return string(buf.Bytes()), nil
}

// SetHFTokenForTest seals an arbitrary token. Test helper only.
func SetHFTokenForTest(token string) {
	if token == "" {
		hfEnclave = nil
		return
	}
	hfEnclave = memguard.NewEnclave([]byte(token))
}
