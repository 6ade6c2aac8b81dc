// Copyright (C) 2025 Dillema AI (dev@dillema.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestCommandError_MessageCarriesCommandAndStderr(t *testing.T) {
	wrapped := errors.New("exit status 1")
	err := NewCommandError("ray start --head", 1, "  ConnectionError: redis down  \n", wrapped)

	if err.Stderr != "ConnectionError: redis down" {
		t.Errorf("stderr = %q, want it trimmed", err.Stderr)
	}
	msg := err.Error()
	if !strings.Contains(msg, "ray start --head") {
		t.Errorf("message %q does not name the command", msg)
	}
	if !strings.Contains(msg, "ConnectionError: redis down") {
		t.Errorf("message %q does not carry stderr", msg)
	}
	if !errors.Is(err, wrapped) {
		t.Error("Unwrap chain is broken")
	}
}

func TestCommandError_HasStderr(t *testing.T) {
	with := NewCommandError("x", 1, "boom", nil)
	without := NewCommandError("x", 1, "   ", nil)

	if !with.HasStderr() {
		t.Error("HasStderr = false with stderr present")
	}
	if without.HasStderr() {
		t.Error("HasStderr = true for whitespace-only stderr")
	}
}

func TestExtractStderr_WalksWrappedChain(t *testing.T) {
	inner := NewCommandError("ray status", 1, "No cluster address found.", errors.New("exit status 1"))
	outer := fmt.Errorf("failed to query cluster status: %w", inner)

	if got := extractStderr(outer); got != "No cluster address found." {
		t.Errorf("extractStderr = %q, want the inner stderr", got)
	}
	if got := extractStderr(errors.New("plain")); got != "" {
		t.Errorf("extractStderr on a plain error = %q, want empty", got)
	}
}
