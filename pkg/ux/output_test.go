// Copyright (C) 2025 Dillema AI (dev@dillema.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ux

import (
	"io"
	"os"
	"strings"
	"testing"
)

// captureStdout runs fn with stdout redirected and returns what it printed.
func captureStdout(t *testing.T, fn func()) string {
	t.Helper()

	old := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe: %v", err)
	}
	os.Stdout = w

	fn()

	w.Close()
	os.Stdout = old
	out, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("reading captured stdout: %v", err)
	}
	return string(out)
}

func captureStderr(t *testing.T, fn func()) string {
	t.Helper()

	old := os.Stderr
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe: %v", err)
	}
	os.Stderr = w

	fn()

	w.Close()
	os.Stderr = old
	out, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("reading captured stderr: %v", err)
	}
	return string(out)
}

func TestOutput_PlainMode_StablePrefixes(t *testing.T) {
	SetPlainMode(true)
	t.Cleanup(func() { SetPlainMode(false) })

	tests := []struct {
		name   string
		fn     func()
		stream string // "stdout" or "stderr"
		want   string
	}{
		{"success", func() { Success("deployed") }, "stdout", "OK: deployed"},
		{"warning", func() { Warning("old version") }, "stderr", "WARN: old version"},
		{"error", func() { Error("boom") }, "stderr", "ERROR: boom"},
		{"info", func() { Info("detail") }, "stdout", "detail"},
		{"title", func() { Title("Cluster") }, "stdout", "Cluster"},
		{"keyvalue", func() { KeyValue("model", "llm") }, "stdout", "model=llm"},
		{"step", func() { Step(2, 4, "building") }, "stdout", "STEP 2/4: building"},
		{"box", func() { Box("Status", "ok") }, "stdout", "Status: ok"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			if tt.stream == "stderr" {
				got = captureStderr(t, tt.fn)
			} else {
				got = captureStdout(t, tt.fn)
			}
			if !strings.Contains(got, tt.want) {
				t.Errorf("output %q does not contain %q", got, tt.want)
			}
		})
	}
}

func TestOutput_StyledMode_ContainsText(t *testing.T) {
	SetPlainMode(false)
	t.Cleanup(func() { SetPlainMode(false) })

	out := captureStdout(t, func() { Success("done") })
	if !strings.Contains(out, "done") {
		t.Errorf("styled output %q lost the message text", out)
	}
}

func TestIcon_Render_PlainModeKeepsGlyph(t *testing.T) {
	SetPlainMode(true)
	t.Cleanup(func() { SetPlainMode(false) })

	for _, icon := range []Icon{IconSuccess, IconWarning, IconError, IconPending, IconArrow} {
		if got := icon.Render(); got != string(icon) {
			t.Errorf("Icon(%q).Render() = %q in plain mode", string(icon), got)
		}
	}
}
