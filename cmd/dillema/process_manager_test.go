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
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestDefaultProcessManager_Run_CapturesStdout(t *testing.T) {
	pm := NewDefaultProcessManager()

	out, err := pm.Run(context.Background(), "echo", "hello", "world")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if got := strings.TrimSpace(string(out)); got != "hello world" {
		t.Errorf("stdout = %q, want hello world", got)
	}
}

func TestDefaultProcessManager_Run_FailureCarriesStderrAndExitCode(t *testing.T) {
	pm := NewDefaultProcessManager()

	_, err := pm.Run(context.Background(), "sh", "-c", "echo oops >&2; exit 3")
	if err == nil {
		t.Fatal("expected a failure")
	}

	var cmdErr *CommandError
	if !errors.As(err, &cmdErr) {
		t.Fatalf("expected *CommandError, got %T", err)
	}
	if cmdErr.ExitCode != 3 {
		t.Errorf("exit code = %d, want 3", cmdErr.ExitCode)
	}
	if cmdErr.Stderr != "oops" {
		t.Errorf("stderr = %q, want oops", cmdErr.Stderr)
	}
}

func TestDefaultProcessManager_Run_RespectsContextCancellation(t *testing.T) {
	pm := NewDefaultProcessManager()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := pm.Run(ctx, "sleep", "10")
	if err == nil {
		t.Fatal("expected cancellation to fail the run")
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("run took %v after a 50ms deadline", elapsed)
	}
}

func TestDefaultProcessManager_Run_MissingBinary(t *testing.T) {
	pm := NewDefaultProcessManager()

	_, err := pm.Run(context.Background(), "definitely-not-a-real-binary-4bb1")
	if err == nil {
		t.Fatal("expected an error for a missing binary")
	}
	var cmdErr *CommandError
	if !errors.As(err, &cmdErr) {
		t.Fatalf("expected *CommandError, got %T", err)
	}
	if cmdErr.ExitCode != -1 {
		t.Errorf("exit code = %d, want -1 for a start failure", cmdErr.ExitCode)
	}
}

func TestDefaultProcessManager_Start_ReturnsLivePID(t *testing.T) {
	pm := NewDefaultProcessManager()

	pid, err := pm.Start(context.Background(), "sleep", "0.2")
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if pid <= 0 {
		t.Errorf("pid = %d, want a positive PID", pid)
	}
}

func TestDefaultProcessManager_IsRunning(t *testing.T) {
	pm := NewDefaultProcessManager()

	// Our own test binary is certainly running.
	running, pid, err := pm.IsRunning(context.Background(), "dillema.test|go test|sleep|init")
	if err != nil {
		t.Fatalf("IsRunning failed: %v", err)
	}
	if running && pid <= 0 {
		t.Errorf("running reported with pid %d", pid)
	}

	running, _, err = pm.IsRunning(context.Background(), "no-such-process-name-93c2f")
	if err != nil {
		t.Fatalf("IsRunning failed: %v", err)
	}
	if running {
		t.Error("nonexistent pattern reported running")
	}
}

func TestMockProcessManager_RecordsVerbatimArgs(t *testing.T) {
	mock := &MockProcessManager{
		RunFunc: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return nil, nil
		},
	}

	_, _ = mock.Run(context.Background(), "ray", "start", "--head", "--dashboard-host=0.0.0.0")

	calls := mock.GetCalls()
	if len(calls) != 1 {
		t.Fatalf("recorded %d calls, want 1", len(calls))
	}
	if calls[0].Method != "Run" || calls[0].Name != "ray" {
		t.Errorf("recorded %s %s, want Run ray", calls[0].Method, calls[0].Name)
	}
	if !argsEqual(calls[0].Args, []string{"start", "--head", "--dashboard-host=0.0.0.0"}) {
		t.Errorf("recorded args %v are not verbatim", calls[0].Args)
	}

	mock.Reset()
	if len(mock.GetCalls()) != 0 {
		t.Error("Reset did not clear recorded calls")
	}
}
