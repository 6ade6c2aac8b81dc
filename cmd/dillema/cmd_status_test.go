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
	"fmt"
	"testing"
)

func TestCLIUnit_Status_DelegatesSingleCall(t *testing.T) {
	f := newCLIFixture(t)

	if err := f.execute("status"); err != nil {
		t.Fatalf("status failed: %v", err)
	}

	calls := f.rayCalls()
	if len(calls) != 1 {
		t.Fatalf("expected exactly one delegated call, got %d:\n%s", len(calls), formatCalls(f.ProcMock.GetCalls()))
	}
	if !argsEqual(calls[0].Args, []string{"status"}) {
		t.Errorf("delegated args = %v, want [status]", calls[0].Args)
	}
}

func TestCLIUnit_Status_VerboseFlagPassesThrough(t *testing.T) {
	for _, flag := range []string{"--verbose", "-v"} {
		t.Run(flag, func(t *testing.T) {
			f := newCLIFixture(t)

			if err := f.execute("status", flag); err != nil {
				t.Fatalf("status %s failed: %v", flag, err)
			}

			calls := f.rayCalls()
			if len(calls) != 1 {
				t.Fatalf("expected exactly one delegated call, got %d", len(calls))
			}
			if !argsEqual(calls[0].Args, []string{"status", "--verbose"}) {
				t.Errorf("delegated args = %v, want [status --verbose]", calls[0].Args)
			}
		})
	}
}

func TestCLIUnit_Status_RayMissingFailsWithoutDelegation(t *testing.T) {
	f := newCLIFixture(t)
	lookPath = func(name string) (string, error) {
		return "", fmt.Errorf("%s: not found", name)
	}

	err := f.execute("status")
	if !errors.Is(err, ErrRayNotFound) {
		t.Fatalf("expected ErrRayNotFound, got %v", err)
	}
	if got := f.ProcMock.GetCalls(); len(got) != 0 {
		t.Errorf("missing ray still delegated %d call(s)", len(got))
	}
}

func TestCLIUnit_Status_SurfacesDelegatedFailure(t *testing.T) {
	f := newCLIFixture(t)
	f.ProcMock.RunFunc = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return nil, NewCommandError("ray status", 1, "No cluster address found.", errors.New("exit status 1"))
	}

	err := f.execute("status")
	if err == nil {
		t.Fatal("expected the delegated failure to surface")
	}

	var cmdErr *CommandError
	if !errors.As(err, &cmdErr) {
		t.Fatalf("expected a *CommandError, got %T: %v", err, err)
	}
	if cmdErr.Stderr != "No cluster address found." {
		t.Errorf("stderr = %q, want the framework's own message", cmdErr.Stderr)
	}
}
