// Copyright (C) 2025 Dillema AI (dev@dillema.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Shared fixtures for CLI tests. Every test drives the real rootCmd with
// mock delegation seams, so what is asserted is exactly what a user
// invocation would delegate.

package main

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/dillema-ai/dillema/cmd/dillema/config"
	"github.com/dillema-ai/dillema/pkg/rayserve"
	"github.com/dillema-ai/dillema/pkg/ux"
)

func init() {
	ux.SetPlainMode(true)
}

// cliFixture swaps all delegation seams for mocks and restores them on
// cleanup.
type cliFixture struct {
	ProcMock  *MockProcessManager
	ServeMock *rayserve.MockServeClient
}

// newCLIFixture installs mocks that succeed with benign defaults. Tests
// tighten individual function fields as needed.
func newCLIFixture(t *testing.T) *cliFixture {
	t.Helper()

	f := &cliFixture{
		ProcMock: &MockProcessManager{
			RunFunc: func(ctx context.Context, name string, args ...string) ([]byte, error) {
				if len(args) > 0 && args[len(args)-1] == "--version" {
					return []byte("ray, version 2.48.0"), nil
				}
				return []byte("ok\n"), nil
			},
			RunAttachedFunc: func(ctx context.Context, name string, args ...string) error {
				return nil
			},
			StartFunc: func(ctx context.Context, name string, args ...string) (int, error) {
				return 4242, nil
			},
			IsRunningFunc: func(ctx context.Context, pattern string) (bool, int, error) {
				return false, 0, nil
			},
		},
		ServeMock: &rayserve.MockServeClient{
			DeployFunc: func(ctx context.Context, req rayserve.DeployRequest) error { return nil },
			ApplicationsFunc: func(ctx context.Context) (*rayserve.InstanceDetails, error) {
				return &rayserve.InstanceDetails{Applications: map[string]rayserve.ApplicationDetails{}}, nil
			},
			ShutdownFunc: func(ctx context.Context) error { return nil },
		},
	}

	origProc := procManager
	origNewServe := newServeClient
	origLookPath := lookPath
	origNoteTimeout := dashboardNoteTimeout

	procManager = f.ProcMock
	newServeClient = func(baseURL string) rayserve.ServeClient { return f.ServeMock }
	lookPath = func(name string) (string, error) { return "/usr/bin/" + name, nil }
	dashboardNoteTimeout = 10 * time.Millisecond

	config.SetGlobalForTest(config.DefaultConfig())

	t.Cleanup(func() {
		procManager = origProc
		newServeClient = origNewServe
		lookPath = origLookPath
		dashboardNoteTimeout = origNoteTimeout
		resetCommandTree(rootCmd)
	})

	return f
}

// execute runs the CLI with the given args against the shared rootCmd.
func (f *cliFixture) execute(args ...string) error {
	resetCommandTree(rootCmd)
	f.ProcMock.Reset()
	f.ServeMock.Reset()
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

// rayCalls returns the recorded process calls that are delegations to
// the framework CLI (everything except version probes).
func (f *cliFixture) rayCalls() []ProcessManagerCall {
	var out []ProcessManagerCall
	for _, call := range f.ProcMock.GetCalls() {
		if len(call.Args) > 0 && call.Args[len(call.Args)-1] == "--version" {
			continue
		}
		out = append(out, call)
	}
	return out
}

func argsEqual(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func formatCalls(calls []ProcessManagerCall) string {
	var b strings.Builder
	for _, c := range calls {
		fmt.Fprintf(&b, "  %s %s %v\n", c.Method, c.Name, c.Args)
	}
	return b.String()
}

func TestCLIUnit_Root_HelpListsSubcommands(t *testing.T) {
	f := newCLIFixture(t)

	var out strings.Builder
	rootCmd.SetOut(&out)
	defer rootCmd.SetOut(nil)

	if err := f.execute("--help"); err != nil {
		t.Fatalf("--help failed: %v", err)
	}

	help := out.String()
	for _, sub := range []string{"start", "status", "deploy", "init", "chat"} {
		if !strings.Contains(help, sub) {
			t.Errorf("help output does not list %q", sub)
		}
	}
	if got := f.ProcMock.GetCalls(); len(got) != 0 {
		t.Errorf("--help delegated %d call(s)", len(got))
	}
}

func TestCLIUnit_Root_UnknownCommandFailsCleanly(t *testing.T) {
	f := newCLIFixture(t)

	if err := f.execute("launch"); err == nil {
		t.Fatal("expected an unknown-command error")
	}
	if got := f.ProcMock.GetCalls(); len(got) != 0 {
		t.Errorf("unknown command delegated %d call(s)", len(got))
	}
}

func TestCLIUnit_Root_UnknownFlagFailsCleanly(t *testing.T) {
	f := newCLIFixture(t)

	if err := f.execute("status", "--frobnicate"); err == nil {
		t.Fatal("expected an unknown-flag error")
	}
	if got := f.ProcMock.GetCalls(); len(got) != 0 {
		t.Errorf("unknown flag delegated %d call(s)", len(got))
	}
}
