// Copyright (C) 2025 Dillema AI (dev@dillema.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

/*
ProcessManager abstracts external process execution.

Every delegated call dillema makes to the cluster framework's CLI (and to
docker compose and npm in web mode) goes through this interface. The
testable properties of the tool depend on it: a command invocation must
translate into exactly one recorded process call with verbatim arguments,
and a validation failure must record zero calls.
*/
package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
)

// -----------------------------------------------------------------------------
// Interface Definition
// -----------------------------------------------------------------------------

// ProcessManager handles external process operations.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use from multiple goroutines.
//
// # Context Handling
//
// All methods accept a context.Context for cancellation and timeout support
// except Start, whose child process outlives the CLI on purpose.
type ProcessManager interface {
	// Run executes a command synchronously and returns its stdout.
	//
	// # Inputs
	//
	//   - ctx: Context for cancellation/timeout
	//   - name: The executable name or path
	//   - args: Command arguments, passed through verbatim
	//
	// # Outputs
	//
	//   - []byte: Captured stdout
	//   - error: Non-nil if the command fails; carries trimmed stderr
	//
	// # Examples
	//
	//	output, err := pm.Run(ctx, "ray", "status")
	//	if err != nil {
	//	    return fmt.Errorf("failed to query cluster status: %w", err)
	//	}
	Run(ctx context.Context, name string, args ...string) ([]byte, error)

	// RunAttached executes a command with stdout/stderr wired to the
	// terminal. Used for foreground child processes whose own output is
	// the user-facing result (the gateway, npm builds).
	RunAttached(ctx context.Context, name string, args ...string) error

	// Start launches a background process and returns its PID without
	// waiting. The child is not killed when the CLI exits.
	Start(ctx context.Context, name string, args ...string) (int, error)

	// IsRunning checks if a process matching the pattern exists.
	//
	// # Outputs
	//
	//   - bool: True if at least one matching process is running
	//   - int: PID of the first match (0 if not found)
	//   - error: Non-nil if detection fails (not for "not found")
	//
	// # Assumptions
	//
	//   - pgrep is available on the system (standard on macOS/Linux)
	IsRunning(ctx context.Context, pattern string) (bool, int, error)
}

// -----------------------------------------------------------------------------
// Implementation
// -----------------------------------------------------------------------------

// DefaultProcessManager implements ProcessManager using os/exec.
//
// This is the production implementation that executes real processes on
// the system. Use MockProcessManager in tests instead.
type DefaultProcessManager struct{}

// NewDefaultProcessManager creates a new DefaultProcessManager.
func NewDefaultProcessManager() *DefaultProcessManager {
	return &DefaultProcessManager{}
}

// Run executes a command synchronously and returns its stdout.
func (pm *DefaultProcessManager) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		return nil, NewCommandError(name+" "+strings.Join(args, " "), exitCode, stderr.String(), err)
	}

	return stdout.Bytes(), nil
}

// RunAttached executes a command with the CLI's own stdio.
func (pm *DefaultProcessManager) RunAttached(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Stdin = os.Stdin

	if err := cmd.Run(); err != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		// Stderr already went to the terminal; no point double-reporting it.
		return NewCommandError(name+" "+strings.Join(args, " "), exitCode, "", err)
	}
	return nil
}

// Start launches a background process and returns immediately.
func (pm *DefaultProcessManager) Start(ctx context.Context, name string, args ...string) (int, error) {
	// Deliberately not CommandContext: the child must survive this CLI.
	cmd := exec.Command(name, args...)

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("failed to start %s: %w", name, err)
	}

	// Reap the child when it exits so detached gateways don't zombie.
	go func() { _ = cmd.Wait() }()

	return cmd.Process.Pid, nil
}

// IsRunning checks if a process matching the pattern exists.
func (pm *DefaultProcessManager) IsRunning(ctx context.Context, pattern string) (bool, int, error) {
	cmd := exec.CommandContext(ctx, "pgrep", "-f", pattern)
	output, err := cmd.Output()

	if err != nil {
		// pgrep exits 1 when no processes match - this is not an error
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
			return false, 0, nil
		}
		return false, 0, fmt.Errorf("pgrep failed: %w", err)
	}

	lines := strings.Split(strings.TrimSpace(string(output)), "\n")
	if len(lines) > 0 && lines[0] != "" {
		pid, err := strconv.Atoi(lines[0])
		if err != nil {
			return true, 0, nil // process found but PID parse failed
		}
		return true, pid, nil
	}

	return false, 0, nil
}

// -----------------------------------------------------------------------------
// Mock Implementation for Testing
// -----------------------------------------------------------------------------

// MockProcessManager is a test double for ProcessManager.
//
// Configure the mock by setting function fields before use. If a function
// field is nil and the corresponding method is called, it panics so tests
// fail loudly on unexpected delegation.
//
// # Examples
//
//	mock := &MockProcessManager{
//	    RunFunc: func(ctx context.Context, name string, args ...string) ([]byte, error) {
//	        return []byte("ok"), nil
//	    },
//	}
type MockProcessManager struct {
	// RunFunc is called when Run is invoked
	RunFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

	// RunAttachedFunc is called when RunAttached is invoked
	RunAttachedFunc func(ctx context.Context, name string, args ...string) error

	// StartFunc is called when Start is invoked
	StartFunc func(ctx context.Context, name string, args ...string) (int, error)

	// IsRunningFunc is called when IsRunning is invoked
	IsRunningFunc func(ctx context.Context, pattern string) (bool, int, error)

	// Calls records all method invocations for verification
	Calls []ProcessManagerCall

	// mu protects Calls for concurrent access
	mu sync.Mutex
}

// ProcessManagerCall records a single method invocation.
type ProcessManagerCall struct {
	Method string
	Name   string
	Args   []string
}

// Run delegates to RunFunc and records the call.
func (m *MockProcessManager) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, ProcessManagerCall{Method: "Run", Name: name, Args: args})
	m.mu.Unlock()
	if m.RunFunc == nil {
		panic("MockProcessManager.RunFunc not set")
	}
	return m.RunFunc(ctx, name, args...)
}

// RunAttached delegates to RunAttachedFunc and records the call.
func (m *MockProcessManager) RunAttached(ctx context.Context, name string, args ...string) error {
	m.mu.Lock()
	m.Calls = append(m.Calls, ProcessManagerCall{Method: "RunAttached", Name: name, Args: args})
	m.mu.Unlock()
	if m.RunAttachedFunc == nil {
		panic("MockProcessManager.RunAttachedFunc not set")
	}
	return m.RunAttachedFunc(ctx, name, args...)
}

// Start delegates to StartFunc and records the call.
func (m *MockProcessManager) Start(ctx context.Context, name string, args ...string) (int, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, ProcessManagerCall{Method: "Start", Name: name, Args: args})
	m.mu.Unlock()
	if m.StartFunc == nil {
		panic("MockProcessManager.StartFunc not set")
	}
	return m.StartFunc(ctx, name, args...)
}

// IsRunning delegates to IsRunningFunc and records the call.
func (m *MockProcessManager) IsRunning(ctx context.Context, pattern string) (bool, int, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, ProcessManagerCall{Method: "IsRunning", Name: pattern})
	m.mu.Unlock()
	if m.IsRunningFunc == nil {
		panic("MockProcessManager.IsRunningFunc not set")
	}
	return m.IsRunningFunc(ctx, pattern)
}

// Reset clears all recorded calls.
func (m *MockProcessManager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = nil
}

// GetCalls returns a copy of all recorded calls.
func (m *MockProcessManager) GetCalls() []ProcessManagerCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]ProcessManagerCall, len(m.Calls))
	copy(result, m.Calls)
	return result
}

// Compile-time interface compliance check.
var (
	_ ProcessManager = (*DefaultProcessManager)(nil)
	_ ProcessManager = (*MockProcessManager)(nil)
)
