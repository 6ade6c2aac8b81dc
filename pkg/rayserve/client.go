// Copyright (C) 2025 Dillema AI (dev@dillema.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package rayserve

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrServeAPI indicates the dashboard answered with a non-success
	// status. The wrapped message carries the dashboard's own error body.
	ErrServeAPI = errors.New("serve api request failed")

	// ErrDashboardUnreachable indicates the dashboard could not be
	// reached at all (cluster not started, wrong address).
	ErrDashboardUnreachable = errors.New("dashboard unreachable")
)

// applicationsPath is the declarative config endpoint on the dashboard.
const applicationsPath = "/api/serve/applications/"

// defaultRequestTimeout bounds a single REST call. Deploys are accepted
// asynchronously, so even the PUT returns quickly.
const defaultRequestTimeout = 30 * time.Second

// =============================================================================
// INTERFACE
// =============================================================================

// ServeClient abstracts the Serve REST API for dependency injection.
//
// # Description
//
//	ServeClient is the single seam between this tool and the serving
//	framework's control plane. Production code uses DefaultServeClient;
//	tests use MockServeClient to verify that a command produced exactly
//	the delegated calls it should have.
//
// # Limitations
//
//   - Deploy replaces the full declarative config. Callers that need to
//     preserve other applications must read Applications first and submit
//     the merged set.
//
// # Assumptions
//
//   - The dashboard is reachable over plain HTTP on the local network.
type ServeClient interface {
	// Deploy submits the full declarative Serve config.
	//
	// # Inputs
	//
	//   - ctx: Context for cancellation and timeout
	//   - req: Complete config; becomes the running state on success
	//
	// # Outputs
	//
	//   - error: nil once the controller accepts the config. Acceptance
	//     is not readiness; poll Applications for that.
	Deploy(ctx context.Context, req DeployRequest) error

	// Applications fetches the live status of every Serve application.
	//
	// # Outputs
	//
	//   - *InstanceDetails: Status report keyed by application name
	//   - error: Non-nil when the dashboard is unreachable or errors
	Applications(ctx context.Context) (*InstanceDetails, error)

	// Shutdown removes every Serve application and stops the proxies.
	Shutdown(ctx context.Context) error
}

// ServeHTTPClient abstracts the HTTP transport for testing.
type ServeHTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// =============================================================================
// DEFAULT IMPLEMENTATION
// =============================================================================

// DefaultServeClient talks to a Ray dashboard over HTTP.
type DefaultServeClient struct {
	baseURL    string
	httpClient ServeHTTPClient
}

// NewServeClient creates a client for the dashboard at baseURL
// (e.g. "http://127.0.0.1:8265"). A nil httpClient gets a default with a
// 30 second timeout.
func NewServeClient(baseURL string, httpClient ServeHTTPClient) *DefaultServeClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultRequestTimeout}
	}
	return &DefaultServeClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// Deploy submits the declarative config with a PUT.
func (c *DefaultServeClient) Deploy(ctx context.Context, req DeployRequest) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to encode deploy config: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPut, c.baseURL+applicationsPath, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create deploy request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDashboardUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apiError(resp)
	}
	return nil
}

// Applications fetches the instance status report.
func (c *DefaultServeClient) Applications(ctx context.Context) (*InstanceDetails, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+applicationsPath, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create status request: %w", err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDashboardUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apiError(resp)
	}

	var details InstanceDetails
	if err := json.NewDecoder(resp.Body).Decode(&details); err != nil {
		return nil, fmt.Errorf("failed to decode status report: %w", err)
	}
	return &details, nil
}

// Shutdown deletes the running config.
func (c *DefaultServeClient) Shutdown(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+applicationsPath, nil)
	if err != nil {
		return fmt.Errorf("failed to create shutdown request: %w", err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDashboardUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apiError(resp)
	}
	return nil
}

// apiError surfaces the dashboard's own error text so the user sees what
// the framework reported, not a paraphrase.
func apiError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = resp.Status
	}
	return fmt.Errorf("%w: status %d: %s", ErrServeAPI, resp.StatusCode, msg)
}

// =============================================================================
// MOCK IMPLEMENTATION
// =============================================================================

// ServeClientCall records one call made through MockServeClient.
type ServeClientCall struct {
	// Method is "Deploy", "Applications", or "Shutdown".
	Method string

	// Request is set for Deploy calls.
	Request *DeployRequest
}

// MockServeClient is a test double that records calls.
//
// Methods panic when their function field is unset so tests fail loudly
// on unexpected delegation.
type MockServeClient struct {
	DeployFunc       func(ctx context.Context, req DeployRequest) error
	ApplicationsFunc func(ctx context.Context) (*InstanceDetails, error)
	ShutdownFunc     func(ctx context.Context) error

	mu    sync.Mutex
	calls []ServeClientCall
}

// Deploy records the call and delegates to DeployFunc.
func (m *MockServeClient) Deploy(ctx context.Context, req DeployRequest) error {
	m.mu.Lock()
	reqCopy := req
	m.calls = append(m.calls, ServeClientCall{Method: "Deploy", Request: &reqCopy})
	m.mu.Unlock()

	if m.DeployFunc == nil {
		panic("MockServeClient.Deploy called but DeployFunc not set")
	}
	return m.DeployFunc(ctx, req)
}

// Applications records the call and delegates to ApplicationsFunc.
func (m *MockServeClient) Applications(ctx context.Context) (*InstanceDetails, error) {
	m.mu.Lock()
	m.calls = append(m.calls, ServeClientCall{Method: "Applications"})
	m.mu.Unlock()

	if m.ApplicationsFunc == nil {
		panic("MockServeClient.Applications called but ApplicationsFunc not set")
	}
	return m.ApplicationsFunc(ctx)
}

// Shutdown records the call and delegates to ShutdownFunc.
func (m *MockServeClient) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.calls = append(m.calls, ServeClientCall{Method: "Shutdown"})
	m.mu.Unlock()

	if m.ShutdownFunc == nil {
		panic("MockServeClient.Shutdown called but ShutdownFunc not set")
	}
	return m.ShutdownFunc(ctx)
}

// GetCalls returns a copy of the recorded calls.
func (m *MockServeClient) GetCalls() []ServeClientCall {
	m.mu.Lock()
	defer m.mu.Unlock()

	calls := make([]ServeClientCall, len(m.calls))
	copy(calls, m.calls)
	return calls
}

// DeployCalls returns only the recorded Deploy calls.
func (m *MockServeClient) DeployCalls() []ServeClientCall {
	m.mu.Lock()
	defer m.mu.Unlock()

	var deploys []ServeClientCall
	for _, call := range m.calls {
		if call.Method == "Deploy" {
			deploys = append(deploys, call)
		}
	}
	return deploys
}

// Reset clears recorded calls.
func (m *MockServeClient) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

// Compile-time interface checks.
var (
	_ ServeClient = (*DefaultServeClient)(nil)
	_ ServeClient = (*MockServeClient)(nil)
)
