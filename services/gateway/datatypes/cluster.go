// Copyright (C) 2025 Dillema AI (dev@dillema.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

// ClusterStatusResponse is the GET /v1/cluster/status body. Report is
// the framework's own status text verbatim; the gateway adds only the
// reachability facts the frontend needs for its banner.
type ClusterStatusResponse struct {
	// Report is the raw status output of the framework CLI. Empty when
	// the CLI is unavailable or the cluster is down.
	Report string `json:"report"`

	// ClusterUp is true when the status delegate succeeded.
	ClusterUp bool `json:"cluster_up"`

	// DashboardReachable is true when the Serve REST API answered.
	DashboardReachable bool `json:"dashboard_reachable"`

	// Applications counts the Serve applications the dashboard reports.
	Applications int `json:"applications"`

	// Error carries the status delegate's failure, if any.
	Error string `json:"error,omitempty"`
}

// HealthResponse is the GET /healthz body.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`
}
