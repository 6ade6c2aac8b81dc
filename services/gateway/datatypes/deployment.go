// Copyright (C) 2025 Dillema AI (dev@dillema.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes provides request and response types for the gateway.
//
// This file contains deployment types. For chat types, see chat.go; for
// cluster status, see cluster.go.
package datatypes

import (
	"github.com/go-playground/validator/v10"

	"github.com/dillema-ai/dillema/services/gateway/store"
)

// validate is the shared validator instance for gateway datatypes.
// Initialized in init() with custom validators (see chat.go).
var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("maxbytes", validateMaxBytes)
}

// =============================================================================
// Deployment Request Types
// =============================================================================

// CreateDeploymentRequest is the POST /v1/deployments body. The fields
// mirror the `dillema deploy` flags; zero values mean "use the serving
// defaults", same as an unset flag. Submission is asynchronous; poll
// GET /v1/deployments/:name for readiness.
//
// # Validation
//
//   - Model: required
//   - TensorParallel, PipelineParallel: 0-64
//   - GPUMemoryUtilization: 0-1
//   - MaxModelLen: 0-1048576
type CreateDeploymentRequest struct {
	// Model is the hub repository ID or local path. Required.
	Model string `json:"model" validate:"required"`

	// Name is the served-model name. Derived from Model when empty.
	Name string `json:"name,omitempty"`

	// Endpoint is the serving HOST:PORT. Defaults to the gateway's
	// configured serve endpoint.
	Endpoint string `json:"endpoint,omitempty"`

	TensorParallel       int     `json:"tensor_parallel,omitempty" validate:"gte=0,lte=64"`
	PipelineParallel     int     `json:"pipeline_parallel,omitempty" validate:"gte=0,lte=64"`
	GPUMemoryUtilization float64 `json:"gpu_memory_utilization,omitempty" validate:"gte=0,lte=1"`
	MaxModelLen          int     `json:"max_model_len,omitempty" validate:"gte=0,lte=1048576"`
	NetworkInterface     string  `json:"network_interface,omitempty"`
}

// Validate checks the request against its tags.
func (r *CreateDeploymentRequest) Validate() error {
	return validate.Struct(r)
}

// =============================================================================
// Deployment Response Types
// =============================================================================

// DeploymentView is one deployment as the frontend sees it: the stored
// record merged with live Serve status. Status is "UNKNOWN" when the
// dashboard is unreachable and "NOT_FOUND" when the controller no longer
// reports the application.
type DeploymentView struct {
	store.DeploymentRecord

	// Status is the live application status from the dashboard.
	Status string `json:"status"`

	// Message is the controller's own status message, if any.
	Message string `json:"message,omitempty"`
}

// DeploymentListResponse is the GET /v1/deployments body.
type DeploymentListResponse struct {
	Deployments []DeploymentView `json:"deployments"`
}

// ErrorResponse is the uniform error body for all gateway endpoints.
type ErrorResponse struct {
	Error string `json:"error"`
}
