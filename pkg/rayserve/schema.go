// Copyright (C) 2025 Dillema AI (dev@dillema.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package rayserve talks to the Ray Serve REST API exposed by the Ray
// dashboard.
//
// The package owns three things:
//   - typed structs for the declarative deploy schema (PUT) and the
//     application status report (GET)
//   - a builder that turns deployment parameters into an OpenAI-compatible
//     LLM application config
//   - a ServeClient interface with a default HTTP implementation and a mock
//     for tests
//
// The REST schema mirrors Ray's own field names, so everything serializes
// with snake_case JSON tags.
package rayserve

// =============================================================================
// DEPLOY SCHEMA (PUT /api/serve/applications/)
// =============================================================================

// DeployRequest is the full declarative Serve config submitted to the
// dashboard. A PUT replaces the running config with this one.
type DeployRequest struct {
	// ProxyLocation controls where HTTP proxy actors run.
	// "EveryNode" matches the framework's serve.start default.
	ProxyLocation string `json:"proxy_location,omitempty"`

	// HTTPOptions configure the shared ingress for all applications.
	HTTPOptions *HTTPOptions `json:"http_options,omitempty"`

	// Applications is the complete set of Serve applications to run.
	Applications []Application `json:"applications"`
}

// HTTPOptions is the listen address of the Serve HTTP proxy.
type HTTPOptions struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// Application is one Serve application entry in the declarative config.
type Application struct {
	// Name identifies the application within the Serve instance.
	Name string `json:"name"`

	// RoutePrefix is the URL prefix the application serves under.
	RoutePrefix string `json:"route_prefix"`

	// ImportPath is the builder the controller imports to construct the
	// application, in "module:attribute" form.
	ImportPath string `json:"import_path"`

	// RuntimeEnv applies to the whole application. Per-model environment
	// variables live in LLMConfig.RuntimeEnv instead.
	RuntimeEnv *RuntimeEnv `json:"runtime_env,omitempty"`

	// Args are passed to the import target. For LLM applications this is
	// the llm_configs list.
	Args *LLMAppArgs `json:"args,omitempty"`
}

// LLMAppArgs is the argument payload for the LLM application builder.
type LLMAppArgs struct {
	LLMConfigs []LLMConfig `json:"llm_configs"`
}

// LLMConfig describes one served model: where it loads from, how it
// scales, and the engine parameters for the vLLM backend.
type LLMConfig struct {
	ModelLoadingConfig ModelLoadingConfig `json:"model_loading_config"`
	DeploymentConfig   *DeploymentConfig  `json:"deployment_config,omitempty"`
	EngineKwargs       *EngineKwargs      `json:"engine_kwargs,omitempty"`
	RuntimeEnv         *RuntimeEnv        `json:"runtime_env,omitempty"`
}

// ModelLoadingConfig names the served model and its source.
type ModelLoadingConfig struct {
	// ModelID is the name the model is served under. It becomes the model
	// field of the OpenAI-compatible API.
	ModelID string `json:"model_id"`

	// ModelSource is a hub repository ID or a local path.
	ModelSource string `json:"model_source"`
}

// DeploymentConfig carries Serve deployment options for the model.
type DeploymentConfig struct {
	AutoscalingConfig *AutoscalingConfig `json:"autoscaling_config,omitempty"`
}

// AutoscalingConfig bounds the replica count for a deployment.
type AutoscalingConfig struct {
	MinReplicas int `json:"min_replicas"`
	MaxReplicas int `json:"max_replicas"`
}

// EngineKwargs are forwarded to the vLLM engine unchanged.
//
// TrustRemoteCode has no omitempty: the field must serialize even when
// false so the engine never falls back to a different default.
type EngineKwargs struct {
	TensorParallelSize   int     `json:"tensor_parallel_size"`
	PipelineParallelSize int     `json:"pipeline_parallel_size"`
	TrustRemoteCode      bool    `json:"trust_remote_code"`
	GPUMemoryUtilization float64 `json:"gpu_memory_utilization"`
	MaxModelLen          int     `json:"max_model_len"`
}

// RuntimeEnv is the subset of the framework's runtime environment the tool
// uses: process environment variables.
type RuntimeEnv struct {
	EnvVars map[string]string `json:"env_vars,omitempty"`
}

// =============================================================================
// STATUS SCHEMA (GET /api/serve/applications/)
// =============================================================================

// ApplicationStatus is the lifecycle state the Serve controller reports
// for an application.
type ApplicationStatus string

const (
	StatusNotStarted   ApplicationStatus = "NOT_STARTED"
	StatusDeploying    ApplicationStatus = "DEPLOYING"
	StatusDeployFailed ApplicationStatus = "DEPLOY_FAILED"
	StatusRunning      ApplicationStatus = "RUNNING"
	StatusUnhealthy    ApplicationStatus = "UNHEALTHY"
	StatusDeleting     ApplicationStatus = "DELETING"
)

// Failed reports whether the status is one the controller will not recover
// from without a new deploy.
func (s ApplicationStatus) Failed() bool {
	return s == StatusDeployFailed || s == StatusUnhealthy
}

// InstanceDetails is the dashboard's report of the running Serve instance.
// Only the fields the tool reads are declared; unknown fields are ignored
// during decoding.
type InstanceDetails struct {
	ProxyLocation string                        `json:"proxy_location,omitempty"`
	HTTPOptions   *HTTPOptions                  `json:"http_options,omitempty"`
	Applications  map[string]ApplicationDetails `json:"applications"`
}

// ApplicationDetails is the per-application status block.
type ApplicationDetails struct {
	Name              string                      `json:"name"`
	RoutePrefix       string                      `json:"route_prefix"`
	DocsPath          string                      `json:"docs_path,omitempty"`
	Status            ApplicationStatus           `json:"status"`
	Message           string                      `json:"message"`
	LastDeployedTimeS float64                     `json:"last_deployed_time_s"`
	Deployments       map[string]DeploymentDetail `json:"deployments,omitempty"`
}

// DeploymentDetail is the per-deployment status block inside an
// application report.
type DeploymentDetail struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}
