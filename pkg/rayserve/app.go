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
	"fmt"
	"strings"

	"github.com/dillema-ai/dillema/pkg/validation"
)

// Serving defaults. Flag and config values override these; they are the
// behavior a bare `deploy --model X` gets.
const (
	DefaultHTTPHost             = "0.0.0.0"
	DefaultHTTPPort             = 8000
	DefaultTensorParallel       = 1
	DefaultPipelineParallel     = 2
	DefaultGPUMemoryUtilization = 0.9
	DefaultMaxModelLen          = 22000
)

// LLMAppImportPath is the framework builder that constructs an
// OpenAI-compatible serving application from llm_configs.
const LLMAppImportPath = "ray.serve.llm:build_openai_app"

// DefaultProxyLocation mirrors the framework's serve.start default.
const DefaultProxyLocation = "EveryNode"

// Environment variable names injected into the deployment runtime env.
const (
	EnvVLLMUseV1       = "VLLM_USE_V1"
	EnvGlooSocketIface = "GLOO_SOCKET_IFNAME"
	EnvNCCLSocketIface = "NCCL_SOCKET_IFNAME"
	EnvHFToken         = "HF_TOKEN"
)

// DeploymentParams are the knobs a deployment exposes. Zero values mean
// "use the default" for every field except ModelSource, which is required.
type DeploymentParams struct {
	// ModelSource is a hub repository ID or local path. Required.
	ModelSource string

	// ModelID is the served-model name. Derived from ModelSource when
	// empty (see DeriveServedModelName).
	ModelID string

	// HTTPHost and HTTPPort set the Serve ingress listen address.
	HTTPHost string
	HTTPPort int

	// TensorParallel and PipelineParallel set the model-partitioning
	// degrees forwarded to the engine.
	TensorParallel   int
	PipelineParallel int

	// GPUMemoryUtilization is the fraction of GPU memory the engine may
	// use, in (0, 1].
	GPUMemoryUtilization float64

	// MaxModelLen is the context length the engine allocates for.
	MaxModelLen int

	// NetworkInterface pins collective-communication traffic (GLOO and
	// NCCL) to one interface. Empty leaves the engine's discovery alone.
	NetworkInterface string

	// HFToken, when set, is exported as HF_TOKEN so gated models can be
	// fetched. Never logged.
	HFToken string
}

// withDefaults returns a copy with zero-valued fields replaced by the
// package defaults.
func (p DeploymentParams) withDefaults() DeploymentParams {
	if p.ModelID == "" {
		p.ModelID = DeriveServedModelName(p.ModelSource)
	}
	if p.HTTPHost == "" {
		p.HTTPHost = DefaultHTTPHost
	}
	if p.HTTPPort == 0 {
		p.HTTPPort = DefaultHTTPPort
	}
	if p.TensorParallel == 0 {
		p.TensorParallel = DefaultTensorParallel
	}
	if p.PipelineParallel == 0 {
		p.PipelineParallel = DefaultPipelineParallel
	}
	if p.GPUMemoryUtilization == 0 {
		p.GPUMemoryUtilization = DefaultGPUMemoryUtilization
	}
	if p.MaxModelLen == 0 {
		p.MaxModelLen = DefaultMaxModelLen
	}
	return p
}

// Validate checks the params without applying defaults. Only fields the
// user actually set are checked; zero values pass.
func (p DeploymentParams) Validate() error {
	if err := validation.ValidateModelSource(p.ModelSource); err != nil {
		return err
	}
	if p.ModelID != "" {
		if err := validation.ValidateServedModelName(p.ModelID); err != nil {
			return err
		}
	}
	if p.NetworkInterface != "" {
		if err := validation.ValidateInterfaceName(p.NetworkInterface); err != nil {
			return err
		}
	}
	if p.TensorParallel < 0 || p.PipelineParallel < 0 {
		return fmt.Errorf("parallelism degrees cannot be negative")
	}
	if p.GPUMemoryUtilization < 0 || p.GPUMemoryUtilization > 1 {
		return fmt.Errorf("gpu memory utilization must be in (0, 1], got %v", p.GPUMemoryUtilization)
	}
	if p.MaxModelLen < 0 {
		return fmt.Errorf("max model length cannot be negative")
	}
	return nil
}

// BuildLLMApp turns deployment params into one Serve application entry
// plus the HTTP options for the instance. The application name is the
// served-model name, so repeated deploys of the same model replace each
// other and different models coexist.
func BuildLLMApp(params DeploymentParams) (Application, *HTTPOptions, error) {
	if err := params.Validate(); err != nil {
		return Application{}, nil, err
	}
	p := params.withDefaults()

	envVars := map[string]string{EnvVLLMUseV1: "1"}
	if p.NetworkInterface != "" {
		envVars[EnvGlooSocketIface] = p.NetworkInterface
		envVars[EnvNCCLSocketIface] = p.NetworkInterface
	}
	if p.HFToken != "" {
		envVars[EnvHFToken] = p.HFToken
	}

	app := Application{
		Name:        p.ModelID,
		RoutePrefix: "/",
		ImportPath:  LLMAppImportPath,
		Args: &LLMAppArgs{
			LLMConfigs: []LLMConfig{
				{
					ModelLoadingConfig: ModelLoadingConfig{
						ModelID:     p.ModelID,
						ModelSource: p.ModelSource,
					},
					DeploymentConfig: &DeploymentConfig{
						AutoscalingConfig: &AutoscalingConfig{
							MinReplicas: 1,
							MaxReplicas: 1,
						},
					},
					EngineKwargs: &EngineKwargs{
						TensorParallelSize:   p.TensorParallel,
						PipelineParallelSize: p.PipelineParallel,
						TrustRemoteCode:      true,
						GPUMemoryUtilization: p.GPUMemoryUtilization,
						MaxModelLen:          p.MaxModelLen,
					},
					RuntimeEnv: &RuntimeEnv{EnvVars: envVars},
				},
			},
		},
	}

	httpOpts := &HTTPOptions{Host: p.HTTPHost, Port: p.HTTPPort}
	return app, httpOpts, nil
}

// BuildDeployRequest wraps a single LLM application into a full deploy
// config, the way one-shot CLI deploys submit it.
func BuildDeployRequest(params DeploymentParams) (DeployRequest, error) {
	app, httpOpts, err := BuildLLMApp(params)
	if err != nil {
		return DeployRequest{}, err
	}

	return DeployRequest{
		ProxyLocation: DefaultProxyLocation,
		HTTPOptions:   httpOpts,
		Applications:  []Application{app},
	}, nil
}

// DeriveServedModelName produces a served-model name from a model source
// when the caller does not pick one: the last path segment with any
// "-Instruct" marker removed and underscores normalized to hyphens.
// Falls back to "llm" when nothing usable remains.
func DeriveServedModelName(modelSource string) string {
	candidate := modelSource
	if idx := strings.LastIndex(candidate, "/"); idx >= 0 {
		candidate = candidate[idx+1:]
	}

	sanitized := strings.ReplaceAll(candidate, "-Instruct", "")
	sanitized = strings.ReplaceAll(sanitized, "_", "-")
	if sanitized == "" {
		return "llm"
	}
	return sanitized
}
