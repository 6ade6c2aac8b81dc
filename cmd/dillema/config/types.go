// Copyright (C) 2025 Dillema AI (dev@dillema.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

// DillemaConfig is the on-disk configuration at ~/.dillema/dillema.yaml.
//
// Flags always win over config values; config values win over the
// compiled-in defaults. Fields left zero-valued in the file fall back to
// the defaults below.
type DillemaConfig struct {
	// Cluster configures the head-node bootstrap and dashboard location.
	Cluster ClusterConfig `yaml:"cluster"`

	// Serve configures the model-serving deployment defaults.
	Serve ServeConfig `yaml:"serve"`

	// Web configures the local web stack started by `dillema start --web`.
	Web WebConfig `yaml:"web"`

	// Secrets holds sensitive values. The token is moved into a locked
	// enclave at load time; see secrets.go.
	Secrets SecretsConfig `yaml:"secrets"`
}

type ClusterConfig struct {
	// DashboardHost is the interface the head node's dashboard binds to.
	DashboardHost string `yaml:"dashboard_host"`

	// DashboardPort is where the framework serves its REST API.
	DashboardPort int `yaml:"dashboard_port"`
}

type ServeConfig struct {
	// Endpoint is the HOST:PORT the serving HTTP proxy listens on.
	Endpoint string `yaml:"endpoint"`

	TensorParallel   int     `yaml:"tensor_parallel"`
	PipelineParallel int     `yaml:"pipeline_parallel"`
	GPUMemoryUtil    float64 `yaml:"gpu_memory_utilization"`
	MaxModelLen      int     `yaml:"max_model_len"`

	// NetworkInterface pins collective-communication traffic to one
	// interface. Empty leaves discovery to the engine.
	NetworkInterface string `yaml:"network_interface"`
}

type WebConfig struct {
	// Host and Port are where the gateway binds.
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// ComposeFile is an optional compose file with the stack's backing
	// containers, brought up before the gateway starts.
	ComposeFile string `yaml:"compose_file"`

	// FrontendDir is an optional directory whose npm build step runs
	// after the gateway is healthy.
	FrontendDir string `yaml:"frontend_dir"`
}

type SecretsConfig struct {
	// HFToken authenticates model downloads for gated models. Injected
	// into the deployment runtime env as HF_TOKEN when set.
	HFToken string `yaml:"hf_token"`
}

// Defaults for zero-valued config fields.
const (
	DefaultDashboardHost = "0.0.0.0"
	DefaultDashboardPort = 8265
	DefaultServeEndpoint = "0.0.0.0:8000"
	DefaultWebHost       = "127.0.0.1"
	DefaultWebPort       = 12400
)

// DefaultConfig returns the configuration written on first run.
func DefaultConfig() DillemaConfig {
	return DillemaConfig{
		Cluster: ClusterConfig{
			DashboardHost: DefaultDashboardHost,
			DashboardPort: DefaultDashboardPort,
		},
		Serve: ServeConfig{
			Endpoint:         DefaultServeEndpoint,
			TensorParallel:   1,
			PipelineParallel: 2,
			GPUMemoryUtil:    0.9,
			MaxModelLen:      22000,
			NetworkInterface: "",
		},
		Web: WebConfig{
			Host: DefaultWebHost,
			Port: DefaultWebPort,
		},
		Secrets: SecretsConfig{},
	}
}

// applyDefaults fills zero-valued fields after the file is parsed, so a
// hand-edited config with missing keys still behaves.
func (c *DillemaConfig) applyDefaults() {
	if c.Cluster.DashboardHost == "" {
		c.Cluster.DashboardHost = DefaultDashboardHost
	}
	if c.Cluster.DashboardPort == 0 {
		c.Cluster.DashboardPort = DefaultDashboardPort
	}
	if c.Serve.Endpoint == "" {
		c.Serve.Endpoint = DefaultServeEndpoint
	}
	if c.Serve.TensorParallel == 0 {
		c.Serve.TensorParallel = 1
	}
	if c.Serve.PipelineParallel == 0 {
		c.Serve.PipelineParallel = 2
	}
	if c.Serve.GPUMemoryUtil == 0 {
		c.Serve.GPUMemoryUtil = 0.9
	}
	if c.Serve.MaxModelLen == 0 {
		c.Serve.MaxModelLen = 22000
	}
	if c.Web.Host == "" {
		c.Web.Host = DefaultWebHost
	}
	if c.Web.Port == 0 {
		c.Web.Port = DefaultWebPort
	}
}
