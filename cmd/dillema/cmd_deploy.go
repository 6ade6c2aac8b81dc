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
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dillema-ai/dillema/cmd/dillema/config"
	"github.com/dillema-ai/dillema/pkg/rayserve"
	"github.com/dillema-ai/dillema/pkg/validation"
	"github.com/dillema-ai/dillema/pkg/ux"
)

// deployReadyTimeout bounds the post-submission readiness poll. Large
// models spend most of this downloading weights.
const deployReadyTimeout = 30 * time.Minute

// runDeploy translates the deploy flags into one Serve application
// submission. Everything before the Deploy call is local validation; a
// bad flag never reaches the dashboard.
func runDeploy(cmd *cobra.Command, args []string) error {
	if deployModel == "" {
		return fmt.Errorf("deploy requires --model")
	}

	if err := config.Load(); err != nil {
		return err
	}

	params, err := deploymentParamsFromFlags(cmd)
	if err != nil {
		return err
	}

	req, err := rayserve.BuildDeployRequest(params)
	if err != nil {
		return err
	}

	servedName := req.Applications[0].Name
	client := newServeClient(dashboardBaseURL())
	ctx := cmd.Context()

	ux.Title("Deploying " + servedName)
	ux.KeyValue("model", params.ModelSource)
	ux.KeyValue("endpoint", fmt.Sprintf("%s:%d", req.HTTPOptions.Host, req.HTTPOptions.Port))
	ux.KeyValue("parallelism", fmt.Sprintf("tensor=%d pipeline=%d",
		req.Applications[0].Args.LLMConfigs[0].EngineKwargs.TensorParallelSize,
		req.Applications[0].Args.LLMConfigs[0].EngineKwargs.PipelineParallelSize))

	if err := ux.WithSpinner("submitting deployment", func() error {
		return client.Deploy(ctx, req)
	}); err != nil {
		return err
	}

	if deployNoWait {
		ux.Info("submitted; check readiness with the dashboard or `dillema status`")
		return nil
	}

	if err := waitForApplication(ctx, client, servedName); err != nil {
		return err
	}
	ux.Success(fmt.Sprintf("%s is RUNNING on http://%s:%d/v1",
		servedName, req.HTTPOptions.Host, req.HTTPOptions.Port))
	return nil
}

// deploymentParamsFromFlags merges flags over config defaults. A flag
// the user actually set always wins; untouched flags fall back to the
// config file, then to the compiled-in serving defaults.
func deploymentParamsFromFlags(cmd *cobra.Command) (rayserve.DeploymentParams, error) {
	serveCfg := config.Global.Serve

	endpoint := deployEndpoint
	if endpoint == "" {
		endpoint = serveCfg.Endpoint
	}
	host, port, err := validation.SplitEndpoint(endpoint)
	if err != nil {
		return rayserve.DeploymentParams{}, err
	}

	params := rayserve.DeploymentParams{
		ModelSource:          deployModel,
		ModelID:              deployName,
		HTTPHost:             host,
		HTTPPort:             port,
		TensorParallel:       serveCfg.TensorParallel,
		PipelineParallel:     serveCfg.PipelineParallel,
		GPUMemoryUtilization: serveCfg.GPUMemoryUtil,
		MaxModelLen:          serveCfg.MaxModelLen,
		NetworkInterface:     serveCfg.NetworkInterface,
	}

	flags := cmd.Flags()
	if flags.Changed("tensor-parallel") {
		params.TensorParallel = deployTensorPar
	}
	if flags.Changed("pipeline-parallel") {
		params.PipelineParallel = deployPipelinePar
	}
	if flags.Changed("gpu-memory-utilization") {
		params.GPUMemoryUtilization = deployGPUMemUtil
	}
	if flags.Changed("max-model-len") {
		params.MaxModelLen = deployMaxModelLen
	}
	if flags.Changed("network-interface") {
		params.NetworkInterface = deployNetIface
	}

	if config.HasHFToken() {
		token, err := config.HFToken()
		if err != nil {
			return rayserve.DeploymentParams{}, fmt.Errorf("failed to read the HF token: %w", err)
		}
		params.HFToken = token
	}

	return params, nil
}

// waitForApplication polls the Serve status report until the named
// application is RUNNING. A DEPLOY_FAILED or UNHEALTHY report ends the
// wait with the framework's own message; the poll is a read path, never
// a re-submission.
func waitForApplication(ctx context.Context, client rayserve.ServeClient, name string) error {
	spin := ux.NewSpinner("waiting for " + name + " (model download may take a while)")
	spin.Start()

	opts := DefaultWaitOptions()
	opts.Timeout = deployReadyTimeout

	detail, err := waitFor(ctx, opts, func(ctx context.Context) (bool, string, error) {
		details, err := client.Applications(ctx)
		if err != nil {
			// The controller may restart mid-deploy; keep polling.
			return false, "status report unavailable", nil
		}
		app, ok := details.Applications[name]
		if !ok {
			return false, "not reported yet", nil
		}
		spin.UpdateMessage(fmt.Sprintf("waiting for %s: %s", name, app.Status))
		if app.Status.Failed() {
			return false, string(app.Status), fmt.Errorf("deployment %s: %s", app.Status, app.Message)
		}
		return app.Status == rayserve.StatusRunning, string(app.Status), nil
	})

	if err != nil {
		spin.StopWithError(fmt.Sprintf("deployment did not become ready (last state: %s)", detail))
		return err
	}
	spin.Stop()
	return nil
}
