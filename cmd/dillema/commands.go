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
	"github.com/dillema-ai/dillema/pkg/rayserve"
	"github.com/dillema-ai/dillema/pkg/ux"
	"github.com/spf13/cobra"
)

// --- Delegation seams ---
//
// Handlers reach the outside world only through these two variables;
// tests swap in mocks to verify that each subcommand produces exactly
// one delegated call with verbatim arguments.
var (
	procManager ProcessManager = NewDefaultProcessManager()

	newServeClient = func(baseURL string) rayserve.ServeClient {
		return rayserve.NewServeClient(baseURL, nil)
	}
)

// --- Global Command Variables ---
var (
	plainOutput bool

	// start
	startHead     bool
	startWorker   bool
	startWeb      bool
	workerAddress string
	dashboardHost string
	webHost       string
	webPort       int
	webNoStore    bool
	webNoBuild    bool
	webDetach     bool

	// status
	statusVerbose bool

	// deploy
	deployModel       string
	deployName        string
	deployEndpoint    string
	deployTensorPar   int
	deployPipelinePar int
	deployGPUMemUtil  float64
	deployMaxModelLen int
	deployNetIface    string
	deployNoWait      bool

	// init
	initForce bool

	// chat
	chatEndpoint string
	chatModel    string

	rootCmd = &cobra.Command{
		Use:   "dillema",
		Short: "A cli to run a Ray cluster and serve large language models on it",
		Long: `Dillema wraps the Ray distributed-computing framework and its
					Serve extension so that starting a cluster and deploying an
					OpenAI-compatible LLM endpoint is one command each.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if plainOutput {
				ux.SetPlainMode(true)
			}
		},
	}

	startCmd = &cobra.Command{
		Use:   "start",
		Short: "Start a head node, attach a worker, or bring up the web stack",
		Long: `Start runs exactly one of three modes:

  dillema start --head                          start the cluster's head node
  dillema start --worker --address ray://H:P    attach this machine as a worker
  dillema start --web                           bring up the local web stack`,
		RunE: runStart, // Defined in cmd_start.go
	}

	statusCmd = &cobra.Command{
		Use:   "status",
		Short: "Report cluster status as the framework sees it",
		RunE:  runStatus, // Defined in cmd_status.go
	}

	deployCmd = &cobra.Command{
		Use:   "deploy",
		Short: "Deploy an LLM inference endpoint on the running cluster",
		Long: `Deploy submits a Serve LLM application for the given model to the
					cluster's dashboard and, unless --no-wait is given, polls until
					the framework reports it RUNNING.`,
		RunE: runDeploy, // Defined in cmd_deploy.go
	}

	initCmd = &cobra.Command{
		Use:   "init",
		Short: "Create ~/.dillema/dillema.yaml interactively",
		RunE:  runInit, // Defined in cmd_init.go
	}

	chatCmd = &cobra.Command{
		Use:   "chat",
		Short: "Chat with a deployed endpoint (smoke test)",
		RunE:  runChatCommand, // Defined in cmd_chat.go
	}
)

// init runs when the Go program starts
func init() {
	rootCmd.PersistentFlags().BoolVar(&plainOutput, "plain", false,
		"Plain output without colors or animations (also triggered by NO_COLOR)")

	rootCmd.AddCommand(startCmd)
	startCmd.Flags().BoolVar(&startHead, "head", false, "Start a head node")
	startCmd.Flags().BoolVar(&startWorker, "worker", false, "Start a worker and attach to a head node")
	startCmd.Flags().BoolVar(&startWeb, "web", false, "Bring up the local web stack (gateway + containers)")
	startCmd.Flags().StringVar(&workerAddress, "address", "", "Head node address for --worker (ray://HOST:PORT)")
	startCmd.Flags().StringVar(&dashboardHost, "dashboard-host", "", "Interface the head node's dashboard binds to")
	startCmd.Flags().StringVar(&webHost, "web-host", "", "Gateway listen host for --web")
	startCmd.Flags().IntVar(&webPort, "web-port", 0, "Gateway listen port for --web")
	startCmd.Flags().BoolVar(&webNoStore, "no-store", false, "Skip the backing-container bootstrap in --web mode")
	startCmd.Flags().BoolVar(&webNoBuild, "no-build", false, "Skip the frontend asset build in --web mode")
	startCmd.Flags().BoolVar(&webDetach, "detach", false, "Leave the gateway running in the background")

	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().BoolVarP(&statusVerbose, "verbose", "v", false, "Ask the framework for a verbose report")

	rootCmd.AddCommand(deployCmd)
	deployCmd.Flags().StringVar(&deployModel, "model", "", "Model source: hub repository ID or local path (required)")
	deployCmd.Flags().StringVar(&deployName, "name", "", "Served-model name (derived from --model when empty)")
	deployCmd.Flags().StringVar(&deployEndpoint, "endpoint", "", "Serving HTTP endpoint as HOST:PORT")
	deployCmd.Flags().IntVar(&deployTensorPar, "tensor-parallel", 0, "Tensor parallelism degree")
	deployCmd.Flags().IntVar(&deployPipelinePar, "pipeline-parallel", 0, "Pipeline parallelism degree")
	deployCmd.Flags().Float64Var(&deployGPUMemUtil, "gpu-memory-utilization", 0, "Fraction of GPU memory the engine may use")
	deployCmd.Flags().IntVar(&deployMaxModelLen, "max-model-len", 0, "Context length the engine allocates for")
	deployCmd.Flags().StringVar(&deployNetIface, "network-interface", "", "Pin GLOO/NCCL traffic to this interface")
	deployCmd.Flags().BoolVar(&deployNoWait, "no-wait", false, "Return after submission without polling for readiness")

	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing config file")

	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().StringVar(&chatEndpoint, "endpoint", "", "Serving endpoint as HOST:PORT (default from config)")
	chatCmd.Flags().StringVar(&chatModel, "model", "", "Served-model name to chat with")
}
