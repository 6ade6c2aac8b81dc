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
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dillema-ai/dillema/cmd/dillema/config"
	"github.com/dillema-ai/dillema/pkg/validation"
	"github.com/dillema-ai/dillema/pkg/ux"
)

// runStart dispatches the three start modes. All validation happens
// before any delegated call so a usage error never touches the cluster.
func runStart(cmd *cobra.Command, args []string) error {
	modes := 0
	for _, on := range []bool{startHead, startWorker, startWeb} {
		if on {
			modes++
		}
	}
	if modes != 1 {
		return fmt.Errorf("start needs exactly one of --head, --worker, or --web")
	}
	if startWorker && workerAddress == "" {
		return fmt.Errorf("--worker requires --address ray://HOST:PORT")
	}
	if !startWorker && workerAddress != "" {
		return fmt.Errorf("--address only applies to --worker")
	}

	if err := config.Load(); err != nil {
		return err
	}

	ctx := cmd.Context()
	switch {
	case startHead:
		return runStartHead(ctx)
	case startWorker:
		return runStartWorker(ctx)
	default:
		return runStartWeb(ctx)
	}
}

// runStartHead delegates head-node bootstrap to the framework CLI.
func runStartHead(ctx context.Context) error {
	rc, err := resolveRayCommand()
	if err != nil {
		return err
	}
	warnIfOldRay(ctx, procManager, rc)

	host := dashboardHost
	if host == "" {
		host = config.Global.Cluster.DashboardHost
	}

	ux.Title("Starting head node")
	out, err := procManager.Run(ctx, rc.Name, rc.Argv("start", "--head", "--dashboard-host="+host)...)
	if err != nil {
		return err
	}
	fmt.Print(string(out))

	// Reachability note only; the head is up either way.
	noteDashboardReachability(ctx)
	return nil
}

// runStartWorker delegates worker attachment. The pasted address is
// sanitized (shell quotes stripped, client scheme removed) because the
// framework's join routine expects a bare HOST:PORT.
func runStartWorker(ctx context.Context) error {
	address, err := validation.SanitizeWorkerAddress(workerAddress)
	if err != nil {
		return err
	}
	address = strings.TrimPrefix(address, validation.ClientScheme)

	rc, err := resolveRayCommand()
	if err != nil {
		return err
	}
	warnIfOldRay(ctx, procManager, rc)

	ux.Title("Attaching worker to " + address)
	out, err := procManager.Run(ctx, rc.Name, rc.Argv("start", "--address="+address)...)
	if err != nil {
		return err
	}
	fmt.Print(string(out))
	ux.Success("worker attached")
	return nil
}

// runStartWeb brings up the local web stack: backing containers, the
// dillema-gateway binary, and the frontend build. Each step is one
// delegated process call; any failure aborts the sequence.
func runStartWeb(ctx context.Context) error {
	web := config.Global.Web
	host := webHost
	if host == "" {
		host = web.Host
	}
	port := webPort
	if port == 0 {
		port = web.Port
	}

	gatewayBin, err := lookPath("dillema-gateway")
	if err != nil {
		return fmt.Errorf("dillema-gateway not found on PATH: %w", err)
	}
	gatewayArgs := []string{"--host", host, "--port", strconv.Itoa(port)}

	steps := 3
	if webDetach {
		steps = 4
	}
	step := 1

	if !webNoStore {
		if web.ComposeFile == "" {
			ux.Muted("no compose_file configured, skipping store bootstrap")
		} else {
			ux.Step(step, steps, "bringing up backing containers")
			if _, err := procManager.Run(ctx, "docker", "compose", "-f", web.ComposeFile, "up", "-d"); err != nil {
				return fmt.Errorf("store bootstrap failed: %w", err)
			}
		}
	}
	step++

	if webDetach {
		ux.Step(step, steps, "starting dillema-gateway")
		pid, err := procManager.Start(ctx, gatewayBin, gatewayArgs...)
		if err != nil {
			return fmt.Errorf("failed to start the gateway: %w", err)
		}
		step++

		ux.Step(step, steps, "waiting for the gateway to become healthy")
		healthURL := fmt.Sprintf("http://%s:%d/healthz", host, port)
		if _, err := waitFor(ctx, DefaultWaitOptions(), httpReadyCheck(nil, healthURL)); err != nil {
			return fmt.Errorf("gateway (pid %d) never became healthy: %w", pid, err)
		}
		step++

		if err := buildFrontend(ctx, web, step, steps); err != nil {
			return err
		}
		ux.Success(fmt.Sprintf("web stack running, gateway pid %d on http://%s:%d", pid, host, port))
		return nil
	}

	// Foreground: build assets first, then hand the terminal to the
	// gateway until the user interrupts it.
	if err := buildFrontend(ctx, web, step, steps); err != nil {
		return err
	}
	step++

	ux.Step(step, steps, fmt.Sprintf("running dillema-gateway on http://%s:%d (Ctrl-C to stop)", host, port))
	return procManager.RunAttached(ctx, gatewayBin, gatewayArgs...)
}

// buildFrontend runs the npm asset build when a frontend directory is
// configured. Silently skipped otherwise.
func buildFrontend(ctx context.Context, web config.WebConfig, step, steps int) error {
	if webNoBuild || web.FrontendDir == "" {
		return nil
	}
	ux.Step(step, steps, "building frontend assets")
	if _, err := procManager.Run(ctx, "npm", "run", "build", "--prefix", web.FrontendDir); err != nil {
		return fmt.Errorf("frontend build failed: %w", err)
	}
	return nil
}

// dashboardNoteTimeout bounds the post-start reachability note. Short:
// the dashboard comes up within seconds of a successful head start.
var dashboardNoteTimeout = 15 * time.Second

// noteDashboardReachability probes the dashboard briefly after a head
// start, so the user learns right away whether deploy will work. Purely
// informational; the started head is never torn down over it.
func noteDashboardReachability(ctx context.Context) {
	opts := DefaultWaitOptions()
	opts.Timeout = dashboardNoteTimeout
	opts.InitialInterval = 250 * time.Millisecond

	url := dashboardBaseURL() + "/api/version"
	if _, err := waitFor(ctx, opts, httpReadyCheck(nil, url)); err != nil {
		ux.Warning(fmt.Sprintf("dashboard not reachable yet at %s; deploy needs it", dashboardBaseURL()))
		return
	}
	ux.Info("dashboard reachable at " + dashboardBaseURL())
}

// dashboardBaseURL is where the framework's REST API answers. The
// dashboard usually binds a wildcard interface, so loopback is used for
// local calls.
func dashboardBaseURL() string {
	return fmt.Sprintf("http://127.0.0.1:%d", config.Global.Cluster.DashboardPort)
}
