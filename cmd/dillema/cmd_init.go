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
	"fmt"
	"os"
	"strconv"

	"github.com/charmbracelet/huh"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/dillema-ai/dillema/cmd/dillema/config"
	"github.com/dillema-ai/dillema/pkg/validation"
	"github.com/dillema-ai/dillema/pkg/ux"
)

// runInit writes ~/.dillema/dillema.yaml. On a terminal it walks the
// user through the values that actually vary between machines; piped
// stdin gets the defaults so `dillema init < /dev/null` works in
// provisioning scripts.
func runInit(cmd *cobra.Command, args []string) error {
	path, err := config.Path()
	if err != nil {
		return err
	}

	if _, err := os.Stat(path); err == nil && !initForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	cfg := config.DefaultConfig()

	if isatty.IsTerminal(os.Stdin.Fd()) {
		if err := runInitForm(&cfg); err != nil {
			return err
		}
	} else {
		ux.Muted("stdin is not a terminal, writing defaults")
	}

	if err := config.Write(path, cfg); err != nil {
		return err
	}
	ux.Success("wrote " + path)
	return nil
}

// runInitForm collects the setup values interactively.
func runInitForm(cfg *config.DillemaConfig) error {
	gpuMem := strconv.FormatFloat(cfg.Serve.GPUMemoryUtil, 'f', -1, 64)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Dashboard host").
				Description("Interface the head node's dashboard binds to").
				Value(&cfg.Cluster.DashboardHost),
			huh.NewInput().
				Title("Serving endpoint").
				Description("HOST:PORT the model endpoint listens on").
				Value(&cfg.Serve.Endpoint).
				Validate(validation.ValidateEndpoint),
			huh.NewInput().
				Title("GPU memory utilization").
				Description("Fraction of GPU memory the engine may use, in (0, 1]").
				Value(&gpuMem).
				Validate(func(s string) error {
					f, err := strconv.ParseFloat(s, 64)
					if err != nil {
						return fmt.Errorf("not a number")
					}
					if f <= 0 || f > 1 {
						return fmt.Errorf("must be in (0, 1]")
					}
					return nil
				}),
			huh.NewInput().
				Title("Network interface").
				Description("Pin GLOO/NCCL traffic to one interface (empty for auto)").
				Value(&cfg.Serve.NetworkInterface).
				Validate(func(s string) error {
					if s == "" {
						return nil
					}
					return validation.ValidateInterfaceName(s)
				}),
		),
	)

	if err := form.Run(); err != nil {
		return fmt.Errorf("setup aborted: %w", err)
	}

	f, err := strconv.ParseFloat(gpuMem, 64)
	if err == nil {
		cfg.Serve.GPUMemoryUtil = f
	}
	return nil
}
