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
	"log/slog"
	"os"

	"github.com/dillema-ai/dillema/pkg/logging"
	"github.com/dillema-ai/dillema/pkg/ux"
)

func main() {
	// User-facing output goes through ux; slog diagnostics land in the
	// daily log file so a noisy subprocess never garbles the terminal.
	logger := logging.New(logging.Config{
		Service: "cli",
		LogDir:  "~/.dillema/logs",
		Quiet:   true,
	})
	defer logger.Close()
	slog.SetDefault(logger.Slog())

	// Execute the root command. Cobra handles parsing the arguments;
	// every handler surfaces the framework's own error text via RunE.
	if err := rootCmd.Execute(); err != nil {
		// Subprocess stderr goes to the log file as its own field so a
		// failure can be diagnosed after the terminal scrolls away.
		if stderr := extractStderr(err); stderr != "" {
			slog.Error("command failed", "stderr", stderr)
		}
		ux.Error(err.Error())
		os.Exit(1)
	}
}
