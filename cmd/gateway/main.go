// Copyright (C) 2025 Dillema AI (dev@dillema.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command dillema-gateway starts the web backend for the dillema stack.
//
// `dillema start --web` launches this binary; it can also run on its
// own. Configuration comes from ~/.dillema/dillema.yaml, overridden by
// environment variables, overridden by flags.
//
// # Environment Variables
//
//   - DILLEMA_GATEWAY_HOST: listen interface (default: from config)
//   - DILLEMA_GATEWAY_PORT: HTTP server port (default: from config)
//   - DILLEMA_GATEWAY_STORE: deployment store directory (default: ~/.dillema/gateway)
//   - DILLEMA_GATEWAY_LOGS: log directory (default: ~/.dillema/logs)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OpenTelemetry collector (tracing off when unset)
//
// # Usage
//
//	# Build
//	go build -o dillema-gateway ./cmd/gateway
//
//	# Run
//	./dillema-gateway --host 127.0.0.1 --port 12400
package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/dillema-ai/dillema/cmd/dillema/config"
	"github.com/dillema-ai/dillema/pkg/logging"
	"github.com/dillema-ai/dillema/services/gateway"
)

func main() {
	logger := logging.New(logging.Config{
		Service: "gateway",
		LogDir:  getEnvString("DILLEMA_GATEWAY_LOGS", "~/.dillema/logs"),
		JSON:    true,
	})
	defer logger.Close()
	slog.SetDefault(logger.Slog())

	// A broken config file is not fatal here; the gateway falls back to
	// the compiled-in defaults.
	fileCfg := config.DefaultConfig()
	if err := config.Load(); err != nil {
		slog.Warn("could not load the dillema config, using defaults", "error", err)
	} else {
		fileCfg = config.Global
	}

	cfg := gateway.Config{
		Host:          getEnvString("DILLEMA_GATEWAY_HOST", fileCfg.Web.Host),
		Port:          getEnvInt("DILLEMA_GATEWAY_PORT", fileCfg.Web.Port),
		DashboardURL:  dashboardURL(fileCfg.Cluster),
		ServeEndpoint: fileCfg.Serve.Endpoint,
		OTelEndpoint:  os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		StorePath:     getEnvString("DILLEMA_GATEWAY_STORE", defaultStorePath()),
		EnableMetrics: true,
	}
	if path, err := config.Path(); err == nil {
		cfg.ConfigPath = path
	}

	flag.StringVar(&cfg.Host, "host", cfg.Host, "listen interface")
	flag.IntVar(&cfg.Port, "port", cfg.Port, "HTTP server port")
	flag.StringVar(&cfg.StorePath, "store", cfg.StorePath, "deployment store directory")
	flag.BoolVar(&cfg.EnableMetrics, "metrics", cfg.EnableMetrics, "expose Prometheus metrics on /metrics")
	flag.Parse()

	slog.Info("Starting dillema-gateway",
		"host", cfg.Host,
		"port", cfg.Port,
		"dashboard_url", cfg.DashboardURL,
		"serve_endpoint", cfg.ServeEndpoint,
	)

	svc, err := gateway.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create gateway: %v", err)
	}

	// Run blocks until SIGINT/SIGTERM or a fatal server error.
	if err := svc.Run(); err != nil {
		log.Fatalf("Gateway error: %v", err)
	}
}

// dashboardURL derives the Serve REST base URL from the cluster config.
// A wildcard bind address is reached via loopback.
func dashboardURL(cluster config.ClusterConfig) string {
	host := cluster.DashboardHost
	if host == "" || host == "0.0.0.0" {
		host = "127.0.0.1"
	}
	return fmt.Sprintf("http://%s:%d", host, cluster.DashboardPort)
}

// defaultStorePath puts the deployment store next to the config file.
func defaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./data/gateway"
	}
	return filepath.Join(home, ".dillema", "gateway")
}

// getEnvString returns the environment variable value or a default.
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable as int or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
