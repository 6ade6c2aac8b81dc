// Copyright (C) 2025 Dillema AI (dev@dillema.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package gateway provides the web backend for the dillema stack.
//
// The gateway is what `dillema start --web` launches: an HTTP service that
// exposes the cluster and its LLM deployments to the browser frontend.
// It coordinates:
//   - HTTP routing via Gin
//   - Deployment submissions against the Serve REST API
//   - A Badger-backed record store for deployment history
//   - Chat proxying (plain and WebSocket streaming) to the served endpoint
//   - OpenTelemetry tracing and Prometheus metrics
//
// # Usage
//
//	cfg := gateway.Config{Port: 12400}
//	svc, err := gateway.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	log.Fatal(svc.Run())
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/dillema-ai/dillema/pkg/rayserve"
	"github.com/dillema-ai/dillema/services/gateway/handlers"
	"github.com/dillema-ai/dillema/services/gateway/observability"
	"github.com/dillema-ai/dillema/services/gateway/routes"
	"github.com/dillema-ai/dillema/services/gateway/store"
)

// serviceName labels traces and log lines from this process.
const serviceName = "dillema-gateway"

// =============================================================================
// Interface Definition
// =============================================================================

// Service defines the contract for the gateway service.
//
// # Description
//
// Service abstracts the gateway lifecycle, enabling testing and
// alternative implementations. Only essential lifecycle methods are
// exposed.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use. Run() blocks and
// should only be called once per instance.
type Service interface {
	// Run starts the HTTP server and blocks until a shutdown signal or a
	// fatal server error. Shutdown drains in-flight requests for up to
	// Config.DrainTimeout.
	//
	// # Outputs
	//
	//   - error: Non-nil if the server fails to start or dies abnormally.
	//     A signal-initiated shutdown returns nil.
	Run() error

	// Router returns the underlying Gin engine for testing.
	//
	// # Assumptions
	//
	//   - Caller will not modify the router.
	Router() *gin.Engine
}

// =============================================================================
// Configuration
// =============================================================================

// Config holds gateway configuration options.
//
// # Description
//
// Config centralizes all configuration for the gateway service. Values
// can be populated from flags, environment variables, or the dillema
// config file; cmd/gateway does that merge.
//
// # Required Fields
//
// None - all fields have sensible defaults.
type Config struct {
	// Host is the listen interface. Default: 127.0.0.1
	Host string

	// Port is the HTTP server port. Default: 12400
	Port int

	// DashboardURL is the cluster dashboard base URL the Serve REST
	// calls go to. Default: http://127.0.0.1:8265
	DashboardURL string

	// ServeEndpoint is HOST:PORT of the deployed OpenAI-compatible
	// endpoint chat requests are proxied to. Default: 127.0.0.1:8000
	ServeEndpoint string

	// OTelEndpoint is the OpenTelemetry collector endpoint. Tracing is
	// disabled when empty.
	OTelEndpoint string

	// EnableMetrics exposes Prometheus metrics on /metrics.
	// Default: true.
	EnableMetrics bool

	// GinMode sets the Gin framework mode ("debug", "release", "test").
	// Default: uses the GIN_MODE env var or "release".
	GinMode string

	// StorePath is the directory for the Badger deployment store.
	// Default: ./data/gateway
	StorePath string

	// InMemoryStore keeps records in memory only. Used by tests.
	InMemoryStore bool

	// ConfigPath is the dillema config file to watch for edits. The
	// gateway only logs a restart notice; settings are read at startup.
	// Watching is disabled when empty.
	ConfigPath string

	// DrainTimeout bounds graceful shutdown. Default: 10s.
	DrainTimeout time.Duration

	// ChatRequestsPerMinute is the per-client rate limit on chat routes.
	// Default: 60.
	ChatRequestsPerMinute int
}

// applyConfigDefaults fills in missing configuration values.
func applyConfigDefaults(cfg Config) Config {
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 12400
	}
	if cfg.DashboardURL == "" {
		cfg.DashboardURL = "http://127.0.0.1:8265"
	}
	if cfg.ServeEndpoint == "" {
		cfg.ServeEndpoint = "127.0.0.1:8000"
	}
	if cfg.StorePath == "" {
		cfg.StorePath = "./data/gateway"
	}
	if cfg.DrainTimeout == 0 {
		cfg.DrainTimeout = 10 * time.Second
	}
	if cfg.ChatRequestsPerMinute == 0 {
		cfg.ChatRequestsPerMinute = 60
	}
	return cfg
}

// =============================================================================
// Implementation
// =============================================================================

// service implements Service for production use.
//
// # Thread Safety
//
// Thread-safe after construction. All fields are read-only after New()
// returns.
type service struct {
	config        Config
	router        *gin.Engine
	serveClient   rayserve.ServeClient
	records       *store.DeploymentStore
	tracerCleanup func(context.Context)
}

// New creates a gateway Service with the given configuration.
//
// # Description
//
// New initializes all gateway components:
//  1. Applies default configuration for missing values
//  2. Initializes OpenTelemetry tracing (when an endpoint is configured)
//  3. Initializes Prometheus metrics
//  4. Opens the Badger deployment store
//  5. Creates the Serve REST client
//  6. Sets up HTTP routes
//
// # Inputs
//
//   - cfg: Service configuration. Zero values use defaults.
//
// # Outputs
//
//   - Service: Ready-to-run gateway service
//   - error: Non-nil if initialization fails
func New(cfg Config) (Service, error) {
	s := &service{
		config: applyConfigDefaults(cfg),
	}

	if s.config.OTelEndpoint != "" {
		cleanup, err := s.initTracer()
		if err != nil {
			return nil, fmt.Errorf("failed to initialize tracer: %w", err)
		}
		s.tracerCleanup = cleanup
	}

	if s.config.EnableMetrics {
		observability.InitMetrics()
		slog.Info("Initialized Prometheus metrics")
	}

	if err := s.initStore(); err != nil {
		return nil, fmt.Errorf("failed to open the deployment store: %w", err)
	}

	s.serveClient = rayserve.NewServeClient(s.config.DashboardURL, nil)

	s.initRouter()
	return s, nil
}

// Run starts the HTTP server and blocks until shutdown or error.
func (s *service) Run() error {
	defer s.cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.config.Host, s.config.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("Starting gateway server", "host", s.config.Host, "port", s.config.Port)

	g, gctx := errgroup.WithContext(ctx)
	if s.config.ConfigPath != "" {
		if watcher, err := NewConfigWatcher(s.config.ConfigPath, nil); err != nil {
			slog.Warn("Config watching disabled", "error", err)
		} else {
			g.Go(func() error {
				watcher.Start(gctx)
				return nil
			})
		}
	}
	g.Go(func() error {
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down gateway", "drain_timeout", s.config.DrainTimeout.String())
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.DrainTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// Router returns the underlying Gin engine for testing.
func (s *service) Router() *gin.Engine {
	return s.router
}

// =============================================================================
// Private Initialization Methods
// =============================================================================

// initTracer initializes OpenTelemetry distributed tracing.
//
// # Limitations
//
//   - Uses an insecure gRPC connection (appropriate for local networks)
func (s *service) initTracer() (func(context.Context), error) {
	ctx := context.Background()

	conn, err := grpc.NewClient(s.config.OTelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection: %w", err)
	}

	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String(serviceName)))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))

	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	cleanup := func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}

	return cleanup, nil
}

// initStore opens the Badger-backed deployment record store.
func (s *service) initStore() error {
	var cfg store.Config
	if s.config.InMemoryStore {
		cfg = store.InMemoryConfig()
	} else {
		cfg = store.DefaultConfig()
		cfg.Path = s.config.StorePath
	}
	cfg.Logger = slog.Default()

	records, err := store.Open(cfg)
	if err != nil {
		return err
	}
	s.records = records
	return nil
}

// initRouter sets up the Gin HTTP router with all routes.
func (s *service) initRouter() {
	if s.config.GinMode != "" {
		gin.SetMode(s.config.GinMode)
	}

	s.router = gin.Default()
	if s.config.OTelEndpoint != "" {
		s.router.Use(otelgin.Middleware(serviceName))
	}

	routes.SetupRoutes(s.router, routes.Dependencies{
		ServeClient:           s.serveClient,
		Records:               s.records,
		StatusRunner:          handlers.NewExecStatusRunner(),
		ServeEndpoint:         s.config.ServeEndpoint,
		EnableMetrics:         s.config.EnableMetrics,
		ChatRequestsPerMinute: s.config.ChatRequestsPerMinute,
	})
}

// cleanup releases all resources held by the service.
func (s *service) cleanup() {
	if s.records != nil {
		if err := s.records.Close(); err != nil {
			slog.Warn("deployment store close error", "error", err)
		}
	}
	if s.tracerCleanup != nil {
		s.tracerCleanup(context.Background())
	}
}
