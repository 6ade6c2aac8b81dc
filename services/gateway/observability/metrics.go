// Copyright (C) 2025 Dillema AI (dev@dillema.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides Prometheus metrics for the gateway.
//
// # Description
//
// Metrics cover the gateway's three concerns: request handling,
// deployment operations, and chat streaming. Exposed on /metrics for
// Prometheus + Grafana.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal
// locking.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace for all gateway metrics.
const metricsNamespace = "dillema"

// Subsystem for gateway metrics.
const gatewaySubsystem = "gateway"

// GatewayMetrics holds all Prometheus metrics for the gateway.
//
// # Fields
//
//   - RequestsTotal: Counter of HTTP requests by route and status class
//   - RequestDurationSeconds: Histogram of request latency by route
//   - DeploymentOpsTotal: Counter of deployment operations by op and outcome
//   - ActiveChatStreams: Gauge of open WebSocket chat streams
//   - ChatTokensTotal: Counter of streamed completion fragments by model
//   - ChatErrorsTotal: Counter of chat failures by endpoint and error code
type GatewayMetrics struct {
	// RequestsTotal counts requests by route and status class.
	// Labels: route, status (2xx, 4xx, 5xx)
	RequestsTotal *prometheus.CounterVec

	// RequestDurationSeconds measures per-route latency.
	// Labels: route
	RequestDurationSeconds *prometheus.HistogramVec

	// DeploymentOpsTotal counts deployment operations.
	// Labels: op (create, delete), outcome (success, error)
	DeploymentOpsTotal *prometheus.CounterVec

	// ActiveChatStreams tracks open WebSocket chat sessions.
	ActiveChatStreams prometheus.Gauge

	// ChatTokensTotal counts streamed completion fragments.
	// Labels: model
	ChatTokensTotal *prometheus.CounterVec

	// ChatErrorsTotal counts chat failures.
	// Labels: endpoint (chat, chat_stream), error_code
	ChatErrorsTotal *prometheus.CounterVec
}

// DefaultMetrics is the singleton instance of GatewayMetrics.
// Initialized by InitMetrics().
var DefaultMetrics *GatewayMetrics

// InitMetrics initializes the default metrics instance.
//
// # Description
//
// Creates and registers all Prometheus metrics. Call once at startup.
//
// # Limitations
//
//   - Panics if called twice (duplicate registration).
func InitMetrics() *GatewayMetrics {
	DefaultMetrics = &GatewayMetrics{
		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: gatewaySubsystem,
				Name:      "requests_total",
				Help:      "Total HTTP requests by route and status class",
			},
			[]string{"route", "status"},
		),

		RequestDurationSeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: gatewaySubsystem,
				Name:      "request_duration_seconds",
				Help:      "Request latency by route",
				Buckets:   []float64{0.005, 0.025, 0.1, 0.25, 1.0, 2.5, 10.0, 30.0},
			},
			[]string{"route"},
		),

		DeploymentOpsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: gatewaySubsystem,
				Name:      "deployment_ops_total",
				Help:      "Deployment operations by op and outcome",
			},
			[]string{"op", "outcome"},
		),

		ActiveChatStreams: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: gatewaySubsystem,
				Name:      "active_chat_streams",
				Help:      "Number of open WebSocket chat sessions",
			},
		),

		ChatTokensTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: gatewaySubsystem,
				Name:      "chat_tokens_total",
				Help:      "Streamed completion fragments by model",
			},
			[]string{"model"},
		),

		ChatErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: gatewaySubsystem,
				Name:      "chat_errors_total",
				Help:      "Chat failures by endpoint and error code",
			},
			[]string{"endpoint", "error_code"},
		),
	}

	return DefaultMetrics
}

// =============================================================================
// Error Codes
// =============================================================================

// ErrorCode categorizes chat failures for metrics labeling.
type ErrorCode string

const (
	// ErrorCodeValidation indicates request validation failure.
	ErrorCodeValidation ErrorCode = "validation"

	// ErrorCodeUpstream indicates the served endpoint failed.
	ErrorCodeUpstream ErrorCode = "upstream"

	// ErrorCodeClientDisconnect indicates the client went away mid-stream.
	ErrorCodeClientDisconnect ErrorCode = "client_disconnect"

	// ErrorCodeInternal indicates an internal gateway error.
	ErrorCodeInternal ErrorCode = "internal"
)

// RecordChatError increments the chat error counter when metrics are
// enabled. Safe to call with metrics disabled.
func RecordChatError(endpoint string, code ErrorCode) {
	if DefaultMetrics == nil {
		return
	}
	DefaultMetrics.ChatErrorsTotal.WithLabelValues(endpoint, string(code)).Inc()
}
