// Copyright (C) 2025 Dillema AI (dev@dillema.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dillema-ai/dillema/pkg/rayserve"
	"github.com/dillema-ai/dillema/services/gateway/handlers"
	"github.com/dillema-ai/dillema/services/gateway/middleware"
	"github.com/dillema-ai/dillema/services/gateway/store"
)

// Dependencies carries everything the route handlers need.
type Dependencies struct {
	ServeClient           rayserve.ServeClient
	Records               *store.DeploymentStore
	StatusRunner          handlers.StatusRunner
	ServeEndpoint         string
	EnableMetrics         bool
	ChatRequestsPerMinute int
}

func SetupRoutes(router *gin.Engine, deps Dependencies) {
	router.GET("/healthz", handlers.HealthCheck)
	if deps.EnableMetrics {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	chatClient, err := handlers.NewChatClient(deps.ServeEndpoint)
	if err != nil {
		// Flag and env validation should make this unreachable; fall back
		// to the stock local endpoint rather than serving broken routes.
		slog.Warn("Bad serve endpoint, falling back to 127.0.0.1:8000",
			"endpoint", deps.ServeEndpoint, "error", err)
		chatClient, _ = handlers.NewChatClient("127.0.0.1:8000")
	}

	chatLimiter := middleware.NewRateLimiter(deps.ChatRequestsPerMinute)

	// API version 1 group
	v1 := router.Group("/v1")
	{
		v1.GET("/cluster/status", handlers.ClusterStatusHandler(deps.StatusRunner, deps.ServeClient))

		deployments := v1.Group("/deployments")
		{
			deployments.GET("", handlers.ListDeployments(deps.ServeClient, deps.Records))
			deployments.GET("/:name", handlers.GetDeployment(deps.ServeClient, deps.Records))
			deployments.POST("", handlers.CreateDeployment(deps.ServeClient, deps.Records, deps.ServeEndpoint))
			deployments.DELETE("/:name", handlers.DeleteDeployment(deps.ServeClient, deps.Records))
		}

		chat := v1.Group("/chat", chatLimiter.Middleware())
		{
			chat.POST("", handlers.HandleChat(chatClient))
			chat.GET("/stream", handlers.HandleChatStream(chatClient))
		}
	}
}
