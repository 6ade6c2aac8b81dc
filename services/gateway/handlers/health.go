// Copyright (C) 2025 Dillema AI (dev@dillema.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers contains the gateway's HTTP handlers. Each handler
// constructor takes its dependencies and returns a gin.HandlerFunc, so
// routes.SetupRoutes reads as a wiring table.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dillema-ai/dillema/services/gateway/datatypes"
)

// Version is the gateway version reported on /healthz. Overridden at
// build time via -ldflags.
var Version = "dev"

var startTime = time.Now()

// HealthCheck answers the liveness probe. `dillema start --web` polls
// this to know when the gateway is up.
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, datatypes.HealthResponse{
		Status:  "ok",
		Version: Version,
		Uptime:  time.Since(startTime).Round(time.Second).String(),
	})
}
