// Copyright (C) 2025 Dillema AI (dev@dillema.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"context"
	"net/http"
	"os/exec"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/dillema-ai/dillema/pkg/rayserve"
	"github.com/dillema-ai/dillema/services/gateway/datatypes"
)

// statusTimeout bounds the whole cluster status fan-out.
const statusTimeout = 15 * time.Second

// StatusRunner abstracts the cluster status query for testing. The
// production implementation shells out to the framework CLI; tests
// substitute canned reports.
type StatusRunner interface {
	// ClusterStatus returns the framework's own status report verbatim.
	ClusterStatus(ctx context.Context) (string, error)
}

// execStatusRunner resolves and runs the framework CLI.
type execStatusRunner struct{}

// NewExecStatusRunner returns the production StatusRunner.
func NewExecStatusRunner() StatusRunner {
	return execStatusRunner{}
}

// ClusterStatus runs `ray status`, falling back to the python module
// form when the entrypoint is not on PATH.
func (execStatusRunner) ClusterStatus(ctx context.Context) (string, error) {
	if path, err := exec.LookPath("ray"); err == nil {
		out, err := exec.CommandContext(ctx, path, "status").Output()
		return string(out), err
	}
	for _, python := range []string{"python3", "python"} {
		if path, err := exec.LookPath(python); err == nil {
			out, err := exec.CommandContext(ctx, path, "-m", "ray", "status").Output()
			return string(out), err
		}
	}
	return "", exec.ErrNotFound
}

// ClusterStatusHandler reports cluster and dashboard reachability in one
// response. The status delegate and the dashboard probe run
// concurrently; either failing degrades the report instead of erroring
// the request, because "the cluster is down" is a valid answer.
func ClusterStatusHandler(runner StatusRunner, serveClient rayserve.ServeClient) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), statusTimeout)
		defer cancel()

		var resp datatypes.ClusterStatusResponse

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			report, err := runner.ClusterStatus(gctx)
			if err != nil {
				resp.Error = err.Error()
				return nil
			}
			resp.Report = report
			resp.ClusterUp = true
			return nil
		})
		g.Go(func() error {
			details, err := serveClient.Applications(gctx)
			if err != nil {
				return nil
			}
			resp.DashboardReachable = true
			resp.Applications = len(details.Applications)
			return nil
		})

		// Both goroutines degrade instead of failing, so Wait cannot
		// return an error here.
		_ = g.Wait()

		c.JSON(http.StatusOK, resp)
	}
}
