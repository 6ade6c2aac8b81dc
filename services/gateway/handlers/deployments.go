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
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dillema-ai/dillema/pkg/rayserve"
	"github.com/dillema-ai/dillema/pkg/validation"
	"github.com/dillema-ai/dillema/services/gateway/datatypes"
	"github.com/dillema-ai/dillema/services/gateway/observability"
	"github.com/dillema-ai/dillema/services/gateway/store"
)

// statusUnknown and statusNotFound extend the framework's application
// states for records whose live status cannot be read.
const (
	statusUnknown  = "UNKNOWN"
	statusNotFound = "NOT_FOUND"
)

// recordDeployOp increments the deployment op counter when metrics are
// enabled.
func recordDeployOp(op, outcome string) {
	if observability.DefaultMetrics == nil {
		return
	}
	observability.DefaultMetrics.DeploymentOpsTotal.WithLabelValues(op, outcome).Inc()
}

// ListDeployments merges stored records with live Serve status.
func ListDeployments(serveClient rayserve.ServeClient, records *store.DeploymentStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		recs, err := records.List()
		if err != nil {
			c.JSON(http.StatusInternalServerError, datatypes.ErrorResponse{Error: err.Error()})
			return
		}

		// A dead dashboard degrades status to UNKNOWN, it does not 500
		// the listing.
		live := map[string]rayserve.ApplicationDetails{}
		dashboardUp := false
		if details, err := serveClient.Applications(c.Request.Context()); err == nil {
			live = details.Applications
			dashboardUp = true
		}

		resp := datatypes.DeploymentListResponse{Deployments: []datatypes.DeploymentView{}}
		for _, rec := range recs {
			resp.Deployments = append(resp.Deployments, mergeStatus(rec, live, dashboardUp))
		}
		c.JSON(http.StatusOK, resp)
	}
}

// GetDeployment returns one record merged with live status.
func GetDeployment(serveClient rayserve.ServeClient, records *store.DeploymentStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Param("name")
		rec, err := records.Get(name)
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, datatypes.ErrorResponse{Error: fmt.Sprintf("no deployment named %q", name)})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, datatypes.ErrorResponse{Error: err.Error()})
			return
		}

		live := map[string]rayserve.ApplicationDetails{}
		dashboardUp := false
		if details, err := serveClient.Applications(c.Request.Context()); err == nil {
			live = details.Applications
			dashboardUp = true
		}

		c.JSON(http.StatusOK, mergeStatus(rec, live, dashboardUp))
	}
}

// CreateDeployment submits a Serve application with the same semantics
// as `dillema deploy` and records it. Validation failures never reach
// the dashboard.
func CreateDeployment(serveClient rayserve.ServeClient, records *store.DeploymentStore,
	defaultEndpoint string) gin.HandlerFunc {

	return func(c *gin.Context) {
		var req datatypes.CreateDeploymentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, datatypes.ErrorResponse{Error: "invalid request body: " + err.Error()})
			return
		}
		if err := req.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, datatypes.ErrorResponse{Error: err.Error()})
			return
		}

		endpoint := req.Endpoint
		if endpoint == "" {
			endpoint = defaultEndpoint
		}
		host, port, err := validation.SplitEndpoint(endpoint)
		if err != nil {
			c.JSON(http.StatusBadRequest, datatypes.ErrorResponse{Error: err.Error()})
			return
		}

		deployReq, err := rayserve.BuildDeployRequest(rayserve.DeploymentParams{
			ModelSource:          req.Model,
			ModelID:              req.Name,
			HTTPHost:             host,
			HTTPPort:             port,
			TensorParallel:       req.TensorParallel,
			PipelineParallel:     req.PipelineParallel,
			GPUMemoryUtilization: req.GPUMemoryUtilization,
			MaxModelLen:          req.MaxModelLen,
			NetworkInterface:     req.NetworkInterface,
		})
		if err != nil {
			c.JSON(http.StatusBadRequest, datatypes.ErrorResponse{Error: err.Error()})
			return
		}

		if err := serveClient.Deploy(c.Request.Context(), deployReq); err != nil {
			recordDeployOp("create", "error")
			slog.Error("deployment submission failed", "model", req.Model, "error", err)
			c.JSON(http.StatusBadGateway, datatypes.ErrorResponse{Error: err.Error()})
			return
		}

		// Record the resolved engine settings, not the raw request:
		// zero-valued request fields have already been defaulted by the
		// config builder, and the record is what a later resubmission
		// rebuilds from.
		app := deployReq.Applications[0]
		kwargs := app.Args.LLMConfigs[0].EngineKwargs
		rec, err := records.Put(store.DeploymentRecord{
			Name:                 app.Name,
			ModelSource:          req.Model,
			Endpoint:             fmt.Sprintf("%s:%d", host, port),
			TensorParallel:       kwargs.TensorParallelSize,
			PipelineParallel:     kwargs.PipelineParallelSize,
			GPUMemoryUtilization: kwargs.GPUMemoryUtilization,
			MaxModelLen:          kwargs.MaxModelLen,
			NetworkInterface:     req.NetworkInterface,
		})
		if err != nil {
			// Submitted but not recorded; surface it so the caller knows
			// the listing may be incomplete.
			recordDeployOp("create", "error")
			c.JSON(http.StatusInternalServerError, datatypes.ErrorResponse{
				Error: "deployed, but failed to record it: " + err.Error()})
			return
		}

		recordDeployOp("create", "success")
		slog.Info("deployment submitted", "name", rec.Name, "model", rec.ModelSource)
		c.JSON(http.StatusCreated, datatypes.DeploymentView{
			DeploymentRecord: rec,
			Status:           string(rayserve.StatusDeploying),
		})
	}
}

// DeleteDeployment removes the application from the Serve config and
// deletes the record. The Serve config is replaced with the remaining
// applications, because the REST API only accepts the full set.
func DeleteDeployment(serveClient rayserve.ServeClient, records *store.DeploymentStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Param("name")

		if _, err := records.Get(name); errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, datatypes.ErrorResponse{Error: fmt.Sprintf("no deployment named %q", name)})
			return
		} else if err != nil {
			c.JSON(http.StatusInternalServerError, datatypes.ErrorResponse{Error: err.Error()})
			return
		}

		details, err := serveClient.Applications(c.Request.Context())
		if err != nil {
			recordDeployOp("delete", "error")
			c.JSON(http.StatusBadGateway, datatypes.ErrorResponse{Error: err.Error()})
			return
		}

		if _, running := details.Applications[name]; running {
			if len(details.Applications) == 1 {
				// Last application: clear the whole Serve config.
				err = serveClient.Shutdown(c.Request.Context())
			} else {
				var remaining rayserve.DeployRequest
				remaining, err = remainingConfig(records, name)
				if err == nil {
					err = serveClient.Deploy(c.Request.Context(), remaining)
				}
			}
			if err != nil {
				recordDeployOp("delete", "error")
				c.JSON(http.StatusBadGateway, datatypes.ErrorResponse{Error: err.Error()})
				return
			}
		}

		if err := records.Delete(name); err != nil && !errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusInternalServerError, datatypes.ErrorResponse{Error: err.Error()})
			return
		}

		recordDeployOp("delete", "success")
		slog.Info("deployment removed", "name", name)
		c.Status(http.StatusNoContent)
	}
}

// mergeStatus attaches live application status to a stored record.
func mergeStatus(rec store.DeploymentRecord, live map[string]rayserve.ApplicationDetails,
	dashboardUp bool) datatypes.DeploymentView {

	view := datatypes.DeploymentView{DeploymentRecord: rec, Status: statusUnknown}
	if !dashboardUp {
		return view
	}
	app, ok := live[rec.Name]
	if !ok {
		view.Status = statusNotFound
		return view
	}
	view.Status = string(app.Status)
	view.Message = app.Message
	return view
}

// remainingConfig rebuilds the declarative Serve config from the stored
// records, minus the excluded application. The Serve REST API replaces
// the full config on PUT, so removing one application means resubmitting
// the rest; the status report does not carry enough to rebuild each app,
// the records do.
func remainingConfig(records *store.DeploymentStore, exclude string) (rayserve.DeployRequest, error) {
	recs, err := records.List()
	if err != nil {
		return rayserve.DeployRequest{}, err
	}

	var req rayserve.DeployRequest
	req.ProxyLocation = rayserve.DefaultProxyLocation
	for _, rec := range recs {
		if rec.Name == exclude {
			continue
		}
		host, port, err := validation.SplitEndpoint(rec.Endpoint)
		if err != nil {
			return rayserve.DeployRequest{}, fmt.Errorf("record %q has a bad endpoint: %w", rec.Name, err)
		}
		app, httpOpts, err := rayserve.BuildLLMApp(rayserve.DeploymentParams{
			ModelSource:          rec.ModelSource,
			ModelID:              rec.Name,
			HTTPHost:             host,
			HTTPPort:             port,
			TensorParallel:       rec.TensorParallel,
			PipelineParallel:     rec.PipelineParallel,
			GPUMemoryUtilization: rec.GPUMemoryUtilization,
			MaxModelLen:          rec.MaxModelLen,
			NetworkInterface:     rec.NetworkInterface,
		})
		if err != nil {
			return rayserve.DeployRequest{}, fmt.Errorf("record %q no longer builds: %w", rec.Name, err)
		}
		req.HTTPOptions = httpOpts
		req.Applications = append(req.Applications, app)
	}
	return req, nil
}
