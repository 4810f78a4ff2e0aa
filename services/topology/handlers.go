// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package topology

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/rudipoppes/SL1-TOPOLOGY-sub000/services/topology/datatypes"
)

// Handlers serves the topology HTTP API.
type Handlers struct {
	svc     *Service
	service string
	version string
	logger  *slog.Logger
}

// NewHandlers creates handlers backed by svc.
func NewHandlers(svc *Service, serviceName, version string, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{svc: svc, service: serviceName, version: version, logger: logger}
}

// HandleExplore handles POST /topology and POST /v1/topology.
//
// Description:
//
//	Decodes a TopologyRequest, runs Service.Explore and returns the
//	subgraph. Validation failures are 400; data source failures are 500.
//
// Request Body:
//
//	{"deviceIds": ["1"], "depth": 2, "direction": "children",
//	 "deviceDepths": {"1": 3}, "deviceDirections": {"1": "parents"}}
//
// Response:
//
//	200 OK: TopologyResponse
//	400 Bad Request: malformed JSON, missing deviceIds, unknown direction
//	500 Internal Server Error: upstream data source failure
func (h *Handlers) HandleExplore(c *gin.Context) {
	requestID := requestIDFrom(c)
	logger := h.logger.With("request_id", requestID, "handler", "HandleExplore")

	var req datatypes.TopologyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, datatypes.ErrorResponse{
			Error:   "Invalid request body",
			Message: err.Error(),
			Code:    "INVALID_REQUEST",
		})
		return
	}

	logger.Info("Exploring topology",
		"device_count", len(req.DeviceIDs),
		"depth", req.Depth,
		"direction", req.Direction)

	resp, err := h.svc.Explore(c.Request.Context(), req)
	if err != nil {
		status, body := errorResponse(err)
		if status >= http.StatusInternalServerError {
			logger.Error("Explore failed", "error", err)
		} else {
			logger.Warn("Explore rejected", "error", err)
		}
		c.JSON(status, body)
		return
	}

	logger.Info("Topology explored",
		"nodes", resp.Stats.TotalDevices,
		"edges", resp.Stats.TotalRelationships)
	c.JSON(http.StatusOK, resp)
}

// HandleSearchDevices handles GET /devices?search=<term>&limit=<n>.
func (h *Handlers) HandleSearchDevices(c *gin.Context) {
	requestID := requestIDFrom(c)
	logger := h.logger.With("request_id", requestID, "handler", "HandleSearchDevices")

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, datatypes.ErrorResponse{
				Error:   "Invalid limit",
				Message: "limit must be a non-negative integer",
				Code:    "VALIDATION_ERROR",
			})
			return
		}
		limit = n
	}

	devices, err := h.svc.SearchDevices(c.Request.Context(), c.Query("search"), limit)
	if err != nil {
		status, body := errorResponse(err)
		if status >= http.StatusInternalServerError {
			logger.Error("Device search failed", "error", err)
		} else {
			logger.Warn("Device search rejected", "error", err)
		}
		c.JSON(status, body)
		return
	}

	c.JSON(http.StatusOK, datatypes.DeviceSearchResponse{Devices: devices, Count: len(devices)})
}

// HandleHealth handles GET /health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, datatypes.HealthResponse{
		Status:  "healthy",
		Service: h.service,
		Version: h.version,
	})
}

// HandleReady handles GET /ready.
func (h *Handlers) HandleReady(c *gin.Context) {
	if h.svc == nil || h.svc.source == nil {
		c.JSON(http.StatusServiceUnavailable, datatypes.HealthResponse{
			Status:  "not_ready",
			Service: h.service,
			Reason:  "no data source configured",
		})
		return
	}
	c.JSON(http.StatusOK, datatypes.HealthResponse{
		Status:  "ready",
		Service: h.service,
		Version: h.version,
	})
}

// errorResponse maps a service error to a status code and body.
func errorResponse(err error) (int, datatypes.ErrorResponse) {
	var verr *ValidationError
	var derr *DataSourceError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, datatypes.ErrorResponse{
			Error:   "Invalid request",
			Message: verr.Error(),
			Code:    "VALIDATION_ERROR",
		}
	case errors.As(err, &derr):
		return http.StatusInternalServerError, datatypes.ErrorResponse{
			Error:   "Failed to fetch topology data",
			Message: derr.Error(),
			Code:    "DATA_SOURCE_ERROR",
		}
	default:
		return http.StatusInternalServerError, datatypes.ErrorResponse{
			Error:   "Internal server error",
			Message: err.Error(),
			Code:    "INTERNAL_ERROR",
		}
	}
}
