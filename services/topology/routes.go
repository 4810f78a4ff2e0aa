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
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/rudipoppes/SL1-TOPOLOGY-sub000/services/topology/telemetry"
)

// RouterOptions configures NewRouter.
type RouterOptions struct {
	// ServiceName names otelgin server spans.
	ServiceName string

	// Metrics records HTTP metrics. May be nil.
	Metrics *telemetry.Metrics

	// MetricsHandler is mounted at GET /metrics when non-nil.
	MetricsHandler http.Handler

	// Logger receives access logs. Defaults to slog.Default().
	Logger *slog.Logger
}

// RegisterRoutes registers the topology endpoints.
func RegisterRoutes(r gin.IRoutes, handlers *Handlers) {
	// Exploration
	r.POST("/topology", handlers.HandleExplore)
	r.POST("/v1/topology", handlers.HandleExplore)

	// Device picker
	r.GET("/devices", handlers.HandleSearchDevices)

	// Health checks
	r.GET("/health", handlers.HandleHealth)
	r.GET("/ready", handlers.HandleReady)
}

// NewRouter builds the gin engine with middleware and routes.
//
// Middleware order: recovery, request ID, CORS (short-circuits OPTIONS),
// tracing, metrics, access log.
func NewRouter(handlers *Handlers, opts RouterOptions) *gin.Engine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	serviceName := opts.ServiceName
	if serviceName == "" {
		serviceName = "sl1-topology"
	}

	router := gin.New()
	router.Use(
		gin.Recovery(),
		RequestID(),
		CORS(),
		otelgin.Middleware(serviceName),
		telemetry.GinMetrics(opts.Metrics),
		AccessLog(logger),
	)

	RegisterRoutes(router, handlers)

	if opts.MetricsHandler != nil {
		router.GET("/metrics", gin.WrapH(opts.MetricsHandler))
	}

	return router
}
