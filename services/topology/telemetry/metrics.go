// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the instruments of the topology service.
//
// # Thread Safety
//
// otel instruments are safe for concurrent use.
type Metrics struct {
	// HTTP
	HTTPRequestsTotal   metric.Int64Counter
	HTTPRequestDuration metric.Float64Histogram

	// Explore
	ExploreTotal         metric.Int64Counter
	ExploreDuration      metric.Float64Histogram
	TraversalDuration    metric.Float64Histogram
	TopologyNodes        metric.Int64Histogram
	SkippedRelationships metric.Int64Counter

	// Cache
	CacheHitsTotal   metric.Int64Counter
	CacheMissesTotal metric.Int64Counter
	CacheErrorsTotal metric.Int64Counter

	// Upstream data source
	UpstreamDuration    metric.Float64Histogram
	UpstreamErrorsTotal metric.Int64Counter
}

// NewMetrics creates every instrument on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	latency := metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30)

	if m.HTTPRequestsTotal, err = meter.Int64Counter(
		"topology_http_requests_total",
		metric.WithDescription("Total HTTP requests"),
		metric.WithUnit("{request}"),
	); err != nil {
		return nil, fmt.Errorf("create http_requests_total: %w", err)
	}

	if m.HTTPRequestDuration, err = meter.Float64Histogram(
		"topology_http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
		latency,
	); err != nil {
		return nil, fmt.Errorf("create http_request_duration: %w", err)
	}

	if m.ExploreTotal, err = meter.Int64Counter(
		"topology_explore_total",
		metric.WithDescription("Topology explore calls by result"),
		metric.WithUnit("{call}"),
	); err != nil {
		return nil, fmt.Errorf("create explore_total: %w", err)
	}

	if m.ExploreDuration, err = meter.Float64Histogram(
		"topology_explore_duration_seconds",
		metric.WithDescription("End-to-end explore duration in seconds"),
		metric.WithUnit("s"),
		latency,
	); err != nil {
		return nil, fmt.Errorf("create explore_duration: %w", err)
	}

	if m.TraversalDuration, err = meter.Float64Histogram(
		"topology_traversal_duration_seconds",
		metric.WithDescription("Index, traversal and aggregation time in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1),
	); err != nil {
		return nil, fmt.Errorf("create traversal_duration: %w", err)
	}

	if m.TopologyNodes, err = meter.Int64Histogram(
		"topology_response_nodes",
		metric.WithDescription("Nodes per topology response"),
		metric.WithUnit("{node}"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000),
	); err != nil {
		return nil, fmt.Errorf("create response_nodes: %w", err)
	}

	if m.SkippedRelationships, err = meter.Int64Counter(
		"topology_skipped_relationships_total",
		metric.WithDescription("Relationship records dropped for a missing endpoint id"),
		metric.WithUnit("{record}"),
	); err != nil {
		return nil, fmt.Errorf("create skipped_relationships_total: %w", err)
	}

	if m.CacheHitsTotal, err = meter.Int64Counter(
		"topology_cache_hits_total",
		metric.WithDescription("Topology cache hits"),
	); err != nil {
		return nil, fmt.Errorf("create cache_hits_total: %w", err)
	}

	if m.CacheMissesTotal, err = meter.Int64Counter(
		"topology_cache_misses_total",
		metric.WithDescription("Topology cache misses"),
	); err != nil {
		return nil, fmt.Errorf("create cache_misses_total: %w", err)
	}

	if m.CacheErrorsTotal, err = meter.Int64Counter(
		"topology_cache_errors_total",
		metric.WithDescription("Topology cache read/write failures"),
	); err != nil {
		return nil, fmt.Errorf("create cache_errors_total: %w", err)
	}

	if m.UpstreamDuration, err = meter.Float64Histogram(
		"topology_upstream_duration_seconds",
		metric.WithDescription("Data source call duration in seconds"),
		metric.WithUnit("s"),
		latency,
	); err != nil {
		return nil, fmt.Errorf("create upstream_duration: %w", err)
	}

	if m.UpstreamErrorsTotal, err = meter.Int64Counter(
		"topology_upstream_errors_total",
		metric.WithDescription("Data source call failures"),
	); err != nil {
		return nil, fmt.Errorf("create upstream_errors_total: %w", err)
	}

	return m, nil
}

// RecordExplore records one explore call.
func (m *Metrics) RecordExplore(ctx context.Context, result string, seconds float64, nodes int) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("result", result))
	m.ExploreTotal.Add(ctx, 1, attrs)
	m.ExploreDuration.Record(ctx, seconds, attrs)
	if nodes > 0 {
		m.TopologyNodes.Record(ctx, int64(nodes))
	}
}

// RecordUpstream records one data source call.
func (m *Metrics) RecordUpstream(ctx context.Context, op string, seconds float64, err error) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("op", op))
	m.UpstreamDuration.Record(ctx, seconds, attrs)
	if err != nil {
		m.UpstreamErrorsTotal.Add(ctx, 1, attrs)
	}
}

// RecordCache records a cache lookup outcome: "hit", "miss" or "error".
func (m *Metrics) RecordCache(ctx context.Context, outcome, op string) {
	if m == nil {
		return
	}
	switch outcome {
	case "hit":
		m.CacheHitsTotal.Add(ctx, 1)
	case "miss":
		m.CacheMissesTotal.Add(ctx, 1)
	default:
		m.CacheErrorsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
	}
}
