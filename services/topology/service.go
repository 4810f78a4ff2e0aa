// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package topology serves bounded-neighborhood views of the SL1 device
// relationship graph over HTTP.
//
// # Request Flow
//
//	POST /topology
//	  └─ Service.Explore
//	       ├─ normalize (validate, default, clamp, dedupe seeds)
//	       ├─ cache lookup (key = cache.BuildKey(defaults, seeds))
//	       └─ singleflight compute
//	            ├─ DataSource.FetchRelationships
//	            ├─ graph.BuildIndex → graph.AggregateSeeds
//	            ├─ DataSource.FetchDevices (seed metadata)
//	            ├─ graph.Resolve
//	            └─ cache store
package topology

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"

	"github.com/rudipoppes/SL1-TOPOLOGY-sub000/pkg/validation"
	"github.com/rudipoppes/SL1-TOPOLOGY-sub000/services/topology/cache"
	"github.com/rudipoppes/SL1-TOPOLOGY-sub000/services/topology/datasource"
	"github.com/rudipoppes/SL1-TOPOLOGY-sub000/services/topology/datatypes"
	"github.com/rudipoppes/SL1-TOPOLOGY-sub000/services/topology/graph"
	"github.com/rudipoppes/SL1-TOPOLOGY-sub000/services/topology/telemetry"
)

const (
	// DefaultMaxSeeds bounds the seeds in one request when Options.MaxSeeds is zero.
	DefaultMaxSeeds = 100

	// DefaultSearchLimit is used when a device search omits limit.
	DefaultSearchLimit = 50

	// MaxSearchLimit caps a device search.
	MaxSearchLimit = 500
)

// Options configures a Service.
type Options struct {
	// Cache stores serialized responses. Nil disables caching.
	Cache cache.Cache

	// CacheTTL is the lifetime of a cached response.
	CacheTTL time.Duration

	// ResolveAllEndpoints fetches full metadata for non-seed endpoints.
	ResolveAllEndpoints bool

	// MaxSeeds bounds the number of distinct seeds per request.
	MaxSeeds int

	// Metrics receives service metrics. May be nil.
	Metrics *telemetry.Metrics

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Service computes topology responses.
//
// # Thread Safety
//
// Safe for concurrent use. Requests share only the cache and the
// singleflight group; identical concurrent requests are computed once.
type Service struct {
	source     datasource.DataSource
	cache      cache.Cache
	ttl        time.Duration
	resolveAll bool
	maxSeeds   int
	metrics    *telemetry.Metrics
	logger     *slog.Logger

	flight singleflight.Group
}

// NewService creates a Service reading from source.
func NewService(source datasource.DataSource, opts Options) *Service {
	s := &Service{
		source:     source,
		cache:      opts.Cache,
		ttl:        opts.CacheTTL,
		resolveAll: opts.ResolveAllEndpoints,
		maxSeeds:   opts.MaxSeeds,
		metrics:    opts.Metrics,
		logger:     opts.Logger,
	}
	if s.cache == nil {
		s.cache = cache.NopCache{}
	}
	if s.maxSeeds <= 0 {
		s.maxSeeds = DefaultMaxSeeds
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// exploreQuery is a normalized TopologyRequest.
type exploreQuery struct {
	seeds     []graph.Seed
	depth     int
	direction graph.Direction
}

// Explore returns the subgraph around the requested seeds.
//
// # Description
//
// The request is validated and normalized: depth defaults to 1 and is
// clamped to [1,5]; direction defaults to "both"; per-device overrides
// replace the defaults for their seed; duplicate seed IDs keep their first
// occurrence. A cached response for the same normalized seeds is returned
// as-is. Otherwise the relationships are fetched, traversed per seed and
// aggregated, and node metadata is resolved.
//
// # Outputs
//
//   - *datatypes.TopologyResponse: the subgraph. Shared with concurrent
//     identical callers; treat as read-only.
//   - error: *ValidationError (400) or *DataSourceError (500). Cache
//     failures are never returned.
func (s *Service) Explore(ctx context.Context, req datatypes.TopologyRequest) (*datatypes.TopologyResponse, error) {
	start := time.Now()
	ctx, span := telemetry.StartSpan(ctx, "topology.Explore",
		attribute.Int("topology.seed_count", len(req.DeviceIDs)))
	defer span.End()

	resp, err := s.explore(ctx, req)

	result := "ok"
	nodes := 0
	switch {
	case errors.Is(err, ErrValidation):
		result = "invalid"
	case err != nil:
		result = "error"
	default:
		nodes = len(resp.Topology.Nodes)
		span.SetAttributes(
			attribute.Int("topology.nodes", nodes),
			attribute.Int("topology.edges", len(resp.Topology.Edges)),
		)
	}
	telemetry.RecordError(span, err)
	s.metrics.RecordExplore(ctx, result, time.Since(start).Seconds(), nodes)

	return resp, err
}

func (s *Service) explore(ctx context.Context, req datatypes.TopologyRequest) (*datatypes.TopologyResponse, error) {
	q, err := s.normalize(req)
	if err != nil {
		return nil, err
	}

	key := cache.BuildKey(q.depth, q.direction, q.seeds)
	if resp, ok := s.lookup(ctx, key); ok {
		return resp, nil
	}

	ch := s.flight.DoChan(key, func() (any, error) {
		// Detached so one caller going away does not fail the others.
		return s.compute(context.WithoutCancel(ctx), key, q)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			s.logger.Debug("topology computation shared", slog.String("cache_key", key))
		}
		return res.Val.(*datatypes.TopologyResponse), nil
	}
}

// normalize validates req and applies defaults, clamps and overrides.
func (s *Service) normalize(req datatypes.TopologyRequest) (exploreQuery, error) {
	if err := req.Validate(); err != nil {
		return exploreQuery{}, validationFromValidator(err)
	}

	direction, err := graph.ParseDirection(req.Direction)
	if err != nil {
		return exploreQuery{}, &ValidationError{
			Field:   "direction",
			Message: fmt.Sprintf("must be one of parents, children, both (got %q)", req.Direction),
		}
	}
	depth := graph.ClampDepth(req.Depth)

	seen := make(map[string]struct{}, len(req.DeviceIDs))
	seeds := make([]graph.Seed, 0, len(req.DeviceIDs))
	for _, raw := range req.DeviceIDs {
		if strings.TrimSpace(raw) == "" {
			return exploreQuery{}, &ValidationError{Field: "deviceIds", Message: "device ids must not be blank"}
		}
		id, err := validation.SanitizeDeviceID(raw)
		if err != nil {
			return exploreQuery{}, &ValidationError{Field: "deviceIds", Message: err.Error()}
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		seed := graph.Seed{ID: id, Depth: depth, Direction: direction}
		if d, ok := lookupOverride(req.DeviceDepths, id, raw); ok {
			seed.Depth = graph.ClampDepth(d)
		}
		if v, ok := lookupOverride(req.DeviceDirections, id, raw); ok {
			dir, err := graph.ParseDirection(v)
			if err != nil {
				return exploreQuery{}, &ValidationError{
					Field:   "deviceDirections." + id,
					Message: fmt.Sprintf("must be one of parents, children, both (got %q)", v),
				}
			}
			seed.Direction = dir
		}
		seeds = append(seeds, seed)
	}

	if len(seeds) > s.maxSeeds {
		return exploreQuery{}, &ValidationError{
			Field:   "deviceIds",
			Message: fmt.Sprintf("at most %d devices per request (got %d)", s.maxSeeds, len(seeds)),
		}
	}

	return exploreQuery{seeds: seeds, depth: depth, direction: direction}, nil
}

// lookupOverride finds a per-device setting by trimmed or raw ID.
func lookupOverride[V any](m map[string]V, id, raw string) (V, bool) {
	if v, ok := m[id]; ok {
		return v, true
	}
	v, ok := m[raw]
	return v, ok
}

func validationFromValidator(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		field := "deviceIds"
		msg := "is required and must contain at least one device id"
		if fe.Tag() == "required" && fe.Field() != "DeviceIDs" {
			msg = "device ids must not be blank"
		}
		return &ValidationError{Field: field, Message: msg}
	}
	return &ValidationError{Message: err.Error()}
}

// lookup returns a cached response. Every failure is treated as a miss.
func (s *Service) lookup(ctx context.Context, key string) (*datatypes.TopologyResponse, bool) {
	data, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.cacheFailure(ctx, &CacheError{Op: "get", Key: key, Err: err})
		return nil, false
	}
	if !ok {
		s.metrics.RecordCache(ctx, "miss", "get")
		return nil, false
	}

	var resp datatypes.TopologyResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		s.cacheFailure(ctx, &CacheError{Op: "decode", Key: key, Err: err})
		return nil, false
	}
	s.metrics.RecordCache(ctx, "hit", "get")
	return &resp, true
}

func (s *Service) store(ctx context.Context, key string, resp *datatypes.TopologyResponse) {
	data, err := json.Marshal(resp)
	if err != nil {
		s.cacheFailure(ctx, &CacheError{Op: "encode", Key: key, Err: err})
		return
	}
	if err := s.cache.Set(ctx, key, data, s.ttl); err != nil {
		s.cacheFailure(ctx, &CacheError{Op: "set", Key: key, Err: err})
	}
}

func (s *Service) cacheFailure(ctx context.Context, err *CacheError) {
	s.metrics.RecordCache(ctx, "error", err.Op)
	s.logger.Warn("topology cache unavailable, bypassing",
		slog.String("op", err.Op),
		slog.String("error", err.Error()))
}

// compute fetches, traverses and resolves one normalized query.
func (s *Service) compute(ctx context.Context, key string, q exploreQuery) (*datatypes.TopologyResponse, error) {
	records, err := s.fetchRelationships(ctx)
	if err != nil {
		return nil, err
	}

	traverseStart := time.Now()
	index := graph.BuildIndex(records)
	if index.Skipped > 0 {
		s.logger.Debug("skipped relationship records with a missing endpoint",
			slog.Int("skipped", index.Skipped))
		if s.metrics != nil {
			s.metrics.SkippedRelationships.Add(ctx, int64(index.Skipped))
		}
	}

	agg, err := graph.AggregateSeeds(q.seeds, index)
	if err != nil {
		// Seeds are normalized, so this is a programming error.
		return nil, fmt.Errorf("aggregate traversal: %w", err)
	}
	if s.metrics != nil {
		s.metrics.TraversalDuration.Record(ctx, time.Since(traverseStart).Seconds())
	}

	seedIDs := make([]string, len(q.seeds))
	for i, seed := range q.seeds {
		seedIDs[i] = seed.ID
	}
	requested, err := s.fetchDevices(ctx, "fetch_devices", seedIDs)
	if err != nil {
		return nil, err
	}

	var extra map[string]graph.Device
	if s.resolveAll {
		others := agg.EndpointIDs(requested)
		extra, err = s.fetchDevices(ctx, "fetch_endpoint_devices", others)
		if err != nil {
			// Endpoint enrichment is best effort; snapshots still label them.
			s.logger.Warn("endpoint metadata unavailable, using relationship snapshots",
				slog.Int("endpoints", len(others)),
				slog.String("error", err.Error()))
			extra = nil
		}
	}

	resp := buildResponse(agg, graph.Resolve(agg, requested, extra), q)
	s.store(ctx, key, resp)

	s.logger.Info("topology computed",
		slog.Int("seeds", len(q.seeds)),
		slog.Int("relationships_total", index.Len()),
		slog.Int("nodes", resp.Stats.TotalDevices),
		slog.Int("edges", resp.Stats.TotalRelationships))
	return resp, nil
}

func (s *Service) fetchRelationships(ctx context.Context) ([]graph.RelationshipRecord, error) {
	ctx, span := telemetry.StartSpan(ctx, "datasource.FetchRelationships")
	defer span.End()

	start := time.Now()
	records, err := s.source.FetchRelationships(ctx)
	s.metrics.RecordUpstream(ctx, "fetch_relationships", time.Since(start).Seconds(), err)
	if err != nil {
		err = &DataSourceError{Op: "fetch relationships", Err: err}
		telemetry.RecordError(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("topology.records", len(records)))
	return records, nil
}

func (s *Service) fetchDevices(ctx context.Context, op string, ids []string) (map[string]graph.Device, error) {
	if len(ids) == 0 {
		return map[string]graph.Device{}, nil
	}
	ctx, span := telemetry.StartSpan(ctx, "datasource.FetchDevices",
		attribute.Int("topology.device_ids", len(ids)))
	defer span.End()

	start := time.Now()
	devices, err := s.source.FetchDevices(ctx, ids)
	s.metrics.RecordUpstream(ctx, op, time.Since(start).Seconds(), err)
	if err != nil {
		err = &DataSourceError{Op: strings.ReplaceAll(op, "_", " "), Err: err}
		telemetry.RecordError(span, err)
		return nil, err
	}
	return devices, nil
}

func buildResponse(agg *graph.Aggregate, nodes []graph.Node, q exploreQuery) *datatypes.TopologyResponse {
	outNodes := make([]datatypes.Node, len(nodes))
	for i, n := range nodes {
		outNodes[i] = datatypes.Node{
			ID:     n.ID,
			Label:  n.Label,
			Type:   n.Type,
			Status: string(n.Status),
			IP:     n.IP,
		}
	}

	edges := make([]datatypes.Edge, len(agg.Relationships))
	for i, rel := range agg.Relationships {
		edges[i] = datatypes.Edge{Source: rel.Source, Target: rel.Target}
	}

	return &datatypes.TopologyResponse{
		Topology: datatypes.Topology{Nodes: outNodes, Edges: edges},
		Stats: datatypes.Stats{
			TotalDevices:       len(outNodes),
			TotalRelationships: len(edges),
			Depth:              q.depth,
			Direction:          string(q.direction),
		},
	}
}

// SearchDevices looks up devices by name for the device picker.
//
// # Inputs
//
//   - term: substring of the device name; empty lists devices
//   - limit: defaults to DefaultSearchLimit, capped at MaxSearchLimit
func (s *Service) SearchDevices(ctx context.Context, term string, limit int) ([]datatypes.Device, error) {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	limit = min(limit, MaxSearchLimit)

	term, err := validation.SanitizeSearchTerm(term)
	if err != nil {
		return nil, &ValidationError{Field: "search", Message: err.Error()}
	}

	ctx, span := telemetry.StartSpan(ctx, "datasource.SearchDevices")
	defer span.End()

	start := time.Now()
	found, err := s.source.SearchDevices(ctx, term, limit)
	s.metrics.RecordUpstream(ctx, "search_devices", time.Since(start).Seconds(), err)
	if err != nil {
		err = &DataSourceError{Op: "search devices", Err: err}
		telemetry.RecordError(span, err)
		return nil, err
	}

	out := make([]datatypes.Device, len(found))
	for i, d := range found {
		out[i] = datatypes.Device{
			ID:           d.ID,
			Name:         d.Name,
			IP:           d.IP,
			State:        d.State,
			Status:       string(graph.StatusFromState(d.State)),
			DeviceClass:  d.DeviceClass,
			Organization: d.Organization,
		}
	}
	return out, nil
}
