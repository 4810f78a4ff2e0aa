// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel"

	"github.com/rudipoppes/SL1-TOPOLOGY-sub000/pkg/logging"
	"github.com/rudipoppes/SL1-TOPOLOGY-sub000/services/topology"
	"github.com/rudipoppes/SL1-TOPOLOGY-sub000/services/topology/cache"
	"github.com/rudipoppes/SL1-TOPOLOGY-sub000/services/topology/config"
	"github.com/rudipoppes/SL1-TOPOLOGY-sub000/services/topology/datasource"
	"github.com/rudipoppes/SL1-TOPOLOGY-sub000/services/topology/telemetry"
)

// app is the assembled runtime shared by serve and explore.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	telemetry *telemetry.Telemetry
	metrics   *telemetry.Metrics
	source    datasource.DataSource
	cache     cache.Cache
	service   *topology.Service

	closers []func(context.Context) error
}

// newApp loads configuration and builds every dependency of the service.
//
// # Description
//
// Order: .env file, YAML config plus environment, logger, telemetry, data
// source, cache, service. On error everything built so far is closed.
//
// # Inputs
//
//   - ctx: Used to dial telemetry exporters.
//   - opts: Root command flags.
//
// # Outputs
//
//   - *app: Call Close when done.
//   - error: Configuration or dependency failure.
func newApp(ctx context.Context, opts *rootOptions) (_ *app, err error) {
	if err := config.LoadEnvFile(opts.envFile); err != nil {
		return nil, err
	}
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.debug {
		cfg.Logging.Level = "debug"
	}

	a := &app{cfg: cfg}
	defer func() {
		if err != nil {
			_ = a.Close(context.Background())
		}
	}()

	if err := a.initLogging(opts); err != nil {
		return nil, err
	}

	tel, err := telemetry.Init(ctx, telemetry.FromConfig(cfg.Telemetry, version))
	if err != nil {
		return nil, err
	}
	a.telemetry = tel
	a.closers = append(a.closers, tel.Shutdown)

	a.metrics, err = telemetry.NewMetrics(otel.Meter(telemetry.InstrumentationName))
	if err != nil {
		return nil, fmt.Errorf("create metrics: %w", err)
	}

	a.source, err = newDataSource(cfg.DataSource, a.logger)
	if err != nil {
		return nil, err
	}
	if fs, ok := a.source.(*datasource.FileSource); ok {
		a.closers = append(a.closers, func(context.Context) error { return fs.Close() })
	}

	a.cache, err = cache.New(cfg.Cache, a.logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func(context.Context) error { return a.cache.Close() })

	a.service = topology.NewService(a.source, topology.Options{
		Cache:               a.cache,
		CacheTTL:            cfg.Cache.TTL,
		ResolveAllEndpoints: cfg.Topology.ResolveAllEndpoints,
		MaxSeeds:            cfg.Topology.MaxSeeds,
		Metrics:             a.metrics,
		Logger:              a.logger,
	})
	return a, nil
}

func (a *app) initLogging(opts *rootOptions) error {
	level, err := logging.ParseLevel(a.cfg.Logging.Level)
	if err != nil {
		return err
	}

	out := opts.logOutput
	useJSON := a.cfg.Logging.JSON
	if out == nil {
		out = os.Stderr
		useJSON = useJSON || logging.ShouldUseJSON(os.Stderr)
	}

	logger, err := logging.New(logging.Config{
		Level:   level,
		LogDir:  a.cfg.Logging.Dir,
		Service: a.cfg.Telemetry.ServiceName,
		JSON:    useJSON,
		Output:  out,
	})
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	a.logger = logger.Slog()
	slog.SetDefault(a.logger)
	a.closers = append(a.closers, func(context.Context) error { return logger.Close() })
	return nil
}

// newDataSource builds the configured upstream.
func newDataSource(cfg config.DataSourceConfig, logger *slog.Logger) (datasource.DataSource, error) {
	switch cfg.Kind {
	case config.DataSourceSL1:
		client, err := datasource.NewSL1Client(cfg.SL1, datasource.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		logger.Info("Using SL1 data source", "url", cfg.SL1.URL)
		return client, nil
	case config.DataSourceFile:
		src, err := datasource.NewFileSource(cfg.File.Path, logger)
		if err != nil {
			return nil, err
		}
		logger.Info("Using fixture data source", "path", cfg.File.Path)
		return src, nil
	default:
		return nil, fmt.Errorf("%w: unknown data source %q", config.ErrInvalidConfig, cfg.Kind)
	}
}

// Close releases dependencies in reverse order of creation.
func (a *app) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
