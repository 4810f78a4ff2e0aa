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
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/rudipoppes/SL1-TOPOLOGY-sub000/services/topology"
	"github.com/rudipoppes/SL1-TOPOLOGY-sub000/services/topology/datasource"
)

type serveOptions struct {
	port int

	// ready, when set, receives the bound address once listening. Tests use it.
	ready chan<- string
}

func newServeCmd(root *rootOptions) *cobra.Command {
	opts := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the topology HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cmd.OutOrStdout(), root, opts)
		},
	}
	cmd.Flags().IntVarP(&opts.port, "port", "p", 0, "port to listen on (overrides config)")
	return cmd
}

// runServe serves until ctx is done, then shuts down gracefully.
func runServe(ctx context.Context, out io.Writer, root *rootOptions, opts *serveOptions) error {
	if opts.port < 0 || opts.port > 65535 {
		return fmt.Errorf("invalid port %d", opts.port)
	}

	a, err := newApp(ctx, root)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(context.Background()); err != nil {
			slog.Warn("Shutdown cleanup failed", "error", err)
		}
	}()

	cfg := a.cfg
	if opts.port != 0 {
		cfg.Server.Port = opts.port
	}

	if root.debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	if fs, ok := a.source.(*datasource.FileSource); ok && cfg.DataSource.File.Watch {
		go func() {
			if err := fs.Watch(ctx); err != nil {
				a.logger.Warn("Fixture watch stopped", "error", err)
			}
		}()
	}

	handlers := topology.NewHandlers(a.service, cfg.Telemetry.ServiceName, version, a.logger)
	router := topology.NewRouter(handlers, topology.RouterOptions{
		ServiceName:    cfg.Telemetry.ServiceName,
		Metrics:        a.metrics,
		MetricsHandler: a.telemetry.MetricsHandler(),
		Logger:         a.logger,
	})

	ln, err := net.Listen("tcp", cfg.Server.Addr())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.Server.Addr(), err)
	}

	srv := &http.Server{
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	printBanner(out, ln.Addr().String(), cfg.DataSource.Kind, cfg.Cache.Kind)
	a.logger.Info("Starting topology server", "address", ln.Addr().String())
	if opts.ready != nil {
		opts.ready <- ln.Addr().String()
	}

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info("Shutting down topology server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func printBanner(out io.Writer, addr, source, cacheKind string) {
	fmt.Fprintf(out, `
SL1 TOPOLOGY EXPLORER %s
  listening:   http://%s
  data source: %s
  cache:       %s

  curl -X POST http://%s/topology \
    -H "Content-Type: application/json" \
    -d '{"deviceIds": ["dev1"], "depth": 2}'

`, version, addr, source, cacheKind, addr)
}
