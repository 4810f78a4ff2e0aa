// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package canvas

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/rudipoppes/SL1-TOPOLOGY-sub000/services/topology/datatypes"
)

// ErrStaleResponse is returned when a newer request superseded this one
// before its response arrived. The response is dropped.
var ErrStaleResponse = errors.New("stale topology response dropped")

// TopologyAPI is the part of Client the Explorer needs.
type TopologyAPI interface {
	Explore(ctx context.Context, req datatypes.TopologyRequest) (*datatypes.TopologyResponse, error)
}

// Explorer drives exploration rounds from a Session onto a Canvas.
//
// # Description
//
// Each Select or Explore call takes a new generation from the Sequencer.
// A response is applied only if its generation is still the latest, so a
// slow answer can never overwrite the graph of a newer selection. A
// failed request leaves the canvas exactly as it was.
//
// # Thread Safety
//
// Safe for concurrent use. Building a request and taking its generation
// happen under one lock, as do the generation check and the canvas update.
type Explorer struct {
	canvas  *Canvas
	session *Session
	api     TopologyAPI
	seq     Sequencer
	logger  *slog.Logger

	applyMu sync.Mutex
}

// NewExplorer returns an Explorer that applies api responses to canvas.
// A nil logger uses slog.Default().
func NewExplorer(canvas *Canvas, session *Session, api TopologyAPI, logger *slog.Logger) *Explorer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Explorer{canvas: canvas, session: session, api: api, logger: logger}
}

// Select updates the session and canvas for a new selection and
// supersedes any request in flight.
func (e *Explorer) Select(devices []datatypes.Node) {
	e.applyMu.Lock()
	defer e.applyMu.Unlock()

	e.seq.Next()
	e.session.Select(devices)
	e.canvas.ApplySelection(e.session.Selected())
}

// Explore requests the topology of the current selection and merges it
// into the canvas.
//
// # Outputs
//
//   - datatypes.Stats: Stats of the applied response.
//   - error: ErrEmptySelection, ErrStaleResponse, or the API error. The
//     canvas is unchanged on any error.
func (e *Explorer) Explore(ctx context.Context) (datatypes.Stats, error) {
	req, gen, err := e.begin()
	if err != nil {
		return datatypes.Stats{}, err
	}

	resp, err := e.api.Explore(ctx, req)
	if err != nil {
		e.logger.Warn("topology request failed, keeping current canvas",
			slog.Uint64("generation", gen),
			slog.String("error", err.Error()))
		return datatypes.Stats{}, fmt.Errorf("explore topology: %w", err)
	}

	e.applyMu.Lock()
	defer e.applyMu.Unlock()

	if !e.seq.IsCurrent(gen) {
		e.logger.Debug("dropping superseded topology response",
			slog.Uint64("generation", gen),
			slog.Uint64("current", e.seq.Current()))
		return datatypes.Stats{}, ErrStaleResponse
	}

	e.canvas.ApplySubgraph(resp.Topology)
	return resp.Stats, nil
}

// begin snapshots the request and takes its generation under applyMu, so a
// concurrent Select either lands before the snapshot or supersedes it.
func (e *Explorer) begin() (datatypes.TopologyRequest, uint64, error) {
	e.applyMu.Lock()
	defer e.applyMu.Unlock()

	req, err := e.session.BuildRequest()
	if err != nil {
		return datatypes.TopologyRequest{}, 0, err
	}
	return req, e.seq.Next(), nil
}
