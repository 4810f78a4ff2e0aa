// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datasource provides the device and relationship sources the
// topology service traverses.
//
// Two implementations are provided:
//
//   - SL1Client queries a ScienceLogic SL1 appliance over GraphQL.
//   - FileSource serves a YAML fixture, optionally hot-reloaded.
package datasource

import (
	"context"
	"errors"

	"github.com/rudipoppes/SL1-TOPOLOGY-sub000/services/topology/graph"
)

// DataSource is the read side of the monitoring backend.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type DataSource interface {
	// FetchRelationships returns every parent/child relationship record.
	FetchRelationships(ctx context.Context) ([]graph.RelationshipRecord, error)

	// FetchDevices returns full records for the given IDs. IDs unknown to
	// the backend are absent from the map; that is not an error.
	FetchDevices(ctx context.Context, ids []string) (map[string]graph.Device, error)

	// SearchDevices returns devices whose name contains term.
	SearchDevices(ctx context.Context, term string, limit int) ([]graph.Device, error)
}

var (
	// ErrTransport indicates the request never produced an HTTP response.
	ErrTransport = errors.New("sl1 transport failure")

	// ErrStatus indicates an HTTP status of 400 or above.
	ErrStatus = errors.New("sl1 returned an error status")

	// ErrGraphQL indicates a non-empty GraphQL errors array or missing data.
	ErrGraphQL = errors.New("sl1 graphql error")

	// ErrFixture indicates an unreadable or malformed fixture file.
	ErrFixture = errors.New("invalid fixture")

	// ErrClosed is returned by a FileSource after Close.
	ErrClosed = errors.New("data source closed")
)
