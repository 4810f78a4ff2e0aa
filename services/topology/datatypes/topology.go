// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes holds the wire types of the topology HTTP API.
//
// The same types are decoded by the canvas client, so field names and JSON
// tags are the contract between the API and any frontend.
package datatypes

import (
	"github.com/go-playground/validator/v10"
)

// =============================================================================
// Shared Validator Instance
// =============================================================================

// topologyValidate is the validator instance for topology datatypes.
var topologyValidate = validator.New()

// =============================================================================
// Requests
// =============================================================================

// TopologyRequest is the request body for POST /topology.
//
// # Description
//
// DeviceIDs are the seeds. Depth and Direction are the defaults for every
// seed; DeviceDepths and DeviceDirections override them per seed. A zero
// depth or empty direction means "use the default" and is filled in by the
// service, not rejected.
//
// # Validation Rules
//
//   - DeviceIDs: required, at least one element, no empty IDs
//   - Depth: not validated here; the service clamps it to [1,5]
//   - Direction: checked by the service (case-insensitive)
type TopologyRequest struct {
	// DeviceIDs are the seed device IDs. Required.
	DeviceIDs []string `json:"deviceIds" validate:"required,min=1,dive,required"`

	// Depth is the default traversal depth. Default: 1.
	Depth int `json:"depth,omitempty"`

	// Direction is the default traversal direction. Default: "both".
	Direction string `json:"direction,omitempty"`

	// DeviceDepths overrides Depth for individual seeds.
	DeviceDepths map[string]int `json:"deviceDepths,omitempty"`

	// DeviceDirections overrides Direction for individual seeds.
	DeviceDirections map[string]string `json:"deviceDirections,omitempty"`
}

// Validate checks the struct tags of the request.
//
// # Outputs
//
//   - error: validator.ValidationErrors when a rule fails, nil otherwise
func (r *TopologyRequest) Validate() error {
	return topologyValidate.Struct(r)
}

// =============================================================================
// Responses
// =============================================================================

// Node is a device in a topology response.
type Node struct {
	ID     string `json:"id"`
	Label  string `json:"label"`
	Type   string `json:"type"`
	Status string `json:"status"`
	IP     string `json:"ip,omitempty"`
}

// Edge is a directed parent → child relationship.
type Edge struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// Topology is the subgraph returned for one request.
type Topology struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Stats summarises a topology response.
type Stats struct {
	// TotalDevices is the number of nodes in the response.
	TotalDevices int `json:"totalDevices"`

	// TotalRelationships is the number of edges in the response.
	TotalRelationships int `json:"totalRelationships"`

	// Depth is the effective default depth after clamping.
	Depth int `json:"depth"`

	// Direction is the effective default direction.
	Direction string `json:"direction"`
}

// TopologyResponse is the response for POST /topology.
type TopologyResponse struct {
	Topology Topology `json:"topology"`
	Stats    Stats    `json:"stats"`
}

// Device is a device record returned by the device search endpoint.
type Device struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	IP           string `json:"ip,omitempty"`
	State        string `json:"state,omitempty"`
	Status       string `json:"status"`
	DeviceClass  string `json:"deviceClass,omitempty"`
	Organization string `json:"organization,omitempty"`
}

// DeviceSearchResponse is the response for GET /devices.
type DeviceSearchResponse struct {
	Devices []Device `json:"devices"`
	Count   int      `json:"count"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	// Error is a short human-readable summary.
	Error string `json:"error"`

	// Message carries detail, such as the failing field or upstream cause.
	Message string `json:"message,omitempty"`

	// Code is a stable machine-readable code (e.g. "INVALID_REQUEST").
	Code string `json:"code"`
}

// HealthResponse is the response for GET /health and GET /ready.
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version,omitempty"`
	Reason  string `json:"reason,omitempty"`
}
