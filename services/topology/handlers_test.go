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
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rudipoppes/SL1-TOPOLOGY-sub000/services/topology/datasource"
	"github.com/rudipoppes/SL1-TOPOLOGY-sub000/services/topology/datatypes"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const fixtureYAML = `
devices:
  - id: "dev1"
    name: "Core Router"
    ip: "10.0.0.1"
    state: "healthy"
    device_class: "Cisco Router"
  - id: "dev2"
    name: "Access Switch"
    state: "critical"
    device_class: "Cisco Switch"
relationships:
  - parent: {id: "dev1", name: "Core Router", state: "healthy"}
    child: {id: "dev2", name: "Access Switch", state: "critical"}
  - parent: {id: "dev2", name: "Access Switch", state: "critical"}
    child: {id: "dev3", name: "Printer", state: "unknown"}
`

// setupTestRouter wires a router over src with no cache and no telemetry.
func setupTestRouter(t *testing.T, src datasource.DataSource) *gin.Engine {
	t.Helper()
	svc := NewService(src, Options{})
	return NewRouter(NewHandlers(svc, "sl1-topology", "test", nil), RouterOptions{})
}

func fixtureRouter(t *testing.T) *gin.Engine {
	t.Helper()
	fixture, err := datasource.ParseFixture([]byte(fixtureYAML))
	require.NoError(t, err)
	return setupTestRouter(t, datasource.NewFixtureSource(fixture))
}

func postJSON(router http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) datatypes.ErrorResponse {
	t.Helper()
	var body datatypes.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.NotEmpty(t, body.Error)
	assert.NotEmpty(t, body.Message)
	return body
}

func TestHandleExplore_Success(t *testing.T) {
	router := fixtureRouter(t)

	w := postJSON(router, "/topology", `{"deviceIds":["dev1"],"depth":2,"direction":"both"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	var resp datatypes.TopologyResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	require.Len(t, resp.Topology.Nodes, 3)
	assert.Equal(t, datatypes.Node{ID: "dev1", Label: "Core Router", Type: "Cisco Router", Status: "online", IP: "10.0.0.1"}, resp.Topology.Nodes[0])
	assert.Equal(t, "dev2", resp.Topology.Nodes[1].ID)
	assert.Equal(t, "offline", resp.Topology.Nodes[1].Status)
	assert.Equal(t, "Unknown", resp.Topology.Nodes[1].Type)
	assert.Equal(t, "dev3", resp.Topology.Nodes[2].ID)
	assert.Equal(t, "unknown", resp.Topology.Nodes[2].Status)

	assert.Equal(t, []datatypes.Edge{{Source: "dev1", Target: "dev2"}, {Source: "dev2", Target: "dev3"}}, resp.Topology.Edges)
	assert.Equal(t, datatypes.Stats{TotalDevices: 3, TotalRelationships: 2, Depth: 2, Direction: "both"}, resp.Stats)
}

func TestHandleExplore_VersionedRoute(t *testing.T) {
	router := fixtureRouter(t)

	w := postJSON(router, "/v1/topology", `{"deviceIds":["dev3"],"direction":"parents"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp datatypes.TopologyResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []datatypes.Edge{{Source: "dev2", Target: "dev3"}}, resp.Topology.Edges)
	assert.Equal(t, 1, resp.Stats.Depth)
}

func TestHandleExplore_UnknownDeviceReturnsSingleNode(t *testing.T) {
	router := fixtureRouter(t)

	w := postJSON(router, "/topology", `{"deviceIds":["ghost"]}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp datatypes.TopologyResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Topology.Nodes, 1)
	assert.Equal(t, "ghost", resp.Topology.Nodes[0].ID)
	assert.Empty(t, resp.Topology.Edges)
}

func TestHandleExplore_BadRequests(t *testing.T) {
	router := fixtureRouter(t)

	tests := []struct {
		name string
		body string
		code string
	}{
		{"malformed json", `{"deviceIds":`, "INVALID_REQUEST"},
		{"wrong type", `{"deviceIds":"dev1"}`, "INVALID_REQUEST"},
		{"missing device ids", `{"depth":2}`, "VALIDATION_ERROR"},
		{"empty device ids", `{"deviceIds":[]}`, "VALIDATION_ERROR"},
		{"blank device id", `{"deviceIds":[""]}`, "VALIDATION_ERROR"},
		{"unknown direction", `{"deviceIds":["dev1"],"direction":"up"}`, "VALIDATION_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postJSON(router, "/topology", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tt.code, decodeError(t, w).Code)
		})
	}
}

func TestHandleExplore_DataSourceFailure(t *testing.T) {
	src := chainSource()
	src.relErr = errors.New("dial tcp 10.0.0.5:443: connection refused")
	router := setupTestRouter(t, src)

	w := postJSON(router, "/topology", `{"deviceIds":["dev1"]}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	body := decodeError(t, w)
	assert.Equal(t, "DATA_SOURCE_ERROR", body.Code)
	assert.Contains(t, body.Message, "connection refused")
}

func TestErrorResponse_Internal(t *testing.T) {
	status, body := errorResponse(errors.New("boom"))
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "INTERNAL_ERROR", body.Code)
}

func TestCORSPreflight(t *testing.T) {
	router := fixtureRouter(t)

	for _, path := range []string{"/topology", "/anything/at/all"} {
		t.Run(path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodOptions, path, nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusOK, w.Code)
			assert.Empty(t, w.Body.String())
			assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
			assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "POST")
			assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "Content-Type")
		})
	}
}

func TestRequestIDEchoed(t *testing.T) {
	router := fixtureRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "req-123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, "req-123", w.Header().Get("X-Request-ID"))
}

func TestHandleSearchDevices(t *testing.T) {
	router := fixtureRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/devices?search=switch&limit=10", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp datatypes.DeviceSearchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, "dev2", resp.Devices[0].ID)
	assert.Equal(t, "offline", resp.Devices[0].Status)
	assert.Equal(t, "critical", resp.Devices[0].State)
}

func TestHandleSearchDevices_InvalidQuery(t *testing.T) {
	router := fixtureRouter(t)

	for _, query := range []string{"limit=abc", "limit=-1", "search=%07"} {
		req := httptest.NewRequest(http.MethodGet, "/devices?"+query, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "VALIDATION_ERROR", decodeError(t, w).Code)
	}
}

func TestHandleSearchDevices_Failure(t *testing.T) {
	src := chainSource()
	src.searchErr = errors.New("HTTP 503")
	router := setupTestRouter(t, src)

	req := httptest.NewRequest(http.MethodGet, "/devices", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "DATA_SOURCE_ERROR", decodeError(t, w).Code)
}

func TestHealthAndReady(t *testing.T) {
	router := fixtureRouter(t)

	for path, status := range map[string]string{"/health": "healthy", "/ready": "ready"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code, path)
		var body datatypes.HealthResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, status, body.Status)
		assert.Equal(t, "sl1-topology", body.Service)
	}

	notReady := NewRouter(NewHandlers(NewService(nil, Options{}), "sl1-topology", "test", nil), RouterOptions{})
	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	w := httptest.NewRecorder()
	notReady.ServeHTTP(w, req)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestMetricsEndpointMounted(t *testing.T) {
	svc := NewService(chainSource(), Options{})
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("# metrics\n"))
	})
	router := NewRouter(NewHandlers(svc, "sl1-topology", "test", nil), RouterOptions{MetricsHandler: metrics})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "# metrics\n", w.Body.String())
}
