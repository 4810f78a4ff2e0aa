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
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rudipoppes/SL1-TOPOLOGY-sub000/services/topology"
	"github.com/rudipoppes/SL1-TOPOLOGY-sub000/services/topology/datasource"
	"github.com/rudipoppes/SL1-TOPOLOGY-sub000/services/topology/datatypes"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type apiFunc func(ctx context.Context, req datatypes.TopologyRequest) (*datatypes.TopologyResponse, error)

func (f apiFunc) Explore(ctx context.Context, req datatypes.TopologyRequest) (*datatypes.TopologyResponse, error) {
	return f(ctx, req)
}

func starResponse(center string, leaves ...string) *datatypes.TopologyResponse {
	resp := &datatypes.TopologyResponse{Topology: datatypes.Topology{Nodes: nodes(append([]string{center}, leaves...)...)}}
	for _, l := range leaves {
		resp.Topology.Edges = append(resp.Topology.Edges, edge(center, l))
	}
	resp.Stats = datatypes.Stats{
		TotalDevices:       len(resp.Topology.Nodes),
		TotalRelationships: len(resp.Topology.Edges),
		Depth:              1,
		Direction:          "both",
	}
	return resp
}

func TestExplorer_AppliesCurrentResponse(t *testing.T) {
	var got datatypes.TopologyRequest
	api := apiFunc(func(_ context.Context, req datatypes.TopologyRequest) (*datatypes.TopologyResponse, error) {
		got = req
		return starResponse("a", "x", "y"), nil
	})
	c := New(Options{})
	e := NewExplorer(c, NewSession(), api, nil)

	_, err := e.Explore(context.Background())
	assert.ErrorIs(t, err, ErrEmptySelection)

	e.Select(nodes("a"))
	stats, err := e.Explore(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"a"}, got.DeviceIDs)
	assert.Equal(t, 3, stats.TotalDevices)
	s := c.Snapshot()
	assert.Equal(t, []string{"a", "x", "y"}, nodeIDsOf(s))
	assert.Len(t, s.Edges, 2)
}

func TestExplorer_DropsStaleResponse(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	api := apiFunc(func(_ context.Context, req datatypes.TopologyRequest) (*datatypes.TopologyResponse, error) {
		if req.DeviceIDs[0] == "old" {
			close(started)
			<-release
			return starResponse("old", "old-leaf"), nil
		}
		return starResponse("new", "new-leaf"), nil
	})
	c := New(Options{})
	e := NewExplorer(c, NewSession(), api, nil)

	e.Select(nodes("old"))
	done := make(chan error, 1)
	go func() {
		_, err := e.Explore(context.Background())
		done <- err
	}()
	<-started

	e.Select(nodes("new"))
	_, err := e.Explore(context.Background())
	require.NoError(t, err)

	close(release)
	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrStaleResponse)
	case <-time.After(2 * time.Second):
		t.Fatal("stale explore did not return")
	}

	s := c.Snapshot()
	assert.Equal(t, []string{"new", "new-leaf"}, nodeIDsOf(s))
	assert.Equal(t, []datatypes.Edge{edge("new", "new-leaf")}, s.Edges)
}

func TestExplorer_SelectionChangeSupersedesInFlight(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	api := apiFunc(func(context.Context, datatypes.TopologyRequest) (*datatypes.TopologyResponse, error) {
		close(started)
		<-release
		return starResponse("a", "b"), nil
	})
	c := New(Options{})
	e := NewExplorer(c, NewSession(), api, nil)
	e.Select(nodes("a"))

	done := make(chan error, 1)
	go func() {
		_, err := e.Explore(context.Background())
		done <- err
	}()
	<-started
	e.Select(nil)
	close(release)

	assert.ErrorIs(t, <-done, ErrStaleResponse)
	assert.Empty(t, c.Snapshot().Nodes)
}

func TestExplorer_ConcurrentSelectNeverRestoresDeselected(t *testing.T) {
	echo := apiFunc(func(_ context.Context, req datatypes.TopologyRequest) (*datatypes.TopologyResponse, error) {
		return starResponse(req.DeviceIDs[0], req.DeviceIDs[0]+"-child"), nil
	})

	for i := 0; i < 2000; i++ {
		c := New(Options{})
		e := NewExplorer(c, NewSession(), echo, nil)
		e.Select(nodes("a"))

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = e.Explore(context.Background())
		}()
		go func() {
			defer wg.Done()
			e.Select(nodes("b"))
		}()
		wg.Wait()

		s := c.Snapshot()
		require.NotContains(t, nodeIDsOf(s), "a", "iteration %d", i)
		require.Equal(t, []string{"b"}, s.Selection, "iteration %d", i)
	}
}

func TestExplorer_FailureKeepsCanvas(t *testing.T) {
	fail := false
	api := apiFunc(func(context.Context, datatypes.TopologyRequest) (*datatypes.TopologyResponse, error) {
		if fail {
			return nil, &APIError{StatusCode: http.StatusInternalServerError, Code: "DATA_SOURCE_ERROR", Message: "upstream down"}
		}
		return starResponse("a", "b"), nil
	})
	c := New(Options{})
	e := NewExplorer(c, NewSession(), api, nil)
	e.Select(nodes("a"))
	_, err := e.Explore(context.Background())
	require.NoError(t, err)
	before := c.Snapshot()

	fail = true
	_, err = e.Explore(context.Background())
	assert.ErrorIs(t, err, ErrAPI)
	assert.Equal(t, before, c.Snapshot())
}

type flakyTransport struct {
	failures int32
	calls    atomic.Int32
}

func (f *flakyTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	if f.calls.Add(1) <= f.failures {
		return nil, errors.New("connection reset by peer")
	}
	return http.DefaultTransport.RoundTrip(r)
}

func newTestClient(t *testing.T, url string, transport http.RoundTripper) *Client {
	t.Helper()
	opts := []ClientOption{WithRetry(DefaultClientRetries, time.Millisecond)}
	if transport != nil {
		opts = append(opts, WithHTTPClient(&http.Client{Transport: transport}))
	}
	c, err := NewClient(url, opts...)
	require.NoError(t, err)
	return c
}

func TestClient_ExploreSendsRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/topology", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))

		var req datatypes.TopologyRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"a"}, req.DeviceIDs)

		_ = json.NewEncoder(w).Encode(starResponse("a", "b"))
	}))
	defer srv.Close()

	resp, err := newTestClient(t, srv.URL+"/", nil).Explore(context.Background(), datatypes.TopologyRequest{DeviceIDs: []string{"a"}})
	require.NoError(t, err)
	assert.Equal(t, starResponse("a", "b"), resp)
}

func TestClient_RetriesTransportErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(starResponse("a"))
	}))
	defer srv.Close()

	ok := &flakyTransport{failures: 2}
	_, err := newTestClient(t, srv.URL, ok).Explore(context.Background(), datatypes.TopologyRequest{DeviceIDs: []string{"a"}})
	require.NoError(t, err)
	assert.EqualValues(t, 3, ok.calls.Load())

	down := &flakyTransport{failures: 10}
	_, err = newTestClient(t, srv.URL, down).Explore(context.Background(), datatypes.TopologyRequest{DeviceIDs: []string{"a"}})
	assert.ErrorIs(t, err, ErrTransport)
	assert.EqualValues(t, 3, down.calls.Load())
}

func TestClient_APIErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"Invalid request","message":"deviceIds: is required","code":"VALIDATION_ERROR"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL, nil).Explore(context.Background(), datatypes.TopologyRequest{})
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "VALIDATION_ERROR", apiErr.Code)
	assert.Equal(t, "deviceIds: is required", apiErr.Message)
	assert.EqualValues(t, 1, calls.Load())
}

func TestClient_SearchDevices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/devices", r.URL.Path)
		assert.Equal(t, "core", r.URL.Query().Get("search"))
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		_ = json.NewEncoder(w).Encode(datatypes.DeviceSearchResponse{
			Devices: []datatypes.Device{{ID: "1", Name: "core-1"}},
			Count:   1,
		})
	}))
	defer srv.Close()

	devices, err := newTestClient(t, srv.URL, nil).SearchDevices(context.Background(), "core", 5)
	require.NoError(t, err)
	assert.Equal(t, []datatypes.Device{{ID: "1", Name: "core-1"}}, devices)
}

func TestNewClient_InvalidURL(t *testing.T) {
	_, err := NewClient("not a url")
	assert.Error(t, err)
}

const integrationFixture = `
devices:
  - {id: "dev1", name: "Core", state: "healthy", device_class: "Router"}
  - {id: "dev2", name: "Dist", state: "major", device_class: "Switch"}
  - {id: "dev3", name: "Edge", state: "down", device_class: "Switch"}
relationships:
  - parent: {id: "dev1", name: "Core", state: "healthy"}
    child: {id: "dev2", name: "Dist", state: "major"}
  - parent: {id: "dev2", name: "Dist", state: "major"}
    child: {id: "dev3", name: "Edge", state: "down"}
`

func TestExplorer_AgainstTopologyAPI(t *testing.T) {
	fixture, err := datasource.ParseFixture([]byte(integrationFixture))
	require.NoError(t, err)
	svc := topology.NewService(datasource.NewFixtureSource(fixture), topology.Options{})
	router := topology.NewRouter(topology.NewHandlers(svc, "sl1-topology", "test", nil), topology.RouterOptions{})
	srv := httptest.NewServer(router)
	defer srv.Close()

	client := newTestClient(t, srv.URL, nil)
	devices, err := client.SearchDevices(context.Background(), "core", 0)
	require.NoError(t, err)
	require.Len(t, devices, 1)

	c := New(Options{})
	session := NewSession()
	e := NewExplorer(c, session, client, nil)
	e.Select([]datatypes.Node{NodeFromDevice(devices[0])})
	require.NoError(t, session.SetSetting("dev1", 2, "both"))

	stats, err := e.Explore(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalDevices)

	s := c.Snapshot()
	assert.Equal(t, []string{"dev1", "dev2", "dev3"}, nodeIDsOf(s))
	assert.Equal(t, []datatypes.Edge{edge("dev1", "dev2"), edge("dev2", "dev3")}, s.Edges)
	assertNoDangling(t, s)
}
