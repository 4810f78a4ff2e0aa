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
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rudipoppes/SL1-TOPOLOGY-sub000/services/topology/datatypes"
)

const testFixture = `
devices:
  - {id: "dev1", name: "core", state: "healthy", device_class: "Router"}
relationships:
  - parent: {id: "dev1", name: "core", state: "healthy"}
    child: {id: "dev2", name: "dist", state: "major"}
  - parent: {id: "dev2", name: "dist", state: "major"}
    child: {id: "dev3", name: "edge", state: "down"}
`

// writeTestConfig writes a fixture and a config pointing at it.
func writeTestConfig(t *testing.T, metricExporter string) *rootOptions {
	t.Helper()
	dir := t.TempDir()

	fixture := filepath.Join(dir, "fixture.yaml")
	require.NoError(t, os.WriteFile(fixture, []byte(testFixture), 0o600))

	cfg := `
server:
  host: 127.0.0.1
datasource:
  kind: file
  file:
    path: ` + fixture + `
cache:
  kind: memory
telemetry:
  service_name: topology-test
  trace_exporter: none
  metric_exporter: ` + metricExporter + `
logging:
  level: debug
`
	cfgPath := filepath.Join(dir, "topology.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o600))

	return &rootOptions{
		configPath: cfgPath,
		envFile:    filepath.Join(dir, "missing.env"),
		logOutput:  io.Discard,
	}
}

func runCommand(t *testing.T, opts *rootOptions, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmdWith(opts)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := runCommand(t, &rootOptions{}, "version")
	require.NoError(t, err)
	assert.Equal(t, "topology dev (commit none)\n", out)
}

func TestExploreCommand(t *testing.T) {
	opts := writeTestConfig(t, "none")

	out, err := runCommand(t, opts, "explore", "dev1", "--depth", "2", "--direction", "children",
		"--config", opts.configPath, "--env-file", opts.envFile)
	require.NoError(t, err)

	var resp datatypes.TopologyResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, 3, resp.Stats.TotalDevices)
	assert.Equal(t, 2, resp.Stats.TotalRelationships)
	assert.Equal(t, "children", resp.Stats.Direction)
	assert.Equal(t, "core", resp.Topology.Nodes[0].Label)
}

func TestExploreCommand_Errors(t *testing.T) {
	opts := writeTestConfig(t, "none")

	_, err := runCommand(t, opts, "explore", "dev1", "--direction", "sideways",
		"--config", opts.configPath, "--env-file", opts.envFile)
	assert.ErrorContains(t, err, "direction")

	_, err = runCommand(t, opts, "explore", "--config", opts.configPath)
	assert.Error(t, err)

	_, err = runCommand(t, opts, "explore", "dev1", "--config", filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestExploreCommand_MissingFixture(t *testing.T) {
	opts := writeTestConfig(t, "none")
	require.NoError(t, os.Remove(filepath.Join(filepath.Dir(opts.configPath), "fixture.yaml")))

	var err error
	require.NotPanics(t, func() {
		_, err = runCommand(t, opts, "explore", "dev1",
			"--config", opts.configPath, "--env-file", opts.envFile)
	})
	assert.Error(t, err)
}

func TestNewApp_DependencyFailureReturnsError(t *testing.T) {
	opts := writeTestConfig(t, "none")
	require.NoError(t, os.Remove(filepath.Join(filepath.Dir(opts.configPath), "fixture.yaml")))

	var (
		a   *app
		err error
	)
	require.NotPanics(t, func() {
		a, err = newApp(context.Background(), opts)
	})
	assert.Error(t, err)
	assert.Nil(t, a)
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return port
}

func TestRunServe(t *testing.T) {
	root := writeTestConfig(t, "prometheus")
	ready := make(chan string, 1)
	opts := &serveOptions{port: freePort(t), ready: ready}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- runServe(ctx, io.Discard, root, opts)
	}()

	var addr string
	select {
	case addr = <-ready:
	case err := <-done:
		t.Fatalf("server exited early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not start")
	}
	assert.True(t, strings.HasSuffix(addr, ":"+strconv.Itoa(opts.port)))

	resp, err := http.Get("http://" + addr + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Post("http://"+addr+"/topology", "application/json", strings.NewReader(`{"deviceIds":["dev2"]}`))
	require.NoError(t, err)
	var topo datatypes.TopologyResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&topo))
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 3, topo.Stats.TotalDevices)

	resp, err = http.Get("http://" + addr + "/metrics")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "topology_explore")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestRunServe_InvalidPort(t *testing.T) {
	err := runServe(context.Background(), io.Discard, &rootOptions{}, &serveOptions{port: 70000})
	assert.ErrorContains(t, err, "invalid port")
}
