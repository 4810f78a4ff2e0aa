// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mapLookup(env map[string]string) lookupFunc {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 3001, cfg.Server.Port)
	assert.Equal(t, DataSourceFile, cfg.DataSource.Kind)
	assert.Equal(t, CacheMemory, cfg.Cache.Kind)
	assert.Equal(t, "0.0.0.0:3001", cfg.Server.Addr())
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "topology.yaml")
	content := `
server:
  port: 8088
datasource:
  kind: sl1
  sl1:
    url: https://sl1.example.com
    username: gql
    max_retries: 4
    retry_delay: 250ms
cache:
  kind: badger
  path: /tmp/topology-cache
  ttl: 90s
topology:
  resolve_all_endpoints: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8088, cfg.Server.Port)
	assert.Equal(t, DataSourceSL1, cfg.DataSource.Kind)
	assert.Equal(t, "https://sl1.example.com", cfg.DataSource.SL1.URL)
	assert.Equal(t, 4, cfg.DataSource.SL1.MaxRetries)
	assert.Equal(t, 250*time.Millisecond, cfg.DataSource.SL1.RetryDelay)
	assert.Equal(t, CacheBadger, cfg.Cache.Kind)
	assert.Equal(t, 90*time.Second, cfg.Cache.TTL)
	assert.True(t, cfg.Topology.ResolveAllEndpoints)

	// Untouched sections keep their defaults.
	assert.Equal(t, 1000, cfg.DataSource.SL1.DeviceLimit)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unclosed"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	err := applyEnv(cfg, mapLookup(map[string]string{
		"TOPOLOGY_PORT":            "9000",
		"TOPOLOGY_DATASOURCE":      "sl1",
		"SL1_URL":                  "https://10.0.0.5",
		"SL1_USERNAME":             "em7admin",
		"SL1_PASSWORD":             "secret",
		"SL1_INSECURE_SKIP_VERIFY": "true",
		"TOPOLOGY_CACHE_KIND":      "none",
		"TOPOLOGY_CACHE_TTL":       "1m",
		"TOPOLOGY_LOG_LEVEL":       "DEBUG",
		"OTEL_TRACES_EXPORTER":     "stdout",
	}))
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, DataSourceSL1, cfg.DataSource.Kind)
	assert.Equal(t, "secret", cfg.DataSource.SL1.Password)
	assert.True(t, cfg.DataSource.SL1.InsecureSkipVerify)
	assert.Equal(t, CacheNone, cfg.Cache.Kind)
	assert.Equal(t, time.Minute, cfg.Cache.TTL)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "stdout", cfg.Telemetry.TraceExporter)
	require.NoError(t, cfg.Validate())
}

func TestApplyEnv_BadValues(t *testing.T) {
	tests := map[string]string{
		"TOPOLOGY_PORT":            "eighty",
		"SL1_INSECURE_SKIP_VERIFY": "sometimes",
		"TOPOLOGY_CACHE_TTL":       "forever",
	}
	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			err := applyEnv(Default(), mapLookup(map[string]string{key: value}))
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }},
		{"unknown datasource", func(c *Config) { c.DataSource.Kind = "snmp" }},
		{"unknown cache", func(c *Config) { c.Cache.Kind = "redis" }},
		{"sl1 without url", func(c *Config) { c.DataSource.Kind = DataSourceSL1 }},
		{"sl1 without username", func(c *Config) {
			c.DataSource.Kind = DataSourceSL1
			c.DataSource.SL1.URL = "https://sl1"
		}},
		{"file without path", func(c *Config) { c.DataSource.File.Path = "" }},
		{"bad log level", func(c *Config) { c.Logging.Level = "trace" }},
		{"zero ttl", func(c *Config) { c.Cache.TTL = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("TOPOLOGY_TEST_ONLY_VAR=from-file\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("TOPOLOGY_TEST_ONLY_VAR") })

	require.NoError(t, LoadEnvFile(filepath.Join(dir, "missing.env"), path))
	assert.Equal(t, "from-file", os.Getenv("TOPOLOGY_TEST_ONLY_VAR"))
}
