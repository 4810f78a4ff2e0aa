// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the topology service configuration.
//
// Configuration comes from three layers, later layers winning:
//
//  1. Defaults (Default)
//  2. A YAML file (optional)
//  3. Environment variables, optionally seeded from a .env file
//
// The resulting *Config is passed explicitly to the components that need it;
// there is no package-level singleton.
package config

import (
	"net"
	"strconv"
	"time"
)

// Data source kinds.
const (
	DataSourceSL1  = "sl1"
	DataSourceFile = "file"
)

// Cache kinds.
const (
	CacheBadger = "badger"
	CacheMemory = "memory"
	CacheNone   = "none"
)

// Config is the root configuration of the topology service.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	DataSource DataSourceConfig `yaml:"datasource"`
	Cache      CacheConfig      `yaml:"cache"`
	Topology   TopologyConfig   `yaml:"topology"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" validate:"gte=0"`
	WriteTimeout    time.Duration `yaml:"write_timeout" validate:"gte=0"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"gte=0"`
}

// DataSourceConfig selects and configures the relationship data source.
type DataSourceConfig struct {
	// Kind is "sl1" or "file".
	Kind string     `yaml:"kind" validate:"oneof=sl1 file"`
	SL1  SL1Config  `yaml:"sl1"`
	File FileConfig `yaml:"file"`
}

// SL1Config configures the SL1 GraphQL client.
type SL1Config struct {
	// URL is the appliance base URL; "/gql" is appended by the client.
	URL      string `yaml:"url"`
	Username string `yaml:"username"`

	// Password is normally supplied through SL1_PASSWORD rather than the file.
	Password string `yaml:"password"`

	// InsecureSkipVerify accepts self-signed appliance certificates.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`

	Timeout    time.Duration `yaml:"timeout" validate:"gt=0"`
	MaxRetries int           `yaml:"max_retries" validate:"gte=0,lte=10"`
	RetryDelay time.Duration `yaml:"retry_delay" validate:"gte=0"`

	// RateLimit is the sustained upstream request rate per second.
	RateLimit float64 `yaml:"rate_limit" validate:"gt=0"`
	Burst     int     `yaml:"burst" validate:"gte=1"`

	// RelationshipLimit bounds the relationship query page.
	RelationshipLimit int `yaml:"relationship_limit" validate:"gte=1"`

	// DeviceLimit bounds device metadata and search queries.
	DeviceLimit int `yaml:"device_limit" validate:"gte=1"`
}

// FileConfig configures the YAML fixture data source.
type FileConfig struct {
	Path  string `yaml:"path"`
	Watch bool   `yaml:"watch"`
}

// CacheConfig configures the topology result cache.
type CacheConfig struct {
	// Kind is "badger", "memory" or "none".
	Kind string `yaml:"kind" validate:"oneof=badger memory none"`

	// Path is the badger directory. Empty with Kind "badger" means in-memory.
	Path string `yaml:"path"`

	TTL      time.Duration `yaml:"ttl" validate:"gt=0"`
	Capacity int           `yaml:"capacity" validate:"gte=1"`
}

// TopologyConfig tunes the traversal service.
type TopologyConfig struct {
	// ResolveAllEndpoints fetches full metadata for non-seed endpoints too.
	ResolveAllEndpoints bool `yaml:"resolve_all_endpoints"`

	// MaxSeeds bounds the number of seeds in one request.
	MaxSeeds int `yaml:"max_seeds" validate:"gte=1"`
}

// TelemetryConfig configures OpenTelemetry.
type TelemetryConfig struct {
	ServiceName    string `yaml:"service_name" validate:"required"`
	Environment    string `yaml:"environment"`
	TraceExporter  string `yaml:"trace_exporter" validate:"oneof=otlp stdout none"`
	MetricExporter string `yaml:"metric_exporter" validate:"oneof=prometheus stdout none"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
	OTLPInsecure   bool   `yaml:"otlp_insecure"`
}

// LoggingConfig configures pkg/logging.
type LoggingConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`

	// JSON forces JSON output. When false the CLI decides from the terminal.
	JSON bool `yaml:"json"`

	// Dir enables a JSON log file in this directory.
	Dir string `yaml:"dir"`
}

// Default returns the built-in configuration.
//
// The defaults serve the bundled fixture through an in-memory cache, so a
// fresh checkout runs without an SL1 appliance.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            3001,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		DataSource: DataSourceConfig{
			Kind: DataSourceFile,
			SL1: SL1Config{
				Timeout:           30 * time.Second,
				MaxRetries:        2,
				RetryDelay:        500 * time.Millisecond,
				RateLimit:         10,
				Burst:             5,
				RelationshipLimit: 5000,
				DeviceLimit:       1000,
			},
			File: FileConfig{
				Path: "configs/fixture.yaml",
			},
		},
		Cache: CacheConfig{
			Kind:     CacheMemory,
			TTL:      5 * time.Minute,
			Capacity: 256,
		},
		Topology: TopologyConfig{
			MaxSeeds: 100,
		},
		Telemetry: TelemetryConfig{
			ServiceName:    "sl1-topology",
			Environment:    "development",
			TraceExporter:  "none",
			MetricExporter: "prometheus",
			OTLPEndpoint:   "localhost:4317",
			OTLPInsecure:   true,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}
