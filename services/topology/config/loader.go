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
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

var configValidate = validator.New()

// Load builds the configuration from defaults, the YAML file at path and the
// process environment.
//
// # Description
//
// An empty path skips the file layer. A path that does not exist is an
// error: the caller asked for it explicitly. Environment overrides are
// applied after the file, then the result is validated.
//
// # Inputs
//
//   - path: YAML file path, or "" for defaults plus environment
//
// # Outputs
//
//   - *Config: the validated configuration
//   - error: read, parse or validation failure
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := applyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadEnvFile loads KEY=VALUE pairs from the given .env files into the
// process environment. Missing files are ignored; variables already set in
// the environment are not overwritten.
func LoadEnvFile(paths ...string) error {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load env file %s: %w", p, err)
		}
	}
	return nil
}

// lookupFunc matches os.LookupEnv.
type lookupFunc func(key string) (string, bool)

// applyEnv overlays environment variables onto cfg.
func applyEnv(cfg *Config, lookup lookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	if v, ok := lookup("TOPOLOGY_PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: TOPOLOGY_PORT %q is not a number", ErrInvalidConfig, v)
		}
		cfg.Server.Port = port
	}

	str("TOPOLOGY_DATASOURCE", &cfg.DataSource.Kind)
	str("TOPOLOGY_FIXTURE", &cfg.DataSource.File.Path)
	str("SL1_URL", &cfg.DataSource.SL1.URL)
	str("SL1_USERNAME", &cfg.DataSource.SL1.Username)
	str("SL1_PASSWORD", &cfg.DataSource.SL1.Password)

	if v, ok := lookup("SL1_INSECURE_SKIP_VERIFY"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: SL1_INSECURE_SKIP_VERIFY %q is not a boolean", ErrInvalidConfig, v)
		}
		cfg.DataSource.SL1.InsecureSkipVerify = b
	}

	str("TOPOLOGY_CACHE_KIND", &cfg.Cache.Kind)
	str("TOPOLOGY_CACHE_PATH", &cfg.Cache.Path)
	if v, ok := lookup("TOPOLOGY_CACHE_TTL"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: TOPOLOGY_CACHE_TTL %q: %v", ErrInvalidConfig, v, err)
		}
		cfg.Cache.TTL = d
	}

	if v, ok := lookup("TOPOLOGY_LOG_LEVEL"); ok && v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}

	str("OTEL_SERVICE_NAME", &cfg.Telemetry.ServiceName)
	str("OTEL_TRACES_EXPORTER", &cfg.Telemetry.TraceExporter)
	str("OTEL_METRICS_EXPORTER", &cfg.Telemetry.MetricExporter)
	str("OTEL_EXPORTER_OTLP_ENDPOINT", &cfg.Telemetry.OTLPEndpoint)

	return nil
}

// Validate checks struct tags and cross-field rules.
//
// # Outputs
//
//   - error: wraps ErrInvalidConfig with the first failing field, or nil
func (c *Config) Validate() error {
	if err := configValidate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%w: %s failed %q (value %v)", ErrInvalidConfig, fe.Namespace(), fe.Tag(), fe.Value())
		}
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	switch c.DataSource.Kind {
	case DataSourceSL1:
		if c.DataSource.SL1.URL == "" {
			return fmt.Errorf("%w: datasource.sl1.url is required for the sl1 data source", ErrInvalidConfig)
		}
		if c.DataSource.SL1.Username == "" {
			return fmt.Errorf("%w: datasource.sl1.username is required for the sl1 data source", ErrInvalidConfig)
		}
	case DataSourceFile:
		if c.DataSource.File.Path == "" {
			return fmt.Errorf("%w: datasource.file.path is required for the file data source", ErrInvalidConfig)
		}
	}
	return nil
}
