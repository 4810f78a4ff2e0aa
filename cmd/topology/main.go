// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command topology serves and queries the SL1 device topology explorer.
//
// The serve command exposes the topology HTTP API. The explore command runs
// one traversal against the configured data source and prints the result as
// JSON, which is handy for checking a fixture or an appliance from a shell.
//
// # Configuration
//
// Settings come from a YAML file (--config), a .env file in the working
// directory, and environment variables, in increasing precedence:
//
//   - TOPOLOGY_PORT, TOPOLOGY_DATASOURCE (sl1 or file), TOPOLOGY_FIXTURE
//   - SL1_URL, SL1_USERNAME, SL1_PASSWORD, SL1_INSECURE_SKIP_VERIFY
//   - TOPOLOGY_CACHE_KIND (badger, memory, none), TOPOLOGY_CACHE_PATH, TOPOLOGY_CACHE_TTL
//   - TOPOLOGY_LOG_LEVEL
//   - OTEL_SERVICE_NAME, OTEL_TRACES_EXPORTER, OTEL_METRICS_EXPORTER, OTEL_EXPORTER_OTLP_ENDPOINT
//
// # Usage
//
//	# Serve the bundled fixture
//	go run ./cmd/topology serve
//
//	# Serve an SL1 appliance on another port
//	SL1_URL=https://sl1.example.com SL1_USERNAME=em7admin SL1_PASSWORD=... \
//	  TOPOLOGY_DATASOURCE=sl1 go run ./cmd/topology serve --port 8080
//
//	# One-shot exploration
//	go run ./cmd/topology explore dev1 --depth 2 --direction children
//
// Example requests:
//
//	curl http://localhost:3001/health
//
//	curl -X POST http://localhost:3001/topology \
//	  -H "Content-Type: application/json" \
//	  -d '{"deviceIds": ["dev1"], "depth": 2, "direction": "both"}'
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
