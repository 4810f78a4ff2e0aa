// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datasource

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/awnumar/memguard"
	"golang.org/x/time/rate"

	"github.com/rudipoppes/SL1-TOPOLOGY-sub000/services/topology/config"
	"github.com/rudipoppes/SL1-TOPOLOGY-sub000/services/topology/graph"
	"github.com/rudipoppes/SL1-TOPOLOGY-sub000/services/topology/telemetry"
)

// maxResponseBytes bounds a single GraphQL response body.
const maxResponseBytes = 64 << 20

const relationshipsQuery = `
query GetRelationships($limit: Int!) {
  deviceRelationships(first: $limit) {
    edges {
      node {
        id
        parent { id name ip state }
        child { id name ip state }
      }
    }
    pageInfo { hasNextPage }
  }
}`

const devicesByIDQuery = `
query GetDevices($ids: [ID!]!, $limit: Int!) {
  devices(first: $limit, search: {id: {in: $ids}}) {
    edges {
      node {
        id
        name
        ip
        state
        deviceClass { id }
        organization { id }
      }
    }
    pageInfo { hasNextPage }
  }
}`

const searchDevicesQuery = `
query SearchDevices($searchTerm: String!, $limit: Int!) {
  devices(first: $limit, search: {name: {contains: $searchTerm}}) {
    edges {
      node {
        id
        name
        ip
        state
        deviceClass { id }
        organization { id }
      }
    }
    pageInfo { hasNextPage }
  }
}`

const listDevicesQuery = `
query ListDevices($limit: Int!) {
  devices(first: $limit) {
    edges {
      node {
        id
        name
        ip
        state
        deviceClass { id }
        organization { id }
      }
    }
    pageInfo { hasNextPage }
  }
}`

type gqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type gqlError struct {
	Message string `json:"message"`
}

type gqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []gqlError      `json:"errors"`
}

type pageInfo struct {
	HasNextPage bool `json:"hasNextPage"`
}

type relationshipsData struct {
	DeviceRelationships struct {
		Edges []struct {
			Node graph.RelationshipRecord `json:"node"`
		} `json:"edges"`
		PageInfo pageInfo `json:"pageInfo"`
	} `json:"deviceRelationships"`
}

type idRef struct {
	ID string `json:"id"`
}

type gqlDevice struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	IP           string `json:"ip"`
	State        string `json:"state"`
	DeviceClass  *idRef `json:"deviceClass"`
	Organization *idRef `json:"organization"`
}

func (d gqlDevice) toDevice() graph.Device {
	dev := graph.Device{ID: d.ID, Name: d.Name, IP: d.IP, State: d.State}
	if d.DeviceClass != nil {
		dev.DeviceClass = d.DeviceClass.ID
	}
	if d.Organization != nil {
		dev.Organization = d.Organization.ID
	}
	return dev
}

type devicesData struct {
	Devices struct {
		Edges []struct {
			Node gqlDevice `json:"node"`
		} `json:"edges"`
		PageInfo pageInfo `json:"pageInfo"`
	} `json:"devices"`
}

// SL1Client reads devices and relationships from the SL1 GraphQL API.
//
// # Description
//
// Every query is a POST to <url>/gql with HTTP basic auth. The password is
// sealed in a memguard enclave and only opened while a request header is
// built. Upstream calls are rate limited and transport failures are retried
// a bounded number of times with a fixed delay. HTTP or GraphQL errors are
// not retried.
//
// # Thread Safety
//
// Safe for concurrent use.
type SL1Client struct {
	endpoint   string
	username   string
	password   *memguard.Enclave
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger

	maxRetries        int
	retryDelay        time.Duration
	relationshipLimit int
	deviceLimit       int
}

// SL1Option customises an SL1Client.
type SL1Option func(*SL1Client)

// WithHTTPClient replaces the HTTP client. TLS settings from the config are
// then the caller's responsibility.
func WithHTTPClient(hc *http.Client) SL1Option {
	return func(c *SL1Client) {
		c.httpClient = hc
	}
}

// WithLogger sets the client logger.
func WithLogger(logger *slog.Logger) SL1Option {
	return func(c *SL1Client) {
		c.logger = logger
	}
}

// NewSL1Client creates a client for the appliance in cfg.
//
// # Inputs
//
//   - cfg: SL1 section of the service configuration
//   - opts: optional overrides
//
// # Outputs
//
//   - *SL1Client: ready client
//   - error: if the URL is missing or malformed
func NewSL1Client(cfg config.SL1Config, opts ...SL1Option) (*SL1Client, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid sl1 url %q", cfg.URL)
	}

	endpoint := strings.TrimRight(cfg.URL, "/")
	if !strings.HasSuffix(endpoint, "/gql") {
		endpoint += "/gql"
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // self-signed appliances
	}

	limit := rate.Limit(cfg.RateLimit)
	if cfg.RateLimit <= 0 {
		limit = rate.Inf
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}

	c := &SL1Client{
		endpoint:          endpoint,
		username:          cfg.Username,
		httpClient:        &http.Client{Transport: transport, Timeout: cfg.Timeout},
		limiter:           rate.NewLimiter(limit, burst),
		logger:            slog.Default(),
		maxRetries:        cfg.MaxRetries,
		retryDelay:        cfg.RetryDelay,
		relationshipLimit: cfg.RelationshipLimit,
		deviceLimit:       cfg.DeviceLimit,
	}
	if cfg.Password != "" {
		c.password = memguard.NewEnclave([]byte(cfg.Password))
	}
	if c.relationshipLimit < 1 {
		c.relationshipLimit = 5000
	}
	if c.deviceLimit < 1 {
		c.deviceLimit = 1000
	}

	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// FetchRelationships implements DataSource.
func (c *SL1Client) FetchRelationships(ctx context.Context) ([]graph.RelationshipRecord, error) {
	var data relationshipsData
	err := c.query(ctx, "fetch relationships", relationshipsQuery, map[string]any{
		"limit": c.relationshipLimit,
	}, &data)
	if err != nil {
		return nil, err
	}

	if data.DeviceRelationships.PageInfo.HasNextPage {
		c.logger.Warn("relationship list truncated",
			slog.Int("limit", c.relationshipLimit))
	}

	records := make([]graph.RelationshipRecord, 0, len(data.DeviceRelationships.Edges))
	for _, e := range data.DeviceRelationships.Edges {
		records = append(records, e.Node)
	}
	return records, nil
}

// FetchDevices implements DataSource.
func (c *SL1Client) FetchDevices(ctx context.Context, ids []string) (map[string]graph.Device, error) {
	devices := make(map[string]graph.Device, len(ids))
	if len(ids) == 0 {
		return devices, nil
	}

	for start := 0; start < len(ids); start += c.deviceLimit {
		end := min(start+c.deviceLimit, len(ids))
		batch := ids[start:end]

		var data devicesData
		err := c.query(ctx, "fetch devices", devicesByIDQuery, map[string]any{
			"ids":   batch,
			"limit": len(batch),
		}, &data)
		if err != nil {
			return nil, err
		}
		for _, e := range data.Devices.Edges {
			devices[e.Node.ID] = e.Node.toDevice()
		}
	}
	return devices, nil
}

// SearchDevices implements DataSource. An empty term lists devices.
func (c *SL1Client) SearchDevices(ctx context.Context, term string, limit int) ([]graph.Device, error) {
	if limit <= 0 || limit > c.deviceLimit {
		limit = c.deviceLimit
	}

	query := searchDevicesQuery
	vars := map[string]any{"limit": limit}
	term = strings.TrimSpace(term)
	if term == "" {
		query = listDevicesQuery
	} else {
		vars["searchTerm"] = term
	}

	var data devicesData
	if err := c.query(ctx, "search devices", query, vars, &data); err != nil {
		return nil, err
	}

	devices := make([]graph.Device, 0, len(data.Devices.Edges))
	for _, e := range data.Devices.Edges {
		devices = append(devices, e.Node.toDevice())
	}
	return devices, nil
}

// query runs one GraphQL operation with rate limiting and transport retries.
func (c *SL1Client) query(ctx context.Context, op, query string, vars map[string]any, out any) error {
	body, err := json.Marshal(gqlRequest{Query: query, Variables: vars})
	if err != nil {
		return fmt.Errorf("%s: encode request: %w", op, err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}

		resp, err := c.send(ctx, body)
		if err != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("%s: %w", op, ctx.Err())
			}
			lastErr = err
			if attempt < c.maxRetries {
				c.logger.Debug("retrying sl1 request after transport error",
					slog.String("op", op),
					slog.Int("attempt", attempt+1),
					slog.String("error", err.Error()))
				if err := sleepCtx(ctx, c.retryDelay); err != nil {
					return fmt.Errorf("%s: %w", op, err)
				}
				continue
			}
			break
		}
		return decodeResponse(op, resp, out)
	}

	return fmt.Errorf("%w: %s failed after %d attempts: %w", ErrTransport, op, c.maxRetries+1, lastErr)
}

func (c *SL1Client) send(ctx context.Context, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	telemetry.InjectContext(ctx, req.Header)

	auth, err := c.basicAuth()
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", auth)

	return c.httpClient.Do(req)
}

// basicAuth builds the Authorization header value, opening the password
// enclave only for the duration of the call.
func (c *SL1Client) basicAuth() (string, error) {
	if c.password == nil {
		return "Basic " + base64.StdEncoding.EncodeToString([]byte(c.username+":")), nil
	}

	buf, err := c.password.Open()
	if err != nil {
		return "", fmt.Errorf("open credential enclave: %w", err)
	}
	defer buf.Destroy()

	creds := make([]byte, 0, len(c.username)+1+buf.Size())
	creds = append(creds, c.username...)
	creds = append(creds, ':')
	creds = append(creds, buf.Bytes()...)
	encoded := base64.StdEncoding.EncodeToString(creds)
	memguard.WipeBytes(creds)

	return "Basic " + encoded, nil
}

func decodeResponse(op string, resp *http.Response, out any) error {
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%w: %s: read body: %w", ErrTransport, op, err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("%w: %s: HTTP %d", ErrStatus, op, resp.StatusCode)
	}

	var envelope gqlResponse
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("%w: %s: decode response: %v", ErrGraphQL, op, err)
	}

	if len(envelope.Errors) > 0 {
		msgs := make([]string, 0, len(envelope.Errors))
		for _, e := range envelope.Errors {
			msgs = append(msgs, e.Message)
		}
		return fmt.Errorf("%w: %s: %s", ErrGraphQL, op, strings.Join(msgs, "; "))
	}

	if len(envelope.Data) == 0 || string(envelope.Data) == "null" {
		return fmt.Errorf("%w: %s: response has no data", ErrGraphQL, op)
	}

	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("%w: %s: decode data: %v", ErrGraphQL, op, err)
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
