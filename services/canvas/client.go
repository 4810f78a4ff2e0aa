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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rudipoppes/SL1-TOPOLOGY-sub000/services/topology/datatypes"
	"github.com/rudipoppes/SL1-TOPOLOGY-sub000/services/topology/telemetry"
)

const (
	// DefaultClientRetries is how many times a transport failure is retried.
	DefaultClientRetries = 2

	// DefaultClientRetryDelay is the pause between attempts.
	DefaultClientRetryDelay = 500 * time.Millisecond

	maxAPIResponseBytes = 32 << 20
)

var (
	// ErrTransport wraps failures to reach the topology API.
	ErrTransport = errors.New("topology api unreachable")

	// ErrAPI is matched by every APIError.
	ErrAPI = errors.New("topology api error")
)

// APIError is a non-2xx response from the topology API.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("topology api: HTTP %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("topology api: HTTP %d %s: %s", e.StatusCode, e.Code, e.Message)
}

func (e *APIError) Is(target error) bool {
	return target == ErrAPI
}

// Client calls the topology HTTP API.
//
// # Description
//
// Transport failures are retried up to DefaultClientRetries more times
// with a fixed delay. HTTP error responses are returned immediately as
// *APIError. Every request carries a fresh X-Request-ID and the caller's
// trace context.
//
// # Thread Safety
//
// Safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	maxRetries int
	retryDelay time.Duration
	logger     *slog.Logger
}

type ClientOption func(*Client)

func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithRetry overrides the retry count and delay.
func WithRetry(maxRetries int, delay time.Duration) ClientOption {
	return func(c *Client) {
		c.maxRetries = max(maxRetries, 0)
		c.retryDelay = delay
	}
}

func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a client for the API rooted at baseURL.
func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid topology api url %q", baseURL)
	}

	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 60 * time.Second},
		maxRetries: DefaultClientRetries,
		retryDelay: DefaultClientRetryDelay,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Explore posts a topology request.
func (c *Client) Explore(ctx context.Context, req datatypes.TopologyRequest) (*datatypes.TopologyResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode topology request: %w", err)
	}

	var resp datatypes.TopologyResponse
	if err := c.do(ctx, http.MethodPost, "/topology", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SearchDevices lists devices for the device picker.
func (c *Client) SearchDevices(ctx context.Context, term string, limit int) ([]datatypes.Device, error) {
	q := url.Values{}
	if term != "" {
		q.Set("search", term)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	path := "/devices"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var resp datatypes.DeviceSearchResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Devices, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		resp, err := c.send(ctx, method, path, body)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
			if attempt < c.maxRetries {
				c.logger.Debug("retrying topology api request",
					slog.String("path", path),
					slog.Int("attempt", attempt+1),
					slog.String("error", err.Error()))
				if err := wait(ctx, c.retryDelay); err != nil {
					return err
				}
			}
			continue
		}
		return decodeAPIResponse(resp, out)
	}
	return fmt.Errorf("%w: %s %s after %d attempts: %w", ErrTransport, method, path, c.maxRetries+1, lastErr)
}

func (c *Client) send(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	telemetry.InjectContext(ctx, req.Header)

	return c.httpClient.Do(req)
}

func decodeAPIResponse(resp *http.Response, out any) error {
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxAPIResponseBytes))
	if err != nil {
		return fmt.Errorf("%w: read body: %w", ErrTransport, err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var body datatypes.ErrorResponse
		if json.Unmarshal(raw, &body) == nil {
			apiErr.Code = body.Code
			apiErr.Message = body.Message
			if apiErr.Message == "" {
				apiErr.Message = body.Error
			}
		}
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode topology api response: %w", err)
	}
	return nil
}

func wait(ctx context.Context, d time.Duration) error {
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
