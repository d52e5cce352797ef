// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Configuration constants for the gateway client.
const (
	// DefaultBaseURL is where a locally started gateway listens.
	DefaultBaseURL = "http://localhost:8000"

	// DefaultTimeout bounds the non-streaming calls (clear, health, refresh).
	DefaultTimeout = 10 * time.Second

	// DefaultHeaderTimeout bounds the wait for a chat response to start.
	// The body itself is only bounded by the caller's context.
	DefaultHeaderTimeout = 60 * time.Second

	// maxErrorBody caps how much of an error response is read.
	maxErrorBody = 64 * 1024

	userAgent = "bridgeai/0.1.0"
)

// PERFORMANCE: Connection pooling reduces TCP handshake overhead.
func newPooledTransport(headerTimeout time.Duration) *http.Transport {
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: headerTimeout,
	}
}

// ChatRequest is the body of a chat turn.
type ChatRequest struct {
	SessionID string `json:"session_id"`
	Query     string `json:"query"`
	Online    bool   `json:"online"`
}

// Health is the gateway's connectivity report.
type Health struct {
	Status         string `json:"status"`
	Online         bool   `json:"online"`
	CloudAvailable bool   `json:"cloud_available"`
}

// Client talks to one gateway.
type Client struct {
	baseURL    string
	httpClient *http.Client // short calls, overall timeout
	streamHTTP *http.Client // chat streams, context-controlled
	verbose    bool
}

// NewClient creates a client for the gateway at baseURL.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Transport: newPooledTransport(0),
			Timeout:   DefaultTimeout,
		},
		streamHTTP: &http.Client{
			Transport: newPooledTransport(DefaultHeaderTimeout),
		},
	}
}

// WithTimeout sets the timeout of non-streaming calls.
func (c *Client) WithTimeout(timeout time.Duration) *Client {
	c.httpClient.Timeout = timeout
	return c
}

// WithHTTPClient replaces both underlying HTTP clients. Streaming requests
// never get an overall timeout, so hc.Timeout only applies to short calls.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	c.streamHTTP = &http.Client{Transport: hc.Transport}
	return c
}

// WithVerbose enables request logging.
func (c *Client) WithVerbose(verbose bool) *Client {
	c.verbose = verbose
	return c
}

// BaseURL returns the gateway URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// =============================================================================
// CHAT
// =============================================================================

// Chat starts a chat turn and returns the event-stream body. The caller owns
// the body and must close it. Canceling ctx aborts both the request and any
// in-progress body read.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (io.ReadCloser, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, ErrEmptyQuery
	}
	if req.SessionID == "" {
		return nil, ErrNoSession
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, &TransportError{Op: "chat", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("Cache-Control", "no-cache")
	httpReq.Header.Set("User-Agent", userAgent)

	start := time.Now()
	resp, err := c.streamHTTP.Do(httpReq)
	if err != nil {
		return nil, &TransportError{Op: "chat", Err: err}
	}
	c.logCall("chat", resp.StatusCode, time.Since(start))

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, statusError("chat", resp)
	}
	return resp.Body, nil
}

// =============================================================================
// SESSION / HEALTH
// =============================================================================

// ClearSession drops the gateway-side history of a session.
func (c *Client) ClearSession(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return ErrNoSession
	}
	resp, err := c.do(ctx, "clear", http.MethodPost, "/api/chat/clear/"+url.PathEscape(sessionID))
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// Health fetches the gateway connectivity report.
func (c *Client) Health(ctx context.Context) (Health, error) {
	return c.health(ctx, "health", http.MethodGet, "/health")
}

// RefreshNetwork asks the gateway to re-check its network and returns the
// fresh report.
func (c *Client) RefreshNetwork(ctx context.Context) (Health, error) {
	return c.health(ctx, "refresh", http.MethodPost, "/refresh-network")
}

func (c *Client) health(ctx context.Context, op, method, path string) (Health, error) {
	resp, err := c.do(ctx, op, method, path)
	if err != nil {
		return Health{}, err
	}
	defer resp.Body.Close()

	var h Health
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxErrorBody)).Decode(&h); err != nil {
		return Health{}, &TransportError{Op: op, Err: fmt.Errorf("decode health: %w", err)}
	}
	return h, nil
}

// do performs a short call and returns the response on HTTP 2xx.
func (c *Client) do(ctx context.Context, op, method, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	req.Header.Set("User-Agent", userAgent)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	c.logCall(op, resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, statusError(op, resp)
	}
	return resp, nil
}

// statusError builds a TransportError from a non-success response.
func statusError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var apiErr struct {
		Error string `json:"error"`
	}
	msg := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
		msg = apiErr.Error
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return &TransportError{Op: op, StatusCode: resp.StatusCode, Err: errors.New(msg)}
}

// logCall logs a gateway call without bodies.
func (c *Client) logCall(op string, status int, d time.Duration) {
	if c.verbose {
		log.Printf("GATEWAY_CALL | op=%s status=%d duration=%v", op, status, d)
	}
}
