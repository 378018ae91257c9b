// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Configuration constants for the completion endpoint.
const (
	// DefaultBaseURL is where a locally running service listens.
	DefaultBaseURL = "http://127.0.0.1:8080"

	// DefaultPath is the OpenAI-compatible completion path.
	DefaultPath = "/v1/chat/completions"

	userAgent = "parley/1.0"
)

// PERFORMANCE: Connection pooling reduces TCP handshake overhead.
// Streaming responses have no client timeout; the caller's context bounds
// them.
var sharedStreamingClient = &http.Client{
	Transport: &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
	},
}

// =============================================================================
// REQUEST TYPES
// =============================================================================

// ChatMessage is one message of the request window.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest is the body POSTed to the completion endpoint.
type CompletionRequest struct {
	ID             string        `json:"id"`
	ConversationID string        `json:"conversation_id"`
	Model          string        `json:"model,omitempty"`
	Messages       []ChatMessage `json:"messages"`
	Stream         bool          `json:"stream"`
	Temperature    *float64      `json:"temperature,omitempty"`
	MaxTokens      int           `json:"max_tokens,omitempty"`
}

// =============================================================================
// CLIENT
// =============================================================================

// Client opens streaming completion requests.
type Client struct {
	baseURL     string
	path        string
	apiKey      string
	model       string
	temperature *float64
	maxTokens   int

	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient creates a client for the service at baseURL.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		path:       DefaultPath,
		httpClient: sharedStreamingClient,
	}
}

// WithPath sets the endpoint path.
func (c *Client) WithPath(path string) *Client {
	if path != "" {
		if !strings.HasPrefix(path, "/") {
			path = "/" + path
		}
		c.path = path
	}
	return c
}

// WithAPIKey sends key as a bearer token.
func (c *Client) WithAPIKey(key string) *Client {
	c.apiKey = key
	return c
}

// WithModel sets the model used when a request names none.
func (c *Client) WithModel(model string) *Client {
	c.model = model
	return c
}

// WithTemperature sets the sampling temperature used when a request has
// none.
func (c *Client) WithTemperature(t float64) *Client {
	c.temperature = &t
	return c
}

// WithMaxTokens sets the response length cap used when a request has none.
func (c *Client) WithMaxTokens(n int) *Client {
	c.maxTokens = n
	return c
}

// WithRateLimit allows at most perMinute requests per minute. Zero or less
// disables limiting.
func (c *Client) WithRateLimit(perMinute int) *Client {
	if perMinute <= 0 {
		c.limiter = nil
		return c
	}
	c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute)
	return c
}

// WithHTTPClient replaces the shared streaming client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	if hc != nil {
		c.httpClient = hc
	}
	return c
}

// Endpoint returns the full completion URL.
func (c *Client) Endpoint() string {
	return c.baseURL + c.path
}

// setHeaders applies the headers every streaming request carries.
func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("User-Agent", userAgent)
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

// Open sends req and returns the response body for the caller to read and
// close. Stream is always forced on.
func (c *Client) Open(ctx context.Context, req CompletionRequest) (io.ReadCloser, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}

	req.Stream = true
	if req.Model == "" {
		req.Model = c.model
	}
	if req.Temperature == nil {
		req.Temperature = c.temperature
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = c.maxTokens
	}
	if req.Messages == nil {
		req.Messages = []ChatMessage{}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(httpReq)

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		log.Printf("TRANSPORT_FAILED | request=%s conversation=%s err=%v", req.ID, req.ConversationID, err)
		return nil, fmt.Errorf("request failed: %w", err)
	}

	// Headers only; request and response bodies may hold private content.
	log.Printf("TRANSPORT_STATUS | request=%s status=%d elapsed=%v", req.ID, resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, &StatusError{Status: resp.StatusCode, StatusText: http.StatusText(resp.StatusCode)}
	}
	return resp.Body, nil
}
