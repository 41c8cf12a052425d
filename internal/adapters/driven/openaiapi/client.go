// Package openaiapi is the JSON-over-HTTP client shared by the OpenAI
// embedding and chat adapters. It also works with OpenAI-compatible servers.
package openaiapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/custodia-labs/ragchat/internal/core/domain"
)

// DefaultBaseURL is the public OpenAI endpoint.
const DefaultBaseURL = "https://api.openai.com/v1"

// Config configures a Client.
type Config struct {
	// APIKey is sent as a bearer token (required).
	APIKey string

	// BaseURL defaults to DefaultBaseURL.
	BaseURL string

	// Timeout bounds each request, including reading the body.
	Timeout time.Duration
}

// Client posts JSON requests and classifies failures into domain errors.
type Client struct {
	http    *http.Client
	baseURL string
	apiKey  string
}

// apiError is the error object OpenAI puts in failed responses.
type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

type errorEnvelope struct {
	Error *apiError `json:"error,omitempty"`
}

// New creates a client.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, domain.NewConfigError("OPENAI_API_KEY", nil, "is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	return &Client{
		http:    &http.Client{Timeout: cfg.Timeout},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
	}, nil
}

// BaseURL returns the endpoint without a trailing slash.
func (c *Client) BaseURL() string { return c.baseURL }

// Timeout returns the per-request timeout.
func (c *Client) Timeout() time.Duration { return c.http.Timeout }

// Post sends in as JSON to path and decodes a successful response into out.
func (c *Client) Post(ctx context.Context, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return classifyTransport(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return classifyTransport(fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		return classifyStatus(resp, body)
	}

	var envelope errorEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if envelope.Error != nil {
		return fmt.Errorf("openai error: %s", envelope.Error.Message)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// classifyStatus maps an error response to the domain error taxonomy.
func classifyStatus(resp *http.Response, body []byte) error {
	msg := strings.TrimSpace(string(body))
	var envelope errorEnvelope
	if json.Unmarshal(body, &envelope) == nil && envelope.Error != nil {
		msg = envelope.Error.Message
	}

	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		if retry := resp.Header.Get("Retry-After"); retry != "" {
			return fmt.Errorf("%w: openai (retry after %ss): %s", domain.ErrRateLimited, retry, msg)
		}
		return fmt.Errorf("%w: openai: %s", domain.ErrRateLimited, msg)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: openai rejected the API key (status %d): %s",
			domain.ErrBackendConnectivity, resp.StatusCode, msg)
	default:
		return fmt.Errorf("openai error (status %d): %s", resp.StatusCode, msg)
	}
}

// classifyTransport marks network failures and timeouts as connectivity errors.
func classifyTransport(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: openai: %w", domain.ErrBackendConnectivity, err)
	}
	return fmt.Errorf("send request: %w", err)
}
