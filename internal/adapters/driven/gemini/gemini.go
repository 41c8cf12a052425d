// Package gemini holds the client setup and error classification shared by
// the Google embedding and generation adapters.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/custodia-labs/ragchat/internal/core/domain"
)

// DefaultTimeout bounds each request when the caller does not set one.
const DefaultTimeout = 60 * time.Second

// ClientConfig configures a Gemini API client.
type ClientConfig struct {
	// APIKey is the Gemini API key (required).
	APIKey string

	// BaseURL overrides the API endpoint. Used by tests.
	BaseURL string

	// Timeout is the per-request timeout (default: 60s).
	Timeout time.Duration
}

// NewClient creates a genai client for the Gemini API backend.
func NewClient(ctx context.Context, cfg ClientConfig) (*genai.Client, error) {
	if cfg.APIKey == "" {
		return nil, domain.NewConfigError("GOOGLE_API_KEY", nil, "is required")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: cfg.Timeout},
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("initialise genai client: %w", err)
	}
	return client, nil
}

// retryDelayRegex matches "Please retry in Xs" or "retryDelay:Xs" patterns.
var retryDelayRegex = regexp.MustCompile(`(?i)(?:Please retry in |retryDelay[:\s]+)(\d+(?:\.\d+)?)\s*s`)

// IsRateLimit reports whether err is a Gemini quota or 429 failure.
func IsRateLimit(err error) bool {
	if err == nil {
		return false
	}
	if apiErr, ok := asAPIError(err); ok && apiErr.Code == http.StatusTooManyRequests {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "RESOURCE_EXHAUSTED") ||
		strings.Contains(msg, "quota")
}

// RetryDelay parses the API-suggested retry delay from an error message.
// Returns 0 if the message carries none.
//
// Example: "Error 429, Message: ... Please retry in 45.38s., Status: RESOURCE_EXHAUSTED"
func RetryDelay(err error) time.Duration {
	if err == nil {
		return 0
	}
	matches := retryDelayRegex.FindStringSubmatch(err.Error())
	if len(matches) < 2 {
		return 0
	}
	seconds, parseErr := strconv.ParseFloat(matches[1], 64)
	if parseErr != nil {
		return 0
	}
	return time.Duration(seconds * float64(time.Second))
}

// Classify wraps a genai failure with the matching domain sentinel.
// op names the failed call, e.g. "embed" or "generate".
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsRateLimit(err) {
		if d := RetryDelay(err); d > 0 {
			return fmt.Errorf("%w: gemini %s (retry in %s): %w", domain.ErrRateLimited, op, d.Round(time.Second), err)
		}
		return fmt.Errorf("%w: gemini %s: %w", domain.ErrRateLimited, op, err)
	}

	if apiErr, ok := asAPIError(err); ok {
		switch apiErr.Code {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: gemini rejected the API key: %w", domain.ErrBackendConnectivity, err)
		case http.StatusBadRequest:
			if strings.Contains(apiErr.Message, "API key") {
				return fmt.Errorf("%w: gemini rejected the API key: %w", domain.ErrBackendConnectivity, err)
			}
		}
		return fmt.Errorf("gemini %s: %w", op, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: gemini %s: %w", domain.ErrBackendConnectivity, op, err)
	}
	return fmt.Errorf("gemini %s: %w", op, err)
}

// asAPIError unwraps a genai.APIError returned either by value or by pointer.
func asAPIError(err error) (genai.APIError, bool) {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return *apiErrPtr, true
	}
	return genai.APIError{}, false
}
