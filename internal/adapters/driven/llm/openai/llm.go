// Package openai generates answers with the OpenAI /chat/completions endpoint.
package openai

import (
	"context"
	"errors"
	"time"

	"github.com/custodia-labs/ragchat/internal/adapters/driven/openaiapi"
	"github.com/custodia-labs/ragchat/internal/core/ports/driven"
)

var _ driven.LLMService = (*LLMService)(nil)

// Defaults applied by NewLLMService.
const (
	DefaultBaseURL    = openaiapi.DefaultBaseURL
	DefaultLLMModel   = "gpt-5-nano"
	DefaultLLMTimeout = 120 * time.Second
)

// LLMConfig configures the chat service.
type LLMConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// LLMService implements driven.LLMService with a single-turn chat completion.
type LLMService struct {
	api   *openaiapi.Client
	model string
}

type chatRequest struct {
	Model               string        `json:"model"`
	Messages            []chatMessage `json:"messages"`
	MaxCompletionTokens int           `json:"max_completion_tokens,omitempty"`

	// Temperature is a pointer so that zero is sent rather than omitted.
	Temperature *float64 `json:"temperature,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
}

// NewLLMService creates the service. Only the API key is required.
func NewLLMService(cfg LLMConfig) (*LLMService, error) {
	if cfg.Model == "" {
		cfg.Model = DefaultLLMModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultLLMTimeout
	}

	api, err := openaiapi.New(openaiapi.Config{APIKey: cfg.APIKey, BaseURL: cfg.BaseURL, Timeout: cfg.Timeout})
	if err != nil {
		return nil, err
	}
	return &LLMService{api: api, model: cfg.Model}, nil
}

// Generate sends prompt as one user message and returns the first choice.
func (s *LLMService) Generate(ctx context.Context, prompt string, opts driven.GenerateOptions) (string, error) {
	temperature := opts.Temperature
	req := chatRequest{
		Model:       s.model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: &temperature,
	}
	if opts.MaxTokens > 0 {
		req.MaxCompletionTokens = opts.MaxTokens
	}

	var resp chatResponse
	if err := s.api.Post(ctx, "/chat/completions", req, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai: no response choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

// ModelName returns the chat model.
func (s *LLMService) ModelName() string {
	return s.model
}

// Close is a no-op.
func (s *LLMService) Close() error {
	return nil
}
