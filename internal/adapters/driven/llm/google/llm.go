// Package google provides an LLM service adapter using the Gemini API.
package google

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/custodia-labs/ragchat/internal/adapters/driven/gemini"
	"github.com/custodia-labs/ragchat/internal/core/ports/driven"
)

// Ensure LLMService implements the interface.
var _ driven.LLMService = (*LLMService)(nil)

// DefaultModel is the default generation model.
const DefaultModel = "gemini-2.5-flash-lite"

// Config holds configuration for the Gemini LLM service.
type Config struct {
	// APIKey is the Gemini API key (required).
	APIKey string

	// Model is the generation model (default: gemini-2.5-flash-lite).
	Model string

	// BaseURL overrides the API endpoint.
	BaseURL string

	// Timeout is the request timeout (default: 60s).
	Timeout time.Duration
}

// LLMService produces completions using the Gemini API.
type LLMService struct {
	client *genai.Client
	model  string
}

// NewLLMService creates a new Gemini LLM service.
func NewLLMService(ctx context.Context, cfg Config) (*LLMService, error) {
	client, err := gemini.NewClient(ctx, gemini.ClientConfig{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Timeout: cfg.Timeout,
	})
	if err != nil {
		return nil, err
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	return &LLMService{client: client, model: cfg.Model}, nil
}

// Generate sends prompt as a single user turn and concatenates the text parts
// of the first candidate that has any.
func (s *LLMService) Generate(ctx context.Context, prompt string, opts driven.GenerateOptions) (string, error) {
	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(opts.Temperature)),
	}
	if opts.MaxTokens > 0 {
		config.MaxOutputTokens = int32(opts.MaxTokens)
	}

	resp, err := s.client.Models.GenerateContent(ctx, s.model,
		[]*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}, config)
	if err != nil {
		return "", gemini.Classify("generate", err)
	}

	text := responseText(resp)
	if text == "" {
		return "", fmt.Errorf("gemini: no response generated")
	}
	return text, nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var b strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part != nil && part.Text != "" {
				b.WriteString(part.Text)
			}
		}
		if b.Len() > 0 {
			break
		}
	}
	return b.String()
}

// ModelName returns the name of the LLM model being used.
func (s *LLMService) ModelName() string {
	return s.model
}

// Close releases resources.
func (s *LLMService) Close() error {
	return nil
}
