// Package openai embeds text with the OpenAI /embeddings endpoint.
package openai

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/ragchat/internal/adapters/driven/openaiapi"
	"github.com/custodia-labs/ragchat/internal/core/ports/driven"
)

var _ driven.EmbeddingService = (*EmbeddingService)(nil)

// Defaults applied by NewEmbeddingService.
const (
	DefaultBaseURL = openaiapi.DefaultBaseURL
	DefaultModel   = "text-embedding-3-small"
	DefaultTimeout = 60 * time.Second
)

// Vector sizes of the known embedding models. Others are learnt from the
// first response.
var modelDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

// Config configures the embedding service.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// EmbeddingService implements driven.EmbeddingService over the OpenAI API.
type EmbeddingService struct {
	api        *openaiapi.Client
	model      string
	dimensions int
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

// NewEmbeddingService creates the service. Only the API key is required.
func NewEmbeddingService(cfg Config) (*EmbeddingService, error) {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	api, err := openaiapi.New(openaiapi.Config{APIKey: cfg.APIKey, BaseURL: cfg.BaseURL, Timeout: cfg.Timeout})
	if err != nil {
		return nil, err
	}
	return &EmbeddingService{
		api:        api,
		model:      cfg.Model,
		dimensions: modelDimensions[cfg.Model],
	}, nil
}

// Embed vectorises a single text.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 || vectors[0] == nil {
		return nil, fmt.Errorf("openai: no embedding returned")
	}
	return vectors[0], nil
}

// EmbedBatch embeds all texts in one request. Results follow input order
// whatever order the API returns them in.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var resp embeddingResponse
	if err := s.api.Post(ctx, "/embeddings", embeddingRequest{Model: s.model, Input: texts}, &resp); err != nil {
		return nil, err
	}

	vectors := make([][]float32, len(texts))
	for _, item := range resp.Data {
		if item.Index < 0 || item.Index >= len(texts) {
			return nil, fmt.Errorf("openai: embedding index %d out of range", item.Index)
		}
		vec := make([]float32, len(item.Embedding))
		for i, v := range item.Embedding {
			vec[i] = float32(v)
		}
		vectors[item.Index] = vec
	}
	for i, vec := range vectors {
		if vec == nil {
			return nil, fmt.Errorf("openai: missing embedding for input %d", i)
		}
	}

	if s.dimensions == 0 {
		s.dimensions = len(vectors[0])
	}
	return vectors, nil
}

// Dimensions returns the vector size, or 0 before the first call for an
// unknown model.
func (s *EmbeddingService) Dimensions() int {
	return s.dimensions
}

// ModelName returns the embedding model.
func (s *EmbeddingService) ModelName() string {
	return s.model
}

// Close is a no-op.
func (s *EmbeddingService) Close() error {
	return nil
}
