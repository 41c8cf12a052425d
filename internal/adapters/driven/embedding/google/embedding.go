// Package google provides an embedding service adapter using the Gemini API.
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

// Ensure EmbeddingService implements the interface.
var _ driven.EmbeddingService = (*EmbeddingService)(nil)

// Default configuration values.
const (
	DefaultModel = "models/embedding-001"

	// maxBatch is the Gemini batchEmbedContents request limit.
	maxBatch = 100
)

// Model dimensions for Gemini embedding models.
var modelDimensions = map[string]int{
	"models/embedding-001":        768,
	"models/text-embedding-004":   768,
	"models/gemini-embedding-001": 3072,
}

// Config holds configuration for the Gemini embedding service.
type Config struct {
	// APIKey is the Gemini API key (required).
	APIKey string

	// Model is the embedding model (default: models/embedding-001).
	// The "models/" prefix is added when missing.
	Model string

	// BaseURL overrides the API endpoint.
	BaseURL string

	// Timeout is the request timeout (default: 60s).
	Timeout time.Duration
}

// EmbeddingService generates embeddings using the Gemini API.
type EmbeddingService struct {
	client     *genai.Client
	model      string
	dimensions int
}

// NewEmbeddingService creates a new Gemini embedding service.
func NewEmbeddingService(ctx context.Context, cfg Config) (*EmbeddingService, error) {
	client, err := gemini.NewClient(ctx, gemini.ClientConfig{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Timeout: cfg.Timeout,
	})
	if err != nil {
		return nil, err
	}

	model := NormaliseModel(cfg.Model)
	return &EmbeddingService{
		client:     client,
		model:      model,
		dimensions: modelDimensions[model],
	}, nil
}

// NormaliseModel applies the default and the "models/" prefix.
func NormaliseModel(model string) string {
	model = strings.TrimSpace(model)
	if model == "" {
		return DefaultModel
	}
	if !strings.HasPrefix(model, "models/") {
		return "models/" + model
	}
	return model
}

// Embed generates a vector embedding for the given text.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

// EmbedBatch embeds texts in requests of at most 100 inputs.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += maxBatch {
		end := min(start+maxBatch, len(texts))

		contents := make([]*genai.Content, 0, end-start)
		for _, text := range texts[start:end] {
			contents = append(contents, genai.NewContentFromText(text, genai.RoleUser))
		}

		result, err := s.client.Models.EmbedContent(ctx, s.model, contents, &genai.EmbedContentConfig{})
		if err != nil {
			return nil, gemini.Classify("embed", err)
		}
		if result == nil || len(result.Embeddings) != len(contents) {
			got := 0
			if result != nil {
				got = len(result.Embeddings)
			}
			return nil, fmt.Errorf("gemini: expected %d embeddings, got %d", len(contents), got)
		}
		for i, e := range result.Embeddings {
			if e == nil || len(e.Values) == 0 {
				return nil, fmt.Errorf("gemini: missing embedding for input %d", start+i)
			}
			out = append(out, e.Values)
		}
	}

	if s.dimensions == 0 {
		s.dimensions = len(out[0])
	}
	return out, nil
}

// Dimensions returns the embedding vector size.
func (s *EmbeddingService) Dimensions() int {
	return s.dimensions
}

// ModelName returns the name of the embedding model being used.
func (s *EmbeddingService) ModelName() string {
	return s.model
}

// Close releases resources. The genai client holds no connections of its own.
func (s *EmbeddingService) Close() error {
	return nil
}
