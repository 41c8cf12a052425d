// Package driven provides interfaces for infrastructure adapters (secondary/outbound ports).
package driven

import "context"

// EmbeddingService generates vector embeddings from text.
//
// Implementations include:
//   - Google Gemini (models/embedding-001, gemini-embedding-001)
//   - OpenAI (text-embedding-3-small, text-embedding-3-large)
type EmbeddingService interface {
	// Embed generates a vector embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts in one request where
	// the provider allows it. The result is index-aligned with texts.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding vector size, or 0 when unknown until the first call.
	Dimensions() int

	// ModelName returns the name of the embedding model being used.
	ModelName() string

	// Close releases resources.
	Close() error
}
