package driven

import (
	"context"

	"github.com/custodia-labs/ragchat/internal/core/domain"
)

// VectorStore persists chunks and their vectors for a single named collection.
// Every query is scoped to that collection, so several collections can share
// one physical store.
//
// Implementations wrap backend failures with domain.ErrBackendConnectivity or
// domain.ErrSchemaMissing where they can be recognised.
type VectorStore interface {
	// Name returns the collection name.
	Name() string

	// Count returns the number of chunks in the collection.
	Count(ctx context.Context) (int, error)

	// CountSources returns the number of distinct source values.
	CountSources(ctx context.Context) (int, error)

	// ListSources returns distinct source values in ascending order.
	ListSources(ctx context.Context) ([]string, error)

	// SourceExists reports whether any chunk has the given source.
	SourceExists(ctx context.Context, source string) (bool, error)

	// DeleteBySource removes every chunk whose source matches exactly, in one
	// transaction. Returns the number of removed chunks.
	DeleteBySource(ctx context.Context, source string) (int, error)

	// Clear removes every chunk and ingestion marker in the collection and
	// leaves other collections untouched.
	Clear(ctx context.Context) error

	// Add upserts chunks using their caller-supplied IDs. Each chunk must carry its embedding.
	Add(ctx context.Context, chunks []domain.Chunk) error

	// SimilaritySearch returns the k chunks nearest to vector, most similar first.
	SimilaritySearch(ctx context.Context, vector []float32, k int) ([]domain.RetrievedChunk, error)

	// SetIngestionState records the progress marker for a source.
	SetIngestionState(ctx context.Context, state domain.IngestionState) error

	// DeleteIngestionState removes the marker of a source. Missing markers are ignored.
	DeleteIngestionState(ctx context.Context, source string) error

	// IngestionStates returns the markers of all sources, ordered by source.
	IngestionStates(ctx context.Context) ([]domain.IngestionState, error)

	// Close releases resources.
	Close() error
}
