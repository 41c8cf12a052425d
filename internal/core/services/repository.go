package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/custodia-labs/ragchat/internal/core/domain"
	"github.com/custodia-labs/ragchat/internal/core/ports/driven"
	"github.com/custodia-labs/ragchat/internal/logger"
)

// Repository is the single access path to the vector store.
//
// Count-style reads never fail: connectivity problems, a schema that has not
// been created yet and unexpected errors are logged at their own severity and
// degrade to a zero or empty result. Writes always propagate their errors.
type Repository struct {
	store    driven.VectorStore
	embedder driven.EmbeddingService
	backend  string
}

// NewRepository creates a repository over store. embedder vectorises chunk
// text on Add and the query on SimilaritySearch.
func NewRepository(store driven.VectorStore, embedder driven.EmbeddingService, backend string) *Repository {
	return &Repository{
		store:    store,
		embedder: embedder,
		backend:  backend,
	}
}

// Collection returns the collection name.
func (r *Repository) Collection() string {
	return r.store.Name()
}

// Backend returns the store backend name.
func (r *Repository) Backend() string {
	return r.backend
}

// Count returns the number of chunks, or 0 on any backend error.
func (r *Repository) Count(ctx context.Context) int {
	n, err := r.store.Count(ctx)
	if err != nil {
		r.logReadFailure("count", err)
		return 0
	}
	return n
}

// CountSources returns the number of distinct sources, or 0 on any backend error.
func (r *Repository) CountSources(ctx context.Context) int {
	n, err := r.store.CountSources(ctx)
	if err != nil {
		r.logReadFailure("count sources", err)
		return 0
	}
	return n
}

// ListSources returns the distinct sources in order, or an empty list on any backend error.
func (r *Repository) ListSources(ctx context.Context) []string {
	sources, err := r.store.ListSources(ctx)
	if err != nil {
		r.logReadFailure("list sources", err)
		return []string{}
	}
	if sources == nil {
		return []string{}
	}
	return sources
}

// SourceExists reports whether source has chunks. Backend errors read as false.
func (r *Repository) SourceExists(ctx context.Context, source string) bool {
	ok, err := r.store.SourceExists(ctx, source)
	if err != nil {
		r.logReadFailure("source exists", err)
		return false
	}
	return ok
}

// Incomplete returns the sources whose latest ingestion has not completed.
func (r *Repository) Incomplete(ctx context.Context) []string {
	states, err := r.store.IngestionStates(ctx)
	if err != nil {
		r.logReadFailure("ingestion states", err)
		return nil
	}

	var out []string
	for _, s := range states {
		if !s.Complete {
			out = append(out, s.Source)
		}
	}
	return out
}

// DeleteBySource removes every chunk of source. Deleting an unknown source
// succeeds and removes nothing.
func (r *Repository) DeleteBySource(ctx context.Context, source string) (int, error) {
	n, err := r.store.DeleteBySource(ctx, source)
	if err != nil {
		logger.Error(err, "Delete of source %q failed", source)
		return 0, fmt.Errorf("delete source %s: %w", source, err)
	}
	logger.Debug("Deleted %d chunks for source %q", n, source)
	return n, nil
}

// Clear removes every chunk in the collection.
func (r *Repository) Clear(ctx context.Context) error {
	if err := r.store.Clear(ctx); err != nil {
		logger.Error(err, "Clear of collection %q failed", r.store.Name())
		return fmt.Errorf("clear collection: %w", err)
	}
	return nil
}

// Add embeds the chunk contents and upserts the chunks under their own IDs.
func (r *Repository) Add(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i := range chunks {
		texts[i] = chunks[i].Content
	}

	vectors, err := r.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed batch: %w", err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("embed batch: got %d vectors for %d chunks", len(vectors), len(chunks))
	}

	batch := make([]domain.Chunk, len(chunks))
	for i, c := range chunks {
		c.Embedding = vectors[i]
		batch[i] = c
	}

	if err := r.store.Add(ctx, batch); err != nil {
		logger.Error(err, "Add of %d chunks failed", len(batch))
		return fmt.Errorf("add chunks: %w", err)
	}
	return nil
}

// SimilaritySearch embeds query and returns the k nearest chunks.
func (r *Repository) SimilaritySearch(ctx context.Context, query string, k int) ([]domain.RetrievedChunk, error) {
	vector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	hits, err := r.store.SimilaritySearch(ctx, vector, k)
	if err != nil {
		logger.Error(err, "Similarity search failed")
		return nil, fmt.Errorf("similarity search: %w", err)
	}
	return hits, nil
}

// SetIngestionState records the ingestion marker for a source.
func (r *Repository) SetIngestionState(ctx context.Context, state domain.IngestionState) error {
	if err := r.store.SetIngestionState(ctx, state); err != nil {
		return fmt.Errorf("record ingestion state: %w", err)
	}
	return nil
}

// ForgetSource removes the ingestion marker of source.
func (r *Repository) ForgetSource(ctx context.Context, source string) error {
	if err := r.store.DeleteIngestionState(ctx, source); err != nil {
		return fmt.Errorf("delete ingestion state: %w", err)
	}
	return nil
}

func (r *Repository) logReadFailure(op string, err error) {
	switch {
	case errors.Is(err, domain.ErrSchemaMissing):
		logger.Warn("Collection %q has no tables yet (%s): %v", r.store.Name(), op, err)
	case errors.Is(err, domain.ErrBackendConnectivity):
		logger.Error(err, "Vector store unreachable during %s", op)
	default:
		logger.Error(err, "Unexpected vector store error during %s: %+v", op, err)
	}
}
