package driving

import (
	"context"

	"github.com/custodia-labs/ragchat/internal/core/domain"
)

// IngestionService adds or replaces documents in the collection.
type IngestionService interface {
	// Ingest loads, splits, enriches and persists the document at path,
	// replacing any chunks from an earlier ingestion of the same source.
	Ingest(ctx context.Context, path string, opts domain.IngestOptions) (*domain.IngestionReport, error)

	// Exists reports whether the document at path is already indexed, and
	// returns its normalised source identifier.
	Exists(ctx context.Context, path string) (source string, exists bool, err error)
}

// AnswerService answers questions from the indexed collection.
type AnswerService interface {
	// Answer retrieves context for question and produces a grounded answer.
	// When generation fails the answer falls back to the retrieved context.
	Answer(ctx context.Context, question string, opts domain.AnswerOptions) (*domain.Answer, error)
}

// CollectionService exposes read-only status and source management.
type CollectionService interface {
	// Status returns chunk and source counts. Backend failures yield zeros.
	Status(ctx context.Context) domain.CollectionStatus

	// ListSources returns the indexed source identifiers.
	ListSources(ctx context.Context) []string

	// RemoveSource deletes a source matched by exact identifier or unique file name.
	// Returns the removed source identifier.
	RemoveSource(ctx context.Context, name string) (string, error)

	// ClearAll removes every chunk in the collection.
	ClearAll(ctx context.Context) error
}
