package driven

import (
	"context"

	"github.com/custodia-labs/ragchat/internal/core/domain"
)

// PostProcessor transforms a loaded document into chunks.
// Processors are chained: the first receives nil chunks and creates them,
// later ones receive and may modify the chunks of the previous stage.
type PostProcessor interface {
	// Name returns the processor identifier used in error messages.
	Name() string

	// Process returns the chunks for doc.
	Process(ctx context.Context, doc *domain.SourceDocument, chunks []domain.Chunk) ([]domain.Chunk, error)
}

// PostProcessorPipeline runs a chain of processors over a document.
type PostProcessorPipeline interface {
	// Process returns the final chunks of doc.
	Process(ctx context.Context, doc *domain.SourceDocument) ([]domain.Chunk, error)
}

// PipelineFactory builds the processing chain for one set of chunking parameters.
type PipelineFactory func(params domain.ChunkingParams) PostProcessorPipeline
