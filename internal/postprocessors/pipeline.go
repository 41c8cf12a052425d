// Package postprocessors turns loaded documents into enriched chunks.
package postprocessors

import (
	"context"
	"fmt"

	"github.com/custodia-labs/ragchat/internal/core/domain"
	"github.com/custodia-labs/ragchat/internal/core/ports/driven"
	"github.com/custodia-labs/ragchat/internal/postprocessors/chunker"
	"github.com/custodia-labs/ragchat/internal/postprocessors/enricher"
)

var _ driven.PostProcessorPipeline = (*Pipeline)(nil)

// Pipeline chains multiple PostProcessors and runs them in order.
type Pipeline struct {
	processors []driven.PostProcessor
}

// NewPipeline creates a new processing pipeline with the given processors.
// Processors are executed in the order provided.
func NewPipeline(processors ...driven.PostProcessor) *Pipeline {
	return &Pipeline{
		processors: processors,
	}
}

// Process runs the document through all processors in order.
// The first processor receives nil chunks and should create them.
func (p *Pipeline) Process(ctx context.Context, doc *domain.SourceDocument) ([]domain.Chunk, error) {
	if doc == nil {
		return nil, fmt.Errorf("%w: document is nil", domain.ErrInvalidInput)
	}

	var chunks []domain.Chunk

	for _, processor := range p.processors {
		var err error
		chunks, err = processor.Process(ctx, doc, chunks)
		if err != nil {
			return nil, fmt.Errorf("processor %s: %w", processor.Name(), err)
		}
	}

	return chunks, nil
}

// Add appends a processor to the pipeline.
func (p *Pipeline) Add(processor driven.PostProcessor) {
	p.processors = append(p.processors, processor)
}

// Len returns the number of processors in the pipeline.
func (p *Pipeline) Len() int {
	return len(p.processors)
}

// Default builds the ingestion chain: split pages, then number and enrich chunks.
func Default(params domain.ChunkingParams) driven.PostProcessorPipeline {
	return NewPipeline(
		chunker.New(chunker.WithChunkSize(params.Size), chunker.WithOverlap(params.Overlap)),
		enricher.New(),
	)
}
