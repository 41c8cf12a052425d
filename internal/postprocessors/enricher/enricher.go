// Package enricher assigns deterministic identifiers and provenance metadata to chunks.
package enricher

import (
	"context"
	"fmt"

	"github.com/custodia-labs/ragchat/internal/core/domain"
	"github.com/custodia-labs/ragchat/internal/core/ports/driven"
)

var _ driven.PostProcessor = (*Processor)(nil)

// Processor numbers chunks across the whole document and attaches
// source, filename, chunk_id, chunk_index and total_chunks.
// Re-running it over the same chunks yields the same IDs.
type Processor struct{}

// New creates a metadata enricher.
func New() *Processor {
	return &Processor{}
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "enricher"
}

// Process enriches chunks in place order and returns them.
func (p *Processor) Process(_ context.Context, doc *domain.SourceDocument, chunks []domain.Chunk) ([]domain.Chunk, error) {
	total := len(chunks)
	out := make([]domain.Chunk, total)

	for i, c := range chunks {
		id := ChunkID(doc.Filename, i)

		meta := make(map[string]any, len(c.Metadata)+5)
		for k, v := range c.Metadata {
			meta[k] = v
		}
		meta[domain.MetaSource] = doc.Source
		meta[domain.MetaFilename] = doc.Filename
		meta[domain.MetaChunkID] = id
		meta[domain.MetaChunkIndex] = i
		meta[domain.MetaTotalChunks] = total

		c.ID = id
		c.Index = i
		c.Total = total
		c.Metadata = domain.StripEmpty(meta)
		out[i] = c
	}

	return out, nil
}

// ChunkID returns the stable identifier of the i-th chunk of filename.
func ChunkID(filename string, i int) string {
	return fmt.Sprintf("%s-%d", filename, i)
}
