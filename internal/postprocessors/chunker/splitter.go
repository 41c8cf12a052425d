// Package chunker provides a recursive character text splitter.
//
// Text is split on the largest separator present (paragraph, line, word),
// recursing into pieces that are still too long, and falling back to single
// characters. Adjacent pieces are then merged greedily up to the chunk size,
// carrying up to the overlap worth of trailing pieces into the next chunk.
package chunker

import (
	"context"
	"maps"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/ragchat/internal/core/domain"
	"github.com/custodia-labs/ragchat/internal/core/ports/driven"
)

// DefaultChunkSize is the default number of characters per chunk.
const DefaultChunkSize = 1000

// DefaultChunkOverlap is the default number of overlapping characters.
const DefaultChunkOverlap = 150

// DefaultSeparators are tried in order, largest boundary first.
var DefaultSeparators = []string{"\n\n", "\n", " ", ""}

var _ driven.PostProcessor = (*Processor)(nil)

// Processor splits document pages into chunks.
// A chunk never spans two pages.
type Processor struct {
	chunkSize  int
	overlap    int
	separators []string
}

// Option configures the chunker processor.
type Option func(*Processor)

// WithChunkSize sets the chunk size in characters.
func WithChunkSize(size int) Option {
	return func(p *Processor) {
		if size > 0 {
			p.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between chunks in characters.
func WithOverlap(overlap int) Option {
	return func(p *Processor) {
		if overlap >= 0 {
			p.overlap = overlap
		}
	}
}

// WithSeparators replaces the separator list. The list should end with "".
func WithSeparators(separators ...string) Option {
	return func(p *Processor) {
		if len(separators) > 0 {
			p.separators = separators
		}
	}
}

// New creates a new chunker processor with the given options.
// Callers validate parameters with domain.ChunkingParams first; New only
// guards against an overlap that would stall the merge.
func New(opts ...Option) *Processor {
	p := &Processor{
		chunkSize:  DefaultChunkSize,
		overlap:    DefaultChunkOverlap,
		separators: DefaultSeparators,
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.overlap >= p.chunkSize {
		p.overlap = p.chunkSize / 4
	}

	return p
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "chunker"
}

// Process splits every page of doc. Input chunks are ignored.
// A document without extractable text produces no chunks.
func (p *Processor) Process(ctx context.Context, doc *domain.SourceDocument, _ []domain.Chunk) ([]domain.Chunk, error) {
	var chunks []domain.Chunk

	for _, page := range doc.Pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		for _, text := range p.Split(page.Text) {
			meta := make(map[string]any, len(page.Metadata)+1)
			maps.Copy(meta, page.Metadata)
			if _, ok := meta[domain.MetaPage]; !ok {
				meta[domain.MetaPage] = page.Number
			}
			chunks = append(chunks, domain.Chunk{
				Content:  text,
				Metadata: meta,
			})
		}
	}

	return chunks, nil
}

// Split breaks text into chunks of at most chunkSize characters.
func (p *Processor) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return p.split(text, p.separators)
}

func (p *Processor) split(text string, separators []string) []string {
	var final []string

	separator := separators[len(separators)-1]
	var next []string
	for i, s := range separators {
		if s == "" {
			separator = s
			break
		}
		if strings.Contains(text, s) {
			separator = s
			next = separators[i+1:]
			break
		}
	}

	var good []string
	for _, s := range splitKeepSeparator(text, separator) {
		if runeLen(s) < p.chunkSize {
			good = append(good, s)
			continue
		}
		if len(good) > 0 {
			final = append(final, p.merge(good)...)
			good = nil
		}
		if len(next) == 0 {
			if trimmed := strings.TrimSpace(s); trimmed != "" {
				final = append(final, trimmed)
			}
		} else {
			final = append(final, p.split(s, next)...)
		}
	}
	if len(good) > 0 {
		final = append(final, p.merge(good)...)
	}

	return final
}

// merge joins pieces greedily into chunks, keeping trailing pieces of up
// to overlap characters as the start of the next chunk.
func (p *Processor) merge(pieces []string) []string {
	var docs []string
	var current []string
	total := 0

	for _, piece := range pieces {
		n := runeLen(piece)
		if total+n > p.chunkSize && len(current) > 0 {
			if doc := joinPieces(current); doc != "" {
				docs = append(docs, doc)
			}
			for total > p.overlap || (total+n > p.chunkSize && total > 0) {
				total -= runeLen(current[0])
				current = current[1:]
			}
		}
		current = append(current, piece)
		total += n
	}

	if doc := joinPieces(current); doc != "" {
		docs = append(docs, doc)
	}
	return docs
}

// splitKeepSeparator splits text on sep, attaching each separator to the
// start of the piece that follows it. An empty sep splits into characters.
func splitKeepSeparator(text, sep string) []string {
	if sep == "" {
		out := make([]string, 0, len(text))
		for _, r := range text {
			out = append(out, string(r))
		}
		return out
	}

	parts := strings.Split(text, sep)
	out := make([]string, 0, len(parts))
	if parts[0] != "" {
		out = append(out, parts[0])
	}
	for _, part := range parts[1:] {
		out = append(out, sep+part)
	}
	return out
}

func joinPieces(pieces []string) string {
	return strings.TrimSpace(strings.Join(pieces, ""))
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
