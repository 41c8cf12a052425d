package domain

import "fmt"

// Metadata keys persisted with every chunk.
const (
	MetaSource      = "source"
	MetaFilename    = "filename"
	MetaChunkID     = "chunk_id"
	MetaChunkIndex  = "chunk_index"
	MetaTotalChunks = "total_chunks"
	MetaPage        = "page"
	MetaPageLabel   = "page_label"
	MetaTotalPages  = "total_pages"
)

// Page is the extracted text of a single document page.
type Page struct {
	// Number is the 0-based page index.
	Number int

	// Text is the extracted page text.
	Text string

	// Metadata carries loader-supplied fields (page, page_label, total_pages, source).
	Metadata map[string]any
}

// SourceDocument is a loaded document ready for splitting.
type SourceDocument struct {
	// Source is the normalised path identifier.
	Source string

	// Filename is the base name of Source.
	Filename string

	// Pages are the extracted pages in order.
	Pages []Page
}

// Chunk is a contiguous span of extracted document text stored as one
// retrievable unit.
type Chunk struct {
	// ID is the deterministic identifier {filename}-{Index}.
	ID string

	// Content is the chunk text.
	Content string

	// Index is the 0-based position within the source document.
	Index int

	// Total is the number of chunks produced from the same source.
	Total int

	// Embedding is the vector representation, set just before persistence.
	Embedding []float32

	// Metadata is the provenance envelope. Empty values are never persisted.
	Metadata map[string]any
}

// Source returns the normalised source identifier from the chunk metadata.
func (c Chunk) Source() string {
	return MetaString(c.Metadata, MetaSource)
}

// StripEmpty returns a copy of m without nil or empty-string values.
func StripEmpty(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if v == nil {
			continue
		}
		if s, ok := v.(string); ok && s == "" {
			continue
		}
		out[k] = v
	}
	return out
}

// MetaString reads a string value from metadata, or "" when absent.
func MetaString(m map[string]any, key string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// MetaInt reads an integer value from metadata. JSON decoding yields
// float64, so numeric types are normalised.
func MetaInt(m map[string]any, key string) (int, bool) {
	switch v := m[key].(type) {
	case int:
		return v, true
	case int32:
		return int(v), true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	case float32:
		return int(v), true
	default:
		return 0, false
	}
}

// ChunkingParams are the splitter parameters in characters.
type ChunkingParams struct {
	Size    int
	Overlap int
}

// Validate checks 0 < Size and 0 <= Overlap < Size.
func (p ChunkingParams) Validate() error {
	if p.Size <= 0 {
		return NewConfigError("chunk_size", p.Size, "must be greater than 0")
	}
	if p.Overlap < 0 {
		return NewConfigError("chunk_overlap", p.Overlap, "must not be negative")
	}
	if p.Overlap >= p.Size {
		return NewConfigError("chunk_overlap", p.Overlap,
			fmt.Sprintf("must be less than chunk_size (%d)", p.Size))
	}
	return nil
}
