package domain

import (
	"fmt"
	"time"
)

// Citation placeholders used when a chunk lacks provenance fields.
const (
	UnknownSource = "unknown"
	UnknownPage   = "??"
)

// RetrievedChunk is one similarity search hit.
type RetrievedChunk struct {
	// Content is the chunk text.
	Content string `json:"content" yaml:"content"`

	// Metadata is the stored provenance envelope.
	Metadata map[string]any `json:"metadata" yaml:"metadata"`

	// Score is the cosine similarity to the query (higher is closer).
	Score float64 `json:"score" yaml:"score"`
}

// Citation is a deduplicated reference to a (source, page) pair.
type Citation struct {
	Source   string `json:"source" yaml:"source"`
	Filename string `json:"filename,omitempty" yaml:"filename,omitempty"`

	// Page is the 0-based page index, or -1 when unknown.
	Page int `json:"page" yaml:"page"`
}

// CitationFor derives the citation of a retrieved chunk.
func CitationFor(rc RetrievedChunk) Citation {
	page, ok := MetaInt(rc.Metadata, MetaPage)
	if !ok {
		page = -1
	}
	return Citation{
		Source:   MetaString(rc.Metadata, MetaSource),
		Filename: MetaString(rc.Metadata, MetaFilename),
		Page:     page,
	}
}

// Key is the composite deduplication key source_p{page}.
func (c Citation) Key() string {
	return fmt.Sprintf("%s_p%s", c.sourceLabel(), c.PageLabel())
}

// PageLabel returns the 1-based page number for display, or "??".
func (c Citation) PageLabel() string {
	if c.Page < 0 {
		return UnknownPage
	}
	return fmt.Sprintf("%d", c.Page+1)
}

func (c Citation) sourceLabel() string {
	if c.Source == "" {
		return UnknownSource
	}
	return c.Source
}

// String renders "source (p. N)".
func (c Citation) String() string {
	return fmt.Sprintf("%s (p. %s)", c.sourceLabel(), c.PageLabel())
}

// AnswerOptions configures a single question.
type AnswerOptions struct {
	// TopK is the number of chunks to retrieve.
	TopK int

	// Temperature is passed to the generation provider.
	Temperature float64
}

// Answer is the result of the answer pipeline.
type Answer struct {
	Question  string           `json:"question" yaml:"question"`
	Text      string           `json:"answer" yaml:"answer"`
	Citations []Citation       `json:"citations" yaml:"citations"`
	Context   []RetrievedChunk `json:"-" yaml:"-"`

	// Fallback is true when generation failed and Text holds the raw context.
	Fallback bool `json:"fallback" yaml:"fallback"`

	// GenerationError is the provider failure that caused the fallback.
	GenerationError string `json:"generation_error,omitempty" yaml:"generation_error,omitempty"`

	Elapsed time.Duration `json:"elapsed_ns" yaml:"elapsed"`
}
