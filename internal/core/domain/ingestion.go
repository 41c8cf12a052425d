package domain

import "time"

// DefaultBatchSize is the number of chunks embedded and persisted per batch.
const DefaultBatchSize = 16

// IngestOptions overrides chunking for a single ingestion.
// Nil values fall back to the configured defaults.
type IngestOptions struct {
	ChunkSize    *int
	ChunkOverlap *int

	// BatchSize overrides the number of chunks persisted per batch when positive.
	BatchSize int

	// Progress is called after each persisted batch.
	Progress func(done, total int)
}

// IngestionReport summarises a completed ingestion.
type IngestionReport struct {
	Source           string
	Filename         string
	Collection       string
	RunID            string
	Pages            int
	Chunks           int
	AverageChunkSize int
	FirstID          string
	LastID           string

	// Replaced is true when chunks from a previous ingestion were removed.
	Replaced bool

	Elapsed time.Duration
}

// IngestionState marks the progress of the latest ingestion of a source.
// A state that is not Complete means the source may be partially indexed
// and should be re-ingested.
type IngestionState struct {
	Source         string
	RunID          string
	ExpectedChunks int
	Complete       bool
	UpdatedAt      time.Time
}

// CollectionStatus summarises the indexed collection.
type CollectionStatus struct {
	Collection string `json:"collection"`
	Backend    string `json:"backend"`
	Chunks     int    `json:"chunks"`
	Sources    int    `json:"sources"`

	// Incomplete lists sources whose latest ingestion did not finish.
	Incomplete []string `json:"incomplete,omitempty"`
}
