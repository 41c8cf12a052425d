package memory

import (
	"context"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/ragchat/internal/adapters/driven/storage/similarity"
	"github.com/custodia-labs/ragchat/internal/core/domain"
	"github.com/custodia-labs/ragchat/internal/core/ports/driven"
)

// Ensure VectorStore implements the interface.
var _ driven.VectorStore = (*VectorStore)(nil)

type record struct {
	seq   int64
	chunk domain.Chunk
}

type collection struct {
	records    map[string]record
	ingestions map[string]domain.IngestionState
}

// DB holds any number of named collections in process memory.
// Several VectorStores may share one DB.
type DB struct {
	mu          sync.RWMutex
	seq         int64
	collections map[string]*collection
}

// NewDB creates an empty in-memory database.
func NewDB() *DB {
	return &DB{collections: make(map[string]*collection)}
}

// VectorStore is an in-memory implementation of driven.VectorStore scoped to one collection.
type VectorStore struct {
	db   *DB
	name string
}

// NewVectorStore creates a store for the named collection in db.
// A nil db gets a private database.
func NewVectorStore(db *DB, name string) *VectorStore {
	if db == nil {
		db = NewDB()
	}
	return &VectorStore{db: db, name: name}
}

// Name returns the collection name.
func (s *VectorStore) Name() string {
	return s.name
}

// coll returns the collection, or nil when nothing was written yet.
// Caller holds the lock.
func (s *VectorStore) coll() *collection {
	return s.db.collections[s.name]
}

func (s *VectorStore) ensure() *collection {
	c := s.db.collections[s.name]
	if c == nil {
		c = &collection{
			records:    make(map[string]record),
			ingestions: make(map[string]domain.IngestionState),
		}
		s.db.collections[s.name] = c
	}
	return c
}

// Count returns the number of chunks in the collection.
func (s *VectorStore) Count(_ context.Context) (int, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	c := s.coll()
	if c == nil {
		return 0, nil
	}
	return len(c.records), nil
}

// CountSources returns the number of distinct sources.
func (s *VectorStore) CountSources(ctx context.Context) (int, error) {
	sources, err := s.ListSources(ctx)
	return len(sources), err
}

// ListSources returns distinct sources in ascending order.
func (s *VectorStore) ListSources(_ context.Context) ([]string, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	c := s.coll()
	if c == nil {
		return []string{}, nil
	}

	set := make(map[string]struct{})
	for _, r := range c.records {
		if src := r.chunk.Source(); src != "" {
			set[src] = struct{}{}
		}
	}

	out := make([]string, 0, len(set))
	for src := range set {
		out = append(out, src)
	}
	sort.Strings(out)
	return out, nil
}

// SourceExists reports whether any chunk has the given source.
func (s *VectorStore) SourceExists(_ context.Context, source string) (bool, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	c := s.coll()
	if c == nil {
		return false, nil
	}
	for _, r := range c.records {
		if r.chunk.Source() == source {
			return true, nil
		}
	}
	return false, nil
}

// DeleteBySource removes every chunk of source.
func (s *VectorStore) DeleteBySource(_ context.Context, source string) (int, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	c := s.coll()
	if c == nil {
		return 0, nil
	}
	n := 0
	for id, r := range c.records {
		if r.chunk.Source() == source {
			delete(c.records, id)
			n++
		}
	}
	return n, nil
}

// Clear removes every chunk and ingestion marker of this collection only.
func (s *VectorStore) Clear(_ context.Context) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	delete(s.db.collections, s.name)
	return nil
}

// Add upserts chunks by ID.
func (s *VectorStore) Add(_ context.Context, chunks []domain.Chunk) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	c := s.ensure()
	for _, ch := range chunks {
		if ch.ID == "" {
			return domain.NewConfigError("chunk id", nil, "is required")
		}
		s.db.seq++
		stored := ch
		stored.Metadata = maps.Clone(ch.Metadata)
		stored.Embedding = append([]float32(nil), ch.Embedding...)
		seq := s.db.seq
		if prev, ok := c.records[ch.ID]; ok {
			seq = prev.seq
		}
		c.records[ch.ID] = record{seq: seq, chunk: stored}
	}
	return nil
}

// SimilaritySearch returns the k nearest chunks by cosine similarity.
func (s *VectorStore) SimilaritySearch(_ context.Context, vector []float32, k int) ([]domain.RetrievedChunk, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	c := s.coll()
	if c == nil {
		return []domain.RetrievedChunk{}, nil
	}

	records := make([]record, 0, len(c.records))
	for _, r := range c.records {
		records = append(records, r)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].seq < records[j].seq })

	top := similarity.TopK(vector, records, func(r record) []float32 { return r.chunk.Embedding }, k)

	out := make([]domain.RetrievedChunk, len(top))
	for i, t := range top {
		out[i] = domain.RetrievedChunk{
			Content:  t.Item.chunk.Content,
			Metadata: maps.Clone(t.Item.chunk.Metadata),
			Score:    t.Score,
		}
	}
	return out, nil
}

// SetIngestionState records the marker for a source.
func (s *VectorStore) SetIngestionState(_ context.Context, state domain.IngestionState) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if state.UpdatedAt.IsZero() {
		state.UpdatedAt = time.Now()
	}
	s.ensure().ingestions[state.Source] = state
	return nil
}

// DeleteIngestionState removes the marker for a source.
func (s *VectorStore) DeleteIngestionState(_ context.Context, source string) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if c := s.coll(); c != nil {
		delete(c.ingestions, source)
	}
	return nil
}

// IngestionStates returns all markers ordered by source.
func (s *VectorStore) IngestionStates(_ context.Context) ([]domain.IngestionState, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	c := s.coll()
	if c == nil {
		return nil, nil
	}
	out := make([]domain.IngestionState, 0, len(c.ingestions))
	for _, st := range c.ingestions {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Source < out[j].Source })
	return out, nil
}

// Close is a no-op.
func (s *VectorStore) Close() error {
	return nil
}
