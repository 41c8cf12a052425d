package memory

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragchat/internal/core/domain"
)

func chunk(source string, i int, vec ...float32) domain.Chunk {
	id := fmt.Sprintf("%s-%d", source, i)
	return domain.Chunk{
		ID:        id,
		Content:   "content of " + id,
		Index:     i,
		Embedding: vec,
		Metadata: map[string]any{
			domain.MetaSource:  source,
			domain.MetaChunkID: id,
			domain.MetaPage:    i,
		},
	}
}

func TestVectorStore_EmptyCollection(t *testing.T) {
	s := NewVectorStore(nil, "docs")
	ctx := context.Background()

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	sources, err := s.ListSources(ctx)
	require.NoError(t, err)
	assert.Empty(t, sources)

	hits, err := s.SimilaritySearch(ctx, []float32{1, 0}, 3)
	require.NoError(t, err)
	assert.Empty(t, hits)

	removed, err := s.DeleteBySource(ctx, "missing.pdf")
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestVectorStore_AddUpsertsByID(t *testing.T) {
	s := NewVectorStore(nil, "docs")
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, []domain.Chunk{chunk("a.pdf", 0, 1, 0), chunk("a.pdf", 1, 0, 1)}))
	require.NoError(t, s.Add(ctx, []domain.Chunk{chunk("a.pdf", 0, 1, 0), chunk("a.pdf", 1, 0, 1)}))

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestVectorStore_AddRequiresID(t *testing.T) {
	s := NewVectorStore(nil, "docs")

	err := s.Add(context.Background(), []domain.Chunk{{Content: "x"}})

	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestVectorStore_SourcesAndDelete(t *testing.T) {
	s := NewVectorStore(nil, "docs")
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, []domain.Chunk{
		chunk("b.pdf", 0, 1, 0),
		chunk("a.pdf", 0, 1, 0),
		chunk("a.pdf", 1, 1, 0),
	}))

	sources, err := s.ListSources(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.pdf", "b.pdf"}, sources)

	count, err := s.CountSources(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	ok, err := s.SourceExists(ctx, "a.pdf")
	require.NoError(t, err)
	assert.True(t, ok)

	removed, err := s.DeleteBySource(ctx, "a.pdf")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	ok, err = s.SourceExists(ctx, "a.pdf")
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestVectorStore_CollectionsAreIsolated(t *testing.T) {
	db := NewDB()
	docs := NewVectorStore(db, "docs")
	other := NewVectorStore(db, "other")
	ctx := context.Background()

	require.NoError(t, docs.Add(ctx, []domain.Chunk{chunk("a.pdf", 0, 1, 0)}))
	require.NoError(t, other.Add(ctx, []domain.Chunk{chunk("a.pdf", 0, 1, 0), chunk("a.pdf", 1, 1, 0)}))

	require.NoError(t, docs.Clear(ctx))

	n, err := docs.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = other.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestVectorStore_SimilaritySearch(t *testing.T) {
	s := NewVectorStore(nil, "docs")
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, []domain.Chunk{
		chunk("a.pdf", 0, 0, 1),
		chunk("a.pdf", 1, 1, 0),
		chunk("a.pdf", 2, 1, 1),
	}))

	hits, err := s.SimilaritySearch(ctx, []float32{1, 0}, 2)

	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "content of a.pdf-1", hits[0].Content)
	assert.Equal(t, "content of a.pdf-2", hits[1].Content)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-9)
	assert.Equal(t, "a.pdf", hits[0].Metadata[domain.MetaSource])
}

func TestVectorStore_StoresCopies(t *testing.T) {
	s := NewVectorStore(nil, "docs")
	ctx := context.Background()
	c := chunk("a.pdf", 0, 1, 0)

	require.NoError(t, s.Add(ctx, []domain.Chunk{c}))
	c.Metadata[domain.MetaSource] = "changed.pdf"

	ok, err := s.SourceExists(ctx, "a.pdf")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVectorStore_IngestionStates(t *testing.T) {
	s := NewVectorStore(nil, "docs")
	ctx := context.Background()

	require.NoError(t, s.SetIngestionState(ctx, domain.IngestionState{Source: "b.pdf", RunID: "r1"}))
	require.NoError(t, s.SetIngestionState(ctx, domain.IngestionState{Source: "a.pdf", RunID: "r2", Complete: true}))

	states, err := s.IngestionStates(ctx)
	require.NoError(t, err)
	require.Len(t, states, 2)
	assert.Equal(t, "a.pdf", states[0].Source)
	assert.True(t, states[0].Complete)
	assert.False(t, states[1].UpdatedAt.IsZero())

	require.NoError(t, s.DeleteIngestionState(ctx, "b.pdf"))
	states, err = s.IngestionStates(ctx)
	require.NoError(t, err)
	assert.Len(t, states, 1)

	require.NoError(t, s.Clear(ctx))
	states, err = s.IngestionStates(ctx)
	require.NoError(t, err)
	assert.Empty(t, states)
}
