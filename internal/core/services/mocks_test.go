package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragchat/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/ragchat/internal/core/domain"
	"github.com/custodia-labs/ragchat/internal/core/ports/driven"
	"github.com/custodia-labs/ragchat/internal/postprocessors"
)

// --- Mock implementations ---

// mockEmbeddingService derives a small deterministic vector from letter counts.
type mockEmbeddingService struct {
	embedErr   error
	batchCalls int
	batchSizes []int
}

func letterVector(text string) []float32 {
	v := make([]float32, 8)
	for _, r := range strings.ToLower(text) {
		if r >= 'a' && r <= 'z' {
			v[(r-'a')%8]++
		}
	}
	return v
}

func (m *mockEmbeddingService) Embed(_ context.Context, text string) ([]float32, error) {
	if m.embedErr != nil {
		return nil, m.embedErr
	}
	return letterVector(text), nil
}

func (m *mockEmbeddingService) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	m.batchCalls++
	m.batchSizes = append(m.batchSizes, len(texts))
	if m.embedErr != nil {
		return nil, m.embedErr
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = letterVector(t)
	}
	return out, nil
}

func (m *mockEmbeddingService) Dimensions() int   { return 8 }
func (m *mockEmbeddingService) ModelName() string { return "mock-embed" }
func (m *mockEmbeddingService) Close() error      { return nil }

// mockLLMService records prompts and returns a canned reply.
type mockLLMService struct {
	reply        string
	err          error
	calls        int
	lastPrompt   string
	temperatures []float64
}

func (m *mockLLMService) Generate(_ context.Context, prompt string, opts driven.GenerateOptions) (string, error) {
	m.calls++
	m.lastPrompt = prompt
	m.temperatures = append(m.temperatures, opts.Temperature)
	if m.err != nil {
		return "", m.err
	}
	return m.reply, nil
}

func (m *mockLLMService) ModelName() string { return "mock-llm" }
func (m *mockLLMService) Close() error      { return nil }

// mockPromptStore returns a fixed template.
type mockPromptStore struct {
	template string
	err      error
}

func (m *mockPromptStore) Load(_ string) (string, error) {
	return m.template, m.err
}

func (m *mockPromptStore) Reload() {}

// mockLoader returns pages keyed by file base name.
type mockLoader struct {
	pages map[string][]domain.Page
	err   error
	calls int
}

func (m *mockLoader) Load(_ context.Context, path string) ([]domain.Page, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.pages[filepath.Base(path)], nil
}

func (m *mockLoader) Extensions() []string { return []string{".pdf"} }

// failingStore wraps a memory store and fails selected operations.
type failingStore struct {
	*memory.VectorStore
	readErr   error
	deleteErr error
	addErr    error
	addCalls  int
}

func (f *failingStore) Count(ctx context.Context) (int, error) {
	if f.readErr != nil {
		return 0, f.readErr
	}
	return f.VectorStore.Count(ctx)
}

func (f *failingStore) CountSources(ctx context.Context) (int, error) {
	if f.readErr != nil {
		return 0, f.readErr
	}
	return f.VectorStore.CountSources(ctx)
}

func (f *failingStore) ListSources(ctx context.Context) ([]string, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	return f.VectorStore.ListSources(ctx)
}

func (f *failingStore) SourceExists(ctx context.Context, source string) (bool, error) {
	if f.readErr != nil {
		return false, f.readErr
	}
	return f.VectorStore.SourceExists(ctx, source)
}

func (f *failingStore) IngestionStates(ctx context.Context) ([]domain.IngestionState, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	return f.VectorStore.IngestionStates(ctx)
}

func (f *failingStore) DeleteBySource(ctx context.Context, source string) (int, error) {
	if f.deleteErr != nil {
		return 0, f.deleteErr
	}
	return f.VectorStore.DeleteBySource(ctx, source)
}

func (f *failingStore) Clear(ctx context.Context) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	return f.VectorStore.Clear(ctx)
}

func (f *failingStore) Add(ctx context.Context, chunks []domain.Chunk) error {
	f.addCalls++
	if f.addErr != nil {
		return f.addErr
	}
	return f.VectorStore.Add(ctx, chunks)
}

var errBoom = errors.New("boom")

// --- Fixtures ---

type fixture struct {
	dir        string
	store      *failingStore
	embedder   *mockEmbeddingService
	loader     *mockLoader
	llm        *mockLLMService
	prompts    *mockPromptStore
	repo       *Repository
	ingest     *IngestionService
	answer     *AnswerService
	collection *CollectionService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		dir:      t.TempDir(),
		store:    &failingStore{VectorStore: memory.NewVectorStore(nil, "docs")},
		embedder: &mockEmbeddingService{},
		loader:   &mockLoader{pages: map[string][]domain.Page{}},
		llm:      &mockLLMService{reply: "The answer."},
		prompts:  &mockPromptStore{template: "Context:\n{context}\n\nQuestion: {question}"},
	}
	f.repo = NewRepository(f.store, f.embedder, "memory")
	f.ingest = NewIngestionService(f.repo, f.loader, postprocessors.Default, IngestionConfig{
		Chunking:    domain.ChunkingSettings{Size: 1000, Overlap: 150, BatchSize: domain.DefaultBatchSize},
		ProjectRoot: f.dir,
	})
	f.answer = NewAnswerService(f.repo, f.llm, f.prompts, domain.AnswerSettings{TopK: 10})
	f.collection = NewCollectionService(f.repo)
	return f
}

// addFile creates an empty file on disk and registers its pages with the loader.
func (f *fixture) addFile(t *testing.T, rel string, pages ...string) string {
	t.Helper()

	path := filepath.Join(f.dir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4"), 0o600))

	ps := make([]domain.Page, len(pages))
	for i, text := range pages {
		ps[i] = domain.Page{
			Number:   i,
			Text:     text,
			Metadata: map[string]any{domain.MetaPage: i, domain.MetaTotalPages: len(pages)},
		}
	}
	f.loader.pages[filepath.Base(path)] = ps
	return path
}

// pageText produces roughly n characters of distinct words.
func pageText(prefix string, n int) string {
	var b strings.Builder
	for i := 0; b.Len() < n; i++ {
		if i > 0 {
			b.WriteString(" ")
		}
		b.WriteString(prefix)
		b.WriteString(strings.Repeat("x", i%7))
	}
	return b.String()
}
