package services

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/ragchat/internal/core/domain"
	"github.com/custodia-labs/ragchat/internal/core/ports/driven"
	"github.com/custodia-labs/ragchat/internal/core/ports/driving"
	"github.com/custodia-labs/ragchat/internal/logger"
)

// Ensure IngestionService implements the interface.
var _ driving.IngestionService = (*IngestionService)(nil)

// IngestionConfig holds the ingestion defaults.
type IngestionConfig struct {
	Chunking    domain.ChunkingSettings
	ProjectRoot string
}

// IngestionService loads, splits, enriches and persists documents.
type IngestionService struct {
	repo     *Repository
	loader   driven.DocumentLoader
	pipeline driven.PipelineFactory
	cfg      IngestionConfig
	now      func() time.Time
}

// NewIngestionService creates a new ingestion service.
func NewIngestionService(
	repo *Repository,
	loader driven.DocumentLoader,
	pipeline driven.PipelineFactory,
	cfg IngestionConfig,
) *IngestionService {
	if cfg.Chunking.BatchSize <= 0 {
		cfg.Chunking.BatchSize = domain.DefaultBatchSize
	}
	return &IngestionService{
		repo:     repo,
		loader:   loader,
		pipeline: pipeline,
		cfg:      cfg,
		now:      time.Now,
	}
}

// Exists reports whether the document at path is already indexed.
func (s *IngestionService) Exists(ctx context.Context, path string) (string, bool, error) {
	source, err := NormalizeSource(path, s.cfg.ProjectRoot)
	if err != nil {
		return "", false, err
	}
	return source, s.repo.SourceExists(ctx, source), nil
}

// Ingest runs validate, load and split, enrich, pre-clean, persist and report.
// Any step failure aborts the run. Chunks from an earlier ingestion of the
// same source are removed before the new ones are written.
//
//nolint:gocognit,gocyclo // Pipeline orchestration with sequential steps
func (s *IngestionService) Ingest(
	ctx context.Context, path string, opts domain.IngestOptions,
) (*domain.IngestionReport, error) {
	logger.Section("Ingestion")
	start := s.now()

	// Step 1: validate before any I/O or provider call.
	params := s.params(opts)
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if err := s.validatePath(path); err != nil {
		return nil, err
	}

	source, err := NormalizeSource(path, s.cfg.ProjectRoot)
	if err != nil {
		return nil, err
	}
	filename := filepath.Base(filepath.FromSlash(source))
	logger.Debug("Source: %s (chunk_size=%d, chunk_overlap=%d)", source, params.Size, params.Overlap)
	if owner := s.nameOwner(ctx, source, filename); owner != "" {
		return nil, fmt.Errorf("%w: %s is already indexed as %s; remove it first or rename %s",
			domain.ErrSourceConflict, filename, owner, source)
	}

	// Step 2: load and split.
	pages, err := s.loader.Load(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", filename, err)
	}
	logger.Debug("Loaded %d pages", len(pages))

	doc := &domain.SourceDocument{Source: source, Filename: filename, Pages: pages}

	// Step 3: enrich. The pipeline both splits and numbers chunks.
	chunks, err := s.pipeline(params).Process(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("process %s: %w", filename, err)
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrEmptyDocument, filename)
	}
	logger.Info("Split %s into %d chunks", filename, len(chunks))

	runID := uuid.NewString()
	if err := s.repo.SetIngestionState(ctx, domain.IngestionState{
		Source:         source,
		RunID:          runID,
		ExpectedChunks: len(chunks),
		UpdatedAt:      s.now(),
	}); err != nil {
		return nil, err
	}

	// Step 4: pre-clean.
	removed, err := s.repo.DeleteBySource(ctx, source)
	if err != nil {
		return nil, err
	}

	// Step 5: persist in sequential batches.
	batchSize := s.cfg.Chunking.BatchSize
	if opts.BatchSize > 0 {
		batchSize = opts.BatchSize
	}
	for i := 0; i < len(chunks); i += batchSize {
		end := min(i+batchSize, len(chunks))
		if err := s.repo.Add(ctx, chunks[i:end]); err != nil {
			return nil, fmt.Errorf("persist batch %d-%d of %s: %w", i, end-1, filename, err)
		}
		logger.Debug("Persisted chunks %d-%d of %d", i, end-1, len(chunks))
		if opts.Progress != nil {
			opts.Progress(end, len(chunks))
		}
	}

	if err := s.repo.SetIngestionState(ctx, domain.IngestionState{
		Source:         source,
		RunID:          runID,
		ExpectedChunks: len(chunks),
		Complete:       true,
		UpdatedAt:      s.now(),
	}); err != nil {
		return nil, err
	}

	// Step 6: report.
	total := 0
	for _, c := range chunks {
		total += len([]rune(c.Content))
	}

	report := &domain.IngestionReport{
		Source:           source,
		Filename:         filename,
		Collection:       s.repo.Collection(),
		RunID:            runID,
		Pages:            len(pages),
		Chunks:           len(chunks),
		AverageChunkSize: total / len(chunks),
		FirstID:          chunks[0].ID,
		LastID:           chunks[len(chunks)-1].ID,
		Replaced:         removed > 0,
		Elapsed:          s.now().Sub(start),
	}
	logger.Info("Ingested %s: %d chunks in %s", filename, report.Chunks, report.Elapsed)

	return report, nil
}

// nameOwner returns the indexed source, other than source, whose file name
// is filename. Chunk ids are "{filename}-{i}", so ingesting a second path
// with the same name would overwrite the first one's chunks.
func (s *IngestionService) nameOwner(ctx context.Context, source, filename string) string {
	for _, existing := range s.repo.ListSources(ctx) {
		if existing != source && filepath.Base(filepath.FromSlash(existing)) == filename {
			return existing
		}
	}
	return ""
}

// params merges per-call overrides with the configured defaults.
func (s *IngestionService) params(opts domain.IngestOptions) domain.ChunkingParams {
	p := s.cfg.Chunking.Params()
	if opts.ChunkSize != nil {
		p.Size = *opts.ChunkSize
	}
	if opts.ChunkOverlap != nil {
		p.Overlap = *opts.ChunkOverlap
	}
	return p
}

func (s *IngestionService) validatePath(p string) error {
	if strings.TrimSpace(p) == "" {
		return fmt.Errorf("%w: file path is empty", domain.ErrInvalidInput)
	}

	info, err := os.Stat(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.NewNotFoundError("file", p)
		}
		return fmt.Errorf("stat %s: %w", p, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", domain.ErrInvalidInput, p)
	}

	ext := strings.ToLower(filepath.Ext(p))
	if !slices.Contains(s.loader.Extensions(), ext) {
		return fmt.Errorf("%w: %s (accepted: %s)",
			domain.ErrUnsupportedType, filepath.Base(p), strings.Join(s.loader.Extensions(), ", "))
	}

	return nil
}
