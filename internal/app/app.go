// Package app wires adapters and services into a running application.
// Commands that only inspect the collection never need API keys, so the
// vector store and the AI providers are each built on first use.
package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/custodia-labs/ragchat/internal/adapters/driven/ai"
	"github.com/custodia-labs/ragchat/internal/adapters/driven/config/file"
	"github.com/custodia-labs/ragchat/internal/adapters/driven/loader/pdf"
	"github.com/custodia-labs/ragchat/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/ragchat/internal/adapters/driven/storage/postgres"
	"github.com/custodia-labs/ragchat/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/ragchat/internal/core/domain"
	"github.com/custodia-labs/ragchat/internal/core/ports/driven"
	"github.com/custodia-labs/ragchat/internal/core/ports/driving"
	"github.com/custodia-labs/ragchat/internal/core/services"
	"github.com/custodia-labs/ragchat/internal/logger"
	"github.com/custodia-labs/ragchat/internal/postprocessors"
)

// Options configures application start-up.
type Options struct {
	// ConfigDir holds config.toml, prompts/ and the default data directory.
	// Empty means ~/.ragchat.
	ConfigDir string

	// DotEnv is the .env file to load. Empty means ./.env.
	DotEnv string

	// Env resolves environment variables. Nil means os.LookupEnv.
	Env file.LookupFunc

	// Overrides are command-line flags.
	Overrides file.Overrides
}

// App owns the configuration, the vector store and the AI providers.
type App struct {
	settings *domain.Settings
	config   *file.ConfigStore
	prompts  *file.PromptStore

	mu    sync.Mutex
	store driven.VectorStore
	ai    *ai.InitResult
	memDB *memory.DB
}

// New loads configuration and validates it. No backend is contacted.
func New(opts Options) (*App, error) {
	if err := file.LoadDotEnv(opts.DotEnv); err != nil {
		logger.Warn("Ignoring .env: %v", err)
	}

	config, err := file.NewConfigStore(opts.ConfigDir)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}

	settings, err := file.LoadSettings(config, opts.Env, opts.Overrides)
	if err != nil {
		return nil, err
	}

	prompts, err := file.NewPromptStore(filepath.Join(config.Dir(), "prompts"))
	if err != nil {
		return nil, fmt.Errorf("open prompts: %w", err)
	}
	if settings.Answer.PromptPath != "" {
		prompts.SetOverride(driven.PromptAnswer, settings.Answer.PromptPath)
	}

	logger.Debug("Config: %s (store=%s, collection=%s)",
		config.Path(), settings.Store.Backend, settings.Store.Collection)

	return &App{
		settings: settings,
		config:   config,
		prompts:  prompts,
	}, nil
}

// Settings returns the effective settings.
func (a *App) Settings() *domain.Settings {
	return a.settings
}

// ConfigPath returns the config.toml path.
func (a *App) ConfigPath() string {
	return a.config.Path()
}

// ReloadPrompts drops cached prompt templates.
func (a *App) ReloadPrompts() {
	a.prompts.Reload()
}

// Collection returns the collection management service.
func (a *App) Collection(_ context.Context) (driving.CollectionService, error) {
	repo, err := a.repository(nil)
	if err != nil {
		return nil, err
	}
	return services.NewCollectionService(repo), nil
}

// Ingestion returns the ingestion service. Requires a provider API key.
func (a *App) Ingestion(ctx context.Context) (driving.IngestionService, error) {
	result, err := a.providers(ctx)
	if err != nil {
		return nil, err
	}
	repo, err := a.repository(result.EmbeddingService)
	if err != nil {
		return nil, err
	}

	pipeline := func(params domain.ChunkingParams) driven.PostProcessorPipeline {
		return postprocessors.Default(params)
	}
	return services.NewIngestionService(repo, pdf.New(), pipeline, services.IngestionConfig{
		Chunking:    a.settings.Chunking,
		ProjectRoot: a.settings.ProjectRoot,
	}), nil
}

// Answer returns the answer service. Requires a provider API key.
func (a *App) Answer(ctx context.Context) (driving.AnswerService, error) {
	result, err := a.providers(ctx)
	if err != nil {
		return nil, err
	}
	repo, err := a.repository(result.EmbeddingService)
	if err != nil {
		return nil, err
	}
	return services.NewAnswerService(repo, result.LLMService, a.prompts, a.settings.Answer), nil
}

// Provider returns the resolved AI provider, initialising it if needed.
func (a *App) Provider(ctx context.Context) (domain.AIProvider, error) {
	result, err := a.providers(ctx)
	if err != nil {
		return "", err
	}
	return result.Provider, nil
}

// Close releases the store and the providers.
func (a *App) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.ai != nil {
		a.ai.Close()
		a.ai = nil
	}
	var err error
	if a.store != nil {
		err = a.store.Close()
		a.store = nil
	}
	return err
}

func (a *App) repository(embedder driven.EmbeddingService) (*services.Repository, error) {
	store, err := a.vectorStore()
	if err != nil {
		return nil, err
	}
	return services.NewRepository(store, embedder, string(a.settings.Store.Backend)), nil
}

func (a *App) providers(ctx context.Context) (*ai.InitResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.ai != nil {
		return a.ai, nil
	}
	result, err := ai.Init(ctx, a.settings)
	if err != nil {
		return nil, err
	}
	a.ai = result
	return result, nil
}

func (a *App) vectorStore() (driven.VectorStore, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.store != nil {
		return a.store, nil
	}
	store, err := OpenVectorStore(a.settings.Store, a.memoryDB())
	if err != nil {
		return nil, err
	}
	a.store = store
	return store, nil
}

// memoryDB returns the process-wide in-memory database (caller holds mu).
func (a *App) memoryDB() *memory.DB {
	if a.memDB == nil {
		a.memDB = memory.NewDB()
	}
	return a.memDB
}

// OpenVectorStore opens the configured backend scoped to the collection.
func OpenVectorStore(cfg domain.StoreSettings, memDB *memory.DB) (driven.VectorStore, error) {
	switch cfg.Backend {
	case domain.StoreSQLite:
		store, err := sqlite.NewStore(cfg.DataDir)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		logger.Debug("SQLite store at %s", store.Path())
		return store.VectorStore(cfg.Collection), nil
	case domain.StorePostgres:
		return postgres.New(postgres.Config{DatabaseURL: cfg.DatabaseURL, Collection: cfg.Collection})
	case domain.StoreMemory:
		if memDB == nil {
			memDB = memory.NewDB()
		}
		return memory.NewVectorStore(memDB, cfg.Collection), nil
	default:
		return nil, domain.NewConfigError("VECTOR_STORE", string(cfg.Backend), "must be one of: sqlite, postgres, memory")
	}
}

// IsUserError reports whether err should be shown without a stack of context.
func IsUserError(err error) bool {
	return errors.Is(err, domain.ErrConfiguration) ||
		errors.Is(err, domain.ErrNotFound) ||
		errors.Is(err, domain.ErrInvalidInput) ||
		errors.Is(err, domain.ErrEmptyCollection)
}
