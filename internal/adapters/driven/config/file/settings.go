package file

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/custodia-labs/ragchat/internal/core/domain"
	"github.com/custodia-labs/ragchat/internal/core/ports/driven"
)

// Defaults applied when neither the environment nor config.toml set a value.
const (
	DefaultGoogleEmbeddingModel = "models/embedding-001"
	DefaultGoogleLLMModel       = "gemini-2.5-flash-lite"
	DefaultOpenAIBaseURL        = "https://api.openai.com/v1"
	DefaultOpenAIEmbeddingModel = "text-embedding-3-small"
	DefaultOpenAILLMModel       = "gpt-5-nano"
	DefaultCollection           = "documents"
	DefaultChunkSize            = 1000
	DefaultChunkOverlap         = 150
	DefaultBatchSize            = 16
	DefaultTopK                 = 10
	DefaultTemperature          = 0.0
	DefaultTimeoutSeconds       = 60
	DefaultRequestsPerSecond    = 5.0
)

// setting binds a config.toml key to its environment variable.
type setting struct {
	key string
	env string
}

// Known settings. The env name is also the parameter reported in errors.
var (
	keyProvider       = setting{"ai.provider", "AI_PROVIDER"}
	keyGoogleKey      = setting{"google.api_key", "GOOGLE_API_KEY"}
	keyGoogleEmbed    = setting{"google.embedding_model", "GOOGLE_EMBEDDING_MODEL"}
	keyGoogleLLM      = setting{"google.llm_model", "GOOGLE_LLM_MODEL"}
	keyOpenAIKey      = setting{"openai.api_key", "OPENAI_API_KEY"}
	keyOpenAIBaseURL  = setting{"openai.base_url", "OPENAI_BASE_URL"}
	keyOpenAIEmbed    = setting{"openai.embedding_model", "OPENAI_EMBEDDING_MODEL"}
	keyOpenAILLM      = setting{"openai.llm_model", "OPENAI_LLM_MODEL"}
	keyBackend        = setting{"store.backend", "VECTOR_STORE"}
	keyDatabaseURL    = setting{"store.database_url", "DATABASE_URL"}
	keyCollection     = setting{"store.collection", "PG_VECTOR_COLLECTION_NAME"}
	keyDataDir        = setting{"store.data_dir", "RAGCHAT_DATA_DIR"}
	keyChunkSize      = setting{"ingest.chunk_size", "CHUNK_SIZE"}
	keyChunkOverlap   = setting{"ingest.chunk_overlap", "CHUNK_OVERLAP"}
	keyBatchSize      = setting{"ingest.batch_size", "INGEST_BATCH_SIZE"}
	keyProjectRoot    = setting{"ingest.project_root", "PROJECT_ROOT"}
	keyTopK           = setting{"answer.top_k", "TOP_K"}
	keyTemperature    = setting{"answer.temperature", "RETRIEVAL_TEMPERATURE"}
	keyPromptPath     = setting{"answer.prompt_path", "PROMPT_TEMPLATE_PATH"}
	keyTimeoutSeconds = setting{"provider.timeout_seconds", "PROVIDER_TIMEOUT_SECONDS"}
	keyRPS            = setting{"provider.requests_per_second", "PROVIDER_RPS"}
)

// fieldParams maps validated struct fields to the parameter reported to users.
var fieldParams = map[string]string{
	"Settings.Provider":           keyProvider.env,
	"Settings.Store.Backend":      keyBackend.env,
	"Settings.Store.DatabaseURL":  keyDatabaseURL.env,
	"Settings.Store.Collection":   keyCollection.env,
	"Settings.Chunking.BatchSize": keyBatchSize.env,
	"Settings.Answer.TopK":        keyTopK.env,
	"Settings.Answer.Temperature": keyTemperature.env,
	"Settings.RequestTimeout":     keyTimeoutSeconds.env,
	"Settings.RequestsPerSecond":  keyRPS.env,
}

// LookupFunc resolves an environment variable. os.LookupEnv satisfies it.
type LookupFunc func(key string) (string, bool)

// Overrides carries command-line flags. Zero values leave a setting alone.
type Overrides struct {
	Store      string
	Collection string
	Provider   string
}

// LoadDotEnv loads a .env file into the process environment. A missing file
// is ignored and variables that are already set win.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// LoadSettings resolves settings with precedence flags > env > config.toml >
// defaults, then validates them. Invalid values are reported as
// *domain.ConfigError naming the environment variable.
func LoadSettings(store driven.ConfigStore, env LookupFunc, flags Overrides) (*domain.Settings, error) {
	if env == nil {
		env = os.LookupEnv
	}
	r := resolver{store: store, env: env}

	s := &domain.Settings{
		Provider: domain.AIProvider(strings.ToLower(r.str(keyProvider, ""))),
		Google: domain.ProviderCredentials{
			APIKey:         r.str(keyGoogleKey, ""),
			EmbeddingModel: r.str(keyGoogleEmbed, DefaultGoogleEmbeddingModel),
			LLMModel:       r.str(keyGoogleLLM, DefaultGoogleLLMModel),
		},
		OpenAI: domain.ProviderCredentials{
			APIKey:         r.str(keyOpenAIKey, ""),
			EmbeddingModel: r.str(keyOpenAIEmbed, DefaultOpenAIEmbeddingModel),
			LLMModel:       r.str(keyOpenAILLM, DefaultOpenAILLMModel),
			BaseURL:        r.str(keyOpenAIBaseURL, DefaultOpenAIBaseURL),
		},
		Store: domain.StoreSettings{
			DatabaseURL: r.str(keyDatabaseURL, ""),
			Collection:  r.str(keyCollection, DefaultCollection),
			DataDir:     r.str(keyDataDir, ""),
		},
		Chunking: domain.ChunkingSettings{
			Size:      r.int(keyChunkSize, DefaultChunkSize),
			Overlap:   r.int(keyChunkOverlap, DefaultChunkOverlap),
			BatchSize: r.int(keyBatchSize, DefaultBatchSize),
		},
		Answer: domain.AnswerSettings{
			TopK:        r.int(keyTopK, DefaultTopK),
			Temperature: r.float(keyTemperature, DefaultTemperature),
			PromptPath:  r.str(keyPromptPath, ""),
		},
		ProjectRoot:       r.str(keyProjectRoot, ""),
		RequestTimeout:    time.Duration(r.int(keyTimeoutSeconds, DefaultTimeoutSeconds)) * time.Second,
		RequestsPerSecond: r.float(keyRPS, DefaultRequestsPerSecond),
	}
	if r.err != nil {
		return nil, r.err
	}

	backend := r.str(keyBackend, "")
	if backend == "" {
		backend = string(domain.StoreSQLite)
		if s.Store.DatabaseURL != "" {
			backend = string(domain.StorePostgres)
		}
	}
	s.Store.Backend = domain.StoreBackend(strings.ToLower(backend))

	applyOverrides(s, flags)

	if s.Store.DataDir == "" && store != nil {
		s.Store.DataDir = filepath.Join(filepath.Dir(store.Path()), "data")
	}
	if s.ProjectRoot == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("get working directory: %w", err)
		}
		s.ProjectRoot = wd
	}

	if err := ValidateSettings(s); err != nil {
		return nil, err
	}
	return s, nil
}

func applyOverrides(s *domain.Settings, flags Overrides) {
	if flags.Store != "" {
		s.Store.Backend = domain.StoreBackend(strings.ToLower(flags.Store))
	}
	if flags.Collection != "" {
		s.Store.Collection = flags.Collection
	}
	if flags.Provider != "" {
		s.Provider = domain.AIProvider(strings.ToLower(flags.Provider))
	}
}

var validate = validator.New()

// ValidateSettings checks struct constraints and reports the first violation.
func ValidateSettings(s *domain.Settings) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("validate settings: %w", err)
	}

	fe := verrs[0]
	param, ok := fieldParams[fe.Namespace()]
	if !ok {
		param = fe.Namespace()
	}
	return domain.NewConfigError(param, fe.Value(), describeTag(fe))
}

// describeTag renders a validator failure as a short reason.
func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_if":
		return "is required"
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be at least " + fe.Param()
	case "lte":
		return "must be at most " + fe.Param()
	default:
		return "failed " + fe.Tag() + " check"
	}
}

// resolver reads a setting from the environment, then config.toml.
// The first parse failure is kept in err.
type resolver struct {
	store driven.ConfigStore
	env   LookupFunc
	err   error
}

func (r *resolver) envValue(s setting) (string, bool) {
	v, ok := r.env(s.env)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func (r *resolver) str(s setting, def string) string {
	if v, ok := r.envValue(s); ok {
		return v
	}
	if r.store != nil {
		if v := strings.TrimSpace(r.store.GetString(s.key)); v != "" {
			return v
		}
	}
	return def
}

func (r *resolver) int(s setting, def int) int {
	if v, ok := r.envValue(s); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			r.fail(domain.NewConfigError(s.env, v, "must be an integer"))
			return def
		}
		return n
	}
	if r.store != nil {
		if raw, ok := r.store.Get(s.key); ok {
			switch raw.(type) {
			case int, int64, float64:
				return r.store.GetInt(s.key)
			default:
				r.fail(domain.NewConfigError(s.key, raw, "must be an integer"))
			}
		}
	}
	return def
}

func (r *resolver) float(s setting, def float64) float64 {
	if v, ok := r.envValue(s); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			r.fail(domain.NewConfigError(s.env, v, "must be a number"))
			return def
		}
		return f
	}
	if r.store != nil {
		if raw, ok := r.store.Get(s.key); ok {
			switch raw.(type) {
			case int, int64, float64:
				return r.store.GetFloat(s.key)
			default:
				r.fail(domain.NewConfigError(s.key, raw, "must be a number"))
			}
		}
	}
	return def
}

func (r *resolver) fail(err error) {
	if r.err == nil {
		r.err = err
	}
}
