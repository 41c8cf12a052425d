package domain

import "time"

const unknownDescription = "Unknown"

// AIProvider identifies a backend for embeddings and generation.
type AIProvider string

// Available AI providers, in credential priority order.
const (
	// AIProviderGoogle is the Gemini API.
	AIProviderGoogle AIProvider = "google"

	// AIProviderOpenAI is the OpenAI cloud API.
	AIProviderOpenAI AIProvider = "openai"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderGoogle, AIProviderOpenAI:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// CredentialName returns the environment variable holding the provider API key.
func (p AIProvider) CredentialName() string {
	switch p {
	case AIProviderGoogle:
		return "GOOGLE_API_KEY"
	case AIProviderOpenAI:
		return "OPENAI_API_KEY"
	default:
		return ""
	}
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderGoogle:
		return "Google Gemini (cloud)"
	case AIProviderOpenAI:
		return "OpenAI (cloud)"
	default:
		return unknownDescription
	}
}

// StoreBackend identifies a vector store implementation.
type StoreBackend string

// Available vector store backends.
const (
	StoreSQLite   StoreBackend = "sqlite"
	StorePostgres StoreBackend = "postgres"
	StoreMemory   StoreBackend = "memory"
)

// IsValid returns true if the backend is recognised.
func (b StoreBackend) IsValid() bool {
	switch b {
	case StoreSQLite, StorePostgres, StoreMemory:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (b StoreBackend) String() string {
	return string(b)
}

// ProviderCredentials holds the key and model names for one provider.
type ProviderCredentials struct {
	APIKey         string
	EmbeddingModel string
	LLMModel       string

	// BaseURL overrides the API endpoint (OpenAI-compatible servers).
	BaseURL string
}

// IsConfigured returns true if an API key is present.
func (c ProviderCredentials) IsConfigured() bool {
	return c.APIKey != ""
}

// StoreSettings configures the vector store.
type StoreSettings struct {
	Backend     StoreBackend `validate:"required,oneof=sqlite postgres memory"`
	DatabaseURL string       `validate:"required_if=Backend postgres"`
	Collection  string       `validate:"required"`
	DataDir     string
}

// ChunkingSettings configures ingestion.
type ChunkingSettings struct {
	Size      int
	Overlap   int
	BatchSize int `validate:"gt=0"`
}

// Params returns the splitter parameters.
func (c ChunkingSettings) Params() ChunkingParams {
	return ChunkingParams{Size: c.Size, Overlap: c.Overlap}
}

// AnswerSettings configures the answer pipeline.
type AnswerSettings struct {
	TopK        int     `validate:"gt=0"`
	Temperature float64 `validate:"gte=0,lte=2"`

	// PromptPath is an optional prompt template override file.
	PromptPath string
}

// Settings is the validated runtime configuration.
type Settings struct {
	// Provider forces a backend. Empty selects by credential priority.
	Provider AIProvider `validate:"omitempty,oneof=google openai"`

	Google ProviderCredentials
	OpenAI ProviderCredentials

	Store    StoreSettings
	Chunking ChunkingSettings
	Answer   AnswerSettings

	// ProjectRoot anchors relative source identifiers.
	ProjectRoot string

	// RequestTimeout bounds each provider request.
	RequestTimeout time.Duration `validate:"gt=0"`

	// RequestsPerSecond paces embedding requests.
	RequestsPerSecond float64 `validate:"gt=0"`
}

// Credentials returns the credentials for the given provider.
func (s *Settings) Credentials(p AIProvider) ProviderCredentials {
	switch p {
	case AIProviderGoogle:
		return s.Google
	case AIProviderOpenAI:
		return s.OpenAI
	default:
		return ProviderCredentials{}
	}
}
