// Package ai provides factory functions for creating AI service adapters.
package ai

import (
	"context"
	"fmt"

	googleembed "github.com/custodia-labs/ragchat/internal/adapters/driven/embedding/google"
	openaiembed "github.com/custodia-labs/ragchat/internal/adapters/driven/embedding/openai"
	googlellm "github.com/custodia-labs/ragchat/internal/adapters/driven/llm/google"
	openaillm "github.com/custodia-labs/ragchat/internal/adapters/driven/llm/openai"
	"github.com/custodia-labs/ragchat/internal/core/domain"
	"github.com/custodia-labs/ragchat/internal/core/ports/driven"
	"github.com/custodia-labs/ragchat/internal/logger"
)

// InitResult contains the result of AI service initialisation.
type InitResult struct {
	Provider         domain.AIProvider
	EmbeddingService driven.EmbeddingService
	LLMService       *GenerationProvider
}

// Close releases all resources held by InitResult.
func (r *InitResult) Close() {
	if r.EmbeddingService != nil {
		r.EmbeddingService.Close()
	}
	if r.LLMService != nil {
		r.LLMService.Close()
	}
}

// ResolveProvider picks the backend for embeddings and generation.
// A forced provider wins but still needs its key. Otherwise the first
// provider with a key is used, Google before OpenAI.
func ResolveProvider(forced domain.AIProvider, googleKey, openaiKey string) (domain.AIProvider, error) {
	keys := map[domain.AIProvider]string{
		domain.AIProviderGoogle: googleKey,
		domain.AIProviderOpenAI: openaiKey,
	}

	if forced != "" {
		if !forced.IsValid() {
			return "", domain.NewConfigError("AI_PROVIDER", string(forced), "must be one of google, openai")
		}
		if keys[forced] == "" {
			return "", domain.NewConfigError(forced.CredentialName(), nil,
				fmt.Sprintf("is not set (required by AI_PROVIDER=%s)", forced))
		}
		return forced, nil
	}

	for _, p := range []domain.AIProvider{domain.AIProviderGoogle, domain.AIProviderOpenAI} {
		if keys[p] != "" {
			return p, nil
		}
	}
	return "", domain.NewConfigError("GOOGLE_API_KEY/OPENAI_API_KEY", nil, "is not set")
}

// Init resolves the provider and constructs both services.
// Construction failures are returned as-is; nothing downstream works without them.
func Init(ctx context.Context, settings *domain.Settings) (*InitResult, error) {
	provider, err := ResolveProvider(settings.Provider, settings.Google.APIKey, settings.OpenAI.APIKey)
	if err != nil {
		return nil, err
	}
	logger.Debug("using %s for embeddings and generation", provider.Description())

	embedder, err := CreateEmbeddingService(ctx, provider, settings)
	if err != nil {
		return nil, fmt.Errorf("create embedding service: %w", err)
	}

	factory := func(ctx context.Context) (driven.LLMService, error) {
		return CreateLLMService(ctx, provider, settings)
	}
	llm, err := NewGenerationProvider(ctx, factory, settings.Answer.Temperature)
	if err != nil {
		embedder.Close()
		return nil, fmt.Errorf("create generation service: %w", err)
	}

	return &InitResult{
		Provider:         provider,
		EmbeddingService: NewRateLimitedEmbedding(embedder, settings.RequestsPerSecond),
		LLMService:       llm,
	}, nil
}

// CreateEmbeddingService creates the embedding service for provider.
func CreateEmbeddingService(ctx context.Context, provider domain.AIProvider, settings *domain.Settings) (driven.EmbeddingService, error) {
	switch provider {
	case domain.AIProviderGoogle:
		return googleembed.NewEmbeddingService(ctx, googleembed.Config{
			APIKey:  settings.Google.APIKey,
			Model:   settings.Google.EmbeddingModel,
			BaseURL: settings.Google.BaseURL,
			Timeout: settings.RequestTimeout,
		})

	case domain.AIProviderOpenAI:
		return openaiembed.NewEmbeddingService(openaiembed.Config{
			APIKey:  settings.OpenAI.APIKey,
			BaseURL: settings.OpenAI.BaseURL,
			Model:   settings.OpenAI.EmbeddingModel,
			Timeout: settings.RequestTimeout,
		})

	default:
		return nil, fmt.Errorf("%w: embedding provider %q", domain.ErrUnsupportedType, provider)
	}
}

// CreateLLMService creates the generation service for provider.
func CreateLLMService(ctx context.Context, provider domain.AIProvider, settings *domain.Settings) (driven.LLMService, error) {
	switch provider {
	case domain.AIProviderGoogle:
		return googlellm.NewLLMService(ctx, googlellm.Config{
			APIKey:  settings.Google.APIKey,
			Model:   settings.Google.LLMModel,
			BaseURL: settings.Google.BaseURL,
			Timeout: settings.RequestTimeout,
		})

	case domain.AIProviderOpenAI:
		return openaillm.NewLLMService(openaillm.LLMConfig{
			APIKey:  settings.OpenAI.APIKey,
			BaseURL: settings.OpenAI.BaseURL,
			Model:   settings.OpenAI.LLMModel,
			Timeout: settings.RequestTimeout,
		})

	default:
		return nil, fmt.Errorf("%w: LLM provider %q", domain.ErrUnsupportedType, provider)
	}
}
