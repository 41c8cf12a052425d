package driven

import "context"

// LLMService produces natural-language completions.
//
// Implementations include:
//   - Google Gemini (gemini-2.5-flash-lite)
//   - OpenAI (gpt-5-nano, gpt-4o-mini)
type LLMService interface {
	// Generate produces text completion from a prompt.
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)

	// ModelName returns the name of the LLM model being used.
	ModelName() string

	// Close releases resources.
	Close() error
}

// GenerateOptions configures text generation behaviour.
type GenerateOptions struct {
	// MaxTokens is the maximum number of tokens to generate. Zero leaves the provider default.
	MaxTokens int

	// Temperature controls randomness (0.0 = deterministic).
	Temperature float64
}
