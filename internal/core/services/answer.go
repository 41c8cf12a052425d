package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/ragchat/internal/core/domain"
	"github.com/custodia-labs/ragchat/internal/core/ports/driven"
	"github.com/custodia-labs/ragchat/internal/core/ports/driving"
	"github.com/custodia-labs/ragchat/internal/logger"
)

// Ensure AnswerService implements the interface.
var _ driving.AnswerService = (*AnswerService)(nil)

// FallbackNotice opens the answer returned when generation fails.
const FallbackNotice = "The answer generation service is unavailable, so no answer could be generated. " +
	"The most relevant passages from your documents are shown below."

// AnswerService retrieves context and asks the generation provider for a grounded answer.
type AnswerService struct {
	repo     *Repository
	llm      driven.LLMService
	prompts  driven.PromptStore
	defaults domain.AnswerSettings
	now      func() time.Time
}

// NewAnswerService creates a new answer service.
func NewAnswerService(
	repo *Repository,
	llm driven.LLMService,
	prompts driven.PromptStore,
	defaults domain.AnswerSettings,
) *AnswerService {
	return &AnswerService{
		repo:     repo,
		llm:      llm,
		prompts:  prompts,
		defaults: defaults,
		now:      time.Now,
	}
}

// Answer retrieves the top-k chunks for question, renders the answer prompt
// and generates a reply. A generation failure does not fail the call: the
// answer then carries the retrieved context verbatim and Fallback is set.
func (s *AnswerService) Answer(ctx context.Context, question string, opts domain.AnswerOptions) (*domain.Answer, error) {
	logger.Section("Answer")
	start := s.now()

	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("%w: question is empty", domain.ErrInvalidInput)
	}

	if opts.TopK <= 0 {
		opts.TopK = s.defaults.TopK
	}
	if opts.Temperature < 0 {
		return nil, domain.NewConfigError("temperature", opts.Temperature, "must not be negative")
	}
	logger.Debug("Question: %q (top_k=%d, temperature=%.2f)", question, opts.TopK, opts.Temperature)

	if s.repo.Count(ctx) == 0 {
		return nil, domain.ErrEmptyCollection
	}

	// Step 1: retrieve.
	hits, err := s.repo.SimilaritySearch(ctx, question, opts.TopK)
	if err != nil {
		return nil, fmt.Errorf("retrieve context: %w", err)
	}
	logger.Debug("Retrieved %d chunks", len(hits))

	// Step 2: assemble context in retrieval order.
	contextBlock := JoinContext(hits)

	// Step 3: render.
	prompt, err := s.render(contextBlock, question)
	if err != nil {
		return nil, err
	}

	answer := &domain.Answer{
		Question:  question,
		Citations: Citations(hits),
		Context:   hits,
	}

	// Steps 4 and 5: generate, falling back to the raw context.
	text, genErr := s.generate(ctx, prompt, opts.Temperature)
	if genErr != nil {
		logger.Error(genErr, "Generation failed, returning retrieved context")
		answer.Text = FallbackAnswer(contextBlock)
		answer.Fallback = true
		answer.GenerationError = genErr.Error()
	} else {
		answer.Text = text
	}

	answer.Elapsed = s.now().Sub(start)
	logger.Info("Answered in %s with %d citations", answer.Elapsed, len(answer.Citations))

	return answer, nil
}

// generate calls the provider. Every failure, including an empty reply,
// is reported as ErrGenerationUnavailable.
func (s *AnswerService) generate(ctx context.Context, prompt string, temperature float64) (string, error) {
	if s.llm == nil {
		return "", fmt.Errorf("%w: no generation provider configured", domain.ErrGenerationUnavailable)
	}

	text, err := s.llm.Generate(ctx, prompt, driven.GenerateOptions{Temperature: temperature})
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrGenerationUnavailable, err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: empty response from %s", domain.ErrGenerationUnavailable, s.llm.ModelName())
	}
	return text, nil
}

func (s *AnswerService) render(contextBlock, question string) (string, error) {
	tmpl, err := s.prompts.Load(driven.PromptAnswer)
	if err != nil {
		return "", fmt.Errorf("load answer prompt: %w", err)
	}

	return strings.NewReplacer(
		driven.PlaceholderContext, contextBlock,
		driven.PlaceholderQuestion, question,
	).Replace(tmpl), nil
}

// JoinContext concatenates chunk contents separated by blank lines.
func JoinContext(hits []domain.RetrievedChunk) string {
	parts := make([]string, len(hits))
	for i, h := range hits {
		parts[i] = h.Content
	}
	return strings.Join(parts, "\n\n")
}

// FallbackAnswer builds the reply shown when generation is unavailable.
func FallbackAnswer(contextBlock string) string {
	if strings.TrimSpace(contextBlock) == "" {
		return FallbackNotice + "\n\n(no matching passages were found)"
	}
	return FallbackNotice + "\n\n" + contextBlock
}

// Citations returns one citation per distinct (source, page), in first-seen order.
func Citations(hits []domain.RetrievedChunk) []domain.Citation {
	seen := make(map[string]bool, len(hits))
	out := make([]domain.Citation, 0, len(hits))

	for _, h := range hits {
		c := domain.CitationFor(h)
		key := c.Key()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, c)
	}

	return out
}
