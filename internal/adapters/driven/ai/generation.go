package ai

import (
	"context"
	"errors"
	"sync"

	"github.com/custodia-labs/ragchat/internal/core/domain"
	"github.com/custodia-labs/ragchat/internal/core/ports/driven"
	"github.com/custodia-labs/ragchat/internal/logger"
)

// Ensure GenerationProvider implements the interface.
var _ driven.LLMService = (*GenerationProvider)(nil)

// LLMFactory constructs a generation service.
type LLMFactory func(ctx context.Context) (driven.LLMService, error)

// GenerationProvider holds one generation service bound to a temperature.
// A call with a different temperature closes the current instance and builds
// a fresh one through the factory.
type GenerationProvider struct {
	mu          sync.Mutex
	factory     LLMFactory
	current     driven.LLMService
	temperature float64
	builds      int
}

// NewGenerationProvider builds the initial instance for temperature.
func NewGenerationProvider(ctx context.Context, factory LLMFactory, temperature float64) (*GenerationProvider, error) {
	p := &GenerationProvider{factory: factory}
	if err := p.rebuild(ctx, temperature); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *GenerationProvider) rebuild(ctx context.Context, temperature float64) error {
	svc, err := p.factory(ctx)
	if err != nil {
		return err
	}
	if p.current != nil {
		p.current.Close()
	}
	p.current = svc
	p.temperature = temperature
	p.builds++
	logger.Debug("generation provider %s ready (temperature %.2f)", svc.ModelName(), temperature)
	return nil
}

// Generate runs the prompt on the instance bound to opts.Temperature.
func (p *GenerationProvider) Generate(ctx context.Context, prompt string, opts driven.GenerateOptions) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current == nil || opts.Temperature != p.temperature {
		if err := p.rebuild(ctx, opts.Temperature); err != nil {
			return "", err
		}
	}

	out, err := p.current.Generate(ctx, prompt, driven.GenerateOptions{
		MaxTokens:   opts.MaxTokens,
		Temperature: p.temperature,
	})
	if errors.Is(err, domain.ErrRateLimited) {
		logger.Warn("generation provider is rate limiting requests; wait a minute or check the plan quota of %s",
			p.current.ModelName())
	}
	return out, err
}

// Temperature returns the temperature of the current instance.
func (p *GenerationProvider) Temperature() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.temperature
}

// ModelName returns the name of the current model.
func (p *GenerationProvider) ModelName() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return ""
	}
	return p.current.ModelName()
}

// Close releases the current instance.
func (p *GenerationProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return nil
	}
	err := p.current.Close()
	p.current = nil
	return err
}
