package ai

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/ragchat/internal/adapters/driven/gemini"
	"github.com/custodia-labs/ragchat/internal/core/domain"
	"github.com/custodia-labs/ragchat/internal/core/ports/driven"
	"github.com/custodia-labs/ragchat/internal/logger"
)

// Ensure RateLimitedEmbedding implements the interface.
var _ driven.EmbeddingService = (*RateLimitedEmbedding)(nil)

// Retry behaviour for rate-limited embedding requests.
const (
	DefaultMaxRetries     = 3
	DefaultInitialBackoff = 5 * time.Second
	DefaultMaxBackoff     = 60 * time.Second

	// DefaultRequestsPerSecond is used when a non-positive rate is given.
	DefaultRequestsPerSecond = 5.0
)

// RateLimitedEmbedding paces requests to an embedding service with a token
// bucket and retries requests rejected with domain.ErrRateLimited.
type RateLimitedEmbedding struct {
	next    driven.EmbeddingService
	limiter *rate.Limiter

	mu      sync.Mutex
	retryAt time.Time

	maxRetries int
	backoff    time.Duration
	maxBackoff time.Duration
	sleep      func(ctx context.Context, d time.Duration) error
}

// NewRateLimitedEmbedding wraps next with a limiter of rps requests per second.
func NewRateLimitedEmbedding(next driven.EmbeddingService, rps float64) *RateLimitedEmbedding {
	if rps <= 0 {
		rps = DefaultRequestsPerSecond
	}
	return &RateLimitedEmbedding{
		next:       next,
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		maxRetries: DefaultMaxRetries,
		backoff:    DefaultInitialBackoff,
		maxBackoff: DefaultMaxBackoff,
		sleep:      sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// wait blocks for any backoff window and then for a token.
func (r *RateLimitedEmbedding) wait(ctx context.Context) error {
	r.mu.Lock()
	retryAt := r.retryAt
	r.mu.Unlock()

	if d := time.Until(retryAt); d > 0 {
		if err := r.sleep(ctx, d); err != nil {
			return err
		}
	}
	return r.limiter.Wait(ctx)
}

// recordRateLimit opens a backoff window for attempt and returns its length.
func (r *RateLimitedEmbedding) recordRateLimit(attempt int, err error) time.Duration {
	delay := gemini.RetryDelay(err)
	if delay <= 0 {
		delay = r.backoff << attempt
	}
	if delay > r.maxBackoff {
		delay = r.maxBackoff
	}

	r.mu.Lock()
	r.retryAt = time.Now().Add(delay)
	r.mu.Unlock()
	return delay
}

func (r *RateLimitedEmbedding) do(ctx context.Context, call func() error) error {
	for attempt := 0; ; attempt++ {
		if err := r.wait(ctx); err != nil {
			return err
		}
		err := call()
		if err == nil || !errors.Is(err, domain.ErrRateLimited) || attempt >= r.maxRetries {
			if errors.Is(err, domain.ErrRateLimited) {
				logger.Warn("embedding provider still rate limited after %d retries; "+
					"lower PROVIDER_RPS or INGEST_BATCH_SIZE, or check the API quota", r.maxRetries)
			}
			return err
		}
		delay := r.recordRateLimit(attempt, err)
		logger.Warn("embedding provider rate limit hit, retrying in %s (attempt %d/%d); "+
			"lower PROVIDER_RPS if this keeps happening", delay.Round(time.Second), attempt+1, r.maxRetries)
	}
}

// Embed generates a vector embedding for the given text.
func (r *RateLimitedEmbedding) Embed(ctx context.Context, text string) ([]float32, error) {
	var out []float32
	err := r.do(ctx, func() error {
		var err error
		out, err = r.next.Embed(ctx, text)
		return err
	})
	return out, err
}

// EmbedBatch generates embeddings for texts as one paced request.
func (r *RateLimitedEmbedding) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var out [][]float32
	err := r.do(ctx, func() error {
		var err error
		out, err = r.next.EmbedBatch(ctx, texts)
		return err
	})
	return out, err
}

// Dimensions returns the embedding vector size.
func (r *RateLimitedEmbedding) Dimensions() int {
	return r.next.Dimensions()
}

// ModelName returns the wrapped model name.
func (r *RateLimitedEmbedding) ModelName() string {
	return r.next.ModelName()
}

// Close releases the wrapped service.
func (r *RateLimitedEmbedding) Close() error {
	return r.next.Close()
}
