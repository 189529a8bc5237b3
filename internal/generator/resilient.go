package generator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go/v4"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/hyperjump/norma/internal/models"
)

// Resilient retries transient failures of a primary model with exponential
// backoff, then tries a fallback model the same way. When both are exhausted it
// answers with Apology and a nil error.
type Resilient struct {
	primary   Generator
	fallback  Generator
	attempts  uint
	baseDelay time.Duration
	maxDelay  time.Duration
	limiter   *rate.Limiter
	logger    *zap.Logger
}

// Option configures a Resilient generator.
type Option func(*Resilient)

// WithFallback sets the model tried after the primary is exhausted.
func WithFallback(g Generator) Option {
	return func(r *Resilient) { r.fallback = g }
}

// WithAttempts sets the attempts per model. Values below 1 are ignored.
func WithAttempts(n int) Option {
	return func(r *Resilient) {
		if n > 0 {
			r.attempts = uint(n)
		}
	}
}

// WithBackoff sets the first retry delay and its cap.
func WithBackoff(base, limit time.Duration) Option {
	return func(r *Resilient) {
		if base > 0 {
			r.baseDelay = base
		}
		if limit > 0 {
			r.maxDelay = limit
		}
	}
}

// WithRateLimit spaces calls to at most perSecond per second. Zero disables it.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(r *Resilient) {
		if perSecond <= 0 {
			r.limiter = nil
			return
		}
		r.limiter = rate.NewLimiter(rate.Limit(perSecond), max(burst, 1))
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Resilient) { r.logger = l }
}

// NewResilient wraps primary. Defaults: 3 attempts, 500ms base delay, 8s cap.
func NewResilient(primary Generator, opts ...Option) *Resilient {
	r := &Resilient{
		primary:   primary,
		attempts:  3,
		baseDelay: 500 * time.Millisecond,
		maxDelay:  8 * time.Second,
		logger:    zap.NewNop(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Generate never returns a transport error. It fails only when ctx ends.
func (r *Resilient) Generate(ctx context.Context, req Request) (string, error) {
	if req.MaxTokens <= 0 {
		req.MaxTokens = DefaultMaxTokens
	}

	out, err := r.run(ctx, "primary", r.primary, req)
	if err == nil {
		return out, nil
	}
	if ctx.Err() == nil && r.fallback != nil {
		r.logger.Warn("primary model exhausted, trying fallback", zap.Error(err))
		out, err = r.run(ctx, "fallback", r.fallback, req)
		if err == nil {
			return out, nil
		}
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", fmt.Errorf("generation cancelled: %w", errors.Join(models.ErrTimeout, ctxErr))
	}
	r.logger.Error("all models failed", zap.Error(err))
	return Apology, nil
}

func (r *Resilient) run(ctx context.Context, name string, g Generator, req Request) (string, error) {
	if g == nil {
		return "", fmt.Errorf("%s model not configured", name)
	}
	return retry.DoWithData(
		func() (string, error) {
			return r.attempt(ctx, g, req)
		},
		retry.Context(ctx),
		retry.Attempts(r.attempts),
		retry.Delay(r.baseDelay),
		retry.MaxDelay(r.maxDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.RetryIf(Transient),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			r.logger.Debug("retrying generation",
				zap.String("model", name),
				zap.Uint("attempt", n+1),
				zap.Error(err))
		}),
	)
}

func (r *Resilient) attempt(ctx context.Context, g Generator, req Request) (string, error) {
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limiter: %w", models.ErrTimeout)
		}
	}
	callCtx := ctx
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}
	out, err := g.Generate(callCtx, req)
	if err != nil {
		return "", Classify(err)
	}
	return out, nil
}
