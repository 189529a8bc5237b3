// Package generator produces answers from prompts through pluggable language
// model backends.
package generator

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/hyperjump/norma/internal/models"
)

const (
	// DefaultMaxTokens bounds the length of one answer.
	DefaultMaxTokens = 300
	// DefaultTemperature keeps answers close to the sources.
	DefaultTemperature = 0.2
	// DefaultTimeout applies to one generation attempt.
	DefaultTimeout = 30 * time.Second
)

// Apology is returned in place of an answer when every model failed.
const Apology = "No fue posible generar la respuesta en este momento. Intenta nuevamente más tarde."

// Request is one generation call.
type Request struct {
	SystemPrompt string
	UserPrompt   string
	MaxTokens    int
	// Timeout bounds one attempt; zero means no per-attempt deadline.
	Timeout time.Duration
}

// Generator turns a prompt into text.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Func adapts a function to Generator.
type Func func(ctx context.Context, req Request) (string, error)

func (f Func) Generate(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// Static always returns the same text. It backs offline runs.
type Static struct {
	Text string
}

func (s Static) Generate(ctx context.Context, _ Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", Classify(err)
	}
	return s.Text, nil
}

var retryableMarkers = []string{
	"429", "rate limit", "too many requests",
	"500", "502", "503", "504", "bad gateway", "service unavailable", "overloaded",
	"connection reset", "connection refused", "broken pipe", "eof",
}

// Classify wraps err with ErrTimeout or ErrRetryable when it looks transient.
// Errors that already carry a class and unknown errors are returned unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, models.ErrTimeout) || errors.Is(err, models.ErrRetryable) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", models.ErrTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %w", models.ErrTimeout, err)
	}
	msg := strings.ToLower(err.Error())
	for _, m := range retryableMarkers {
		if strings.Contains(msg, m) {
			return fmt.Errorf("%w: %w", models.ErrRetryable, err)
		}
	}
	return err
}

// Transient reports whether err is worth another attempt.
func Transient(err error) bool {
	return errors.Is(err, models.ErrRetryable) || errors.Is(err, models.ErrTimeout)
}
