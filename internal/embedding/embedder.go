// Package embedding turns query text into vectors comparable with the corpus embeddings.
package embedding

import (
	"context"
	"fmt"
)

// Embedder produces vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}

// Provider names accepted by New.
const (
	ProviderHashing = "hashing"
	ProviderONNX    = "onnx"
	ProviderOpenAI  = "openai"
)

// Options selects and configures an embedder.
type Options struct {
	Provider   string
	Dimensions int
	CacheSize  int

	// ONNX
	ModelPath string
	MaxTokens int

	// OpenAI-compatible endpoint
	BaseURL string
	Model   string
	Token   string
}

// New builds the configured embedder wrapped in an LRU cache.
func New(opts Options) (Embedder, error) {
	var (
		base Embedder
		err  error
	)
	switch opts.Provider {
	case ProviderHashing, "":
		base = NewHashingEmbedder(opts.Dimensions)
	case ProviderONNX:
		base, err = NewONNXEmbedder(ONNXOptions{
			ModelPath:  opts.ModelPath,
			Dimensions: opts.Dimensions,
			MaxTokens:  opts.MaxTokens,
		})
	case ProviderOpenAI:
		base, err = NewOpenAIEmbedder(opts.BaseURL, opts.Model, opts.Token, opts.Dimensions)
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s (supported: hashing, onnx, openai)", opts.Provider)
	}
	if err != nil {
		return nil, err
	}
	return NewCached(base, opts.CacheSize), nil
}

// embedEach calls embed for each text in order.
func embedEach(ctx context.Context, texts []string, embed func(context.Context, string) ([]float32, error)) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		emb, err := embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = emb
	}
	return out, nil
}
