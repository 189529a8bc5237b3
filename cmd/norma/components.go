package main

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/hyperjump/norma/internal/config"
	"github.com/hyperjump/norma/internal/embedding"
	"github.com/hyperjump/norma/internal/generator"
	"github.com/hyperjump/norma/internal/indexctx"
	"github.com/hyperjump/norma/internal/indexer"
	"github.com/hyperjump/norma/internal/models"
	"github.com/hyperjump/norma/internal/rag"
	"github.com/hyperjump/norma/internal/ranking"
	"github.com/hyperjump/norma/internal/search"
	"github.com/hyperjump/norma/internal/storage"
	"github.com/hyperjump/norma/internal/vigencia"
)

// offlineAnswer is what the static generator says when no text is configured.
const offlineAnswer = "Respuesta generada sin modelo de lenguaje. Revisa las fuentes citadas a continuación."

// Components holds initialized services.
type Components struct {
	Store        storage.NormStore
	Registry     *vigencia.Registry
	Index        *indexctx.IndexContext
	Embedder     embedding.Embedder
	Retriever    *search.Retriever
	Pipeline     *rag.Pipeline
	Orchestrator *rag.Orchestrator
}

// Close releases every component, collecting all failures.
func (c *Components) Close() error {
	var result *multierror.Error
	if c.Orchestrator != nil {
		c.Orchestrator.Close()
	}
	if c.Index != nil {
		if err := c.Index.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("index: %w", err))
		}
	}
	if c.Embedder != nil {
		if err := c.Embedder.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("embedder: %w", err))
		}
	}
	if c.Store != nil {
		if err := c.Store.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("vigencia store: %w", err))
		}
	}
	return result.ErrorOrNil()
}

// openRegistry opens the configured vigencia store.
func openRegistry(cfg *config.Config, logger *zap.Logger) (storage.NormStore, *vigencia.Registry, error) {
	store, err := storage.Open(cfg.Vigencia.Backend, cfg.Vigencia.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open vigencia store: %w", err)
	}
	return store, vigencia.NewRegistry(store, vigencia.WithLogger(logger)), nil
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	store, registry, err := openRegistry(cfg, logger)
	if err != nil {
		return nil, err
	}
	c := &Components{Store: store, Registry: registry}

	paths := indexctx.Paths{
		Corpus:         cfg.Artifacts.Corpus,
		Lexical:        cfg.Artifacts.Lexical,
		HNSW:           cfg.Artifacts.HNSW,
		IDs:            cfg.Artifacts.IDs,
		LexicalBackend: cfg.Retrieval.LexicalBackend,
		Dimensions:     cfg.Embedding.Dimensions,
	}
	if cfg.Vigencia.Backend == "" || cfg.Vigencia.Backend == storage.BackendDir {
		paths.NormasDir = cfg.Vigencia.Path
	}
	c.Index = indexctx.New(paths, registry, indexctx.WithLogger(logger))
	c.Embedder = newEmbedder(cfg.Embedding, logger)

	reranker := ranking.NewReranker(&cfg.Ranking, registry, ranking.WithLogger(logger))
	c.Retriever = search.NewRetriever(c.Index, c.Embedder, reranker,
		search.WithLogger(logger),
		search.WithCandidateK(cfg.Retrieval.CandidateK),
		search.WithRRFK(cfg.Retrieval.RRFK),
	)

	gen, err := newGenerator(cfg.Generator, logger)
	if err != nil {
		_ = c.Close()
		return nil, err
	}
	c.Pipeline = rag.NewPipeline(c.Retriever, gen,
		rag.WithPipelineLogger(logger),
		rag.WithGenerationTimeout(cfg.Generator.Timeout),
		rag.WithMaxTokens(cfg.Generator.MaxTokens),
	)
	c.Orchestrator, err = rag.NewOrchestrator(c.Pipeline, recursiveConfig(cfg.Recursive), rag.WithOrchestratorLogger(logger))
	if err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

// newEmbedder builds the configured embedder and falls back to feature
// hashing when the model cannot be loaded.
func newEmbedder(cfg config.EmbeddingConfig, logger *zap.Logger) embedding.Embedder {
	emb, err := embedding.New(embedding.Options{
		Provider:   cfg.Provider,
		Dimensions: cfg.Dimensions,
		CacheSize:  cfg.CacheSize,
		ModelPath:  cfg.ModelPath,
		MaxTokens:  cfg.MaxTokens,
		BaseURL:    cfg.BaseURL,
		Model:      cfg.Model,
		Token:      config.Token(cfg.TokenEnv),
	})
	if err != nil {
		logger.Warn("embedder unavailable, falling back to hashing",
			zap.String("provider", cfg.Provider), zap.Error(err))
		return embedding.NewCached(embedding.NewHashingEmbedder(cfg.Dimensions), cfg.CacheSize)
	}
	return emb
}

func newGenerator(cfg config.GeneratorConfig, logger *zap.Logger) (generator.Generator, error) {
	opts := []generator.Option{
		generator.WithAttempts(int(cfg.Attempts)),
		generator.WithBackoff(cfg.BaseDelay, cfg.MaxDelay),
		generator.WithRateLimit(cfg.RateLimit, cfg.Burst),
		generator.WithLogger(logger),
	}
	switch cfg.Provider {
	case "", "static":
		text := cfg.StaticText
		if text == "" {
			text = offlineAnswer
		}
		return generator.NewResilient(generator.Static{Text: text}, opts...), nil
	case "openai":
		token := config.Token(cfg.TokenEnv)
		primary, err := generator.NewOpenAI(cfg.BaseURL, cfg.Model, token)
		if err != nil {
			return nil, err
		}
		if cfg.FallbackModel != "" {
			fallback, err := generator.NewOpenAI(cfg.BaseURL, cfg.FallbackModel, token)
			if err != nil {
				return nil, err
			}
			opts = append(opts, generator.WithFallback(fallback))
		}
		return generator.NewResilient(primary, opts...), nil
	default:
		return nil, fmt.Errorf("unknown generator provider %q (supported: static, openai): %w", cfg.Provider, models.ErrInvalid)
	}
}

func recursiveConfig(c config.RecursiveConfig) rag.Config {
	out := rag.DefaultConfig()
	out.Enabled = c.EnabledOrDefault()
	out.PreserveContext = c.PreserveContextOrDefault()
	if c.MinConfidence > 0 {
		out.MinConfidence = c.MinConfidence
	}
	if c.MaxSubQueries > 0 {
		out.MaxSubQueries = c.MaxSubQueries
	}
	if c.Workers > 0 {
		out.Workers = c.Workers
	}
	if c.SubQueryTimeout > 0 {
		out.SubQueryTimeout = c.SubQueryTimeout
	}
	if f, ok := rag.ParseFormat(c.Format); ok {
		out.Format = f
	}
	return out
}

func artifactsFor(cfg *config.Config) indexer.Artifacts {
	return indexer.Artifacts{
		Corpus:  cfg.Artifacts.Corpus,
		Lexical: cfg.Artifacts.Lexical,
		HNSW:    cfg.Artifacts.HNSW,
		IDs:     cfg.Artifacts.IDs,
	}
}
