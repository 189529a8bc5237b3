package indexctx

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/hyperjump/norma/internal/corpus"
	"github.com/hyperjump/norma/internal/keyword"
	"github.com/hyperjump/norma/internal/models"
	"github.com/hyperjump/norma/internal/vector"
	"github.com/hyperjump/norma/internal/vigencia"
)

// Artifact names one cached component.
type Artifact string

const (
	ArtifactCorpus  Artifact = "corpus"
	ArtifactLexical Artifact = "lexical"
	ArtifactVectors Artifact = "vectors"
	ArtifactNormas  Artifact = "normas"
)

// Lexical backends.
const (
	LexicalBM25  = "bm25"
	LexicalBleve = "bleve"
)

// Paths locates the artifacts on disk.
type Paths struct {
	Corpus  string
	Lexical string
	HNSW    string
	IDs     string
	// NormasDir is watched for record changes when the vigencia store is file based.
	NormasDir      string
	LexicalBackend string
	Dimensions     int
}

// IndexContext is built once at startup and handed to retrieval.
type IndexContext struct {
	paths    Paths
	registry *vigencia.Registry
	logger   *zap.Logger

	corpus  *Lazy[*corpus.Corpus]
	lexical *Lazy[keyword.Index]
	vectors *Lazy[vector.Index]
}

// Option configures an IndexContext.
type Option func(*IndexContext)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(x *IndexContext) { x.logger = l }
}

// New wires the lazy handles. Nothing is read until first use.
func New(paths Paths, registry *vigencia.Registry, opts ...Option) *IndexContext {
	if paths.Dimensions <= 0 {
		paths.Dimensions = 384
	}
	x := &IndexContext{paths: paths, registry: registry, logger: zap.NewNop()}
	for _, o := range opts {
		o(x)
	}
	x.corpus = NewLazy(string(ArtifactCorpus), x.loadCorpus, func() *corpus.Corpus { return corpus.New(nil) }, x.logger)
	x.lexical = NewLazy(string(ArtifactLexical), x.loadLexical, func() keyword.Index { return keyword.NewEmptyBM25() }, x.logger)
	x.vectors = NewLazy(string(ArtifactVectors), x.loadVectors, x.emptyVectors, x.logger)
	return x
}

func (x *IndexContext) Corpus(ctx context.Context) *corpus.Corpus { return x.corpus.Get(ctx) }
func (x *IndexContext) Lexical(ctx context.Context) keyword.Index { return x.lexical.Get(ctx) }
func (x *IndexContext) Vectors(ctx context.Context) vector.Index  { return x.vectors.Get(ctx) }

// Registry returns the norm validity registry.
func (x *IndexContext) Registry() *vigencia.Registry { return x.registry }

// Paths returns the artifact locations.
func (x *IndexContext) Paths() Paths { return x.paths }

func (x *IndexContext) loadCorpus(context.Context) (*corpus.Corpus, error) {
	if x.paths.Corpus == "" {
		return nil, fmt.Errorf("no corpus configured: %w", models.ErrNotFound)
	}
	chunks, err := corpus.Load(x.paths.Corpus)
	if err != nil {
		return nil, err
	}
	return corpus.New(chunks), nil
}

// loadLexical reads the serialized BM25 index, or builds the configured
// backend from the corpus when no artifact exists.
func (x *IndexContext) loadLexical(ctx context.Context) (keyword.Index, error) {
	if x.paths.LexicalBackend == LexicalBleve {
		idx, err := keyword.NewBleveIndex("")
		if err != nil {
			return nil, err
		}
		if err := idx.IndexChunks(ctx, x.Corpus(ctx).Chunks()); err != nil {
			idx.Close()
			return nil, err
		}
		return idx, nil
	}
	if x.paths.Lexical != "" {
		idx, err := keyword.LoadBM25(x.paths.Lexical)
		if err == nil {
			return idx, nil
		}
		if !errors.Is(err, models.ErrNotFound) {
			return nil, err
		}
		x.logger.Info("bm25 artifact missing, indexing corpus", zap.String("path", x.paths.Lexical))
	}
	docs := x.Corpus(ctx)
	if docs.Len() == 0 {
		return nil, fmt.Errorf("no lexical artifact and empty corpus: %w", models.ErrNotFound)
	}
	return keyword.BuildBM25(docs.Chunks()), nil
}

func (x *IndexContext) loadVectors(ctx context.Context) (vector.Index, error) {
	return vector.Open(ctx, vector.OpenOptions{
		BlobPath:   x.paths.HNSW,
		IDsPath:    x.paths.IDs,
		Dimensions: x.paths.Dimensions,
		Logger:     x.logger,
	}, x.Corpus(ctx).Chunks())
}

func (x *IndexContext) emptyVectors() vector.Index {
	idx, err := vector.NewVectorIndex(string(vector.IndexTypeMemory), x.paths.Dimensions)
	if err != nil {
		x.logger.Error("failed to create empty vector index", zap.Error(err))
		return nil
	}
	return idx
}

// Invalidate drops a cached artifact. Components derived from the corpus are
// dropped with it.
func (x *IndexContext) Invalidate(a Artifact) {
	x.logger.Info("invalidating artifact", zap.String("artifact", string(a)))
	switch a {
	case ArtifactCorpus:
		x.corpus.Invalidate()
		x.lexical.Invalidate()
		x.vectors.Invalidate()
	case ArtifactLexical:
		x.lexical.Invalidate()
	case ArtifactVectors:
		x.vectors.Invalidate()
	case ArtifactNormas:
		if x.registry != nil {
			x.registry.Reload()
		}
	}
}

// ArtifactFor maps a changed file to the artifact it belongs to.
func (x *IndexContext) ArtifactFor(path string) (Artifact, bool) {
	clean := filepath.Clean(path)
	same := func(p string) bool { return p != "" && filepath.Clean(p) == clean }
	switch {
	case same(x.paths.Corpus):
		return ArtifactCorpus, true
	case same(x.paths.Lexical):
		return ArtifactLexical, true
	case same(x.paths.HNSW), same(x.paths.IDs):
		return ArtifactVectors, true
	case x.paths.NormasDir != "" && filepath.Dir(clean) == filepath.Clean(x.paths.NormasDir):
		return ArtifactNormas, true
	}
	return "", false
}

// WatchDirs lists the directories holding configured artifacts.
func (x *IndexContext) WatchDirs() []string {
	var dirs []string
	for _, p := range []string{x.paths.Corpus, x.paths.Lexical, x.paths.HNSW, x.paths.IDs} {
		if p != "" {
			dirs = append(dirs, filepath.Dir(p))
		}
	}
	if x.paths.NormasDir != "" {
		dirs = append(dirs, x.paths.NormasDir)
	}
	return dirs
}

// Status reports what is loaded. It does not trigger loads.
type Status struct {
	CorpusLoaded  bool `json:"corpusLoaded"`
	LexicalLoaded bool `json:"lexicalLoaded"`
	VectorsLoaded bool `json:"vectorsLoaded"`
	Chunks        int  `json:"chunks"`
	LexicalDocs   int  `json:"lexicalDocs"`
	Vectors       int  `json:"vectors"`
}

func (x *IndexContext) Status(ctx context.Context) Status {
	s := Status{
		CorpusLoaded:  x.corpus.Loaded(),
		LexicalLoaded: x.lexical.Loaded(),
		VectorsLoaded: x.vectors.Loaded(),
	}
	if s.CorpusLoaded {
		s.Chunks = x.Corpus(ctx).Len()
	}
	if s.LexicalLoaded {
		s.LexicalDocs = x.Lexical(ctx).DocCount()
	}
	if s.VectorsLoaded {
		if v := x.Vectors(ctx); v != nil {
			s.Vectors = v.Size()
		}
	}
	return s
}

// Warm loads every artifact now instead of on first query.
func (x *IndexContext) Warm(ctx context.Context) Status {
	x.Corpus(ctx)
	x.Lexical(ctx)
	x.Vectors(ctx)
	return x.Status(ctx)
}

// Close releases loaded indexes.
func (x *IndexContext) Close() error {
	var result *multierror.Error
	if x.lexical.Loaded() {
		if err := x.lexical.Get(context.Background()).Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("lexical: %w", err))
		}
	}
	if x.vectors.Loaded() {
		if v := x.vectors.Get(context.Background()); v != nil {
			if err := v.Close(); err != nil {
				result = multierror.Append(result, fmt.Errorf("vectors: %w", err))
			}
		}
	}
	return result.ErrorOrNil()
}
