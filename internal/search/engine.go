package search

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hyperjump/norma/internal/corpus"
	"github.com/hyperjump/norma/internal/embedding"
	"github.com/hyperjump/norma/internal/keyword"
	"github.com/hyperjump/norma/internal/models"
	"github.com/hyperjump/norma/internal/ranking"
	"github.com/hyperjump/norma/internal/vector"
)

// DefaultCandidateK is how many hits each retriever contributes to fusion.
const DefaultCandidateK = 50

// Indexes provides the loaded artifacts. Implementations return empty
// components rather than errors when an artifact is unavailable.
type Indexes interface {
	Corpus(ctx context.Context) *corpus.Corpus
	Lexical(ctx context.Context) keyword.Index
	Vectors(ctx context.Context) vector.Index
}

// Query is one retrieval request.
type Query struct {
	Text    string
	DocType models.DocType
	TopK    int
}

// Hit is one retrieved chunk with its scores.
type Hit struct {
	Chunk        *models.Chunk
	Score        float64
	FusedScore   float64
	LexicalScore *float64
	VectorScore  *float64
	// Hybrid is HybridScore over the same hits, for diagnostics.
	Hybrid float64
}

// Response is the outcome of a retrieval.
type Response struct {
	Hits []*Hit
	// CorrectedQuery is set when the lexical query was respelled.
	CorrectedQuery string
	LexicalCount   int
	VectorCount    int
}

// Retriever runs lexical and vector retrieval, fuses and reranks.
type Retriever struct {
	indexes     Indexes
	embedder    embedding.Embedder
	reranker    *ranking.Reranker
	candidateK  int
	rrfK        int
	hybridAlpha float64
	logger      *zap.Logger
}

// RetrieverOption configures a Retriever.
type RetrieverOption func(*Retriever)

// WithLogger sets the logger for degraded retrievals.
func WithLogger(l *zap.Logger) RetrieverOption {
	return func(r *Retriever) { r.logger = l }
}

// WithCandidateK sets how many hits each retriever contributes.
func WithCandidateK(k int) RetrieverOption {
	return func(r *Retriever) {
		if k > 0 {
			r.candidateK = k
		}
	}
}

// WithRRFK sets the RRF rank offset.
func WithRRFK(k int) RetrieverOption {
	return func(r *Retriever) {
		if k > 0 {
			r.rrfK = k
		}
	}
}

// NewRetriever creates a retriever. embedder may be nil for lexical-only retrieval.
func NewRetriever(indexes Indexes, embedder embedding.Embedder, reranker *ranking.Reranker, opts ...RetrieverOption) *Retriever {
	r := &Retriever{
		indexes:     indexes,
		embedder:    embedder,
		reranker:    reranker,
		candidateK:  DefaultCandidateK,
		rrfK:        DefaultRRFK,
		hybridAlpha: DefaultHybridAlpha,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.reranker == nil {
		r.reranker = ranking.NewReranker(nil, nil)
	}
	return r
}

// Retrieve returns up to q.TopK chunks for q. A failure of one retriever
// degrades to the other; only a failure of both is returned.
func (r *Retriever) Retrieve(ctx context.Context, q Query) (*Response, error) {
	topK := q.TopK
	if topK <= 0 {
		topK = models.DefaultTopK
	}
	docs := r.indexes.Corpus(ctx)
	resp := &Response{}

	var (
		lexical        []*keyword.Result
		vectors        []*vector.Result
		lexErr, vecErr error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lexical, resp.CorrectedQuery, lexErr = r.searchLexical(gctx, q.Text)
		return nil
	})
	g.Go(func() error {
		vectors, vecErr = r.searchVectors(gctx, q.Text)
		return nil
	})
	_ = g.Wait()

	if lexErr != nil && vecErr != nil {
		return nil, fmt.Errorf("retrieval failed: %w", errors.Join(lexErr, vecErr))
	}
	if lexErr != nil {
		r.logger.Warn("lexical retrieval degraded", zap.Error(lexErr))
	}
	if vecErr != nil {
		r.logger.Warn("vector retrieval degraded", zap.Error(vecErr))
	}
	resp.LexicalCount = len(lexical)
	resp.VectorCount = len(vectors)

	fused := FuseRRF(lexical, vectors, r.candidateK, r.rrfK)
	cands := make([]ranking.Candidate, 0, len(fused))
	var allBM25 []float64
	for _, f := range fused {
		chunk, ok := docs.Get(f.ID)
		if !ok {
			r.logger.Debug("fused id missing from corpus", zap.String("chunk_id", f.ID))
			continue
		}
		if q.DocType != "" && chunk.Metadata.DocType != q.DocType {
			continue
		}
		if f.LexicalScore != nil {
			allBM25 = append(allBM25, *f.LexicalScore)
		}
		cands = append(cands, ranking.Candidate{
			Chunk:        chunk,
			FusedScore:   f.Score,
			LexicalScore: f.LexicalScore,
			VectorScore:  f.VectorScore,
		})
	}

	for _, rk := range r.reranker.Rerank(ctx, q.Text, cands, topK) {
		hit := &Hit{
			Chunk:        rk.Chunk,
			Score:        rk.FinalScore,
			FusedScore:   rk.FusedScore,
			LexicalScore: rk.LexicalScore,
			VectorScore:  rk.VectorScore,
		}
		var cos, bm25 float64
		if rk.VectorScore != nil {
			cos = *rk.VectorScore
		}
		if rk.LexicalScore != nil {
			bm25 = *rk.LexicalScore
		}
		hit.Hybrid = HybridScore(cos, bm25, allBM25, r.hybridAlpha)
		resp.Hits = append(resp.Hits, hit)
	}
	r.logger.Debug("retrieval done",
		zap.Int("lexical", resp.LexicalCount),
		zap.Int("vector", resp.VectorCount),
		zap.Int("fused", len(fused)),
		zap.Int("hits", len(resp.Hits)))
	return resp, nil
}

// searchLexical queries the lexical index and, when nothing matches,
// retries once with a respelled query.
func (r *Retriever) searchLexical(ctx context.Context, text string) ([]*keyword.Result, string, error) {
	idx := r.indexes.Lexical(ctx)
	if idx == nil || idx.DocCount() == 0 {
		return nil, "", nil
	}
	results, err := idx.Search(ctx, text, r.candidateK)
	if err != nil {
		return nil, "", fmt.Errorf("lexical search: %w", err)
	}
	if len(results) > 0 {
		return results, "", nil
	}
	dict, ok := idx.(keyword.TermDictionary)
	if !ok {
		return nil, "", nil
	}
	corrected, changed := keyword.NewSuggester(dict, 2).Correct(text)
	if !changed {
		return nil, "", nil
	}
	results, err = idx.Search(ctx, corrected, r.candidateK)
	if err != nil {
		return nil, "", fmt.Errorf("lexical search: %w", err)
	}
	r.logger.Debug("lexical query respelled", zap.String("query", text), zap.String("corrected", corrected))
	return results, corrected, nil
}

func (r *Retriever) searchVectors(ctx context.Context, text string) ([]*vector.Result, error) {
	idx := r.indexes.Vectors(ctx)
	if idx == nil || idx.Size() == 0 || r.embedder == nil {
		return nil, nil
	}
	vec, err := r.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	results, err := idx.Search(ctx, vec, r.candidateK)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	return results, nil
}
