package ranking

import (
	"context"
	"errors"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/norma/internal/models"
	"github.com/hyperjump/norma/internal/vigencia"
)

// VigenciaSource is the part of the vigencia registry the reranker consults.
type VigenciaSource interface {
	InferNormID(ctx context.Context, title string) (string, bool)
	Consult(ctx context.Context, id string, date models.Date) (*vigencia.Result, error)
}

// Reranker combines the legal scorers to reorder fused candidates.
type Reranker struct {
	config    *RankingConfig
	analyzer  *QueryAnalyzer
	hierarchy *HierarchyScorer
	recency   *RecencyScorer
	keyword   *KeywordScorer
	vigencia  *VigenciaScorer
	source    VigenciaSource
	logger    *zap.Logger
	now       func() time.Time
}

// RerankerOption configures a Reranker.
type RerankerOption func(*Reranker)

// WithLogger sets a logger for degraded registry lookups.
func WithLogger(l *zap.Logger) RerankerOption {
	return func(r *Reranker) { r.logger = l }
}

// WithClock overrides the clock used for ages and validity dates.
func WithClock(now func() time.Time) RerankerOption {
	return func(r *Reranker) { r.now = now }
}

// NewReranker creates a new Reranker with the given configuration.
// source may be nil, in which case every candidate's validity is unknown.
func NewReranker(config *RankingConfig, source VigenciaSource, opts ...RerankerOption) *Reranker {
	if config == nil {
		config = DefaultRankingConfig()
	}
	config.ApplyDefaults()

	r := &Reranker{
		config:    config,
		analyzer:  NewQueryAnalyzer(),
		hierarchy: NewHierarchyScorer(),
		recency:   NewRecencyScorer(config),
		keyword:   NewKeywordScorer(config),
		vigencia:  NewVigenciaScorer(config),
		source:    source,
		logger:    zap.NewNop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// AnalyzeQuery parses and analyzes a query string.
func (r *Reranker) AnalyzeQuery(query string) *AnalyzedQuery {
	return r.analyzer.Analyze(query)
}

// lookup resolves the registry state of a chunk's norm. It never fails:
// lookup errors come back as VigenciaDegraded.
func (r *Reranker) lookup(ctx context.Context, chunk *models.Chunk, today models.Date) (string, VigenciaState) {
	if r.source == nil {
		return "", VigenciaUnknown
	}
	id, ok := r.source.InferNormID(ctx, chunk.Metadata.Title)
	if !ok {
		return "", VigenciaUnknown
	}
	res, err := r.source.Consult(ctx, id, today)
	if errors.Is(err, models.ErrNotFound) {
		return id, VigenciaUnknown
	}
	if err != nil {
		r.logger.Warn("vigencia lookup degraded",
			zap.String("norm_id", id), zap.Error(errors.Join(models.ErrDegraded, err)))
		return id, VigenciaDegraded
	}
	switch res.Status.(type) {
	case vigencia.InForce:
		return id, VigenciaInForce
	case vigencia.PartiallyDerogated:
		return id, VigenciaPartiallyDerogated
	case vigencia.Derogated:
		return id, VigenciaDerogated
	case vigencia.NotYetEffective:
		return id, VigenciaNotYetEffective
	}
	return id, VigenciaUnknown
}

// normalizer min-max scales the fused scores of a batch into [0,1].
// A batch whose scores are all equal maps to 1.
func normalizer(cands []Candidate) func(float64) float64 {
	if len(cands) == 0 {
		return func(float64) float64 { return 0 }
	}
	lo, hi := cands[0].FusedScore, cands[0].FusedScore
	for _, c := range cands[1:] {
		if c.FusedScore < lo {
			lo = c.FusedScore
		}
		if c.FusedScore > hi {
			hi = c.FusedScore
		}
	}
	if hi == lo {
		return func(float64) float64 { return 1 }
	}
	return func(s float64) float64 { return (s - lo) / (hi - lo) }
}

type scored struct {
	ranked    *Ranked
	breakdown *ScoreBreakdown
}

func (r *Reranker) score(ctx context.Context, query string, cands []Candidate) []scored {
	q := r.analyzer.Analyze(query)
	now := r.now()
	today := models.DateOf(now)
	norm := normalizer(cands)

	out := make([]scored, 0, len(cands))
	for i := range cands {
		c := cands[i]
		if c.Chunk == nil {
			continue
		}
		normID, state := r.lookup(ctx, c.Chunk, today)
		sc := &ScoringContext{
			Query:     q,
			Candidate: &c,
			Level:     InferLevel(c.Chunk),
			NormID:    normID,
			Vigencia:  state,
			Now:       now,
		}
		ranked := &Ranked{
			Candidate:       c,
			HierarchyBoost:  r.hierarchy.Score(sc),
			RecencyBoost:    r.recency.Score(sc),
			KeywordBoost:    r.keyword.Score(sc),
			VigenciaPenalty: -r.vigencia.Score(sc),
		}
		normalized := norm(c.FusedScore)
		ranked.FinalScore = normalized + ranked.HierarchyBoost + ranked.RecencyBoost +
			ranked.KeywordBoost - ranked.VigenciaPenalty

		out = append(out, scored{
			ranked: ranked,
			breakdown: &ScoreBreakdown{
				ChunkID:    c.Chunk.ID,
				FusedScore: c.FusedScore,
				Normalized: normalized,
				Level:      sc.Level.String(),
				NormID:     normID,
				Vigencia:   state.String(),
				Components: map[string]float64{
					r.hierarchy.Name(): ranked.HierarchyBoost,
					r.recency.Name():   ranked.RecencyBoost,
					r.keyword.Name():   ranked.KeywordBoost,
					r.vigencia.Name():  -ranked.VigenciaPenalty,
				},
				FinalScore: ranked.FinalScore,
			},
		})
	}

	// Stable: equal final scores keep the fused order.
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ranked.FinalScore > out[j].ranked.FinalScore
	})
	return out
}

func (r *Reranker) cut(all []scored, topK int) []scored {
	kept := all[:0]
	for _, s := range all {
		if r.config.MinScore > 0 && s.ranked.FinalScore < r.config.MinScore {
			continue
		}
		kept = append(kept, s)
	}
	if topK > 0 && len(kept) > topK {
		kept = kept[:topK]
	}
	return kept
}

// Rerank scores cands for query and returns the best topK (all when topK <= 0).
// Candidates are expected in fused order.
func (r *Reranker) Rerank(ctx context.Context, query string, cands []Candidate, topK int) []*Ranked {
	kept := r.cut(r.score(ctx, query, cands), topK)
	out := make([]*Ranked, len(kept))
	for i, s := range kept {
		out[i] = s.ranked
	}
	return out
}

// RerankWithBreakdown is Rerank returning per-component contributions.
func (r *Reranker) RerankWithBreakdown(ctx context.Context, query string, cands []Candidate, topK int) []*ScoreBreakdown {
	kept := r.cut(r.score(ctx, query, cands), topK)
	out := make([]*ScoreBreakdown, len(kept))
	for i, s := range kept {
		out[i] = s.breakdown
	}
	return out
}
