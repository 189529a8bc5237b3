package ranking

import (
	"math"
	"strings"

	"github.com/hyperjump/norma/internal/keyword"
)

// KeywordScorer rewards query terms found in the title or body and an
// exact article-number match.
type KeywordScorer struct {
	config *RankingConfig
}

// NewKeywordScorer creates a new KeywordScorer.
func NewKeywordScorer(config *RankingConfig) *KeywordScorer {
	return &KeywordScorer{config: config}
}

// Name returns the scorer name.
func (s *KeywordScorer) Name() string { return "keyword" }

// Score returns the keyword boost of the candidate.
func (s *KeywordScorer) Score(ctx *ScoringContext) float64 {
	if s.config.DisableKeywordBoost || ctx.Query == nil {
		return 0
	}
	chunk := ctx.Candidate.Chunk
	title := keyword.FoldText(chunk.Metadata.Title)
	var body string

	var boost float64
	for _, term := range ctx.Query.Terms {
		if strings.Contains(title, term) {
			boost += s.config.KeywordTitleBoost
			continue
		}
		if body == "" {
			body = keyword.FoldText(chunk.Content)
		}
		if strings.Contains(body, term) {
			boost += s.config.KeywordBodyBoost
		}
	}
	boost = math.Min(boost, s.config.KeywordCap)

	if ctx.Query.Article != "" && articleDigits(chunk.Metadata.Article) == ctx.Query.Article {
		boost += s.config.ArticleMatchBoost
	}
	return boost
}
