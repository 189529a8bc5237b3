package ranking

import (
	"regexp"
	"strconv"

	"github.com/hyperjump/norma/internal/models"
)

var titleYearPattern = regexp.MustCompile(`(19|20)\d{2}`)

// InferYear returns the year of a chunk: the effective date's year first,
// else the first 19xx/20xx year in the title. 0 means unknown.
func InferYear(chunk *models.Chunk) int {
	if d := chunk.Metadata.EffectiveDate; len(d) >= 4 {
		if y, err := strconv.Atoi(d[:4]); err == nil && y >= 1800 && y <= 2200 {
			return y
		}
	}
	if m := titleYearPattern.FindString(chunk.Metadata.Title); m != "" {
		y, _ := strconv.Atoi(m)
		return y
	}
	return 0
}

// RecencyScorer boosts recent sources in age bands. Without a year it
// falls back to the registry's view of the norm.
type RecencyScorer struct {
	config *RankingConfig
}

// NewRecencyScorer creates a new RecencyScorer.
func NewRecencyScorer(config *RankingConfig) *RecencyScorer {
	return &RecencyScorer{config: config}
}

// Name returns the scorer name.
func (s *RecencyScorer) Name() string { return "recency" }

// Score returns the recency boost of the candidate.
func (s *RecencyScorer) Score(ctx *ScoringContext) float64 {
	chunk := ctx.Candidate.Chunk
	year := InferYear(chunk)
	if year == 0 {
		switch ctx.Vigencia {
		case VigenciaInForce, VigenciaPartiallyDerogated:
			return s.config.RegistryInForceBoost
		case VigenciaDerogated, VigenciaUnknown:
			return -s.config.RegistryUnknownPenalty
		default:
			return 0
		}
	}

	age := ctx.Now.Year() - year
	if age < 0 {
		return 0
	}
	var boost float64
	switch {
	case age <= 3:
		boost = 0.10
	case age <= 5:
		boost = 0.08
	case age <= 10:
		boost = 0.05
	case age <= 15:
		boost = 0.02
	}
	if chunk.Metadata.DocType == models.DocTypeCaselaw && age <= 10 {
		boost += s.config.JurisprudenceBonus
	}
	return boost
}
