package ranking

import (
	"regexp"

	"github.com/hyperjump/norma/internal/keyword"
	"github.com/hyperjump/norma/internal/models"
)

// Patterns run over folded text (lowercase, no diacritics).
var (
	constitutionPattern  = regexp.MustCompile(`\bconstitucion\b|\bacto legislativo\b`)
	codePattern          = regexp.MustCompile(`\bcodigo\b`)
	organicLawPattern    = regexp.MustCompile(`\bley (organica|estatutaria)\b`)
	lawDecreePattern     = regexp.MustCompile(`\bdecreto[ -]ley\b|\bdecreto con fuerza de ley\b|\bdecreto legislativo\b`)
	ordinaryLawPattern   = regexp.MustCompile(`\bley\b`)
	decreePattern        = regexp.MustCompile(`\bdecreto\b`)
	constCourtPattern    = regexp.MustCompile(`\bcorte constitucional\b|\b(t|c|su)-\d+\b`)
	highCourtPattern     = regexp.MustCompile(`\bcorte suprema\b|\bconsejo de estado\b|\bcsj\b|\bcasacion\b`)
	jurisprudencePattern = regexp.MustCompile(`\bsentencia\b|\bauto\b|\bfallo\b`)
	resolutionPattern    = regexp.MustCompile(`\bresolucion\b|\bcircular\b`)
	conceptPattern       = regexp.MustCompile(`\bconcepto\b`)
)

// InferLevel places a chunk in the normative hierarchy from its title,
// doc type and, failing those, its chapter heading. The first matching
// level, from highest to lowest, wins.
func InferLevel(chunk *models.Chunk) Level {
	if chunk == nil {
		return LevelUnknown
	}
	if l := levelOf(keyword.FoldText(chunk.Metadata.Title), chunk.Metadata.DocType); l != LevelUnknown {
		return l
	}
	return levelOf(keyword.FoldText(chunk.Metadata.Chapter), chunk.Metadata.DocType)
}

func levelOf(text string, docType models.DocType) Level {
	caselaw := docType == models.DocTypeCaselaw
	switch {
	case text == "" && !caselaw && docType != models.DocTypeRegulation:
		return LevelUnknown
	case !caselaw && constitutionPattern.MatchString(text):
		return LevelConstitution
	case !caselaw && codePattern.MatchString(text):
		return LevelCode
	case !caselaw && organicLawPattern.MatchString(text):
		return LevelOrganicLaw
	case !caselaw && ordinaryLawPattern.MatchString(text) && !lawDecreePattern.MatchString(text):
		return LevelOrdinaryLaw
	case !caselaw && lawDecreePattern.MatchString(text):
		return LevelLawDecree
	case !caselaw && (decreePattern.MatchString(text) || docType == models.DocTypeRegulation):
		return LevelRegulationDecree
	case caselaw && constCourtPattern.MatchString(text):
		return LevelConstitutionalJurisprudence
	case caselaw && highCourtPattern.MatchString(text):
		return LevelHighCourtJurisprudence
	case caselaw || jurisprudencePattern.MatchString(text):
		return LevelOtherJurisprudence
	case resolutionPattern.MatchString(text):
		return LevelResolution
	case conceptPattern.MatchString(text):
		return LevelConcept
	}
	return LevelUnknown
}

// HierarchyScorer boosts sources higher in the normative hierarchy.
type HierarchyScorer struct{}

// NewHierarchyScorer creates a new HierarchyScorer.
func NewHierarchyScorer() *HierarchyScorer {
	return &HierarchyScorer{}
}

// Name returns the scorer name.
func (s *HierarchyScorer) Name() string { return "hierarchy" }

// Score returns the boost of the candidate's level.
func (s *HierarchyScorer) Score(ctx *ScoringContext) float64 {
	return ctx.Level.Boost()
}
