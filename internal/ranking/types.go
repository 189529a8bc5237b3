// Package ranking reorders fused retrieval candidates by legal authority,
// recency, query overlap and norm validity.
package ranking

import (
	"time"

	"github.com/hyperjump/norma/internal/models"
)

// Level is the position of a source in the Colombian normative hierarchy.
type Level int

const (
	LevelUnknown Level = iota
	LevelConcept
	LevelResolution
	LevelOtherJurisprudence
	LevelHighCourtJurisprudence
	LevelConstitutionalJurisprudence
	LevelRegulationDecree
	LevelLawDecree
	LevelOrdinaryLaw
	LevelOrganicLaw
	LevelCode
	LevelConstitution
)

// String returns a string representation of the level.
func (l Level) String() string {
	switch l {
	case LevelConstitution:
		return "constitution"
	case LevelCode:
		return "code"
	case LevelOrganicLaw:
		return "organic_law"
	case LevelOrdinaryLaw:
		return "ordinary_law"
	case LevelLawDecree:
		return "law_decree"
	case LevelRegulationDecree:
		return "regulation_decree"
	case LevelConstitutionalJurisprudence:
		return "constitutional_jurisprudence"
	case LevelHighCourtJurisprudence:
		return "high_court_jurisprudence"
	case LevelOtherJurisprudence:
		return "other_jurisprudence"
	case LevelResolution:
		return "resolution"
	case LevelConcept:
		return "concept"
	default:
		return "unknown"
	}
}

// Boost is the additive hierarchy boost of the level.
func (l Level) Boost() float64 {
	switch l {
	case LevelConstitution:
		return 0.30
	case LevelCode:
		return 0.25
	case LevelOrganicLaw:
		return 0.22
	case LevelOrdinaryLaw:
		return 0.20
	case LevelLawDecree:
		return 0.15
	case LevelRegulationDecree:
		return 0.10
	case LevelConstitutionalJurisprudence:
		return 0.08
	case LevelHighCourtJurisprudence:
		return 0.06
	case LevelOtherJurisprudence:
		return 0.04
	case LevelResolution:
		return 0.02
	case LevelConcept:
		return 0.01
	default:
		return 0
	}
}

// VigenciaState is what the registry knows about a candidate's norm.
type VigenciaState int

const (
	// VigenciaUnknown means no registered norm matches the candidate.
	VigenciaUnknown VigenciaState = iota
	// VigenciaDegraded means the registry lookup failed.
	VigenciaDegraded
	VigenciaInForce
	VigenciaPartiallyDerogated
	VigenciaDerogated
	VigenciaNotYetEffective
)

// String returns a string representation of the state.
func (s VigenciaState) String() string {
	switch s {
	case VigenciaDegraded:
		return "degraded"
	case VigenciaInForce:
		return "in_force"
	case VigenciaPartiallyDerogated:
		return "partially_derogated"
	case VigenciaDerogated:
		return "derogated"
	case VigenciaNotYetEffective:
		return "not_yet_effective"
	default:
		return "unknown"
	}
}

// AnalyzedQuery holds the parts of a query the scorers look at.
type AnalyzedQuery struct {
	// Original is the original query string.
	Original string
	// Terms are folded query words longer than two characters.
	Terms []string
	// Article is the article number asked for ("artículo 86" gives "86"), if any.
	Article string
}

// Candidate is one fused retrieval result to rerank.
type Candidate struct {
	Chunk        *models.Chunk
	FusedScore   float64
	LexicalScore *float64
	VectorScore  *float64
}

// ScoringContext provides everything a scorer needs for one candidate.
type ScoringContext struct {
	Query     *AnalyzedQuery
	Candidate *Candidate
	// Level is the inferred hierarchy level of the candidate.
	Level Level
	// NormID is the registry id inferred from the title, if any.
	NormID   string
	Vigencia VigenciaState
	Now      time.Time
}

// Scorer is the interface for additive scoring components. Penalties
// return negative values.
type Scorer interface {
	// Score calculates the contribution for a candidate.
	Score(ctx *ScoringContext) float64
	// Name returns the name of the scorer for debugging/logging.
	Name() string
}

// ScoreBreakdown provides detailed scoring information for debugging.
type ScoreBreakdown struct {
	ChunkID    string             `json:"chunkId"`
	FusedScore float64            `json:"fusedScore"`
	Normalized float64            `json:"normalized"`
	Level      string             `json:"level"`
	NormID     string             `json:"normId,omitempty"`
	Vigencia   string             `json:"vigencia"`
	Components map[string]float64 `json:"components"`
	FinalScore float64            `json:"finalScore"`
}

// Ranked is a reranked candidate.
type Ranked struct {
	Candidate
	HierarchyBoost  float64
	RecencyBoost    float64
	KeywordBoost    float64
	VigenciaPenalty float64
	FinalScore      float64
}
