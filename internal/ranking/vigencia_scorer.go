package ranking

// VigenciaScorer penalizes candidates whose norm is not fully in force.
type VigenciaScorer struct {
	config *RankingConfig
}

// NewVigenciaScorer creates a new VigenciaScorer.
func NewVigenciaScorer(config *RankingConfig) *VigenciaScorer {
	return &VigenciaScorer{config: config}
}

// Name returns the scorer name.
func (s *VigenciaScorer) Name() string { return "vigencia" }

// Score returns zero or a negative penalty.
func (s *VigenciaScorer) Score(ctx *ScoringContext) float64 {
	switch ctx.Vigencia {
	case VigenciaDerogated:
		return -s.config.DerogatedPenalty
	case VigenciaPartiallyDerogated:
		return -s.config.PartialPenalty
	case VigenciaNotYetEffective:
		return -s.config.NotYetEffectivePenalty
	default:
		return 0
	}
}
