package ranking

// RankingConfig holds all configuration for the legal reranker.
type RankingConfig struct {
	// Keyword boosts
	DisableKeywordBoost bool    `yaml:"disable_keyword_boost"` // default: false
	KeywordTitleBoost   float64 `yaml:"keyword_title_boost"`   // default: 0.05 per term
	KeywordBodyBoost    float64 `yaml:"keyword_body_boost"`    // default: 0.02 per term
	KeywordCap          float64 `yaml:"keyword_cap"`           // default: 0.2
	ArticleMatchBoost   float64 `yaml:"article_match_boost"`   // default: 0.15

	// Vigencia penalties
	DerogatedPenalty       float64 `yaml:"derogated_penalty"`         // default: 0.15
	PartialPenalty         float64 `yaml:"partial_penalty"`           // default: 0.05
	NotYetEffectivePenalty float64 `yaml:"not_yet_effective_penalty"` // default: 0.05

	// Recency fallback when no year is known
	RegistryInForceBoost   float64 `yaml:"registry_in_force_boost"`     // default: 0.02
	RegistryUnknownPenalty float64 `yaml:"registry_unknown_penalty"`    // default: 0.02
	JurisprudenceBonus     float64 `yaml:"jurisprudence_recency_bonus"` // default: 0.02

	// MinScore drops candidates whose final score is below it. 0 disables the floor.
	MinScore float64 `yaml:"min_score"` // default: 0
}

// DefaultRankingConfig returns the default ranking configuration.
func DefaultRankingConfig() *RankingConfig {
	return &RankingConfig{
		KeywordTitleBoost: 0.05,
		KeywordBodyBoost:  0.02,
		KeywordCap:        0.2,
		ArticleMatchBoost: 0.15,

		DerogatedPenalty:       0.15,
		PartialPenalty:         0.05,
		NotYetEffectivePenalty: 0.05,

		RegistryInForceBoost:   0.02,
		RegistryUnknownPenalty: 0.02,
		JurisprudenceBonus:     0.02,
	}
}

// ApplyDefaults fills in zero values with defaults.
func (c *RankingConfig) ApplyDefaults() {
	defaults := DefaultRankingConfig()

	if c.KeywordTitleBoost == 0 {
		c.KeywordTitleBoost = defaults.KeywordTitleBoost
	}
	if c.KeywordBodyBoost == 0 {
		c.KeywordBodyBoost = defaults.KeywordBodyBoost
	}
	if c.KeywordCap == 0 {
		c.KeywordCap = defaults.KeywordCap
	}
	if c.ArticleMatchBoost == 0 {
		c.ArticleMatchBoost = defaults.ArticleMatchBoost
	}

	if c.DerogatedPenalty == 0 {
		c.DerogatedPenalty = defaults.DerogatedPenalty
	}
	if c.PartialPenalty == 0 {
		c.PartialPenalty = defaults.PartialPenalty
	}
	if c.NotYetEffectivePenalty == 0 {
		c.NotYetEffectivePenalty = defaults.NotYetEffectivePenalty
	}

	if c.RegistryInForceBoost == 0 {
		c.RegistryInForceBoost = defaults.RegistryInForceBoost
	}
	if c.RegistryUnknownPenalty == 0 {
		c.RegistryUnknownPenalty = defaults.RegistryUnknownPenalty
	}
	if c.JurisprudenceBonus == 0 {
		c.JurisprudenceBonus = defaults.JurisprudenceBonus
	}
}
