package rag

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hyperjump/norma/internal/models"
	"github.com/hyperjump/norma/internal/query"
)

// Format selects how partial answers are laid out.
type Format string

const (
	// FormatStructured keeps a banner, numbered headers and separators.
	FormatStructured Format = "structured"
	// FormatNarrative joins the answers into one running text.
	FormatNarrative Format = "narrative"
	// FormatCombined renders sections with per-part source lists.
	FormatCombined Format = "combined"
)

// ParseFormat accepts the format names; "" means structured.
func ParseFormat(s string) (Format, bool) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatStructured:
		return FormatStructured, true
	case FormatNarrative:
		return FormatNarrative, true
	case FormatCombined:
		return FormatCombined, true
	}
	return "", false
}

const (
	duplicateThreshold = 0.5
	multiPartBanner    = "Esta consulta contiene múltiples preguntas. A continuación se responden cada una:"
)

// Partial is the answer to one sub-query.
type Partial struct {
	SubQuery query.SubQuery
	Response *models.Response
	Order    int
	Failed   bool
}

// SynthesisMetadata describes how partial answers were merged.
type SynthesisMetadata struct {
	OriginalCount         int           `json:"originalResponsesCount"`
	Duplicates            int           `json:"duplicatesDetected"`
	CitationsConsolidated int           `json:"citationsConsolidated"`
	SynthesisTime         time.Duration `json:"synthesisTime"`
}

// Synthesis is the merged answer.
type Synthesis struct {
	Answer    string
	Citations []models.Citation
	Retrieved int
	RequestID string
	LegalArea string
	Metadata  SynthesisMetadata
}

// Synthesize merges partial answers in order. Near-duplicate answers are
// counted but kept.
func Synthesize(parts []Partial, split *query.SplitResult, format Format) *Synthesis {
	start := time.Now()
	sorted := append([]Partial(nil), parts...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Order < sorted[j].Order })

	var common query.Context
	if split != nil {
		common = split.CommonContext
	}

	var answer string
	switch format {
	case FormatNarrative:
		answer = renderNarrative(sorted)
	case FormatCombined:
		answer = renderCombined(sorted, common)
	default:
		answer = renderStructured(sorted, common)
	}

	citations, total := consolidateCitations(sorted)
	s := &Synthesis{
		Answer:    answer,
		Citations: citations,
		RequestID: "synthesized",
		Metadata: SynthesisMetadata{
			OriginalCount:         len(parts),
			Duplicates:            countDuplicates(sorted),
			CitationsConsolidated: total - len(citations),
		},
	}
	for i, p := range sorted {
		s.Retrieved += p.Response.RetrievedCount
		if s.LegalArea == "" {
			s.LegalArea = p.Response.DetectedLegalArea
		}
		if i == 0 && p.Response.RequestID != "" {
			s.RequestID = p.Response.RequestID
		}
	}
	s.Metadata.SynthesisTime = time.Since(start)
	return s
}

func contextLines(c query.Context) []string {
	var lines []string
	if len(c.Procedures) > 0 {
		lines = append(lines, "**Contexto común:** "+strings.Join(c.Procedures, ", "))
	}
	if len(c.Dates) > 0 {
		lines = append(lines, "**Fechas relevantes:** "+strings.Join(c.Dates, ", "))
	}
	if len(c.Entities) > 0 {
		lines = append(lines, "**Entidades mencionadas:** "+strings.Join(c.Entities, ", "))
	}
	return lines
}

func dependencyNote(deps []int) string {
	refs := make([]string, len(deps))
	for i, d := range deps {
		refs[i] = fmt.Sprintf("pregunta %d", d+1)
	}
	return "*Esta respuesta depende de la información de la " + strings.Join(refs, ", ") + ".*"
}

func renderStructured(parts []Partial, common query.Context) string {
	var blocks []string
	blocks = append(blocks, contextLines(common)...)
	multi := len(parts) > 1
	if multi {
		blocks = append(blocks, multiPartBanner)
	}
	for i, p := range parts {
		if i > 0 {
			blocks = append(blocks, "---")
		}
		if multi {
			blocks = append(blocks, fmt.Sprintf("**%d. %s**", i+1, p.SubQuery.Query))
		}
		blocks = append(blocks, p.Response.Answer)
		if len(p.SubQuery.DependsOn) > 0 {
			blocks = append(blocks, dependencyNote(p.SubQuery.DependsOn))
		}
	}
	return strings.Join(blocks, "\n\n")
}

func renderNarrative(parts []Partial) string {
	var b strings.Builder
	for i, p := range parts {
		if i > 0 {
			b.WriteString(" Además, ")
		}
		b.WriteString(strings.TrimSpace(p.Response.Answer))
	}
	return b.String()
}

func renderCombined(parts []Partial, common query.Context) string {
	var lines []string
	if ctx := contextLines(common); len(ctx) > 0 {
		lines = append(lines, "## CONTEXTO COMÚN", "")
		lines = append(lines, ctx...)
		lines = append(lines, "")
	}
	for i, p := range parts {
		lines = append(lines, fmt.Sprintf("## %d. %s", i+1, p.SubQuery.Query), "", p.Response.Answer, "")
		if len(p.Response.Citations) == 0 {
			continue
		}
		lines = append(lines, "**Fuentes:**")
		for _, c := range p.Response.Citations {
			line := "- " + c.Title
			if c.Article != "" {
				line += " - " + c.Article
			}
			lines = append(lines, line)
		}
		lines = append(lines, "")
	}
	return strings.TrimRight(strings.Join(lines, "\n"), "\n")
}

// countDuplicates counts answer pairs whose shared words exceed half of the
// larger word set.
func countDuplicates(parts []Partial) int {
	sets := make([]map[string]struct{}, len(parts))
	for i, p := range parts {
		sets[i] = wordSet(p.Response.Answer)
	}
	n := 0
	for i := range sets {
		for j := i + 1; j < len(sets); j++ {
			if overlap(sets[i], sets[j]) > duplicateThreshold {
				n++
			}
		}
	}
	return n
}

func wordSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(text)) {
		set[w] = struct{}{}
	}
	return set
}

func overlap(a, b map[string]struct{}) float64 {
	larger := max(len(a), len(b))
	if larger == 0 {
		return 0
	}
	common := 0
	for w := range a {
		if _, ok := b[w]; ok {
			common++
		}
	}
	return float64(common) / float64(larger)
}

// consolidateCitations keys citations by (id, article), keeping first-seen
// order and the higher score. It also returns the number of input citations.
func consolidateCitations(parts []Partial) ([]models.Citation, int) {
	type key struct{ id, article string }
	index := make(map[key]int)
	out := []models.Citation{}
	total := 0
	for _, p := range parts {
		for _, c := range p.Response.Citations {
			total++
			k := key{c.ID, c.Article}
			if i, ok := index[k]; ok {
				if c.Score > out[i].Score {
					out[i] = c
				}
				continue
			}
			index[k] = len(out)
			out = append(out, c)
		}
	}
	return out, total
}
