package query

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
)

// IndicatorType names the family of a multi-part signal.
type IndicatorType string

const (
	IndicatorConjunction IndicatorType = "conjunction"
	IndicatorQuestion    IndicatorType = "question"
	IndicatorComparison  IndicatorType = "comparative"
	IndicatorEnumeration IndicatorType = "enumeration"
	IndicatorTheme       IndicatorType = "theme"
)

// Complexity classifies a query after decomposition.
type Complexity string

const (
	ComplexitySimple      Complexity = "simple"
	ComplexityMulti       Complexity = "multi"
	ComplexityComparative Complexity = "comparative"
)

// Indicator is one signal that the query asks more than one thing.
// Position is a byte offset into the normalized query.
type Indicator struct {
	Type       IndicatorType `json:"type"`
	Position   int           `json:"position"`
	Match      string        `json:"match"`
	Confidence float64       `json:"confidence"`
}

// Metadata summarizes the surface features of a query.
type Metadata struct {
	QuestionCount  int  `json:"questionCount"`
	ThemeCount     int  `json:"themeCount"`
	HasComparison  bool `json:"hasComparison"`
	HasEnumeration bool `json:"hasEnumeration"`
}

// Decomposition is the result of Decompose.
type Decomposition struct {
	IsMultiPart bool        `json:"isMultiPart"`
	Parts       []string    `json:"parts"`
	Indicators  []Indicator `json:"indicators"`
	Complexity  Complexity  `json:"complexity"`
	Confidence  float64     `json:"confidence"`
	Metadata    Metadata    `json:"metadata"`
}

type weighted struct {
	re     *regexp.Regexp
	weight float64
}

const interrogatives = `cuál|cuáles|qué|cómo|cuándo|cuánto|cuánta|cuántos|cuántas|dónde|por qué|para qué`

// Conjunctions and interrogatives match the source text so the accent keeps
// "qué" apart from the relative "que".
var conjunctionPatterns = []weighted{
	{regexp.MustCompile(`(?i)\s+y\s+(?:además|también|igualmente)`), 0.9},
	{regexp.MustCompile(`(?i)\s+y\s+(?:` + interrogatives + `)`), 0.95},
	{regexp.MustCompile(`(?i)\s+además\s+`), 0.8},
	{regexp.MustCompile(`(?i)\s+también\s+`), 0.75},
	{regexp.MustCompile(`(?i)\s+asimismo\s+`), 0.8},
	{regexp.MustCompile(`(?i)\s+igualmente\s+`), 0.8},
	{regexp.MustCompile(`(?i)\s+por\s+otro\s+lado\s+`), 0.9},
	{regexp.MustCompile(`(?i)\s+por\s+otra\s+parte\s+`), 0.9},
	{regexp.MustCompile(`(?i)\s+adicionalmente\s+`), 0.85},
	{regexp.MustCompile(`;`), 0.7},
}

var interrogativePattern = regexp.MustCompile(`(?i)(?:` + interrogatives + `)`)

// The remaining families run on folded text.
var (
	comparatorPattern  = regexp.MustCompile(`\b(?:compar[ao]|diferencia|vs\.?|versus|entre)\b`)
	comparisonPatterns = []weighted{
		{comparatorPattern, 0.95},
		{regexp.MustCompile(`\b(?:a\s+diferencia\s+de|en\s+contraste\s+con|en\s+comparacion\s+con)\b`), 0.9},
		{regexp.MustCompile(`\b(?:mejor|peor|mas|menos)\s+(?:que|de)\b`), 0.7},
	}
	enumerationPatterns = []weighted{
		{regexp.MustCompile(`\b(?:primer[ao]|segund[ao]|tercer[ao]|cuart[ao])\b`), 0.8},
		{regexp.MustCompile(`\b\d+[.)]\s+`), 0.9},
		{regexp.MustCompile(`\b[a-z][.)]\s+`), 0.7},
	}
	entitySeparator = regexp.MustCompile(`(?i)\s+y\s+`)
)

var legalThemes = []string{
	"tutela", "accion de tutela", "cumplimiento", "accion de cumplimiento",
	"grupo", "accion de grupo", "accion popular",
	"laboral", "despido", "liquidacion", "pension", "jubilacion", "salario", "prestaciones",
	"contrato", "incumplimiento", "danos", "perjuicios", "indemnizacion",
	"divorcio", "custodia", "alimentos",
	"penal", "delito", "condena",
	"civil", "comercial", "administrativo",
	"ejecutivo", "declarativo",
	"sentencia", "fallo", "providencia",
}

const (
	minPartRunes      = 10
	splitThreshold    = 0.75
	strongConjunction = 0.9
	themeSpread       = 20
	multiPartMin      = 0.7
)

// Decompose detects whether query asks several things and cuts it into parts.
func Decompose(query string) *Decomposition {
	q := normalize(query)
	f := fold(q)

	indicators, themes := detectIndicators(q, f)
	parts := splitParts(q, f, indicators)

	d := &Decomposition{
		Parts:      parts,
		Indicators: indicators,
		Complexity: complexityOf(indicators, parts),
		Confidence: confidenceOf(indicators, parts),
		Metadata: Metadata{
			QuestionCount:  strings.Count(q, "?"),
			ThemeCount:     themes,
			HasComparison:  hasType(indicators, IndicatorComparison),
			HasEnumeration: hasType(indicators, IndicatorEnumeration),
		},
	}
	d.IsMultiPart = len(parts) > 1 || d.Confidence >= multiPartMin
	return d
}

func detectIndicators(q string, f folded) ([]Indicator, int) {
	var out []Indicator

	for _, p := range conjunctionPatterns {
		for _, loc := range p.re.FindAllStringIndex(q, -1) {
			out = append(out, Indicator{IndicatorConjunction, loc[0], q[loc[0]:loc[1]], p.weight})
		}
	}

	marks := strings.Count(q, "?")
	words := len(interrogativePattern.FindAllStringIndex(q, -1))
	switch {
	case marks >= 2:
		out = append(out, Indicator{IndicatorQuestion, 0, fmt.Sprintf("%d preguntas", marks), 0.95})
	case words > 1:
		out = append(out, Indicator{IndicatorQuestion, 0, fmt.Sprintf("%d palabras interrogativas", words),
			math.Min(0.6+float64(words-1)*0.2, 1)})
	}

	for _, p := range comparisonPatterns {
		for _, loc := range p.re.FindAllStringIndex(f.text, -1) {
			out = append(out, Indicator{IndicatorComparison, f.source(loc[0]), f.slice(loc[0], loc[1]), p.weight})
		}
	}

	for _, p := range enumerationPatterns {
		locs := p.re.FindAllStringIndex(f.text, -1)
		if len(locs) < 2 {
			continue
		}
		for _, loc := range locs {
			out = append(out, Indicator{IndicatorEnumeration, f.source(loc[0]), f.slice(loc[0], loc[1]), p.weight})
		}
	}

	var found []string
	lo, hi := math.MaxInt, -1
	for _, theme := range legalThemes {
		i := strings.Index(f.text, theme)
		if i < 0 {
			continue
		}
		found = append(found, theme)
		lo, hi = min(lo, i), max(hi, i)
	}
	if len(found) > 1 && hi-lo > themeSpread {
		out = append(out, Indicator{IndicatorTheme, 0,
			fmt.Sprintf("%d temas: %s", len(found), strings.Join(found, ", ")), 0.8})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, len(found)
}

// splitParts always returns at least one part; q itself when no piece
// qualifies.
func splitParts(q string, f folded, indicators []Indicator) []string {
	if parts := cutParts(q, f, indicators); len(parts) > 0 {
		return parts
	}
	return []string{q}
}

func cutParts(q string, f folded, indicators []Indicator) []string {
	if len(indicators) == 0 {
		return nil
	}

	var points []int
	strong := false
	for _, ind := range indicators {
		if ind.Type == IndicatorConjunction && ind.Confidence >= strongConjunction {
			strong = true
		}
		if ind.Confidence >= splitThreshold && (ind.Type == IndicatorConjunction || ind.Type == IndicatorEnumeration) {
			points = append(points, ind.Position)
		}
	}
	sort.Ints(points)

	if len(points) > 0 && strong {
		return cutAt(q, points)
	}

	if hasType(indicators, IndicatorComparison) {
		if parts := splitComparison(q, f); len(parts) > 0 {
			return parts
		}
	}

	parts := cutAt(q, points)
	if len(parts) <= 1 && strings.Count(q, "?") >= 2 {
		if questions := splitQuestions(q); len(questions) > 1 {
			return questions
		}
	}
	return parts
}

// cutAt slices q at the given offsets and keeps the pieces long enough to
// stand on their own.
func cutAt(q string, points []int) []string {
	var parts []string
	start := 0
	for _, p := range append(points, len(q)) {
		if p < start {
			continue
		}
		if part := strings.TrimSpace(q[start:p]); runeLen(part) > minPartRunes {
			parts = append(parts, part)
		}
		start = p
	}
	return parts
}

// splitComparison turns "diferencia entre A y B" into the shared prefix joined
// with each side.
func splitComparison(q string, f folded) []string {
	loc := comparatorPattern.FindStringIndex(f.text)
	if loc == nil {
		return nil
	}
	before := strings.TrimSpace(q[:f.source(loc[0])])
	after := strings.TrimSpace(q[f.source(loc[1]):])
	sides := entitySeparator.Split(after, -1)
	if len(sides) < 2 {
		return nil
	}
	var parts []string
	for _, side := range sides[:2] {
		if part := strings.TrimSpace(before + " " + strings.TrimSpace(side)); part != "" {
			parts = append(parts, part)
		}
	}
	return parts
}

// splitQuestions cuts after every '?' that is followed by whitespace.
func splitQuestions(q string) []string {
	var parts []string
	start := 0
	for i := 0; i < len(q)-1; i++ {
		if q[i] == '?' && (q[i+1] == ' ' || q[i+1] == '\t' || q[i+1] == '\n') {
			if part := strings.TrimSpace(q[start : i+1]); runeLen(part) > minPartRunes {
				parts = append(parts, part)
			}
			start = i + 1
		}
	}
	if part := strings.TrimSpace(q[start:]); runeLen(part) > minPartRunes {
		parts = append(parts, part)
	}
	return parts
}

func complexityOf(indicators []Indicator, parts []string) Complexity {
	switch {
	case hasType(indicators, IndicatorComparison):
		return ComplexityComparative
	case len(parts) > 1:
		return ComplexityMulti
	default:
		return ComplexitySimple
	}
}

func confidenceOf(indicators []Indicator, parts []string) float64 {
	if len(indicators) == 0 {
		return 0
	}
	var sum float64
	types := make(map[IndicatorType]struct{})
	for _, ind := range indicators {
		sum += ind.Confidence
		types[ind.Type] = struct{}{}
	}
	c := sum / float64(len(indicators))
	if len(parts) > 1 {
		c += 0.2
	}
	if len(types) >= 2 {
		c += 0.1
	}
	c = math.Max(0, math.Min(c, 1))
	return math.Round(c*100) / 100
}

func hasType(indicators []Indicator, t IndicatorType) bool {
	for _, ind := range indicators {
		if ind.Type == t {
			return true
		}
	}
	return false
}
