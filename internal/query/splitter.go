package query

import (
	"regexp"
	"slices"
	"strings"
)

// Context holds the legal entities mentioned in a piece of text.
type Context struct {
	Dates      []string `json:"dates,omitempty"`
	People     []string `json:"people,omitempty"`
	Procedures []string `json:"procedures,omitempty"`
	Entities   []string `json:"entities,omitempty"`
	Amounts    []string `json:"amounts,omitempty"`
	Topics     []string `json:"topics,omitempty"`
}

// IsEmpty reports whether no field holds a value.
func (c Context) IsEmpty() bool {
	return len(c.Dates)+len(c.People)+len(c.Procedures)+len(c.Entities)+len(c.Amounts)+len(c.Topics) == 0
}

func (c Context) merge(other Context) Context {
	join := func(a, b []string) []string {
		return dedupe(append(append([]string(nil), a...), b...))
	}
	return Context{
		Dates:      join(c.Dates, other.Dates),
		People:     join(c.People, other.People),
		Procedures: join(c.Procedures, other.Procedures),
		Entities:   join(c.Entities, other.Entities),
		Amounts:    join(c.Amounts, other.Amounts),
		Topics:     join(c.Topics, other.Topics),
	}
}

// SubQuery is one independently answerable question.
type SubQuery struct {
	Query     string  `json:"query"`
	Context   Context `json:"context"`
	Order     int     `json:"order"`
	DependsOn []int   `json:"dependsOn"`
}

// Dependency links sub-query From to an earlier sub-query To.
type Dependency struct {
	From   int    `json:"from"`
	To     int    `json:"to"`
	Reason string `json:"reason"`
}

// SplitResult is the outcome of Split.
type SplitResult struct {
	SubQueries    []SubQuery     `json:"subQueries"`
	CommonContext Context        `json:"commonContext"`
	Complexity    Complexity     `json:"complexity"`
	Confidence    float64        `json:"confidence"`
	IsMultiPart   bool           `json:"isMultiPart"`
	Dependencies  []Dependency   `json:"dependencies"`
	Decomposition *Decomposition `json:"-"`
}

const months = `enero|febrero|marzo|abril|mayo|junio|julio|agosto|septiembre|octubre|noviembre|diciembre`

// Extraction patterns run on folded text unless noted.
var (
	datePatterns = []*regexp.Regexp{
		regexp.MustCompile(`\b(?:19|20)\d{2}\b`),
		regexp.MustCompile(`\b(?:` + months + `)\s+(?:de\s+)?(?:19|20)?\d{2,4}\b`),
		regexp.MustCompile(`\b\d{1,2}\s+de\s+(?:` + months + `)(?:\s+de\s+(?:19|20)?\d{2,4})?\b`),
		regexp.MustCompile(`\bhace\s+\d+\s+(?:dias|semanas|meses|anos)\b`),
	}
	// Runs on the source text; capitalization is the signal.
	peoplePattern     = regexp.MustCompile(`\p{Lu}\p{Ll}+(?:\s+\p{Lu}\p{Ll}+){1,3}`)
	procedurePatterns = []*regexp.Regexp{
		regexp.MustCompile(`\b(?:accion\s+de\s+)?tutela\b`),
		regexp.MustCompile(`\b(?:accion\s+de\s+)?cumplimiento\b`),
		regexp.MustCompile(`\b(?:accion\s+de\s+)?grupo\b`),
		regexp.MustCompile(`\baccion\s+popular\b`),
		regexp.MustCompile(`\bproceso\s+(?:laboral|civil|penal|administrativo|ejecutivo|ordinario|verbal)\b`),
		regexp.MustCompile(`\b(?:demanda|denuncia|querella)\b`),
		regexp.MustCompile(`\b(?:recurso|apelacion|casacion|revision)\b`),
		regexp.MustCompile(`\breparacion\s+directa\b`),
	}
	entityPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\b(?:juzgado|tribunal|corte|consejo\s+de\s+estado)\b`),
		regexp.MustCompile(`\b(?:superintendencia|ministerio|alcaldia|gobernacion)\b`),
		regexp.MustCompile(`\b(?:policia|ejercito|fiscalia|procuraduria)\b`),
		regexp.MustCompile(`\b(?:eps|ips|hospital|clinica)\b`),
		regexp.MustCompile(`\b(?:empresa|compania|sociedad|firma)\b`),
	}
	amountPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\$\s*[\d,.]*\d`),
		regexp.MustCompile(`\b\d+\s*(?:smlmv|salarios?\s+minimos?)\b`),
		regexp.MustCompile(`\b\d+\s*(?:millones?|mil|pesos)\b`),
	}
	topicPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\bderechos?\s+(?:fundamentales?|humanos?|laborales?|civiles?|penales?)\b`),
		regexp.MustCompile(`\b(?:pension|jubilacion|cesantias?|prima|vacaciones|salario)\b`),
		regexp.MustCompile(`\b(?:despido|desvinculacion|liquidacion)\b`),
		regexp.MustCompile(`\b(?:contrato|convenio|acuerdo)\b`),
		regexp.MustCompile(`\b(?:danos?|perjuicios?|indemnizacion)\b`),
	}

	explicitProcedure = regexp.MustCompile(`\b(?:tutela|cumplimiento|grupo|laboral|ejecutivo|reparacion|accion\s+de)\b`)
	questionWord      = regexp.MustCompile(`\b(?:cual|cuales|que|como|cuando|cuanto|donde)\b`)
	pronounPatterns   = []*regexp.Regexp{
		regexp.MustCompile(`\b(?:es[oa]|est[oa]s|ell[oa]s|lo|la|los|las)\b`),
		regexp.MustCompile(`\b(?:su|sus|de\s+(?:es[oa]|ell[oa]s))\b`),
	}
	attributePatterns = []*regexp.Regexp{
		regexp.MustCompile(`\b(?:cuanto|cuanta|cuantos|cuantas)\s+(?:cuesta|vale|tarda|tiempo|plazo)\b`),
		regexp.MustCompile(`\b(?:que|cuales)\s+(?:requisitos?|documentos?|pasos?|etapas?)\b`),
	}
	comparisonMarker = regexp.MustCompile(`\b(?:diferencia|comparacion|versus|vs\.?)\b`)
)

// Capitalized legal nouns that the people pattern would otherwise pick up.
var nameStopwords = map[string]struct{}{
	"Código": {}, "Ley": {}, "Decreto": {}, "Artículo": {}, "Estado": {}, "Colombia": {},
	"Constitución": {}, "Corte": {}, "Consejo": {}, "Tribunal": {}, "Juzgado": {},
	"Sentencia": {}, "República": {}, "Nacional": {}, "Superintendencia": {}, "Ministerio": {},
}

const (
	reasonPronoun    = "Usa pronombre que refiere a consulta anterior"
	reasonAttribute  = "Pregunta por atributo de procedimiento mencionado antes"
	reasonComparison = "Comparación que requiere información de consulta anterior"
)

// ExtractContext collects dates, names, procedures, institutions, amounts and
// legal topics mentioned in text. Values are deduplicated in order of appearance.
func ExtractContext(text string) Context {
	f := fold(text)
	return Context{
		Dates:      matchSource(f, datePatterns, false),
		People:     people(text),
		Procedures: matchSource(f, procedurePatterns, true),
		Entities:   matchSource(f, entityPatterns, true),
		Amounts:    matchSource(f, amountPatterns, false),
		Topics:     matchSource(f, topicPatterns, true),
	}
}

func matchSource(f folded, patterns []*regexp.Regexp, lower bool) []string {
	var out []string
	for _, re := range patterns {
		for _, loc := range re.FindAllStringIndex(f.text, -1) {
			s := normalize(f.slice(loc[0], loc[1]))
			if lower {
				s = strings.ToLower(s)
			}
			out = append(out, s)
		}
	}
	return dedupe(out)
}

func people(text string) []string {
	var out []string
	for _, m := range peoplePattern.FindAllString(text, -1) {
		words := strings.Fields(m)
		for len(words) > 0 {
			if _, stop := nameStopwords[words[0]]; !stop {
				break
			}
			words = words[1:]
		}
		if len(words) >= 2 {
			out = append(out, strings.Join(words, " "))
		}
	}
	return dedupe(out)
}

// Split decomposes query and turns each part into a sub-query that carries the
// shared context it needs to be answered alone.
func Split(query string) *SplitResult {
	d := Decompose(query)
	common := ExtractContext(normalize(query))
	res := &SplitResult{
		CommonContext: common,
		Complexity:    d.Complexity,
		Confidence:    d.Confidence,
		IsMultiPart:   d.IsMultiPart,
		Decomposition: d,
	}

	if !d.IsMultiPart {
		res.SubQueries = []SubQuery{{Query: normalize(query), Context: common, Order: 0, DependsOn: []int{}}}
		res.Dependencies = []Dependency{}
		return res
	}

	res.SubQueries = make([]SubQuery, len(d.Parts))
	for i, part := range d.Parts {
		res.SubQueries[i] = enrich(part, common, i)
	}
	res.Dependencies = dependencies(res.SubQueries, d.Parts)
	for _, dep := range res.Dependencies {
		sq := &res.SubQueries[dep.From]
		if !slices.Contains(sq.DependsOn, dep.To) {
			sq.DependsOn = append(sq.DependsOn, dep.To)
		}
	}
	return res
}

func enrich(part string, common Context, order int) SubQuery {
	text := strings.TrimSpace(part)
	f := fold(text)
	if !explicitProcedure.MatchString(f.text) && len(common.Procedures) == 1 && questionWord.MatchString(f.text) {
		proc := common.Procedures[0]
		if !strings.Contains(strings.ToLower(text), proc) {
			text = withContextHint(text, proc)
		}
	}
	return SubQuery{
		Query:     text,
		Context:   common.merge(ExtractContext(part)),
		Order:     order,
		DependsOn: []int{},
	}
}

// withContextHint places the procedure hint before the first '?' or at the end.
func withContextHint(text, procedure string) string {
	hint := " (en el contexto de " + procedure + ")"
	if i := strings.IndexByte(text, '?'); i >= 0 {
		return strings.TrimRight(text[:i], " ") + hint + text[i:]
	}
	return text + hint
}

// dependencies only ever link a part to the one right before it.
func dependencies(subs []SubQuery, parts []string) []Dependency {
	deps := []Dependency{}
	for i := 1; i < len(subs); i++ {
		cur := fold(parts[i]).text
		prev := fold(parts[i-1]).text
		curExplicit := explicitProcedure.MatchString(cur)
		prevExplicit := explicitProcedure.MatchString(prev)

		if !curExplicit && prevExplicit && anyMatch(pronounPatterns, cur) {
			deps = append(deps, Dependency{From: i, To: i - 1, Reason: reasonPronoun})
		}
		if !curExplicit && len(subs[i-1].Context.Procedures) > 0 && anyMatch(attributePatterns, cur) {
			deps = append(deps, Dependency{From: i, To: i - 1, Reason: reasonAttribute})
		}
		if comparisonMarker.MatchString(cur) && len(subs[i].Context.Procedures) < 2 {
			deps = append(deps, Dependency{From: i, To: i - 1, Reason: reasonComparison})
		}
	}
	return deps
}

func anyMatch(patterns []*regexp.Regexp, text string) bool {
	for _, re := range patterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// SplitSimple returns only the sub-query texts.
func SplitSimple(query string) []string {
	res := Split(query)
	out := make([]string, len(res.SubQueries))
	for i, sq := range res.SubQueries {
		out[i] = sq.Query
	}
	return out
}
