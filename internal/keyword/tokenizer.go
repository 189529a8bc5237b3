package keyword

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// stopwordList is folded through foldText at init, so accented entries match their stripped tokens.
var stopwordList = []string{
	"el", "la", "de", "que", "y", "a", "en", "un", "ser", "se", "no", "haber", "por", "con", "su", "para",
	"como", "estar", "tener", "le", "lo", "todo", "pero", "mas", "hacer", "o", "poder", "decir", "este",
	"ir", "otro", "ese", "si", "me", "ya", "ver", "porque", "dar", "cuando", "muy", "sin", "vez", "mucho",
	"saber", "qué", "sobre", "mi", "alguno", "mismo", "yo", "también", "hasta", "ano", "dos", "querer",
	"entre", "asi", "primero", "desde", "grande", "eso", "ni", "nos", "llegar", "pasar", "tiempo", "ella",
	"cual", "menos", "nada", "cada", "te", "aquel", "ellos", "las", "los", "les", "del", "al", "una", "uno",
	"es", "son", "fue", "ha", "han", "era", "esta", "estas", "estos", "esas", "esos", "hay", "aqui", "ahi",
	"donde", "quien", "tan", "he", "sus", "e", "u", "ante", "bajo", "contra", "durante", "hacia",
	"mediante", "segun", "tras",
}

var stopwords = func() map[string]struct{} {
	m := make(map[string]struct{}, len(stopwordList))
	for _, w := range stopwordList {
		m[foldText(w)] = struct{}{}
	}
	return m
}()

// IsStopword reports whether the folded token is in the Spanish stop-list.
func IsStopword(token string) bool {
	_, ok := stopwords[token]
	return ok
}

// foldText lowercases s, decomposes it and drops combining diacritical marks (U+0300..U+036F).
func foldText(s string) string {
	decomposed := norm.NFD.String(strings.ToLower(s))
	return strings.Map(func(r rune) rune {
		if r >= 0x0300 && r <= 0x036f {
			return -1
		}
		return r
	}, decomposed)
}

// FoldText is the normalization applied before tokenizing, exported for callers that
// compare free text against indexed terms.
func FoldText(s string) string {
	return foldText(s)
}

// Tokenize lowercases, strips diacritics and splits on anything that is not [a-z0-9].
// Tokens of one character and stopwords are dropped. The result preserves text order and
// keeps repeated tokens.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(foldText(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	tokens := fields[:0]
	for _, f := range fields {
		if len(f) <= 1 || IsStopword(f) {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}
