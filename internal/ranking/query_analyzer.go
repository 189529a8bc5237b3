package ranking

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/hyperjump/norma/internal/keyword"
)

var articleQueryPattern = regexp.MustCompile(`(?i)art[íi]culo\s+(\d+)`)

// QueryAnalyzer extracts the terms and article reference of a query.
type QueryAnalyzer struct{}

// NewQueryAnalyzer creates a new QueryAnalyzer.
func NewQueryAnalyzer() *QueryAnalyzer {
	return &QueryAnalyzer{}
}

// Analyze parses a query string and returns an AnalyzedQuery.
func (qa *QueryAnalyzer) Analyze(query string) *AnalyzedQuery {
	result := &AnalyzedQuery{
		Original: query,
		Terms:    []string{},
	}

	seen := make(map[string]bool)
	for _, word := range strings.Fields(keyword.FoldText(query)) {
		word = qa.normalizeToken(word)
		if utf8.RuneCountInString(word) <= 2 || seen[word] {
			continue
		}
		seen[word] = true
		result.Terms = append(result.Terms, word)
	}

	if m := articleQueryPattern.FindStringSubmatch(query); m != nil {
		result.Article = strings.TrimLeft(m[1], "0")
	}
	return result
}

// normalizeToken removes punctuation from the edges of a folded token.
func (qa *QueryAnalyzer) normalizeToken(token string) string {
	return strings.TrimFunc(token, func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSymbol(r)
	})
}

// articleDigits keeps the digits of an article label ("Artículo 86." gives "86").
func articleDigits(article string) string {
	var b strings.Builder
	for _, r := range article {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return strings.TrimLeft(b.String(), "0")
}
