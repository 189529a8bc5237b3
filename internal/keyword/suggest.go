package keyword

import (
	"sort"
	"strings"
)

// LevenshteinDistance returns the number of single-rune insertions, deletions or
// substitutions needed to turn a into b.
func LevenshteinDistance(a, b string) int {
	if a == b {
		return 0
	}
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

// Suggester proposes vocabulary terms for query tokens the index has never seen.
type Suggester struct {
	dict        TermDictionary
	maxDistance int
	terms       []string
}

// NewSuggester snapshots the dictionary vocabulary. maxDistance <= 0 defaults to 2.
func NewSuggester(dict TermDictionary, maxDistance int) *Suggester {
	if maxDistance <= 0 {
		maxDistance = 2
	}
	return &Suggester{dict: dict, maxDistance: maxDistance, terms: dict.Terms()}
}

// Suggest returns the closest known term for a folded token. Known tokens and tokens with
// no candidate within maxDistance return false. Ties prefer the higher document frequency,
// then the lexically smaller term.
func (s *Suggester) Suggest(token string) (string, bool) {
	if token == "" || s.dict.DocFreq(token) > 0 {
		return "", false
	}
	type candidate struct {
		term string
		dist int
		df   int
	}
	var cands []candidate
	tl := len([]rune(token))
	for _, term := range s.terms {
		if d := len([]rune(term)) - tl; d > s.maxDistance || -d > s.maxDistance {
			continue
		}
		if dist := LevenshteinDistance(token, term); dist <= s.maxDistance {
			cands = append(cands, candidate{term, dist, s.dict.DocFreq(term)})
		}
	}
	if len(cands) == 0 {
		return "", false
	}
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].dist != cands[j].dist {
			return cands[i].dist < cands[j].dist
		}
		if cands[i].df != cands[j].df {
			return cands[i].df > cands[j].df
		}
		return cands[i].term < cands[j].term
	})
	return cands[0].term, true
}

// Correct rewrites the unknown tokens of query. It returns the corrected token string and
// whether any token changed.
func (s *Suggester) Correct(query string) (string, bool) {
	tokens := Tokenize(query)
	changed := false
	for i, tok := range tokens {
		if alt, ok := s.Suggest(tok); ok {
			tokens[i] = alt
			changed = true
		}
	}
	return strings.Join(tokens, " "), changed
}
