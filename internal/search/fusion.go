// Package search retrieves candidate chunks by fusing lexical and vector rankings.
package search

import (
	"sort"

	"github.com/hyperjump/norma/internal/keyword"
	"github.com/hyperjump/norma/internal/vector"
)

// DefaultRRFK is the rank offset K in 1/(K + rank).
const DefaultRRFK = 40

// DefaultHybridAlpha weights cosine similarity against normalized BM25 in HybridScore.
const DefaultHybridAlpha = 0.7

// FusedResult holds a chunk id, its fused score and the source scores it came from.
type FusedResult struct {
	ID           string
	Score        float64
	LexicalScore *float64
	VectorScore  *float64
	// LexicalRank and VectorRank are 1-based; 0 means absent from that list.
	LexicalRank int
	VectorRank  int
}

// FuseRRF merges the two rankings by Reciprocal Rank Fusion. Each list is truncated to k
// (k <= 0 keeps everything); rrfK <= 0 uses DefaultRRFK. Equal scores keep first-seen order,
// walking the lexical list before the vector list. Either list may be empty.
func FuseRRF(lexical []*keyword.Result, vec []*vector.Result, k, rrfK int) []*FusedResult {
	if rrfK <= 0 {
		rrfK = DefaultRRFK
	}
	if k > 0 && len(lexical) > k {
		lexical = lexical[:k]
	}
	if k > 0 && len(vec) > k {
		vec = vec[:k]
	}

	byID := make(map[string]*FusedResult, len(lexical)+len(vec))
	order := make([]*FusedResult, 0, len(lexical)+len(vec))
	get := func(id string) *FusedResult {
		if r, ok := byID[id]; ok {
			return r
		}
		r := &FusedResult{ID: id}
		byID[id] = r
		order = append(order, r)
		return r
	}

	for i, r := range lexical {
		f := get(r.ID)
		if f.LexicalRank != 0 {
			continue
		}
		score := r.Score
		f.LexicalScore = &score
		f.LexicalRank = i + 1
		f.Score += 1 / float64(rrfK+i+1)
	}
	for i, r := range vec {
		f := get(r.ID)
		if f.VectorRank != 0 {
			continue
		}
		score := r.Score
		f.VectorScore = &score
		f.VectorRank = i + 1
		f.Score += 1 / float64(rrfK+i+1)
	}

	sort.SliceStable(order, func(i, j int) bool { return order[i].Score > order[j].Score })
	return order
}

// HybridScore blends a cosine similarity with a BM25 score min-max normalized against
// every BM25 score of the same result set: alpha*cosine + (1-alpha)*normalizedBM25.
// A set whose BM25 scores are all equal contributes 0 from the lexical side.
func HybridScore(cosine, bm25 float64, allBM25 []float64, alpha float64) float64 {
	if len(allBM25) == 0 {
		return alpha * cosine
	}
	lo, hi := allBM25[0], allBM25[0]
	for _, s := range allBM25[1:] {
		lo = min(lo, s)
		hi = max(hi, s)
	}
	norm := 0.0
	if hi > lo {
		norm = (bm25 - lo) / (hi - lo)
	}
	return alpha*cosine + (1-alpha)*norm
}
