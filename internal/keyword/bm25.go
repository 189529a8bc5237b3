package keyword

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/hyperjump/norma/internal/models"
)

// BM25 parameters.
const (
	DefaultK1 = 1.5
	DefaultB  = 0.75
)

// BM25Index is an inverted index scored with Okapi BM25. It is immutable after BuildBM25
// or ReadBM25 and safe for concurrent readers.
type BM25Index struct {
	DF            map[string]int            `json:"df"`
	AvgDL         float64                   `json:"avgDL"`
	DocLengths    map[string]int            `json:"docLengths"`
	InvertedIndex map[string]map[string]int `json:"invertedIndex"`
	TotalDocs     int                       `json:"totalDocs"`
}

// NewEmptyBM25 returns an index with no documents.
func NewEmptyBM25() *BM25Index {
	return &BM25Index{
		DF:            map[string]int{},
		DocLengths:    map[string]int{},
		InvertedIndex: map[string]map[string]int{},
	}
}

// BuildBM25 indexes the content of every chunk.
// Chunks with a repeated id replace the earlier occurrence.
func BuildBM25(chunks []*models.Chunk) *BM25Index {
	idx := NewEmptyBM25()
	for _, c := range chunks {
		if c == nil {
			continue
		}
		if _, seen := idx.DocLengths[c.ID]; seen {
			idx.remove(c.ID)
		}
		tokens := Tokenize(c.Content)
		idx.DocLengths[c.ID] = len(tokens)
		for _, tok := range tokens {
			postings, ok := idx.InvertedIndex[tok]
			if !ok {
				postings = map[string]int{}
				idx.InvertedIndex[tok] = postings
			}
			if postings[c.ID] == 0 {
				idx.DF[tok]++
			}
			postings[c.ID]++
		}
	}
	idx.recomputeStats()
	return idx
}

func (idx *BM25Index) remove(id string) {
	for term, postings := range idx.InvertedIndex {
		if _, ok := postings[id]; !ok {
			continue
		}
		delete(postings, id)
		idx.DF[term]--
		if len(postings) == 0 {
			delete(idx.InvertedIndex, term)
			delete(idx.DF, term)
		}
	}
	delete(idx.DocLengths, id)
}

func (idx *BM25Index) recomputeStats() {
	idx.TotalDocs = len(idx.DocLengths)
	total := 0
	for _, l := range idx.DocLengths {
		total += l
	}
	if idx.TotalDocs == 0 {
		idx.AvgDL = 0
		return
	}
	idx.AvgDL = float64(total) / float64(idx.TotalDocs)
}

// Score returns the BM25 score of chunk id for query. Unknown ids score 0.
func (idx *BM25Index) Score(query string, id string) float64 {
	return idx.scoreTokens(Tokenize(query), id)
}

func (idx *BM25Index) scoreTokens(tokens []string, id string) float64 {
	dl, ok := idx.DocLengths[id]
	if !ok || idx.TotalDocs == 0 {
		return 0
	}
	avgDL := idx.AvgDL
	if avgDL == 0 {
		avgDL = 1
	}
	n := float64(idx.TotalDocs)
	var score float64
	for _, tok := range tokens {
		tf := idx.InvertedIndex[tok][id]
		if tf == 0 {
			continue
		}
		df := float64(idx.DF[tok])
		idf := math.Log((n-df+0.5)/(df+0.5) + 1)
		ftf := float64(tf)
		tfNorm := ftf * (DefaultK1 + 1) / (ftf + DefaultK1*(1-DefaultB+DefaultB*float64(dl)/avgDL))
		score += idf * tfNorm
	}
	return score
}

// Search scores every chunk that contains at least one query token and returns the best limit.
// Equal scores are ordered by chunk id.
func (idx *BM25Index) Search(ctx context.Context, query string, limit int) ([]*Result, error) {
	tokens := Tokenize(query)
	candidates := make(map[string]struct{})
	for _, tok := range tokens {
		for id := range idx.InvertedIndex[tok] {
			candidates[id] = struct{}{}
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	results := make([]*Result, 0, len(candidates))
	for id := range candidates {
		results = append(results, &Result{ID: id, Score: idx.scoreTokens(tokens, id)})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// DocCount returns the number of indexed chunks.
func (idx *BM25Index) DocCount() int {
	return idx.TotalDocs
}

// Close is a no-op; the index lives in memory.
func (idx *BM25Index) Close() error {
	return nil
}

// Terms returns the vocabulary in lexical order.
func (idx *BM25Index) Terms() []string {
	terms := make([]string, 0, len(idx.DF))
	for t := range idx.DF {
		terms = append(terms, t)
	}
	sort.Strings(terms)
	return terms
}

// DocFreq returns the document frequency of term.
func (idx *BM25Index) DocFreq(term string) int {
	return idx.DF[term]
}

// Write serializes the index as JSON with the keys df, avgDL, docLengths, invertedIndex and totalDocs.
func (idx *BM25Index) Write(w io.Writer) error {
	bw := bufio.NewWriter(w)
	if err := json.NewEncoder(bw).Encode(idx); err != nil {
		return fmt.Errorf("failed to encode bm25 index: %w", err)
	}
	return bw.Flush()
}

// Save writes the index to path, creating parent directories.
func (idx *BM25Index) Save(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create index directory: %w", err)
		}
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create index file: %w", err)
	}
	if err := idx.Write(f); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

var bm25Fields = []string{"df", "avgDL", "docLengths", "invertedIndex", "totalDocs"}

// ReadBM25 decodes an index and validates its structure. A missing, null or mistyped
// field, or a posting that references an unknown chunk, yields models.ErrStructural.
func ReadBM25(r io.Reader) (*BM25Index, error) {
	var raw map[string]json.RawMessage
	if err := json.NewDecoder(bufio.NewReader(r)).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode bm25 index: %v: %w", err, models.ErrStructural)
	}
	for _, field := range bm25Fields {
		v, ok := raw[field]
		if !ok || string(v) == "null" {
			return nil, fmt.Errorf("bm25 index missing field %q: %w", field, models.ErrStructural)
		}
	}

	idx := &BM25Index{}
	targets := map[string]any{
		"df":            &idx.DF,
		"avgDL":         &idx.AvgDL,
		"docLengths":    &idx.DocLengths,
		"invertedIndex": &idx.InvertedIndex,
		"totalDocs":     &idx.TotalDocs,
	}
	for _, field := range bm25Fields {
		if err := json.Unmarshal(raw[field], targets[field]); err != nil {
			return nil, fmt.Errorf("bm25 index field %q: %v: %w", field, err, models.ErrStructural)
		}
	}

	for term, postings := range idx.InvertedIndex {
		for id := range postings {
			if _, ok := idx.DocLengths[id]; !ok {
				return nil, fmt.Errorf("bm25 posting for %q references unknown chunk %q: %w", term, id, models.ErrStructural)
			}
		}
	}
	return idx, nil
}

// LoadBM25 reads an index from path. A missing file yields models.ErrNotFound.
func LoadBM25(path string) (*BM25Index, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("bm25 index %s: %w", path, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to open bm25 index: %w", err)
	}
	defer f.Close()
	return ReadBM25(f)
}
