// Package keyword provides lexical (BM25) indexing and search over corpus chunks.
package keyword

import (
	"context"
)

// Index defines lexical search operations shared by the BM25 and Bleve backends.
type Index interface {
	// Search returns up to limit chunk ids ordered by descending lexical score.
	Search(ctx context.Context, query string, limit int) ([]*Result, error)
	// DocCount returns the number of indexed chunks.
	DocCount() int
	Close() error
}

// Result is a single lexical search hit.
type Result struct {
	ID    string
	Score float64
}

// TermDictionary exposes the index vocabulary for spelling suggestions.
type TermDictionary interface {
	// Terms returns every distinct indexed term.
	Terms() []string
	// DocFreq returns the number of chunks containing term.
	DocFreq(term string) int
}
