// Package vector provides nearest-neighbor search over chunk embeddings.
package vector

import "context"

// Index defines vector similarity search. Implementations return similarities in [0,1],
// best first, with ties in insertion order.
type Index interface {
	Add(ctx context.Context, ids []string, vectors [][]float32) error
	Search(ctx context.Context, query []float32, k int) ([]*Result, error)
	Size() int
	Dimensions() int
	Type() string
	Close() error
}

// Result is a single vector search hit.
type Result struct {
	ID    string
	Score float64
}
