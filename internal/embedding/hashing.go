package embedding

import (
	"context"
	"hash/fnv"

	"github.com/hyperjump/norma/internal/keyword"
	"github.com/hyperjump/norma/pkg/utils"
)

// HashingEmbedder projects the lexical tokens of a text onto a fixed number of buckets
// (feature hashing) and L2-normalizes the result. It needs no model, so it serves tests and
// offline deployments; texts sharing tokens get similar vectors.
type HashingEmbedder struct {
	dimensions int
}

// NewHashingEmbedder returns a hashing embedder; non-positive dimensions default to 384.
func NewHashingEmbedder(dimensions int) *HashingEmbedder {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &HashingEmbedder{dimensions: dimensions}
}

// Embed hashes each token into a bucket with a sign bit.
func (e *HashingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	emb := make([]float32, e.dimensions)
	for _, tok := range keyword.Tokenize(text) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(tok))
		sum := h.Sum32()
		sign := float32(1)
		if sum&0x80000000 != 0 {
			sign = -1
		}
		emb[int(sum%uint32(e.dimensions))] += sign
	}
	utils.NormalizeL2(emb)
	return emb, nil
}

// EmbedBatch calls Embed for each text.
func (e *HashingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return embedEach(ctx, texts, e.Embed)
}

// Dimensions returns the embedding dimension.
func (e *HashingEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op.
func (e *HashingEmbedder) Close() error {
	return nil
}
