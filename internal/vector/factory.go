package vector

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/norma/internal/models"
)

// IndexType represents the type of vector index to use.
type IndexType string

const (
	// IndexTypeMemory scans every vector. Exact, suited to small corpora.
	IndexTypeMemory IndexType = "memory"
	// IndexTypeHNSW searches a prebuilt HNSW graph.
	IndexTypeHNSW IndexType = "hnsw"
)

// NewVectorIndex creates an empty index of the specified type ("memory" by default).
func NewVectorIndex(indexType string, dimensions int) (Index, error) {
	switch IndexType(indexType) {
	case IndexTypeMemory, "":
		return NewMemoryIndex(dimensions)
	case IndexTypeHNSW:
		return NewHNSWIndex(dimensions)
	default:
		return nil, fmt.Errorf("unknown index type: %s (supported: memory, hnsw)", indexType)
	}
}

// OpenOptions locates the vector artifacts.
type OpenOptions struct {
	BlobPath   string
	IDsPath    string
	Dimensions int
	Logger     *zap.Logger
}

// Open returns the HNSW index when both artifacts exist, otherwise an exact index over the
// chunk embeddings. A corrupt HNSW artifact is an error rather than a silent fallback.
func Open(ctx context.Context, opts OpenOptions, chunks []*models.Chunk) (Index, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.BlobPath != "" && opts.IDsPath != "" {
		h, err := LoadHNSW(opts.BlobPath, opts.IDsPath, opts.Dimensions)
		if err == nil {
			logger.Info("loaded hnsw index", zap.Int("nodes", h.Size()))
			return h, nil
		}
		if !errors.Is(err, models.ErrNotFound) {
			return nil, err
		}
		logger.Info("hnsw artifacts unavailable, using exact scan", zap.Error(err))
	}
	idx, skipped, err := FromChunks(ctx, opts.Dimensions, chunks)
	if err != nil {
		return nil, err
	}
	if skipped > 0 {
		logger.Warn("chunks without usable embeddings", zap.Int("skipped", skipped))
	}
	return idx, nil
}
