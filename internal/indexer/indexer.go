package indexer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/norma/internal/corpus"
	"github.com/hyperjump/norma/internal/embedding"
	"github.com/hyperjump/norma/internal/extract"
	"github.com/hyperjump/norma/internal/keyword"
	"github.com/hyperjump/norma/internal/models"
	"github.com/hyperjump/norma/internal/vector"
)

// DefaultBatchSize is how many chunks are embedded per call.
const DefaultBatchSize = 16

// chunkNamespace seeds deterministic chunk ids so rebuilding an unchanged
// source keeps its ids.
var chunkNamespace = uuid.MustParse("6f1c1d2e-8a4b-4f3e-9c7d-2b5a0e9d4c31")

// Indexer ingests source documents into chunks and writes retrieval artifacts.
type Indexer struct {
	embedder  embedding.Embedder
	chunker   *Chunker
	extractor *extract.Extractor
	batchSize int
	logger    *zap.Logger
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets a logger for progress output.
func WithLogger(l *zap.Logger) IndexerOption {
	return func(idx *Indexer) { idx.logger = l }
}

// WithChunker replaces the default 1000/150 chunker.
func WithChunker(c *Chunker) IndexerOption {
	return func(idx *Indexer) { idx.chunker = c }
}

// WithBatchSize sets how many chunks are embedded per call.
func WithBatchSize(n int) IndexerOption {
	return func(idx *Indexer) {
		if n > 0 {
			idx.batchSize = n
		}
	}
}

// NewIndexer creates an indexer. embedder may be nil, in which case chunks
// carry no embeddings and no vector artifacts are built.
func NewIndexer(embedder embedding.Embedder, opts ...IndexerOption) *Indexer {
	idx := &Indexer{
		embedder:  embedder,
		chunker:   NewChunker(1000, 150),
		extractor: extract.NewExtractor(),
		batchSize: DefaultBatchSize,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// IngestFile extracts, splits and describes one source document.
func (idx *Indexer) IngestFile(path string) ([]*models.Chunk, error) {
	raw, err := idx.extractor.Extract(path)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", path, err)
	}
	header, body := parseHeader(raw)
	body = Preprocess(stripNavigation(body))

	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	title := header.Title
	if title == "" {
		title = extractTitle(raw, stem)
	}
	effective := header.Date
	if effective == "" {
		effective = yearFromName(path)
	}
	docID := "doc-" + stem
	docType := docTypeFor(header.Type, path)

	sections := idx.chunker.Split(body)
	chunks := make([]*models.Chunk, 0, len(sections))
	for i, s := range sections {
		chunks = append(chunks, &models.Chunk{
			ID:      uuid.NewSHA1(chunkNamespace, []byte(fmt.Sprintf("%s#%d", docID, i))).String(),
			Content: s.Text,
			Metadata: models.ChunkMetadata{
				DocID:         docID,
				Title:         title,
				DocType:       docType,
				Article:       s.Article,
				Chapter:       s.Chapter,
				Section:       s.Section,
				EffectiveDate: effective,
				SourceURL:     header.URL,
			},
		})
	}
	idx.logger.Debug("document ingested",
		zap.String("path", path),
		zap.String("title", title),
		zap.Int("chunks", len(chunks)))
	return chunks, nil
}

// IngestDirectory ingests every supported file under dir in lexical order.
// Files that fail are logged and skipped; the returned count is the number of
// documents ingested.
func (idx *Indexer) IngestDirectory(ctx context.Context, dir string) ([]*models.Chunk, int, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, 0, fmt.Errorf("stat directory: %w", err)
	}
	if !info.IsDir() {
		return nil, 0, fmt.Errorf("not a directory: %s: %w", dir, models.ErrInvalid)
	}
	var (
		chunks []*models.Chunk
		docs   int
	)
	err = filepath.WalkDir(dir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || !extract.Supported(path) {
			return nil
		}
		got, err := idx.IngestFile(path)
		if err != nil {
			idx.logger.Warn("skipping document", zap.String("path", path), zap.Error(err))
			return nil
		}
		chunks = append(chunks, got...)
		docs++
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	idx.logger.Info("ingestion finished", zap.Int("documents", docs), zap.Int("chunks", len(chunks)))
	return chunks, docs, nil
}

// Embed fills missing embeddings in batches. Chunks that already carry one are left alone.
func (idx *Indexer) Embed(ctx context.Context, chunks []*models.Chunk) error {
	if idx.embedder == nil {
		return nil
	}
	var pending []*models.Chunk
	for _, c := range chunks {
		if len(c.Embedding) == 0 {
			pending = append(pending, c)
		}
	}
	for start := 0; start < len(pending); start += idx.batchSize {
		end := min(start+idx.batchSize, len(pending))
		batch := pending[start:end]
		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Content
		}
		vectors, err := idx.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return fmt.Errorf("failed to generate embeddings: %w", err)
		}
		for i, c := range batch {
			c.Embedding = vectors[i]
		}
		idx.logger.Debug("embedded batch", zap.Int("done", end), zap.Int("total", len(pending)))
	}
	return nil
}

// Artifacts names the files Build writes. Empty paths are skipped.
type Artifacts struct {
	Corpus  string
	Lexical string
	HNSW    string
	IDs     string
}

// BuildStats summarizes a build.
type BuildStats struct {
	Chunks     int           `json:"chunks"`
	Terms      int           `json:"terms"`
	Vectors    int           `json:"vectors"`
	Dimensions int           `json:"dimensions"`
	Skipped    int           `json:"skipped"`
	Elapsed    time.Duration `json:"elapsed"`
}

// Build writes the corpus, the BM25 index and the HNSW graph with its id list.
// Each file is written beside its target and renamed into place, so a watcher
// never observes a partial artifact.
func (idx *Indexer) Build(ctx context.Context, chunks []*models.Chunk, out Artifacts) (*BuildStats, error) {
	start := time.Now()
	stats := &BuildStats{Chunks: len(chunks)}

	if out.Corpus != "" {
		if err := replaceFile(out.Corpus, func(tmp string) error { return corpus.Write(tmp, chunks) }); err != nil {
			return nil, fmt.Errorf("write corpus: %w", err)
		}
	}

	if out.Lexical != "" {
		bm := keyword.BuildBM25(chunks)
		if err := bm.Save(out.Lexical); err != nil {
			return nil, fmt.Errorf("write lexical index: %w", err)
		}
		stats.Terms = len(bm.Terms())
	}

	if out.HNSW != "" && out.IDs != "" {
		if err := idx.buildVectors(ctx, chunks, out, stats); err != nil {
			return nil, err
		}
	}

	stats.Elapsed = time.Since(start)
	idx.logger.Info("artifacts built",
		zap.Int("chunks", stats.Chunks),
		zap.Int("terms", stats.Terms),
		zap.Int("vectors", stats.Vectors),
		zap.Int("skipped", stats.Skipped),
		zap.Duration("elapsed", stats.Elapsed))
	return stats, nil
}

func (idx *Indexer) buildVectors(ctx context.Context, chunks []*models.Chunk, out Artifacts, stats *BuildStats) error {
	var (
		ids     []string
		vectors [][]float32
	)
	for _, c := range chunks {
		if len(c.Embedding) == 0 {
			stats.Skipped++
			continue
		}
		if stats.Dimensions == 0 {
			stats.Dimensions = len(c.Embedding)
		}
		if len(c.Embedding) != stats.Dimensions {
			idx.logger.Warn("embedding dimension mismatch, skipping chunk",
				zap.String("id", c.ID),
				zap.Int("got", len(c.Embedding)),
				zap.Int("want", stats.Dimensions))
			stats.Skipped++
			continue
		}
		ids = append(ids, c.ID)
		vectors = append(vectors, c.Embedding)
	}
	if len(ids) == 0 {
		idx.logger.Warn("no embeddings in corpus, vector artifacts not written")
		return nil
	}

	graph, err := vector.NewHNSWIndex(stats.Dimensions)
	if err != nil {
		return err
	}
	defer graph.Close()
	if err := graph.Add(ctx, ids, vectors); err != nil {
		return fmt.Errorf("build vector index: %w", err)
	}
	blobTmp, idsTmp := out.HNSW+".tmp", out.IDs+".tmp"
	if err := graph.Save(blobTmp, idsTmp); err != nil {
		return fmt.Errorf("write vector index: %w", err)
	}
	// The id list is renamed last; the loader needs both files.
	if err := os.Rename(blobTmp, out.HNSW); err != nil {
		return fmt.Errorf("install vector index: %w", err)
	}
	if err := os.Rename(idsTmp, out.IDs); err != nil {
		return fmt.Errorf("install vector ids: %w", err)
	}
	stats.Vectors = graph.Size()
	return nil
}

// replaceFile writes through a temporary sibling of path and renames it into
// place. The temporary name keeps the extension so compression is detected.
func replaceFile(path string, write func(tmp string) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	tmp := filepath.Join(filepath.Dir(path), ".tmp-"+filepath.Base(path))
	if err := write(tmp); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
