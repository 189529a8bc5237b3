package keyword

import (
	"context"
	"fmt"
	"os"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/lang/es"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/hyperjump/norma/internal/models"
)

// titleBoost weights title matches over body matches.
const titleBoost = 2.0

// BleveIndex implements Index on top of a Bleve index using the Spanish analyzer.
// It is an alternative to BM25Index for deployments that prefer an on-disk index.
type BleveIndex struct {
	index bleve.Index
}

type bleveChunk struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	DocType string `json:"docType"`
}

func chunkMapping() *mapping.IndexMappingImpl {
	im := bleve.NewIndexMapping()
	docMapping := bleve.NewDocumentMapping()

	text := bleve.NewTextFieldMapping()
	text.Analyzer = es.AnalyzerName
	docMapping.AddFieldMappingsAt("content", text)
	docMapping.AddFieldMappingsAt("title", text)
	docMapping.AddFieldMappingsAt("docType", bleve.NewKeywordFieldMapping())

	im.AddDocumentMapping("chunk", docMapping)
	im.DefaultType = "chunk"
	im.DefaultMapping = docMapping
	return im
}

// NewBleveIndex opens the index at path, or creates it when the path does not exist.
// An empty path builds an in-memory index.
func NewBleveIndex(path string) (*BleveIndex, error) {
	if path == "" {
		index, err := bleve.NewMemOnly(chunkMapping())
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory Bleve index: %w", err)
		}
		return &BleveIndex{index: index}, nil
	}
	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		return &BleveIndex{index: index}, nil
	}
	index, err := bleve.New(path, chunkMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

// IndexChunks adds or replaces chunks in a single batch.
func (b *BleveIndex) IndexChunks(ctx context.Context, chunks []*models.Chunk) error {
	batch := b.index.NewBatch()
	for _, c := range chunks {
		if err := ctx.Err(); err != nil {
			return err
		}
		doc := bleveChunk{Title: c.Metadata.Title, Content: c.Content, DocType: string(c.Metadata.DocType)}
		if err := batch.Index(c.ID, doc); err != nil {
			return fmt.Errorf("failed to queue chunk %s: %w", c.ID, err)
		}
	}
	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to index chunks: %w", err)
	}
	return nil
}

// Search matches the query against title and content, boosting title hits.
// Equal scores are ordered by id.
func (b *BleveIndex) Search(ctx context.Context, query string, limit int) ([]*Result, error) {
	if limit <= 0 {
		limit = 10
	}
	title := bleve.NewMatchQuery(query)
	title.SetField("title")
	title.SetBoost(titleBoost)
	content := bleve.NewMatchQuery(query)
	content.SetField("content")

	req := bleve.NewSearchRequest(bleve.NewDisjunctionQuery(title, content))
	req.Size = limit
	req.SortBy([]string{"-_score", "_id"})

	res, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}
	out := make([]*Result, len(res.Hits))
	for i, hit := range res.Hits {
		out[i] = &Result{ID: hit.ID, Score: hit.Score}
	}
	return out, nil
}

// DocCount returns the number of indexed chunks, or 0 when the count cannot be read.
func (b *BleveIndex) DocCount() int {
	n, err := b.index.DocCount()
	if err != nil {
		return 0
	}
	return int(n)
}

// Close closes the underlying index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}
