package search

import (
	"context"
	"errors"
	"testing"

	"github.com/hyperjump/norma/internal/corpus"
	"github.com/hyperjump/norma/internal/embedding"
	"github.com/hyperjump/norma/internal/keyword"
	"github.com/hyperjump/norma/internal/models"
	"github.com/hyperjump/norma/internal/vector"
)

type staticIndexes struct {
	docs    *corpus.Corpus
	lexical keyword.Index
	vectors vector.Index
}

func (s *staticIndexes) Corpus(context.Context) *corpus.Corpus { return s.docs }
func (s *staticIndexes) Lexical(context.Context) keyword.Index { return s.lexical }
func (s *staticIndexes) Vectors(context.Context) vector.Index  { return s.vectors }

type failingLexical struct{}

func (failingLexical) Search(context.Context, string, int) ([]*keyword.Result, error) {
	return nil, errors.New("index unavailable")
}
func (failingLexical) DocCount() int { return 1 }
func (failingLexical) Close() error  { return nil }

func testCorpus() []*models.Chunk {
	return []*models.Chunk{
		{ID: "tutela-1", Content: "La acción de tutela protege los derechos fundamentales.",
			Metadata: models.ChunkMetadata{Title: "Decreto 2591 de 1991", DocType: models.DocTypeRegulation, Article: "1"}},
		{ID: "pension-1", Content: "La pensión de vejez exige semanas cotizadas y edad mínima.",
			Metadata: models.ChunkMetadata{Title: "Ley 100 de 1993", DocType: models.DocTypeStatute, Article: "33"}},
		{ID: "tutela-cc", Content: "La Corte reitera que la tutela procede contra particulares.",
			Metadata: models.ChunkMetadata{Title: "Sentencia T-760 de 2008", DocType: models.DocTypeCaselaw}},
		{ID: "despido-1", Content: "El despido sin justa causa genera indemnización al trabajador.",
			Metadata: models.ChunkMetadata{Title: "Código Sustantivo del Trabajo", DocType: models.DocTypeStatute, Article: "64"}},
	}
}

func newTestRetriever(t *testing.T, withVectors bool) *Retriever {
	t.Helper()
	ctx := context.Background()
	chunks := testCorpus()
	emb := embedding.NewHashingEmbedder(64)
	idx := &staticIndexes{docs: corpus.New(chunks), lexical: keyword.BuildBM25(chunks)}
	if !withVectors {
		return NewRetriever(idx, nil, nil)
	}
	for _, c := range chunks {
		v, err := emb.Embed(ctx, c.Content)
		if err != nil {
			t.Fatal(err)
		}
		c.Embedding = v
	}
	mem, skipped, err := vector.FromChunks(ctx, 64, chunks)
	if err != nil || skipped != 0 {
		t.Fatalf("FromChunks: skipped=%d err=%v", skipped, err)
	}
	idx.vectors = mem
	return NewRetriever(idx, emb, nil)
}

func hitIDs(hits []*Hit) []string {
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.Chunk.ID
	}
	return out
}

func TestRetriever_Retrieve(t *testing.T) {
	r := newTestRetriever(t, true)
	resp, err := r.Retrieve(context.Background(), Query{Text: "acción de tutela derechos fundamentales", TopK: 3})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Hits) == 0 || len(resp.Hits) > 3 {
		t.Fatalf("got %d hits", len(resp.Hits))
	}
	if resp.Hits[0].Chunk.ID != "tutela-1" {
		t.Errorf("top hit = %s, want tutela-1 (all: %v)", resp.Hits[0].Chunk.ID, hitIDs(resp.Hits))
	}
	if resp.Hits[0].LexicalScore == nil || resp.Hits[0].VectorScore == nil {
		t.Error("top hit should carry both source scores")
	}
	for i := 1; i < len(resp.Hits); i++ {
		if resp.Hits[i].Score > resp.Hits[i-1].Score {
			t.Errorf("hits not sorted: %v", hitIDs(resp.Hits))
		}
	}
}

func TestRetriever_DocTypeFilter(t *testing.T) {
	r := newTestRetriever(t, true)
	resp, err := r.Retrieve(context.Background(), Query{Text: "tutela", DocType: models.DocTypeCaselaw})
	if err != nil {
		t.Fatal(err)
	}
	for _, h := range resp.Hits {
		if h.Chunk.Metadata.DocType != models.DocTypeCaselaw {
			t.Errorf("filter leaked %s (%s)", h.Chunk.ID, h.Chunk.Metadata.DocType)
		}
	}
	if len(resp.Hits) == 0 || resp.Hits[0].Chunk.ID != "tutela-cc" {
		t.Errorf("got %v, want tutela-cc first", hitIDs(resp.Hits))
	}
}

func TestRetriever_RespellsLexicalQuery(t *testing.T) {
	r := newTestRetriever(t, false)
	resp, err := r.Retrieve(context.Background(), Query{Text: "tutla"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.CorrectedQuery != "tutela" {
		t.Errorf("CorrectedQuery = %q, want tutela", resp.CorrectedQuery)
	}
	if len(resp.Hits) != 2 {
		t.Errorf("got %v, want both tutela chunks", hitIDs(resp.Hits))
	}
}

func TestRetriever_DegradesToVectorList(t *testing.T) {
	r := newTestRetriever(t, true)
	r.indexes.(*staticIndexes).lexical = failingLexical{}
	resp, err := r.Retrieve(context.Background(), Query{Text: "despido sin justa causa"})
	if err != nil {
		t.Fatalf("single retriever failure should degrade, got %v", err)
	}
	if resp.LexicalCount != 0 || resp.VectorCount == 0 {
		t.Errorf("counts lexical=%d vector=%d", resp.LexicalCount, resp.VectorCount)
	}
	if len(resp.Hits) == 0 || resp.Hits[0].Chunk.ID != "despido-1" {
		t.Errorf("got %v, want despido-1 first", hitIDs(resp.Hits))
	}
}

func TestRetriever_EmptyIndexes(t *testing.T) {
	r := NewRetriever(&staticIndexes{docs: corpus.New(nil), lexical: keyword.NewEmptyBM25()}, nil, nil)
	resp, err := r.Retrieve(context.Background(), Query{Text: "tutela"})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Hits) != 0 {
		t.Errorf("expected no hits, got %d", len(resp.Hits))
	}
}
