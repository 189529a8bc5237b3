package keyword

import (
	"bytes"
	"context"
	"errors"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/hyperjump/norma/internal/models"
)

func testChunks() []*models.Chunk {
	return []*models.Chunk{
		{ID: "c1", Content: "La acción de tutela protege derechos fundamentales."},
		{ID: "c2", Content: "El contrato de trabajo termina por despido con justa causa. Despido sin justa causa genera indemnización."},
		{ID: "c3", Content: "La pensión de vejez exige semanas cotizadas y edad."},
		{ID: "c4", Content: "Tutela contra providencias judiciales: requisitos de procedibilidad de la tutela."},
	}
}

func TestBuildBM25_AvgDocLengthExact(t *testing.T) {
	idx := BuildBM25(testChunks())
	total := 0
	for _, l := range idx.DocLengths {
		total += l
	}
	want := float64(total) / float64(idx.TotalDocs)
	if idx.AvgDL != want {
		t.Errorf("AvgDL = %v, want %v", idx.AvgDL, want)
	}
	if idx.TotalDocs != 4 {
		t.Errorf("TotalDocs = %d, want 4", idx.TotalDocs)
	}
}

func TestBuildBM25_DocFrequencyOncePerDoc(t *testing.T) {
	idx := BuildBM25(testChunks())
	if got := idx.DF["tutela"]; got != 2 {
		t.Errorf("df[tutela] = %d, want 2", got)
	}
	if got := idx.InvertedIndex["tutela"]["c4"]; got != 2 {
		t.Errorf("tf[tutela][c4] = %d, want 2", got)
	}
	if got := idx.DF["despido"]; got != 1 {
		t.Errorf("df[despido] = %d, want 1", got)
	}
}

func TestBuildBM25_PostingsReferenceKnownDocs(t *testing.T) {
	idx := BuildBM25(testChunks())
	for term, postings := range idx.InvertedIndex {
		for id := range postings {
			if _, ok := idx.DocLengths[id]; !ok {
				t.Errorf("posting %q -> %q has no doc length", term, id)
			}
		}
	}
}

func TestBuildBM25_Empty(t *testing.T) {
	idx := BuildBM25(nil)
	if idx.AvgDL != 0 || idx.TotalDocs != 0 {
		t.Errorf("empty index: avgDL=%v totalDocs=%d", idx.AvgDL, idx.TotalDocs)
	}
	if s := idx.Score("tutela", "c1"); s != 0 {
		t.Errorf("score on empty index = %v", s)
	}
}

func TestBM25_ScoreFormula(t *testing.T) {
	idx := BuildBM25(testChunks())
	n := float64(idx.TotalDocs)
	df := float64(idx.DF["tutela"])
	tf := float64(idx.InvertedIndex["tutela"]["c4"])
	dl := float64(idx.DocLengths["c4"])
	idf := math.Log((n-df+0.5)/(df+0.5) + 1)
	want := idf * tf * (DefaultK1 + 1) / (tf + DefaultK1*(1-DefaultB+DefaultB*dl/idx.AvgDL))

	got := idx.Score("tutela", "c4")
	if math.Abs(got-want) > 1e-12 {
		t.Errorf("Score = %v, want %v", got, want)
	}
}

func TestBM25_ScoreMissingChunk(t *testing.T) {
	idx := BuildBM25(testChunks())
	if s := idx.Score("tutela", "missing"); s != 0 {
		t.Errorf("Score(missing) = %v, want 0", s)
	}
}

func TestBM25_Search(t *testing.T) {
	idx := BuildBM25(testChunks())
	res, err := idx.Search(context.Background(), "requisitos de la tutela", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(res) != 2 {
		t.Fatalf("expected 2 results, got %d", len(res))
	}
	if res[0].ID != "c4" {
		t.Errorf("first result = %s, want c4", res[0].ID)
	}
	for i := 1; i < len(res); i++ {
		if res[i].Score > res[i-1].Score {
			t.Errorf("results not sorted at %d", i)
		}
	}

	limited, _ := idx.Search(context.Background(), "tutela despido pension", 1)
	if len(limited) != 1 {
		t.Errorf("limit not applied: %d", len(limited))
	}
}

func TestBM25_RoundTrip(t *testing.T) {
	idx := BuildBM25(testChunks())
	var buf bytes.Buffer
	if err := idx.Write(&buf); err != nil {
		t.Fatal(err)
	}
	for _, field := range bm25Fields {
		if !strings.Contains(buf.String(), `"`+field+`"`) {
			t.Errorf("serialized form lacks %q", field)
		}
	}
	got, err := ReadBM25(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(idx, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestBM25_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "idx", "bm25.json")
	idx := BuildBM25(testChunks())
	if err := idx.Save(path); err != nil {
		t.Fatal(err)
	}
	got, err := LoadBM25(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.TotalDocs != idx.TotalDocs {
		t.Errorf("TotalDocs = %d, want %d", got.TotalDocs, idx.TotalDocs)
	}

	_, err = LoadBM25(filepath.Join(t.TempDir(), "nope.json"))
	if !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestReadBM25_Structural(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", `{{`},
		{"missing df", `{"avgDL":1,"docLengths":{},"invertedIndex":{},"totalDocs":0}`},
		{"missing totalDocs", `{"df":{},"avgDL":1,"docLengths":{},"invertedIndex":{}}`},
		{"null postings", `{"df":{},"avgDL":1,"docLengths":{},"invertedIndex":null,"totalDocs":0}`},
		{"string avgDL", `{"df":{},"avgDL":"x","docLengths":{},"invertedIndex":{},"totalDocs":0}`},
		{"dangling posting", `{"df":{"a":1},"avgDL":1,"docLengths":{},"invertedIndex":{"ab":{"c9":1}},"totalDocs":0}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadBM25(strings.NewReader(tt.raw))
			if !errors.Is(err, models.ErrStructural) {
				t.Errorf("expected ErrStructural, got %v", err)
			}
		})
	}
}
