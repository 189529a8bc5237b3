package vector

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/hyperjump/norma/internal/models"
)

func TestMemoryIndex_AddSearch(t *testing.T) {
	idx, err := NewMemoryIndex(3)
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()
	ctx := context.Background()

	vecs := [][]float32{
		{1, 0, 0},
		{0.9, 0.1, 0},
		{0, 1, 0},
		{-1, 0, 0},
	}
	if err := idx.Add(ctx, []string{"a", "b", "c", "d"}, vecs); err != nil {
		t.Fatal(err)
	}
	if idx.Size() != 4 {
		t.Errorf("Size=%d", idx.Size())
	}

	results, err := idx.Search(ctx, []float32{2, 0, 0}, 4)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(results))
	}
	if results[0].ID != "a" || results[0].Score < 0.999 {
		t.Errorf("top result should be a with score 1, got %s %.3f", results[0].ID, results[0].Score)
	}
	for _, r := range results {
		if r.Score < 0 || r.Score > 1 {
			t.Errorf("score out of [0,1]: %s %.3f", r.ID, r.Score)
		}
	}
}

func TestMemoryIndex_TiesKeepInsertionOrder(t *testing.T) {
	idx, _ := NewMemoryIndex(2)
	ctx := context.Background()
	_ = idx.Add(ctx, []string{"x", "y", "z"}, [][]float32{{1, 0}, {1, 0}, {1, 0}})
	for i := 0; i < 5; i++ {
		res, err := idx.Search(ctx, []float32{1, 0}, 3)
		if err != nil {
			t.Fatal(err)
		}
		if res[0].ID != "x" || res[1].ID != "y" || res[2].ID != "z" {
			t.Fatalf("unexpected order: %s %s %s", res[0].ID, res[1].ID, res[2].ID)
		}
	}
}

func TestMemoryIndex_DimensionMismatch(t *testing.T) {
	idx, _ := NewMemoryIndex(2)
	if err := idx.Add(context.Background(), []string{"x"}, [][]float32{{1, 0, 0}}); err == nil {
		t.Error("expected dimension error on Add")
	}
	if _, err := idx.Search(context.Background(), []float32{1}, 1); err == nil {
		t.Error("expected dimension error on Search")
	}
}

func TestMemoryIndex_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vectors.bin")
	idx, _ := NewMemoryIndex(2)
	_ = idx.Add(context.Background(), []string{"ley-100", "t-406"}, [][]float32{{0.6, 0.8}, {1, 0}})
	if err := idx.Save(path); err != nil {
		t.Fatal(err)
	}
	loaded, err := LoadMemoryIndex(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Size() != 2 || loaded.Dimensions() != 2 {
		t.Fatalf("loaded size=%d dims=%d", loaded.Size(), loaded.Dimensions())
	}
	res, _ := loaded.Search(context.Background(), []float32{0.6, 0.8}, 1)
	if res[0].ID != "ley-100" {
		t.Errorf("top = %s, want ley-100", res[0].ID)
	}

	if _, err := LoadMemoryIndex(filepath.Join(t.TempDir(), "missing.bin")); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestFromChunks_SkipsMissingEmbeddings(t *testing.T) {
	chunks := []*models.Chunk{
		{ID: "a", Embedding: []float32{1, 0}},
		{ID: "b"},
		{ID: "c", Embedding: []float32{1, 0, 0}},
	}
	idx, skipped, err := FromChunks(context.Background(), 2, chunks)
	if err != nil {
		t.Fatal(err)
	}
	if idx.Size() != 1 || skipped != 2 {
		t.Errorf("size=%d skipped=%d", idx.Size(), skipped)
	}
}
