package keyword

import (
	"context"
	"path/filepath"
	"testing"
)

func TestBleveIndex_SearchFindsContent(t *testing.T) {
	idx, err := NewBleveIndex("")
	if err != nil {
		t.Fatalf("NewBleveIndex: %v", err)
	}
	defer func() {
		_ = idx.Close()
	}()

	ctx := context.Background()
	if err := idx.IndexChunks(ctx, testChunks()); err != nil {
		t.Fatalf("IndexChunks: %v", err)
	}
	if n := idx.DocCount(); n != 4 {
		t.Errorf("DocCount = %d, want 4", n)
	}

	results, err := idx.Search(ctx, "pensión de vejez", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("expected at least one result")
	}
	if results[0].ID != "c3" {
		t.Errorf("first result ID = %q, want c3", results[0].ID)
	}
}

func TestBleveIndex_ReopensExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bleve")
	idx, err := NewBleveIndex(path)
	if err != nil {
		t.Fatalf("NewBleveIndex: %v", err)
	}
	if err := idx.IndexChunks(context.Background(), testChunks()[:2]); err != nil {
		t.Fatal(err)
	}
	if err := idx.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := NewBleveIndex(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	if n := reopened.DocCount(); n != 2 {
		t.Errorf("DocCount after reopen = %d, want 2", n)
	}
}
