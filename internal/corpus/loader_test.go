package corpus

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hyperjump/norma/internal/models"
)

func sampleChunks() []*models.Chunk {
	return []*models.Chunk{
		{ID: "c1", Content: "Artículo 86. Toda persona tendrá acción de tutela.", Metadata: models.ChunkMetadata{Title: "Constitución Política", DocType: models.DocTypeStatute, Article: "86"}},
		{ID: "c2", Content: "El sistema de seguridad social integral.", Embedding: []float32{0.1, 0.2}, Metadata: models.ChunkMetadata{Title: "Ley 100 de 1993", DocType: models.DocTypeStatute}},
	}
}

func collect(t *testing.T, raw string) ([]*models.Chunk, error) {
	t.Helper()
	var out []*models.Chunk
	err := Stream(strings.NewReader(raw), func(c *models.Chunk) error {
		out = append(out, c)
		return nil
	})
	return out, err
}

func TestStream_Formats(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want int
	}{
		{"array", `[{"id":"a","content":"uno"},{"id":"b","content":"dos"}]`, 2},
		{"ndjson", "{\"id\":\"a\",\"content\":\"uno\"}\n{\"id\":\"b\",\"content\":\"dos\"}\n", 2},
		{"leading whitespace", "\n  [{\"id\":\"a\",\"content\":\"uno\"}]", 1},
		{"empty input", "", 0},
		{"empty array", "[]", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := collect(t, tt.raw)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != tt.want {
				t.Errorf("got %d chunks, want %d", len(got), tt.want)
			}
		})
	}
}

func TestStream_Structural(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"missing id", `[{"content":"x"}]`},
		{"missing content", `[{"id":"a"}]`},
		{"duplicate id", `[{"id":"a","content":"x"},{"id":"a","content":"y"}]`},
		{"truncated array", `[{"id":"a","content":"x"}`},
		{"scalar", `42`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := collect(t, tt.raw)
			if !errors.Is(err, models.ErrStructural) {
				t.Errorf("expected ErrStructural, got %v", err)
			}
		})
	}
}

func TestStream_StopsOnCallbackError(t *testing.T) {
	stop := errors.New("stop")
	calls := 0
	err := Stream(strings.NewReader(`[{"id":"a","content":"x"},{"id":"b","content":"y"}]`), func(*models.Chunk) error {
		calls++
		return stop
	})
	if !errors.Is(err, stop) || calls != 1 {
		t.Errorf("err=%v calls=%d", err, calls)
	}
}

func TestWriteLoad_Compressed(t *testing.T) {
	for _, name := range []string{"corpus.jsonl", "corpus.jsonl.gz", "corpus.jsonl.zst"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			if err := Write(path, sampleChunks()); err != nil {
				t.Fatal(err)
			}
			got, err := Load(path)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != 2 {
				t.Fatalf("got %d chunks", len(got))
			}
			if got[0].Metadata.Article != "86" || got[1].Embedding[1] != 0.2 {
				t.Errorf("fields not preserved: %+v %+v", got[0].Metadata, got[1].Embedding)
			}
		})
	}
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	if !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
