package indexer

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hyperjump/norma/internal/corpus"
	"github.com/hyperjump/norma/internal/embedding"
	"github.com/hyperjump/norma/internal/keyword"
	"github.com/hyperjump/norma/internal/models"
	"github.com/hyperjump/norma/internal/vector"
)

const frontmatterDoc = `---
title: "Ley 100 de 1993"
tipo: estatuto
url: https://www.secretariasenado.gov.co/ley_100_1993.html
---
Inicio
Índice de artículos
ARTÍCULO 1o. Sistema de seguridad social integral. El sistema tiene por objeto garantizar los derechos irrenunciables de la persona.
ARTÍCULO 2o. Principios. El servicio público esencial de seguridad social se prestará con eficiencia, universalidad y solidaridad.
`

const headerRuleDoc = `Tipo: Sentencia de tutela
Tema: derechos fundamentales
========================================
SENTENCIA T-760 DE 2008
La Corte Constitucional revisa los fallos de tutela relacionados con el derecho a la salud de los usuarios del sistema.
`

func writeSource(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestIngestFile_Frontmatter(t *testing.T) {
	dir := t.TempDir()
	path := writeSource(t, dir, "ley_100_1993.txt", frontmatterDoc)

	chunks, err := NewIndexer(nil).IngestFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) == 0 {
		t.Fatal("expected chunks")
	}
	meta := chunks[0].Metadata
	if meta.Title != "Ley 100 de 1993" || meta.DocType != models.DocTypeStatute {
		t.Errorf("unexpected metadata: %+v", meta)
	}
	if meta.DocID != "doc-ley_100_1993" || meta.EffectiveDate != "1993" {
		t.Errorf("doc id / effective date: %+v", meta)
	}
	if !strings.HasPrefix(meta.SourceURL, "https://www.secretariasenado.gov.co/") {
		t.Errorf("source url: %q", meta.SourceURL)
	}
	for _, c := range chunks {
		if strings.Contains(c.Content, "Inicio") || strings.Contains(c.Content, "title:") {
			t.Errorf("navigation or header leaked into chunk: %q", c.Content)
		}
		if len(c.Embedding) != 0 {
			t.Error("no embedder configured, embeddings should be empty")
		}
	}

	again, err := NewIndexer(nil).IngestFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if again[0].ID != chunks[0].ID {
		t.Error("chunk ids should be stable across ingestions")
	}
}

func TestIngestFile_HeaderRule(t *testing.T) {
	path := writeSource(t, t.TempDir(), "jurisprudencia_t760_2008.txt", headerRuleDoc)
	chunks, err := NewIndexer(nil).IngestFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Metadata.DocType != models.DocTypeCaselaw {
		t.Errorf("doc type = %s, want caselaw", chunks[0].Metadata.DocType)
	}
	if !strings.HasPrefix(chunks[0].Content, "SENTENCIA T-760") {
		t.Errorf("header should be stripped, got %q", chunks[0].Content)
	}
}

func TestIngestDirectory_SkipsUnsupportedAndBroken(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "ley_100_1993.txt", frontmatterDoc)
	writeSource(t, dir, "notas.xlsx", "ignored")
	writeSource(t, dir, "roto.docx", "not a zip")
	sub := filepath.Join(dir, "jurisprudencia")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatal(err)
	}
	writeSource(t, sub, "jurisprudencia_t760_2008.md", headerRuleDoc)

	chunks, docs, err := NewIndexer(nil).IngestDirectory(context.Background(), dir)
	if err != nil {
		t.Fatal(err)
	}
	if docs != 2 {
		t.Errorf("documents = %d, want 2", docs)
	}
	if len(chunks) < 2 {
		t.Errorf("expected chunks from both documents, got %d", len(chunks))
	}
}

func TestIngestDirectory_NotADirectory(t *testing.T) {
	path := writeSource(t, t.TempDir(), "a.txt", "x")
	if _, _, err := NewIndexer(nil).IngestDirectory(context.Background(), path); err == nil {
		t.Error("expected error for a file path")
	}
}

func TestEmbed_FillsMissingOnly(t *testing.T) {
	emb := embedding.NewHashingEmbedder(8)
	idx := NewIndexer(emb, WithBatchSize(2))
	kept := []float32{1, 0, 0, 0, 0, 0, 0, 0}
	chunks := []*models.Chunk{
		{ID: "a", Content: "acción de tutela"},
		{ID: "b", Content: "pensión de vejez", Embedding: kept},
		{ID: "c", Content: "cesantías"},
		{ID: "d", Content: "prima de servicios"},
	}
	if err := idx.Embed(context.Background(), chunks); err != nil {
		t.Fatal(err)
	}
	for _, c := range chunks {
		if len(c.Embedding) != 8 {
			t.Errorf("chunk %s embedding length = %d", c.ID, len(c.Embedding))
		}
	}
	if &chunks[1].Embedding[0] != &kept[0] {
		t.Error("existing embedding should be left alone")
	}
}

func TestBuild_WritesLoadableArtifacts(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	idx := NewIndexer(embedding.NewHashingEmbedder(8))
	chunks := []*models.Chunk{
		{ID: "c1", Content: "acción de tutela derechos fundamentales"},
		{ID: "c2", Content: "pensión de vejez semanas cotizadas"},
		{ID: "c3", Content: "contrato de trabajo y cesantías"},
	}
	if err := idx.Embed(ctx, chunks); err != nil {
		t.Fatal(err)
	}
	out := Artifacts{
		Corpus:  filepath.Join(dir, "corpus.ndjson.gz"),
		Lexical: filepath.Join(dir, "bm25.json"),
		HNSW:    filepath.Join(dir, "vectors.hnsw"),
		IDs:     filepath.Join(dir, "vectors.ids"),
	}
	stats, err := idx.Build(ctx, chunks, out)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Chunks != 3 || stats.Vectors != 3 || stats.Dimensions != 8 || stats.Skipped != 0 {
		t.Errorf("unexpected stats: %+v", stats)
	}

	loaded, err := corpus.Load(out.Corpus)
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded) != 3 {
		t.Errorf("corpus chunks = %d", len(loaded))
	}
	bm, err := keyword.LoadBM25(out.Lexical)
	if err != nil {
		t.Fatal(err)
	}
	if bm.DocCount() != 3 {
		t.Errorf("bm25 docs = %d", bm.DocCount())
	}
	graph, err := vector.LoadHNSW(out.HNSW, out.IDs, 8)
	if err != nil {
		t.Fatal(err)
	}
	defer graph.Close()
	if graph.Size() != 3 {
		t.Errorf("hnsw size = %d", graph.Size())
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.Contains(e.Name(), "tmp") {
			t.Errorf("temporary file left behind: %s", e.Name())
		}
	}
}

func TestBuild_WithoutEmbeddingsSkipsVectors(t *testing.T) {
	dir := t.TempDir()
	out := Artifacts{
		Lexical: filepath.Join(dir, "bm25.json"),
		HNSW:    filepath.Join(dir, "vectors.hnsw"),
		IDs:     filepath.Join(dir, "vectors.ids"),
	}
	stats, err := NewIndexer(nil).Build(context.Background(), []*models.Chunk{{ID: "x", Content: "ley"}}, out)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Vectors != 0 || stats.Skipped != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
	if _, err := os.Stat(out.HNSW); !os.IsNotExist(err) {
		t.Error("vector artifact should not be written")
	}
}

func TestDocTypeFor(t *testing.T) {
	tests := []struct {
		declared, name string
		want           models.DocType
	}{
		{"jurisprudencia", "x.txt", models.DocTypeCaselaw},
		{"Sentencia de tutela", "x.txt", models.DocTypeCaselaw},
		{"Decreto reglamentario", "x.txt", models.DocTypeStatute},
		{"", "reglamento_interno.txt", models.DocTypeRegulation},
		{"", "sentencia_c_355_2006.txt", models.DocTypeCaselaw},
		{"", "procedimiento_tutela.md", models.DocTypeProcedure},
		{"", "ley_100_1993.txt", models.DocTypeStatute},
	}
	for _, tt := range tests {
		if got := docTypeFor(tt.declared, tt.name); got != tt.want {
			t.Errorf("docTypeFor(%q, %q) = %s, want %s", tt.declared, tt.name, got, tt.want)
		}
	}
}

func TestExtractTitle(t *testing.T) {
	if got := extractTitle("# Código Sustantivo del Trabajo\ntexto", "cst"); got != "Código Sustantivo del Trabajo" {
		t.Errorf("heading title: %q", got)
	}
	if got := extractTitle("Título: Ley 1755 de 2015\n", "x"); got != "Ley 1755 de 2015" {
		t.Errorf("key title: %q", got)
	}
	if got := extractTitle("sin título", "ley_1755_2015"); got != "ley 1755 2015" {
		t.Errorf("fallback title: %q", got)
	}
}
