package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/hyperjump/norma/internal/indexer"
	"github.com/hyperjump/norma/internal/models"
	"github.com/hyperjump/norma/internal/search"
	"github.com/hyperjump/norma/internal/vigencia"
)

func sampleResponse() *models.Response {
	return &models.Response{
		Answer: "La pensión de vejez exige 1.300 semanas cotizadas.",
		Citations: []models.Citation{
			{ID: "c1", Title: "Ley 100 de 1993", DocType: models.DocTypeStatute, Article: "Artículo 33", Score: 0.91},
		},
		RetrievedCount:    4,
		DetectedLegalArea: "laboral",
		RequestID:         "req-1",
	}
}

func TestWriteAnswer_Text(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteAnswer(&buf, sampleResponse(), OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"1.300 semanas", "Área legal: laboral", "[1] Ley 100 de 1993, Artículo 33", "1 de 4"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestWriteAnswer_JSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteAnswer(&buf, sampleResponse(), OutputJSON); err != nil {
		t.Fatal(err)
	}
	var decoded models.Response
	if err := json.NewDecoder(&buf).Decode(&decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded.RetrievedCount != 4 || len(decoded.Citations) != 1 {
		t.Errorf("decoded: %+v", decoded)
	}
}

func TestWriteSearchResults(t *testing.T) {
	lex := 2.5
	resp := &search.Response{
		Hits: []*search.Hit{{
			Chunk: &models.Chunk{
				ID:       "c1",
				Content:  strings.Repeat("a", 300),
				Metadata: models.ChunkMetadata{Title: "Constitución Política", DocType: models.DocTypeStatute},
			},
			Score:        0.7,
			LexicalScore: &lex,
		}},
		CorrectedQuery: "tutela",
		LexicalCount:   1,
	}

	var text bytes.Buffer
	if err := WriteSearchResults(&text, "tutla", resp, OutputText); err != nil {
		t.Fatal(err)
	}
	out := text.String()
	if !strings.Contains(out, "Did you mean: tutela") || !strings.Contains(out, "Lexical: 2.5000") {
		t.Errorf("unexpected text output:\n%s", out)
	}
	if strings.Contains(out, strings.Repeat("a", 201)) {
		t.Error("content should be truncated")
	}

	var js bytes.Buffer
	if err := WriteSearchResults(&js, "tutla", resp, OutputJSON); err != nil {
		t.Fatal(err)
	}
	var decoded struct {
		Query string `json:"query"`
		Hits  []struct {
			ID          string   `json:"id"`
			VectorScore *float64 `json:"vectorScore"`
		} `json:"hits"`
	}
	if err := json.Unmarshal(js.Bytes(), &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.Query != "tutla" || len(decoded.Hits) != 1 || decoded.Hits[0].VectorScore != nil {
		t.Errorf("decoded: %+v", decoded)
	}
}

func TestWriteSearchResults_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSearchResults(&buf, "q", &search.Response{}, OutputJSON); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `"hits": []`) {
		t.Errorf("empty hits should encode as an array: %s", buf.String())
	}
}

func TestWriteVigencia(t *testing.T) {
	n := &models.Norma{
		ID:             "ley-100-1993",
		Name:           "Ley 100 de 1993",
		Kind:           models.NormLey,
		EffectiveFrom:  models.MustParseDate("1993-12-23"),
		DerogatedBy:    "ley-1000-2005",
		DerogatedSince: models.MustParseDate("2005-01-01"),
	}
	var buf bytes.Buffer
	if err := WriteVigencia(&buf, vigencia.Evaluate(n, models.MustParseDate("2010-01-01")), OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "NO VIGENTE") || !strings.Contains(out, "Derogada por ley-1000-2005 desde 2005-01-01") {
		t.Errorf("unexpected output:\n%s", out)
	}

	buf.Reset()
	if err := WriteVigencia(&buf, vigencia.Evaluate(n, models.MustParseDate("1990-01-01")), OutputText); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "Entra en vigencia el 1993-12-23") {
		t.Errorf("unexpected output:\n%s", buf.String())
	}
}

func TestWriteIDs(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteIDs(&buf, nil, OutputJSON); err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(buf.String()) != "[]" {
		t.Errorf("got %q", buf.String())
	}
	buf.Reset()
	_ = WriteIDs(&buf, []string{"ley-100-1993", "ley-599-2000"}, OutputText)
	if !strings.Contains(buf.String(), "Total: 2") {
		t.Errorf("got %q", buf.String())
	}
}

func TestWriteBuildStats(t *testing.T) {
	var buf bytes.Buffer
	stats := &indexer.BuildStats{Chunks: 10, Terms: 120, Vectors: 9, Dimensions: 384, Skipped: 1, Elapsed: 1500 * time.Millisecond}
	if err := WriteBuildStats(&buf, stats, OutputText); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "Vectors: 9 (dims 384, 1 skipped)") || !strings.Contains(buf.String(), "1.5s") {
		t.Errorf("got %q", buf.String())
	}
}

func TestParseOutputFormat(t *testing.T) {
	tests := map[string]OutputFormat{"json": OutputJSON, " JSON ": OutputJSON, "text": OutputText, "": OutputText, "yaml": OutputText}
	for in, want := range tests {
		if got := ParseOutputFormat(in); got != want {
			t.Errorf("ParseOutputFormat(%q) = %s, want %s", in, got, want)
		}
	}
}
