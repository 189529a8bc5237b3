package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/norma/internal/config"
	"github.com/hyperjump/norma/internal/indexctx"
	"github.com/hyperjump/norma/internal/models"
	"github.com/hyperjump/norma/internal/search"
	"github.com/hyperjump/norma/internal/storage"
	"github.com/hyperjump/norma/internal/vigencia"
)

type stubAnswerer struct {
	last models.Request
	err  error
}

func (a *stubAnswerer) Answer(_ context.Context, req models.Request) (*models.Response, error) {
	a.last = req
	if a.err != nil {
		return nil, a.err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return &models.Response{
		Answer:         "La acción de tutela procede contra particulares en los casos del artículo 42.",
		Citations:      []models.Citation{{ID: "c1", Title: "Decreto 2591 de 1991", DocType: models.DocTypeStatute, Score: 0.9}},
		RetrievedCount: 1,
		RequestID:      "req-1",
	}, nil
}

type stubRetriever struct{}

func (stubRetriever) Retrieve(_ context.Context, q search.Query) (*search.Response, error) {
	lex := 3.2
	return &search.Response{
		Hits: []*search.Hit{{
			Chunk: &models.Chunk{
				ID:      "c1",
				Content: strings.Repeat("texto del artículo ", 40),
				Metadata: models.ChunkMetadata{
					DocID:   "doc-decreto_2591_1991",
					Title:   "Decreto 2591 de 1991",
					DocType: models.DocTypeStatute,
					Article: "Artículo 42",
				},
			},
			Score:        0.8,
			FusedScore:   0.03,
			LexicalScore: &lex,
		}},
		LexicalCount: 1,
	}, nil
}

type stubIndex struct{}

func (stubIndex) Status(context.Context) indexctx.Status {
	return indexctx.Status{CorpusLoaded: true, Chunks: 12}
}

func newTestServer(t *testing.T) (*Server, *stubAnswerer) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewDirStore(dir + "/normas")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	clock := func() time.Time { return time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC) }
	registry := vigencia.NewRegistry(store, vigencia.WithClock(clock))
	seed := &models.Norma{
		ID:            "ley-100-1993",
		Name:          "Ley 100 de 1993",
		Kind:          models.NormLey,
		EffectiveFrom: models.MustParseDate("1993-12-23"),
	}
	if err := registry.Create(context.Background(), seed); err != nil {
		t.Fatal(err)
	}
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Artifacts.Corpus = dir + "/corpus.ndjson"
	cfg.Artifacts.Lexical = dir + "/bm25.json"
	cfg.Artifacts.HNSW = dir + "/vectors.hnsw"
	cfg.Artifacts.IDs = dir + "/vectors.ids"
	cfg.Vigencia.Path = dir + "/normas"

	answerer := &stubAnswerer{}
	return NewServer(answerer, stubRetriever{}, registry, stubIndex{}, cfg, zap.NewNop()), answerer
}

func do(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		r = httptest.NewRequest(method, path, bytes.NewReader(data))
		r.Header.Set("Content-Type", "application/json")
	} else {
		r = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
}

func TestHandleAsk(t *testing.T) {
	srv, answerer := newTestServer(t)
	w := do(t, srv.Handler(), http.MethodPost, "/api/v1/ask",
		map[string]interface{}{"query": "¿Procede la tutela contra particulares?", "topK": 3})
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body: %s", w.Code, w.Body.String())
	}
	var out models.Response
	decode(t, w, &out)
	if out.RetrievedCount != 1 || len(out.Citations) != 1 {
		t.Errorf("unexpected response: %+v", out)
	}
	if answerer.last.TopK != 3 {
		t.Errorf("topK not forwarded: %+v", answerer.last)
	}
}

func TestHandleAsk_Errors(t *testing.T) {
	srv, answerer := newTestServer(t)
	h := srv.Handler()

	if w := do(t, h, http.MethodPost, "/api/v1/ask", map[string]string{"query": "  "}); w.Code != http.StatusBadRequest {
		t.Errorf("empty query: got %d", w.Code)
	}

	r := httptest.NewRequest(http.MethodPost, "/api/v1/ask", strings.NewReader("{"))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	if w.Code != http.StatusBadRequest {
		t.Errorf("malformed body: got %d", w.Code)
	}

	answerer.err = fmt.Errorf("generation: %w", models.ErrTimeout)
	if w := do(t, h, http.MethodPost, "/api/v1/ask", map[string]string{"query": "pensión"}); w.Code != http.StatusGatewayTimeout {
		t.Errorf("timeout: got %d", w.Code)
	}
}

func TestHandleSearch(t *testing.T) {
	srv, _ := newTestServer(t)
	w := do(t, srv.Handler(), http.MethodPost, "/api/v1/search", map[string]string{"query": "tutela"})
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body: %s", w.Code, w.Body.String())
	}
	var out searchResponse
	decode(t, w, &out)
	if len(out.Hits) != 1 {
		t.Fatalf("hits: got %d", len(out.Hits))
	}
	hit := out.Hits[0]
	if hit.Article != "Artículo 42" || hit.LexicalScore == nil || hit.VectorScore != nil {
		t.Errorf("unexpected hit: %+v", hit)
	}
	if !strings.HasSuffix(hit.Snippet, "...") {
		t.Errorf("snippet should be truncated: %q", hit.Snippet)
	}
}

func TestHandleSearch_InvalidDocType(t *testing.T) {
	srv, _ := newTestServer(t)
	w := do(t, srv.Handler(), http.MethodPost, "/api/v1/search",
		map[string]string{"query": "tutela", "docTypeFilter": "blog"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status: got %d", w.Code)
	}
}

func TestNormaLifecycle(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	create := map[string]interface{}{
		"normaId":      "ley-599-2000",
		"nombre":       "Código Penal",
		"tipo":         "ley",
		"vigenteDesde": "2001-07-24",
	}
	if w := do(t, h, http.MethodPost, "/api/v1/normas", create); w.Code != http.StatusCreated {
		t.Fatalf("create: got %d, body: %s", w.Code, w.Body.String())
	}
	if w := do(t, h, http.MethodPost, "/api/v1/normas", create); w.Code != http.StatusConflict {
		t.Errorf("duplicate create: got %d", w.Code)
	}

	w := do(t, h, http.MethodGet, "/api/v1/normas", nil)
	var list struct {
		Normas []string `json:"normas"`
		Count  int      `json:"count"`
	}
	decode(t, w, &list)
	if list.Count != 2 {
		t.Errorf("list: %+v", list)
	}

	derog := map[string]string{"derogadaPor": "ley-1000-2005", "fecha": "2005-01-01"}
	if w := do(t, h, http.MethodPost, "/api/v1/normas/ley-100-1993/derogation", derog); w.Code != http.StatusOK {
		t.Fatalf("derogation: got %d, body: %s", w.Code, w.Body.String())
	}
	other := map[string]string{"derogadaPor": "ley-2000-2010", "fecha": "2010-01-01"}
	if w := do(t, h, http.MethodPost, "/api/v1/normas/ley-100-1993/derogation", other); w.Code != http.StatusConflict {
		t.Errorf("conflicting derogation: got %d", w.Code)
	}

	w = do(t, h, http.MethodGet, "/api/v1/normas/ley-100-1993?date=2004-06-01", nil)
	var consult struct {
		Vigencia struct {
			InForce bool   `json:"inForce"`
			Status  string `json:"status"`
		} `json:"vigencia"`
		Derogators vigencia.Derogators `json:"derogators"`
	}
	decode(t, w, &consult)
	if !consult.Vigencia.InForce || consult.Derogators.Total != "ley-1000-2005" {
		t.Errorf("consult before derogation: %+v", consult)
	}

	w = do(t, h, http.MethodGet, "/api/v1/normas?status=derogada", nil)
	decode(t, w, &list)
	if list.Count != 1 || list.Normas[0] != "ley-100-1993" {
		t.Errorf("filter by status: %+v", list)
	}

	partial := map[string]string{"articulo": "Artículo 5", "derogadoPor": "ley-1955-2019", "derogadaDesde": "2019-05-25"}
	if w := do(t, h, http.MethodPost, "/api/v1/normas/ley-599-2000/partial-derogations", partial); w.Code != http.StatusCreated {
		t.Errorf("partial derogation: got %d, body: %s", w.Code, w.Body.String())
	}
	mod := map[string]string{"norma": "ley-890-2004", "fecha": "2004-07-07", "tipo": "modificacion"}
	if w := do(t, h, http.MethodPost, "/api/v1/normas/ley-599-2000/modifications", mod); w.Code != http.StatusCreated {
		t.Errorf("modification: got %d, body: %s", w.Code, w.Body.String())
	}

	w = do(t, h, http.MethodGet, "/api/v1/normas/ley-599-2000/report", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "REPORTE DE VIGENCIA") {
		t.Errorf("report: got %d, body: %s", w.Code, w.Body.String())
	}
}

func TestNormaErrors(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
		want   int
	}{
		{"unknown norm", http.MethodGet, "/api/v1/normas/ley-1-1900", nil, http.StatusNotFound},
		{"unknown report", http.MethodGet, "/api/v1/normas/ley-1-1900/report", nil, http.StatusNotFound},
		{"bad date", http.MethodGet, "/api/v1/normas/ley-100-1993?date=ayer", nil, http.StatusBadRequest},
		{"bad status", http.MethodGet, "/api/v1/normas?status=quizas", nil, http.StatusBadRequest},
		{"invalid record", http.MethodPost, "/api/v1/normas", map[string]string{"normaId": "Ley 1"}, http.StatusBadRequest},
		{"derogation without date", http.MethodPost, "/api/v1/normas/ley-100-1993/derogation",
			map[string]string{"derogadaPor": "ley-1-2000"}, http.StatusBadRequest},
		{"derogation of unknown norm", http.MethodPost, "/api/v1/normas/ley-1-1900/derogation",
			map[string]string{"derogadaPor": "ley-1-2000", "fecha": "2000-01-01"}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := do(t, h, tt.method, tt.path, tt.body); w.Code != tt.want {
				t.Errorf("got %d, want %d, body: %s", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestHandleStatus(t *testing.T) {
	srv, _ := newTestServer(t)
	w := do(t, srv.Handler(), http.MethodGet, "/api/v1/status", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body: %s", w.Code, w.Body.String())
	}
	var out struct {
		Index          indexctx.Status        `json:"index"`
		Normas         int                    `json:"normas"`
		Config         map[string]interface{} `json:"config"`
		DiskUsage      *storage.Usage         `json:"disk_usage"`
	}
	decode(t, w, &out)
	if out.Normas != 1 || out.Index.Chunks != 12 {
		t.Errorf("unexpected status: %+v", out)
	}
	if out.Config["vigencia_backend"] != "dir" {
		t.Errorf("config: %+v", out.Config)
	}
	if out.DiskUsage == nil || out.DiskUsage.Bytes(storage.ArtifactNormas) <= 0 {
		t.Fatalf("disk usage should count the stored norm: %+v", out.DiskUsage)
	}
	if len(out.DiskUsage.Artifacts) != 1 || out.DiskUsage.Artifacts[0].Name != storage.ArtifactNormas {
		t.Errorf("only the norm store exists on disk: %+v", out.DiskUsage.Artifacts)
	}
}

func TestHandleHealth(t *testing.T) {
	srv, _ := newTestServer(t)
	for _, path := range []string{"/health", "/api/v1/health"} {
		if w := do(t, srv.Handler(), http.MethodGet, path, nil); w.Code != http.StatusOK {
			t.Errorf("%s: got %d", path, w.Code)
		}
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("x: %w", models.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("x: %w", models.ErrInvalid), http.StatusBadRequest},
		{fmt.Errorf("x: %w", models.ErrConflict), http.StatusConflict},
		{fmt.Errorf("x: %w", models.ErrDegraded), http.StatusServiceUnavailable},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
