package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/norma/internal/models"
	"github.com/hyperjump/norma/internal/search"
	"github.com/hyperjump/norma/internal/storage"
	"github.com/hyperjump/norma/pkg/utils"
)

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req models.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("ask request", zap.String("query", req.Query), zap.String("request_id", req.RequestID))
	resp, err := s.answerer.Answer(r.Context(), req)
	if err != nil {
		s.logger.Error("ask failed", zap.Error(err))
		s.respondFailure(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

type searchHit struct {
	ID           string         `json:"id"`
	DocID        string         `json:"docId,omitempty"`
	Title        string         `json:"title"`
	DocType      models.DocType `json:"docType"`
	Article      string         `json:"article,omitempty"`
	URL          string         `json:"url,omitempty"`
	Score        float64        `json:"score"`
	FusedScore   float64        `json:"fusedScore"`
	LexicalScore *float64       `json:"lexicalScore,omitempty"`
	VectorScore  *float64       `json:"vectorScore,omitempty"`
	Snippet      string         `json:"snippet"`
}

type searchResponse struct {
	Hits           []searchHit `json:"hits"`
	CorrectedQuery string      `json:"correctedQuery,omitempty"`
	LexicalCount   int         `json:"lexicalCount"`
	VectorCount    int         `json:"vectorCount"`
}

const snippetRunes = 280

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req models.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		s.respondFailure(w, err)
		return
	}
	s.logger.Debug("search request", zap.String("query", req.Query), zap.Int("top_k", req.TopK))
	res, err := s.retriever.Retrieve(r.Context(), search.Query{Text: req.Query, DocType: req.DocType, TopK: req.TopK})
	if err != nil {
		s.logger.Error("search failed", zap.Error(err))
		s.respondFailure(w, err)
		return
	}
	out := searchResponse{
		Hits:           make([]searchHit, 0, len(res.Hits)),
		CorrectedQuery: res.CorrectedQuery,
		LexicalCount:   res.LexicalCount,
		VectorCount:    res.VectorCount,
	}
	for _, h := range res.Hits {
		meta := h.Chunk.Metadata
		out.Hits = append(out.Hits, searchHit{
			ID:           h.Chunk.ID,
			DocID:        meta.DocID,
			Title:        meta.Title,
			DocType:      meta.DocType,
			Article:      meta.Article,
			URL:          meta.SourceURL,
			Score:        h.Score,
			FusedScore:   h.FusedScore,
			LexicalScore: h.LexicalScore,
			VectorScore:  h.VectorScore,
			Snippet:      utils.Truncate(h.Chunk.Content, snippetRunes),
		})
	}
	s.respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleListNormas(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	date, ok := s.dateParam(w, r)
	if !ok {
		return
	}
	var (
		ids []string
		err error
	)
	if raw := r.URL.Query().Get("status"); raw != "" {
		status, valid := models.ParseNormStatus(raw)
		if !valid {
			s.respondError(w, http.StatusBadRequest, "unknown status: "+raw)
			return
		}
		ids, err = s.registry.FilterByStatus(ctx, status, date)
	} else {
		ids, err = s.registry.List(ctx)
	}
	if err != nil {
		s.logger.Error("list normas failed", zap.Error(err))
		s.respondFailure(w, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"normas": ids, "count": len(ids)})
}

func (s *Server) handleCreateNorma(w http.ResponseWriter, r *http.Request) {
	var n models.Norma
	if err := json.NewDecoder(r.Body).Decode(&n); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.registry.Create(r.Context(), &n); err != nil {
		s.logger.Warn("create norma failed", zap.String("norm_id", n.ID), zap.Error(err))
		s.respondFailure(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, map[string]string{"normaId": n.ID, "status": "created"})
}

func (s *Server) handleConsultNorma(w http.ResponseWriter, r *http.Request) {
	date, ok := s.dateParam(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	res, err := s.registry.Consult(ctx, id, date)
	if err != nil {
		s.respondFailure(w, err)
		return
	}
	derogators, err := s.registry.DerogatingNorms(ctx, id)
	if err != nil {
		s.respondFailure(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"vigencia":   res,
		"derogators": derogators,
	})
}

func (s *Server) handleNormaReport(w http.ResponseWriter, r *http.Request) {
	date, ok := s.dateParam(w, r)
	if !ok {
		return
	}
	report, err := s.registry.Report(r.Context(), chi.URLParam(r, "id"), date)
	if err != nil {
		s.respondFailure(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(report))
}

type derogationRequest struct {
	By   string      `json:"derogadaPor"`
	Date models.Date `json:"fecha"`
}

func (s *Server) handleDerogation(w http.ResponseWriter, r *http.Request) {
	var req derogationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	id := chi.URLParam(r, "id")
	if err := s.registry.RegisterTotalDerogation(r.Context(), id, req.By, req.Date); err != nil {
		s.logger.Warn("derogation failed", zap.String("norm_id", id), zap.Error(err))
		s.respondFailure(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"normaId": id, "status": "derogated"})
}

func (s *Server) handlePartialDerogation(w http.ResponseWriter, r *http.Request) {
	var pd models.PartialDerogation
	if err := json.NewDecoder(r.Body).Decode(&pd); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	id := chi.URLParam(r, "id")
	if err := s.registry.RegisterPartialDerogation(r.Context(), id, pd); err != nil {
		s.logger.Warn("partial derogation failed", zap.String("norm_id", id), zap.Error(err))
		s.respondFailure(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, map[string]string{"normaId": id, "status": "recorded"})
}

func (s *Server) handleModification(w http.ResponseWriter, r *http.Request) {
	var m models.Modification
	if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	id := chi.URLParam(r, "id")
	if err := s.registry.RegisterModification(r.Context(), id, m); err != nil {
		s.logger.Warn("modification failed", zap.String("norm_id", id), zap.Error(err))
		s.respondFailure(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, map[string]string{"normaId": id, "status": "recorded"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp := map[string]interface{}{}
	if s.index != nil {
		resp["index"] = s.index.Status(ctx)
	}
	ids, err := s.registry.List(ctx)
	if err != nil {
		s.logger.Error("status: list normas failed", zap.Error(err))
		s.respondFailure(w, err)
		return
	}
	resp["normas"] = len(ids)

	if s.config != nil {
		a := s.config.Artifacts
		resp["config"] = map[string]interface{}{
			"corpus_path":       a.Corpus,
			"lexical_path":      a.Lexical,
			"hnsw_path":         a.HNSW,
			"lexical_backend":   s.config.Retrieval.LexicalBackend,
			"embedding":         s.config.Embedding.Provider,
			"generator":         s.config.Generator.Provider,
			"vigencia_backend":  s.config.Vigencia.Backend,
			"recursive_enabled": s.config.Recursive.EnabledOrDefault(),
		}
		usage, err := storage.MeasureUsage(s.config.ArtifactPaths())
		if err != nil {
			s.logger.Warn("status: disk usage failed", zap.Error(err))
		} else {
			resp["disk_usage"] = usage
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// dateParam parses the optional ?date= parameter. A zero date means today.
func (s *Server) dateParam(w http.ResponseWriter, r *http.Request) (models.Date, bool) {
	raw := r.URL.Query().Get("date")
	if raw == "" {
		return models.Date{}, true
	}
	d, err := models.ParseDate(raw)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid date: "+raw)
		return models.Date{}, false
	}
	return d, true
}

// statusFor maps error classes onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrInvalid):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, models.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, models.ErrDegraded), errors.Is(err, models.ErrRetryable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (s *Server) respondFailure(w http.ResponseWriter, err error) {
	s.respondError(w, statusFor(err), err.Error())
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
