// Package rag answers legal questions: single questions through retrieval and
// generation, multi-part questions by fanning out sub-queries and synthesizing
// their answers.
package rag

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/norma/internal/generator"
	"github.com/hyperjump/norma/internal/models"
	"github.com/hyperjump/norma/internal/query"
	"github.com/hyperjump/norma/internal/search"
)

// NoDocumentsAnswer is returned when retrieval finds nothing.
const NoDocumentsAnswer = "No encontré documentos relevantes para responder tu consulta. " +
	"Intenta reformularla o consulta las fuentes oficiales."

// Retriever finds and ranks chunks for a query.
type Retriever interface {
	Retrieve(ctx context.Context, q search.Query) (*search.Response, error)
}

// Answerer answers one request.
type Answerer interface {
	Run(ctx context.Context, req models.Request) (*models.Response, error)
}

// Pipeline is the single-question path: retrieve, prompt, generate, cite.
type Pipeline struct {
	retriever Retriever
	generator generator.Generator
	timeout   time.Duration
	maxTokens int
	logger    *zap.Logger
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithPipelineLogger sets the logger.
func WithPipelineLogger(l *zap.Logger) PipelineOption {
	return func(p *Pipeline) { p.logger = l }
}

// WithGenerationTimeout bounds each generation attempt.
func WithGenerationTimeout(d time.Duration) PipelineOption {
	return func(p *Pipeline) { p.timeout = d }
}

// WithMaxTokens caps the answer length. Zero keeps generator.DefaultMaxTokens.
func WithMaxTokens(n int) PipelineOption {
	return func(p *Pipeline) {
		if n > 0 {
			p.maxTokens = n
		}
	}
}

// NewPipeline builds a pipeline. gen is usually a *generator.Resilient.
func NewPipeline(retriever Retriever, gen generator.Generator, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		retriever: retriever,
		generator: gen,
		timeout:   generator.DefaultTimeout,
		logger:    zap.NewNop(),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Run answers req. Retrieval failures degrade to the no-documents answer; an
// error is returned only for invalid requests or when ctx ends.
func (p *Pipeline) Run(ctx context.Context, req models.Request) (*models.Response, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	log := p.logger.With(zap.String("request_id", req.RequestID))
	start := time.Now()

	resp := &models.Response{
		RequestID:         req.RequestID,
		Citations:         []models.Citation{},
		DetectedLegalArea: query.DetectLegalArea(req.Query),
	}

	res, err := p.retriever.Retrieve(ctx, search.Query{Text: req.Query, DocType: req.DocType, TopK: req.TopK})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("retrieval interrupted: %w", errors.Join(models.ErrTimeout, ctxErr))
		}
		log.Warn("retrieval failed, answering without sources", zap.Error(err))
		res = &search.Response{}
	}
	if len(res.Hits) == 0 {
		resp.Answer = NoDocumentsAnswer
		return resp, nil
	}

	genReq := buildPrompt(req.Query, res.Hits)
	genReq.Timeout = p.timeout
	if p.maxTokens > 0 {
		genReq.MaxTokens = p.maxTokens
	}
	answer, err := p.generator.Generate(ctx, genReq)
	if err != nil {
		return nil, fmt.Errorf("generation failed: %w", err)
	}

	resp.Answer = answer
	resp.RetrievedCount = len(res.Hits)
	for _, h := range res.Hits {
		resp.Citations = append(resp.Citations, models.Citation{
			ID:      h.Chunk.SourceID(),
			Title:   h.Chunk.Metadata.Title,
			DocType: h.Chunk.Metadata.DocType,
			Article: h.Chunk.Metadata.Article,
			URL:     h.Chunk.Metadata.SourceURL,
			Score:   h.Score,
		})
	}
	log.Debug("pipeline done",
		zap.Int("retrieved", resp.RetrievedCount),
		zap.Int("answer_len", len(answer)),
		zap.Duration("elapsed", time.Since(start)))
	return resp, nil
}
