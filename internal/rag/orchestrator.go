package rag

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/hyperjump/norma/internal/models"
	"github.com/hyperjump/norma/internal/query"
)

// Config controls when and how multi-part questions are fanned out.
type Config struct {
	Enabled         bool
	MinConfidence   float64
	MaxSubQueries   int
	PreserveContext bool
	Workers         int
	SubQueryTimeout time.Duration
	Format          Format
}

// DefaultConfig returns the recursive defaults.
func DefaultConfig() Config {
	return Config{
		Enabled:         true,
		MinConfidence:   0.6,
		MaxSubQueries:   5,
		PreserveContext: true,
		Workers:         4,
		SubQueryTimeout: 90 * time.Second,
		Format:          FormatStructured,
	}
}

// Orchestrator answers multi-part questions by running each sub-query through
// the single-question pipeline on a bounded worker pool.
type Orchestrator struct {
	pipeline Answerer
	cfg      Config
	pool     *ants.Pool
	logger   *zap.Logger
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithOrchestratorLogger sets the logger.
func WithOrchestratorLogger(l *zap.Logger) OrchestratorOption {
	return func(o *Orchestrator) { o.logger = l }
}

// NewOrchestrator builds an orchestrator. Zero config fields take defaults.
// Call Close to release the worker pool.
func NewOrchestrator(pipeline Answerer, cfg Config, opts ...OrchestratorOption) (*Orchestrator, error) {
	def := DefaultConfig()
	if cfg.MinConfidence <= 0 {
		cfg.MinConfidence = def.MinConfidence
	}
	if cfg.MaxSubQueries <= 0 {
		cfg.MaxSubQueries = def.MaxSubQueries
	}
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.SubQueryTimeout <= 0 {
		cfg.SubQueryTimeout = def.SubQueryTimeout
	}
	if cfg.Format == "" {
		cfg.Format = def.Format
	}

	pool, err := ants.NewPool(cfg.Workers)
	if err != nil {
		return nil, fmt.Errorf("failed to create sub-query pool: %w", err)
	}
	o := &Orchestrator{pipeline: pipeline, cfg: cfg, pool: pool, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Close releases the worker pool.
func (o *Orchestrator) Close() {
	o.pool.Release()
}

// Answer runs req recursively when it is a confident multi-part question and
// through the single pipeline otherwise.
func (o *Orchestrator) Answer(ctx context.Context, req models.Request) (*models.Response, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	log := o.logger.With(zap.String("request_id", req.RequestID))

	if !o.cfg.Enabled {
		return o.pipeline.Run(ctx, req)
	}
	split := query.Split(req.Query)
	if !split.IsMultiPart || split.Confidence < o.cfg.MinConfidence || len(split.SubQueries) < 2 {
		log.Debug("answering as a single question",
			zap.Bool("multi_part", split.IsMultiPart),
			zap.Float64("confidence", split.Confidence))
		return o.pipeline.Run(ctx, req)
	}

	start := time.Now()
	subs := split.SubQueries
	if len(subs) > o.cfg.MaxSubQueries {
		log.Warn("too many sub-queries, truncating",
			zap.Int("total", len(subs)),
			zap.Int("max", o.cfg.MaxSubQueries))
		subs = subs[:o.cfg.MaxSubQueries]
	}
	log.Info("answering multi-part question",
		zap.Int("sub_queries", len(subs)),
		zap.String("complexity", string(split.Complexity)),
		zap.Int("dependencies", len(split.Dependencies)))

	partials := make([]Partial, len(subs))
	var wg sync.WaitGroup
	for i, sq := range subs {
		i, sq := i, sq
		sub := models.Request{
			Query:     o.enrich(sq.Query, split.CommonContext),
			DocType:   req.DocType,
			TopK:      req.TopK,
			RequestID: fmt.Sprintf("%s-sub%d", req.RequestID, i),
		}
		wg.Add(1)
		task := func() {
			defer wg.Done()
			partials[i] = o.runSub(ctx, sq, sub, i, log)
		}
		if err := o.pool.Submit(task); err != nil {
			log.Warn("sub-query not scheduled", zap.Int("order", i), zap.Error(err))
			wg.Done()
			partials[i] = placeholder(sq, sub, i)
		}
	}
	wg.Wait()

	syn := Synthesize(partials, split, o.cfg.Format)
	return &models.Response{
		Answer:            syn.Answer,
		Citations:         syn.Citations,
		RetrievedCount:    syn.Retrieved,
		DetectedLegalArea: syn.LegalArea,
		RequestID:         req.RequestID,
		Recursive: &models.RecursiveInfo{
			SubQueries:         len(partials),
			Complexity:         string(split.Complexity),
			Confidence:         split.Confidence,
			DuplicatesDetected: syn.Metadata.Duplicates,
			ContextPreserved:   o.cfg.PreserveContext,
			ProcessingTimeMs:   time.Since(start).Milliseconds(),
		},
	}, nil
}

func (o *Orchestrator) runSub(ctx context.Context, sq query.SubQuery, sub models.Request, order int, log *zap.Logger) Partial {
	subCtx, cancel := context.WithTimeout(ctx, o.cfg.SubQueryTimeout)
	defer cancel()

	resp, err := o.pipeline.Run(subCtx, sub)
	if err != nil {
		log.Warn("sub-query failed",
			zap.Int("order", order),
			zap.String("query", sq.Query),
			zap.Error(err))
		return placeholder(sq, sub, order)
	}
	return Partial{SubQuery: sq, Response: resp, Order: order}
}

func placeholder(sq query.SubQuery, sub models.Request, order int) Partial {
	return Partial{
		SubQuery: sq,
		Order:    order,
		Failed:   true,
		Response: &models.Response{
			Answer:    "No se pudo generar respuesta para esta parte de la consulta: " + sq.Query,
			Citations: []models.Citation{},
			RequestID: sub.RequestID + "-error",
		},
	}
}

// enrich appends the shared context of the original question. It depends only
// on that context, so every sub-query prompt is deterministic.
func (o *Orchestrator) enrich(text string, common query.Context) string {
	if !o.cfg.PreserveContext {
		return text
	}
	var hints []string
	if len(common.Procedures) > 0 {
		hints = append(hints, "(en el contexto de: "+strings.Join(common.Procedures, ", ")+")")
	}
	if len(common.Dates) > 0 {
		hints = append(hints, "(fecha: "+strings.Join(common.Dates, ", ")+")")
	}
	if len(common.Entities) > 0 {
		hints = append(hints, "(entidad: "+strings.Join(common.Entities, ", ")+")")
	}
	if len(hints) == 0 {
		return text
	}
	return text + " " + strings.Join(hints, " ")
}
