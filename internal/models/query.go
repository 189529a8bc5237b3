package models

import (
	"fmt"
	"strings"
)

// DefaultTopK is the number of chunks retrieved for one pipeline run.
const DefaultTopK = 8

// MaxTopK bounds caller-supplied TopK values.
const MaxTopK = 50

// Request is a single question put to the pipeline.
type Request struct {
	Query   string  `json:"query"`
	DocType DocType `json:"docTypeFilter,omitempty"`
	TopK    int     `json:"topK,omitempty"`
	// RequestID is assigned by the orchestrator when empty.
	RequestID string `json:"requestId,omitempty"`
}

// Validate trims the query, checks the filter and normalizes TopK.
func (r *Request) Validate() error {
	r.Query = strings.TrimSpace(r.Query)
	if r.Query == "" {
		return fmt.Errorf("query cannot be empty: %w", ErrInvalid)
	}
	if r.DocType != "" {
		dt, ok := ParseDocType(string(r.DocType))
		if !ok {
			return fmt.Errorf("unknown doc type %q: %w", r.DocType, ErrInvalid)
		}
		r.DocType = dt
	}
	if r.TopK <= 0 {
		r.TopK = DefaultTopK
	}
	if r.TopK > MaxTopK {
		r.TopK = MaxTopK
	}
	return nil
}

// Citation references one retrieved chunk used to answer.
type Citation struct {
	ID      string  `json:"id"`
	Title   string  `json:"title"`
	DocType DocType `json:"docType"`
	Article string  `json:"article,omitempty"`
	URL     string  `json:"url,omitempty"`
	Score   float64 `json:"score"`
}

// Response is the answer assembled for one request.
type Response struct {
	Answer            string         `json:"answer"`
	Citations         []Citation     `json:"citations"`
	RetrievedCount    int            `json:"retrievedCount"`
	DetectedLegalArea string         `json:"detectedLegalArea,omitempty"`
	RequestID         string         `json:"requestId"`
	Recursive         *RecursiveInfo `json:"recursive,omitempty"`
}

// RecursiveInfo summarizes a multi-part run.
type RecursiveInfo struct {
	SubQueries         int     `json:"subQueries"`
	Complexity         string  `json:"complexity"`
	Confidence         float64 `json:"confidence"`
	DuplicatesDetected int     `json:"duplicatesDetected"`
	ContextPreserved   bool    `json:"contextPreserved"`
	ProcessingTimeMs   int64   `json:"processingTimeMs"`
}
