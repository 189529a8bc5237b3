// Package cli provides output helpers for the norma command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/hyperjump/norma/internal/indexer"
	"github.com/hyperjump/norma/internal/models"
	"github.com/hyperjump/norma/internal/search"
	"github.com/hyperjump/norma/internal/vigencia"
	"github.com/hyperjump/norma/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat accepts "text" and "json"; anything else is text.
func ParseOutputFormat(s string) OutputFormat {
	if strings.EqualFold(strings.TrimSpace(s), string(OutputJSON)) {
		return OutputJSON
	}
	return OutputText
}

const rule = "─────────────────────────────────────────────────────────"

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteAnswer writes a pipeline response with its citations.
func WriteAnswer(w io.Writer, resp *models.Response, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, resp)
	}
	fmt.Fprintf(w, "\n%s\n\n", resp.Answer)
	if resp.DetectedLegalArea != "" {
		fmt.Fprintf(w, "Área legal: %s\n", resp.DetectedLegalArea)
	}
	if r := resp.Recursive; r != nil {
		fmt.Fprintf(w, "Consulta compuesta: %d partes (%s, confianza %.2f) en %dms\n",
			r.SubQueries, r.Complexity, r.Confidence, r.ProcessingTimeMs)
	}
	if len(resp.Citations) == 0 {
		return nil
	}
	fmt.Fprintf(w, "\nFuentes (%d de %d recuperados):\n", len(resp.Citations), resp.RetrievedCount)
	for i, c := range resp.Citations {
		label := c.Title
		if c.Article != "" {
			label += ", " + c.Article
		}
		fmt.Fprintf(w, "  [%d] %s (%s, %.3f)\n", i+1, label, c.DocType, c.Score)
	}
	return nil
}

// WriteSearchResults writes retrieval hits to w in the given format.
func WriteSearchResults(w io.Writer, query string, resp *search.Response, format OutputFormat) error {
	if format == OutputJSON {
		type hit struct {
			ID           string         `json:"id"`
			Title        string         `json:"title"`
			DocType      models.DocType `json:"docType"`
			Article      string         `json:"article,omitempty"`
			Score        float64        `json:"score"`
			LexicalScore *float64       `json:"lexicalScore,omitempty"`
			VectorScore  *float64       `json:"vectorScore,omitempty"`
		}
		out := struct {
			Query          string `json:"query"`
			CorrectedQuery string `json:"correctedQuery,omitempty"`
			Hits           []hit  `json:"hits"`
		}{Query: query, CorrectedQuery: resp.CorrectedQuery, Hits: []hit{}}
		for _, h := range resp.Hits {
			m := h.Chunk.Metadata
			out.Hits = append(out.Hits, hit{h.Chunk.ID, m.Title, m.DocType, m.Article, h.Score, h.LexicalScore, h.VectorScore})
		}
		return writeJSON(w, out)
	}

	fmt.Fprintf(w, "\nFound %d results (%d lexical, %d vector candidates)\n", len(resp.Hits), resp.LexicalCount, resp.VectorCount)
	if resp.CorrectedQuery != "" {
		fmt.Fprintf(w, "Did you mean: %s\n", resp.CorrectedQuery)
	}
	fmt.Fprintln(w)
	for i, h := range resp.Hits {
		fmt.Fprintln(w, rule)
		fmt.Fprintf(w, "Rank: %d | Score: %.4f (%s)\n", i+1, h.Score, scoreSources(h))
		fmt.Fprintf(w, "ID: %s\n", h.Chunk.ID)
		if h.Chunk.Metadata.Title != "" {
			fmt.Fprintf(w, "Title: %s\n", h.Chunk.Metadata.Title)
		}
		if h.Chunk.Metadata.Article != "" {
			fmt.Fprintf(w, "Article: %s\n", h.Chunk.Metadata.Article)
		}
		fmt.Fprintf(w, "\n%s\n\n", utils.Truncate(h.Chunk.Content, 200))
	}
	return nil
}

func scoreSources(h *search.Hit) string {
	var parts []string
	if h.LexicalScore != nil {
		parts = append(parts, fmt.Sprintf("Lexical: %.4f", *h.LexicalScore))
	}
	if h.VectorScore != nil {
		parts = append(parts, fmt.Sprintf("Vector: %.4f", *h.VectorScore))
	}
	if len(parts) == 0 {
		return "no source scores"
	}
	return strings.Join(parts, ", ")
}

// WriteVigencia writes the result of a validity consultation.
func WriteVigencia(w io.Writer, res *vigencia.Result, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, res)
	}
	state := "NO VIGENTE"
	if res.InForce {
		state = "VIGENTE"
	}
	fmt.Fprintf(w, "%s al %s: %s (%s)\n", res.NormID, res.Date, state, res.Status.Name())
	switch s := res.Status.(type) {
	case vigencia.NotYetEffective:
		fmt.Fprintf(w, "  Entra en vigencia el %s\n", s.From)
	case vigencia.Derogated:
		if s.By != "" {
			fmt.Fprintf(w, "  Derogada por %s desde %s\n", s.By, s.Since)
		}
	case vigencia.PartiallyDerogated:
		for _, pd := range s.Derogations {
			fmt.Fprintf(w, "  %s derogado por %s desde %s\n", articleOrWhole(pd.Article), pd.DerogatedBy, pd.Since)
		}
	}
	return nil
}

func articleOrWhole(article string) string {
	if article == "" {
		return "Parte"
	}
	return article
}

// WriteIDs writes one norm id per line, or a JSON array.
func WriteIDs(w io.Writer, ids []string, format OutputFormat) error {
	if format == OutputJSON {
		if ids == nil {
			ids = []string{}
		}
		return writeJSON(w, ids)
	}
	for _, id := range ids {
		fmt.Fprintln(w, id)
	}
	fmt.Fprintf(w, "\nTotal: %d\n", len(ids))
	return nil
}

// WriteBuildStats summarizes an artifact build.
func WriteBuildStats(w io.Writer, stats *indexer.BuildStats, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, stats)
	}
	fmt.Fprintf(w, "Chunks: %d\nTerms: %d\nVectors: %d (dims %d, %d skipped)\nElapsed: %s\n",
		stats.Chunks, stats.Terms, stats.Vectors, stats.Dimensions, stats.Skipped, stats.Elapsed.Round(time.Millisecond))
	return nil
}
