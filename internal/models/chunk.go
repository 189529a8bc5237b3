// Package models defines the core data structures shared by retrieval, ranking and generation.
package models

import (
	"encoding/json"
	"strings"
)

// DocType classifies the source a chunk was taken from.
type DocType string

const (
	DocTypeStatute    DocType = "statute"
	DocTypeCaselaw    DocType = "caselaw"
	DocTypeRegulation DocType = "regulation"
	DocTypeProcedure  DocType = "procedure"
)

// ParseDocType accepts the canonical names and the Spanish labels used by older corpora.
// Unknown values return "" and false.
func ParseDocType(s string) (DocType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "statute", "estatuto":
		return DocTypeStatute, true
	case "caselaw", "jurisprudencia":
		return DocTypeCaselaw, true
	case "regulation", "reglamento":
		return DocTypeRegulation, true
	case "procedure", "procedimiento":
		return DocTypeProcedure, true
	}
	return "", false
}

// ChunkMetadata describes where a chunk comes from.
type ChunkMetadata struct {
	// DocID identifies the source document; several chunks share it.
	DocID         string  `json:"id,omitempty"`
	Title         string  `json:"title"`
	DocType       DocType `json:"docType"`
	Article       string  `json:"article,omitempty"`
	Chapter       string  `json:"chapter,omitempty"`
	Section       string  `json:"section,omitempty"`
	EffectiveDate string  `json:"effectiveDate,omitempty"` // YYYY-MM-DD or YYYY
	SourceURL     string  `json:"sourceUrl,omitempty"`
}

// UnmarshalJSON accepts "type" as an alias of "docType" and "url" as an alias of "sourceUrl".
func (m *ChunkMetadata) UnmarshalJSON(data []byte) error {
	type plain ChunkMetadata
	var aux struct {
		plain
		Type string `json:"type"`
		URL  string `json:"url"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*m = ChunkMetadata(aux.plain)
	if m.DocType == "" && aux.Type != "" {
		m.DocType = DocType(aux.Type)
	}
	if dt, ok := ParseDocType(string(m.DocType)); ok {
		m.DocType = dt
	}
	if m.SourceURL == "" {
		m.SourceURL = aux.URL
	}
	return nil
}

// Chunk is an immutable retrievable unit of the corpus.
type Chunk struct {
	ID        string        `json:"id"`
	Content   string        `json:"content"`
	Embedding []float32     `json:"embedding,omitempty"`
	Metadata  ChunkMetadata `json:"metadata"`
}

// SourceID returns the document id when present, else the chunk id.
func (c *Chunk) SourceID() string {
	if c.Metadata.DocID != "" {
		return c.Metadata.DocID
	}
	return c.ID
}
