package rag

import (
	"fmt"
	"strings"

	"github.com/hyperjump/norma/internal/generator"
	"github.com/hyperjump/norma/internal/search"
)

const systemPrompt = "Eres un asistente jurídico especializado en la normativa colombiana. " +
	"Responde en español claro y preciso, citando entre corchetes el número de la fuente relevante " +
	"(por ejemplo, [1], [2]). Si la pregunta excede el contexto, explica la limitación y sugiere fuentes oficiales."

// buildPrompt numbers the sources from 1 in retrieval order.
func buildPrompt(question string, hits []*search.Hit) generator.Request {
	blocks := make([]string, 0, len(hits))
	for i, h := range hits {
		label := h.Chunk.Metadata.Title
		if a := h.Chunk.Metadata.Article; a != "" {
			label += " — " + a
		}
		blocks = append(blocks, fmt.Sprintf("Fuente [%d] (%s):\n%s", i+1, label, h.Chunk.Content))
	}
	user := "Pregunta: " + question + "\n\nContexto:\n" + strings.Join(blocks, "\n\n") +
		"\n\nRespuesta (máximo 10 oraciones, con citas):"
	return generator.Request{
		SystemPrompt: systemPrompt,
		UserPrompt:   user,
		MaxTokens:    generator.DefaultMaxTokens,
	}
}
