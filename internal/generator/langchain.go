package generator

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"

	"github.com/hyperjump/norma/internal/models"
)

// LLM generates through a langchaingo chat model.
type LLM struct {
	model       llms.Model
	temperature float64
}

// NewLLM wraps an existing langchaingo model.
func NewLLM(model llms.Model) *LLM {
	return &LLM{model: model, temperature: DefaultTemperature}
}

// NewOpenAI connects to an OpenAI-compatible chat endpoint. An empty token is
// sent as "none" for local services without authentication.
func NewOpenAI(baseURL, model, token string) (*LLM, error) {
	if token == "" {
		token = "none"
	}
	opts := []openai.Option{openai.WithToken(token), openai.WithModel(model)}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}
	client, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat client: %w", err)
	}
	return NewLLM(client), nil
}

func (l *LLM) Generate(ctx context.Context, req Request) (string, error) {
	var content []llms.MessageContent
	if req.SystemPrompt != "" {
		content = append(content, llms.TextParts(schema.ChatMessageTypeSystem, req.SystemPrompt))
	}
	content = append(content, llms.TextParts(schema.ChatMessageTypeHuman, req.UserPrompt))

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	resp, err := l.model.GenerateContent(ctx, content,
		llms.WithTemperature(l.temperature),
		llms.WithMaxTokens(maxTokens),
	)
	if err != nil {
		return "", Classify(fmt.Errorf("chat completion: %w", err))
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("model returned no choices: %w", models.ErrRetryable)
	}
	return strings.TrimSpace(resp.Choices[0].Content), nil
}
