// Package assistant answers questions about the user's screen history by
// combining the cascade engine with a text generator.
package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/starford/glimpse/internal/cascade"
	"github.com/starford/glimpse/internal/generate"
)

// DefaultSystemPrompt is used when no system prompt is configured.
const DefaultSystemPrompt = "You answer questions about what the user has recently seen on their screen. " +
	"Use only the provided screen history. If it does not contain the answer, say so."

// ContextBuilder produces retrieval context for a query. *cascade.Engine implements it.
type ContextBuilder interface {
	Build(ctx context.Context, query string) *cascade.Context
}

// Answer is the outcome of one question.
type Answer struct {
	Text     string
	Context  *cascade.Context
	Rendered string
}

// Assistant is the chat orchestrator.
type Assistant struct {
	builder ContextBuilder
	gen     generate.Generator
	system  string
	logger  *slog.Logger
}

// New returns an Assistant. An empty systemPrompt selects DefaultSystemPrompt.
func New(builder ContextBuilder, gen generate.Generator, systemPrompt string, logger *slog.Logger) *Assistant {
	if systemPrompt == "" {
		systemPrompt = DefaultSystemPrompt
	}
	return &Assistant{builder: builder, gen: gen, system: systemPrompt, logger: logger}
}

// Ask retrieves context for query, renders it into a prompt and returns the
// generated answer. An empty context is not an error: the prompt then carries
// cascade.NoContextMessage. Generator failures are returned wrapped so callers
// can match the generate error types.
func (a *Assistant) Ask(ctx context.Context, query string) (*Answer, error) {
	c := a.builder.Build(ctx, query)
	rendered := cascade.Render(c)

	text, err := a.gen.Generate(ctx, generate.Request{
		System: a.system,
		User:   BuildPrompt(rendered, query),
	})
	if err != nil {
		return nil, fmt.Errorf("assistant: generate: %w", err)
	}

	a.logger.Info("assistant: answered",
		slog.Int("frames", c.FrameCount()),
		slog.Int("tokens", c.TotalTokensEstimate),
		slog.Bool("context_empty", c.IsEmpty()),
	)
	return &Answer{Text: text, Context: c, Rendered: rendered}, nil
}

// BuildPrompt places the rendered context ahead of the user's question.
func BuildPrompt(rendered, query string) string {
	var b strings.Builder
	b.WriteString("Screen history:\n\n")
	b.WriteString(rendered)
	b.WriteString("\n\nQuestion: ")
	b.WriteString(query)
	return b.String()
}
