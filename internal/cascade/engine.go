// Package cascade builds tiered, budget-bounded context from screen-capture
// records for a natural-language query.
package cascade

import (
	"context"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/starford/glimpse/internal/models"
)

// Corpus is the read-only source of capture records.
type Corpus interface {
	Records(ctx context.Context) ([]models.Record, error)
}

// CorpusFunc adapts a plain function to Corpus.
type CorpusFunc func(ctx context.Context) ([]models.Record, error)

// Records implements Corpus.
func (f CorpusFunc) Records(ctx context.Context) ([]models.Record, error) { return f(ctx) }

// Engine builds a Context per query. It holds no state between calls and is
// safe for concurrent use.
type Engine struct {
	corpus Corpus
	now    func() time.Time
	logger *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLogger sets the logger used to report corpus failures.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// NewEngine returns an Engine reading from corpus.
func NewEngine(corpus Corpus, opts ...Option) *Engine {
	e := &Engine{
		corpus: corpus,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Build reads the corpus and assembles the cascade context for query.
// A corpus failure is logged and yields an empty context; Build never fails.
func (e *Engine) Build(ctx context.Context, query string) *Context {
	now := e.now()
	records, err := e.corpus.Records(ctx)
	if err != nil {
		e.logger.Warn("cascade: corpus read failed", slog.String("error", err.Error()))
		return newContext()
	}
	c := Assemble(records, query, now)
	e.logger.Debug("cascade: context built",
		slog.Int("records", len(records)),
		slog.Int("immediate", len(c.Immediate)),
		slog.Int("historical", len(c.Historical)),
		slog.Int("thematic", len(c.Thematic)),
		slog.Int("tokens", c.TotalTokensEstimate),
	)
	return c
}

// Assemble is the pure core of Build: partition by age, rank within each
// tier, truncate to the tier budget and tag the resulting frames.
func Assemble(records []models.Record, query string, now time.Time) *Context {
	c := newContext()
	parts := Partition(records, now)

	var chars int
	for _, t := range Tiers {
		ranked := rank(parts[t], query, now, t.Limit())
		frames := make([]Frame, 0, len(ranked))
		for _, cand := range ranked {
			r := cand.record
			text := Truncate(r.Text, t.CharBudget())
			chars += utf8.RuneCountInString(text)
			frames = append(frames, Frame{
				ID:            r.ID,
				Text:          text,
				Timestamp:     r.Timestamp,
				AppName:       r.AppName,
				WindowTitle:   r.WindowTitle,
				IsDirectMatch: query != "",
				Tier:          t,
			})
			c.RelevanceScores[r.ID] = t.Weight()
		}
		c.setFrames(t, frames)
	}
	c.TotalTokensEstimate = chars / charsPerToken
	return c
}
