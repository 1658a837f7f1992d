package cascade

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/glimpse/internal/models"
)

var now = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func rec(id, text string, age time.Duration) models.Record {
	return models.Record{ID: id, Text: text, Timestamp: now.Add(-age)}
}

func staticCorpus(records ...models.Record) Corpus {
	return CorpusFunc(func(context.Context) ([]models.Record, error) { return records, nil })
}

func newTestEngine(c Corpus) *Engine {
	return NewEngine(c,
		WithClock(func() time.Time { return now }),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
}

func ids(frames []Frame) []string {
	out := make([]string, 0, len(frames))
	for _, f := range frames {
		out = append(out, f.ID)
	}
	return out
}

func TestBuild_EmptyCorpus(t *testing.T) {
	c := newTestEngine(staticCorpus()).Build(context.Background(), "anything")

	assert.True(t, c.IsEmpty())
	assert.Equal(t, 0, c.TotalTokensEstimate)
	assert.Empty(t, c.RelevanceScores)
	assert.Equal(t, NoContextMessage, Render(c))
}

func TestBuild_CorpusErrorYieldsEmptyContext(t *testing.T) {
	failing := CorpusFunc(func(context.Context) ([]models.Record, error) {
		return nil, errors.New("disk on fire")
	})

	c := newTestEngine(failing).Build(context.Background(), "budget")

	require.NotNil(t, c)
	assert.True(t, c.IsEmpty())
}

func TestBuild_SingleRecentMatch(t *testing.T) {
	r := rec("r1", "budget report Q3", time.Hour)

	c := newTestEngine(staticCorpus(r)).Build(context.Background(), "budget")

	require.Len(t, c.Immediate, 1)
	assert.Empty(t, c.Historical)
	assert.Empty(t, c.Thematic)

	f := c.Immediate[0]
	assert.Equal(t, "r1", f.ID)
	assert.Equal(t, "budget report Q3", f.Text)
	assert.Equal(t, TierImmediate, f.Tier)
	assert.True(t, f.IsDirectMatch)
	assert.Equal(t, map[string]float64{"r1": 1.0}, c.RelevanceScores)
	assert.Equal(t, utf8.RuneCountInString("budget report Q3")/4, c.TotalTokensEstimate)

	ranked := rank([]models.Record{r}, "budget", now, TierImmediate.Limit())
	require.Len(t, ranked, 1)
	wantBonus := (1 - time.Hour.Seconds()/(7*24*time.Hour).Seconds()) * 0.5
	assert.InDelta(t, 2.0+wantBonus, ranked[0].score, 1e-9)
	assert.InDelta(t, 2.497, ranked[0].score, 1e-3)
}

func TestBuild_ThematicTruncation(t *testing.T) {
	long := strings.Repeat("x", 50_000)
	c := newTestEngine(staticCorpus(rec("old", long, 30*24*time.Hour))).Build(context.Background(), "")

	require.Len(t, c.Thematic, 1)
	f := c.Thematic[0]
	assert.Equal(t, 3200+len(Ellipsis), utf8.RuneCountInString(f.Text))
	assert.True(t, strings.HasSuffix(f.Text, Ellipsis))
	assert.False(t, f.IsDirectMatch)
	assert.Equal(t, 0.3, c.RelevanceScores["old"])
	assert.Equal(t, (3200+3)/4, c.TotalTokensEstimate)

	out := Render(c)
	assert.Contains(t, out, `"`+strings.Repeat("x", 200)+Ellipsis+`"`)
	assert.NotContains(t, out, strings.Repeat("x", 201))
}

func TestBuild_EqualScoresKeepCorpusOrder(t *testing.T) {
	a := rec("a", "budget meeting", 2*time.Hour)
	b := rec("b", "budget review", 2*time.Hour)

	c := newTestEngine(staticCorpus(a, b)).Build(context.Background(), "budget")
	assert.Equal(t, []string{"a", "b"}, ids(c.Immediate))

	c = newTestEngine(staticCorpus(b, a)).Build(context.Background(), "budget")
	assert.Equal(t, []string{"b", "a"}, ids(c.Immediate))
}

func TestBuild_ShortTermsOnlyRankByRecency(t *testing.T) {
	older := rec("older", "is a ok", 3*time.Hour)
	newer := rec("newer", "nothing relevant", 10*time.Minute)
	ancient := rec("ancient", "is a ok", 60*24*time.Hour)

	c := newTestEngine(staticCorpus(older, newer, ancient)).Build(context.Background(), "is a ok")

	assert.Equal(t, []string{"newer", "older"}, ids(c.Immediate))
	// Thematic bonus is zero and no term survives, so nothing scores.
	assert.Empty(t, c.Thematic)
	for _, f := range c.Immediate {
		assert.True(t, f.IsDirectMatch)
	}
}

func TestBuild_TiersArePopulatedIndependently(t *testing.T) {
	c := newTestEngine(staticCorpus(
		rec("h1", "quarterly budget", 2*24*time.Hour),
		rec("t1", "budget archive", 40*24*time.Hour),
	)).Build(context.Background(), "budget")

	assert.Empty(t, c.Immediate)
	assert.Equal(t, []string{"h1"}, ids(c.Historical))
	assert.Equal(t, []string{"t1"}, ids(c.Thematic))
	assert.Equal(t, 0.6, c.RelevanceScores["h1"])
	assert.Equal(t, 0.3, c.RelevanceScores["t1"])
	assert.False(t, c.IsEmpty())
}

func TestBuild_ThematicRequiresTermMatch(t *testing.T) {
	c := newTestEngine(staticCorpus(
		rec("hit", "budget archive", 40*24*time.Hour),
		rec("miss", "holiday photos", 40*24*time.Hour),
	)).Build(context.Background(), "budget")

	assert.Equal(t, []string{"hit"}, ids(c.Thematic))
}

func TestBuild_EmptyQueryKeepsEverythingUpToCap(t *testing.T) {
	var records []models.Record
	for i := range 20 {
		records = append(records, rec(fmt.Sprintf("t%02d", i), "old", time.Duration(8+i)*24*time.Hour))
	}

	c := newTestEngine(staticCorpus(records...)).Build(context.Background(), "")

	// All thematic scores are zero; the first three in corpus order win.
	assert.Equal(t, []string{"t00", "t01", "t02"}, ids(c.Thematic))
}

func TestBuild_FieldWeights(t *testing.T) {
	r := models.Record{
		ID:          "w",
		Text:        "nothing",
		AppName:     "Budgeteer",
		WindowTitle: "Budget 2026",
		Timestamp:   now.Add(-30 * 24 * time.Hour),
	}
	ranked := rank([]models.Record{r}, "BUDGET", now, 3)

	require.Len(t, ranked, 1)
	assert.InDelta(t, 1.5+1.0, ranked[0].score, 1e-9)
}

func TestBuild_FutureTimestampIsImmediate(t *testing.T) {
	c := newTestEngine(staticCorpus(rec("future", "budget", -time.Hour))).Build(context.Background(), "")

	assert.Equal(t, []string{"future"}, ids(c.Immediate))
}

func TestBuild_Boundaries(t *testing.T) {
	c := newTestEngine(staticCorpus(
		rec("just-under-4h", "x", 4*time.Hour-time.Nanosecond),
		rec("at-4h", "x", 4*time.Hour),
		rec("at-7d", "x", 7*24*time.Hour),
	)).Build(context.Background(), "")

	assert.Equal(t, []string{"just-under-4h"}, ids(c.Immediate))
	assert.Equal(t, []string{"at-4h"}, ids(c.Historical))
	assert.Equal(t, []string{"at-7d"}, ids(c.Thematic))
}

func TestBuild_MissingOptionalFields(t *testing.T) {
	c := newTestEngine(staticCorpus(models.Record{ID: "bare", Timestamp: now})).Build(context.Background(), "budget")

	// Empty text still carries a recency bonus.
	require.Len(t, c.Immediate, 1)
	assert.Equal(t, "", c.Immediate[0].Text)
}

func TestAssemble_Properties(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	words := []string{"budget", "report", "deploy", "meeting", "is", "ok", "invoice", "üñí"}

	for iter := range 50 {
		n := rng.IntN(60)
		records := make([]models.Record, 0, n)
		for i := range n {
			var sb strings.Builder
			for range rng.IntN(4000) {
				sb.WriteString(words[rng.IntN(len(words))])
				sb.WriteByte(' ')
			}
			records = append(records, models.Record{
				ID:          fmt.Sprintf("r%d-%d", iter, i),
				Text:        sb.String(),
				AppName:     words[rng.IntN(len(words))],
				WindowTitle: words[rng.IntN(len(words))],
				Timestamp:   now.Add(-time.Duration(rng.Int64N(int64(30 * 24 * time.Hour)))),
			})
		}
		query := words[rng.IntN(len(words))] + " " + words[rng.IntN(len(words))]

		parts := Partition(records, now)
		assert.Equal(t, n, len(parts[0])+len(parts[1])+len(parts[2]))

		c := Assemble(records, query, now)
		assert.LessOrEqual(t, len(c.Immediate), 10)
		assert.LessOrEqual(t, len(c.Historical), 5)
		assert.LessOrEqual(t, len(c.Thematic), 3)
		assert.Len(t, c.RelevanceScores, c.FrameCount())

		var chars int
		for _, tier := range Tiers {
			for _, f := range c.Frames(tier) {
				assert.Equal(t, tier, f.Tier)
				assert.Equal(t, tier, tierForAge(now.Sub(f.Timestamp)))
				assert.LessOrEqual(t, utf8.RuneCountInString(f.Text), tier.CharBudget()+len(Ellipsis))
				assert.Equal(t, tier.Weight(), c.RelevanceScores[f.ID])
				chars += utf8.RuneCountInString(f.Text)
			}
		}
		assert.Equal(t, chars/4, c.TotalTokensEstimate)
	}
}

func TestBuild_Idempotent(t *testing.T) {
	var records []models.Record
	for i := range 40 {
		// Pairs share a timestamp and text so their scores tie.
		age := time.Duration(i/2) * 9 * time.Hour
		text := fmt.Sprintf("budget line %d", i/2)
		records = append(records, models.Record{
			ID:          fmt.Sprintf("r%02d", i),
			Text:        text,
			AppName:     "Numbers",
			WindowTitle: "Budget",
			Timestamp:   now.Add(-age),
		})
	}
	e := newTestEngine(staticCorpus(records...))

	for _, q := range []string{"budget", "", "numbers line"} {
		first := e.Build(context.Background(), q)
		second := e.Build(context.Background(), q)

		require.False(t, first.IsEmpty(), "query %q", q)
		assert.Equal(t, first, second, "query %q", q)
		assert.Equal(t, first.RelevanceScores, second.RelevanceScores, "query %q", q)
		assert.Equal(t, first.TotalTokensEstimate, second.TotalTokensEstimate, "query %q", q)
		assert.Equal(t, Render(first), Render(second), "query %q", q)
	}
}

func TestAssemble_DoesNotMutateInput(t *testing.T) {
	records := []models.Record{
		rec("a", "alpha", time.Hour),
		rec("b", "budget", time.Hour),
	}
	snapshot := append([]models.Record(nil), records...)

	Assemble(records, "budget", now)

	assert.Equal(t, snapshot, records)
}
