package cascade

import (
	"cmp"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/starford/glimpse/internal/models"
)

const (
	textMatchWeight   = 2.0
	windowMatchWeight = 1.5
	appMatchWeight    = 1.0

	recencyWeight  = 0.5
	recencyHorizon = 7 * 24 * time.Hour

	// Terms this short or shorter are dropped from the query.
	maxNoiseTermLength = 2
)

type candidate struct {
	record models.Record
	score  float64
}

// queryTerms lower-cases the query, splits it on whitespace and drops noise terms.
func queryTerms(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	terms := fields[:0]
	for _, f := range fields {
		if utf8.RuneCountInString(f) > maxNoiseTermLength {
			terms = append(terms, f)
		}
	}
	return terms
}

// recencyBonus decays linearly from 0.5 to 0 over the seven-day horizon,
// whatever tier the record falls into.
func recencyBonus(ts, now time.Time) float64 {
	age := now.Sub(ts).Seconds()
	return max(0, 1-age/recencyHorizon.Seconds()) * recencyWeight
}

// score is the substring term-match score plus the recency bonus.
func score(r models.Record, terms []string, now time.Time) float64 {
	var s float64
	if len(terms) > 0 {
		text := strings.ToLower(r.Text)
		window := strings.ToLower(r.WindowTitle)
		app := strings.ToLower(r.AppName)
		for _, term := range terms {
			if strings.Contains(text, term) {
				s += textMatchWeight
			}
			if strings.Contains(window, term) {
				s += windowMatchWeight
			}
			if strings.Contains(app, term) {
				s += appMatchWeight
			}
		}
	}
	return s + recencyBonus(r.Timestamp, now)
}

// rank scores records, keeps those with a positive score (all of them for an
// empty query), and returns the top limit by descending score. Equal scores
// keep their input order.
func rank(records []models.Record, query string, now time.Time, limit int) []candidate {
	terms := queryTerms(query)
	kept := make([]candidate, 0, len(records))
	for _, r := range records {
		s := score(r, terms, now)
		if s > 0 || query == "" {
			kept = append(kept, candidate{record: r, score: s})
		}
	}

	slices.SortStableFunc(kept, func(a, b candidate) int {
		return cmp.Compare(b.score, a.score)
	})

	if len(kept) > limit {
		kept = kept[:limit]
	}
	return kept
}
