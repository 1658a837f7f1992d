package cascade

import (
	"fmt"
	"time"
)

// Tier is one of the three temporal buckets a record can fall into.
type Tier int

const (
	TierImmediate Tier = iota
	TierHistorical
	TierThematic

	tierCount = 3
)

// charsPerToken is the fixed sizing heuristic behind the per-tier budgets.
const charsPerToken = 4

// Tiers lists every tier in rendering order.
var Tiers = [tierCount]Tier{TierImmediate, TierHistorical, TierThematic}

type tierSpec struct {
	name       string
	label      string
	maxAge     time.Duration // exclusive upper bound; zero means unbounded
	limit      int
	charBudget int
	weight     float64
}

var tierTable = [tierCount]tierSpec{
	TierImmediate: {
		name:       "immediate",
		label:      "Immediate context (last 4 hours)",
		maxAge:     4 * time.Hour,
		limit:      10,
		charBudget: 3000 * charsPerToken,
		weight:     1.0,
	},
	TierHistorical: {
		name:       "historical",
		label:      "Recent history (last 7 days)",
		maxAge:     7 * 24 * time.Hour,
		limit:      5,
		charBudget: 1500 * charsPerToken,
		weight:     0.6,
	},
	TierThematic: {
		name:       "thematic",
		label:      "Background (older than 7 days)",
		limit:      3,
		charBudget: 800 * charsPerToken,
		weight:     0.3,
	},
}

func (t Tier) spec() tierSpec {
	if t < 0 || int(t) >= tierCount {
		panic(fmt.Sprintf("cascade: invalid tier %d", int(t)))
	}
	return tierTable[t]
}

// String returns the machine name of the tier.
func (t Tier) String() string {
	if t < 0 || int(t) >= tierCount {
		return fmt.Sprintf("Tier(%d)", int(t))
	}
	return tierTable[t].name
}

// Label is the human/LLM-readable section heading for the tier.
func (t Tier) Label() string { return t.spec().label }

// Limit is the maximum number of frames the tier may contribute.
func (t Tier) Limit() int { return t.spec().limit }

// CharBudget is the per-frame character budget of the tier.
func (t Tier) CharBudget() int { return t.spec().charBudget }

// Weight is the fixed relevance reported for every frame of the tier.
func (t Tier) Weight() float64 { return t.spec().weight }

// MarshalText implements encoding.TextMarshaler.
func (t Tier) MarshalText() ([]byte, error) {
	if t < 0 || int(t) >= tierCount {
		return nil, fmt.Errorf("cascade: invalid tier %d", int(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Tier) UnmarshalText(b []byte) error {
	parsed, err := ParseTier(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ParseTier maps a machine name back to its Tier.
func ParseTier(name string) (Tier, error) {
	for _, t := range Tiers {
		if tierTable[t].name == name {
			return t, nil
		}
	}
	return 0, fmt.Errorf("cascade: unknown tier %q", name)
}

// tierForAge classifies an age. Negative ages (future timestamps) are
// Immediate.
func tierForAge(age time.Duration) Tier {
	for _, t := range Tiers {
		if bound := tierTable[t].maxAge; bound == 0 || age < bound {
			return t
		}
	}
	return TierThematic
}
