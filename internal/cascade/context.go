package cascade

import "time"

// Frame is one retrieved, truncated, tier-tagged record. Frames are built by
// the engine and must be treated as read-only.
type Frame struct {
	ID            string    `json:"id"`
	Text          string    `json:"text"`
	Timestamp     time.Time `json:"timestamp"`
	AppName       string    `json:"app_name,omitempty"`
	WindowTitle   string    `json:"window_title,omitempty"`
	IsDirectMatch bool      `json:"is_direct_match"`
	Tier          Tier      `json:"tier"`
}

// Context is the three-tier bundle produced by one query. Frames within a
// tier are in descending score order. RelevanceScores maps frame ID to the
// weight of the tier it was selected for.
type Context struct {
	Immediate           []Frame            `json:"immediate"`
	Historical          []Frame            `json:"historical"`
	Thematic            []Frame            `json:"thematic"`
	RelevanceScores     map[string]float64 `json:"relevance_scores"`
	TotalTokensEstimate int                `json:"total_tokens_estimate"`
}

func newContext() *Context {
	return &Context{
		Immediate:       []Frame{},
		Historical:      []Frame{},
		Thematic:        []Frame{},
		RelevanceScores: map[string]float64{},
	}
}

// IsEmpty reports whether no tier produced any frame.
func (c *Context) IsEmpty() bool {
	return len(c.Immediate) == 0 && len(c.Historical) == 0 && len(c.Thematic) == 0
}

// Frames returns the frames of a single tier.
func (c *Context) Frames(t Tier) []Frame {
	switch t {
	case TierImmediate:
		return c.Immediate
	case TierHistorical:
		return c.Historical
	case TierThematic:
		return c.Thematic
	}
	return nil
}

// FrameCount is the number of frames across all tiers.
func (c *Context) FrameCount() int {
	return len(c.Immediate) + len(c.Historical) + len(c.Thematic)
}

func (c *Context) setFrames(t Tier, frames []Frame) {
	switch t {
	case TierImmediate:
		c.Immediate = frames
	case TierHistorical:
		c.Historical = frames
	case TierThematic:
		c.Thematic = frames
	}
}
