package cascade

import (
	"time"

	"github.com/starford/glimpse/internal/models"
)

// Partition splits records into the three tiers by age relative to now.
// Input order is preserved within each tier.
func Partition(records []models.Record, now time.Time) [tierCount][]models.Record {
	var out [tierCount][]models.Record
	for _, r := range records {
		t := tierForAge(now.Sub(r.Timestamp))
		out[t] = append(out[t], r)
	}
	return out
}
