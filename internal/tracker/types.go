// Package tracker implements the incremental submission aggregation engine:
// it pulls newly accepted submissions from upstream, folds them into rolling
// day/week/month counters per user, and persists the aggregate so counts
// survive restarts without full rescans.
package tracker

import (
	"context"
	"encoding/json"

	"example.com/leetgoal/internal/period"
)

// Difficulty labels used throughout the aggregate. Catalog levels 1/2/3 map
// to Easy/Medium/Hard; everything else is Unknown.
const (
	DifficultyEasy    = "Easy"
	DifficultyMedium  = "Medium"
	DifficultyHard    = "Hard"
	DifficultyUnknown = "Unknown"
)

// KV is the string-keyed record store the engine persists into. Values are
// opaque JSON; there are no transactions.
type KV interface {
	Get(ctx context.Context, key string) (json.RawMessage, bool, error)
	Set(ctx context.Context, key string, value json.RawMessage) error
}

// AcceptedEvent records that a problem slug was solved at a point in time.
// Events are transient; only their aggregate is persisted.
type AcceptedEvent struct {
	Slug      string
	Timestamp int64
}

// DifficultyCounts buckets solve counts per difficulty label.
type DifficultyCounts struct {
	Easy    int `json:"Easy"`
	Medium  int `json:"Medium"`
	Hard    int `json:"Hard"`
	Unknown int `json:"Unknown"`
}

// Add increments the bucket for the given label, defaulting to Unknown.
func (d *DifficultyCounts) Add(difficulty string) {
	switch difficulty {
	case DifficultyEasy:
		d.Easy++
	case DifficultyMedium:
		d.Medium++
	case DifficultyHard:
		d.Hard++
	default:
		d.Unknown++
	}
}

// Total sums all buckets.
func (d DifficultyCounts) Total() int {
	return d.Easy + d.Medium + d.Hard + d.Unknown
}

// PeriodState holds one rolling window's counters. SeenSlugs is the dedup
// ledger: a slug counts at most once per window, and the ledger is emptied
// exactly when the window rolls over.
type PeriodState struct {
	Count        int              `json:"count"`
	ByDifficulty DifficultyCounts `json:"byDifficulty"`
	SeenSlugs    []string         `json:"seenSlugs"`
}

func newPeriodState() PeriodState {
	return PeriodState{SeenSlugs: []string{}}
}

// StatsCache is the persisted per-user aggregate.
type StatsCache struct {
	Version          int         `json:"version"`
	Username         string      `json:"username"`
	LastCheckedTs    int64       `json:"lastCheckedTs"`
	MonthBaselineKey string      `json:"monthBaselineKey"`
	PeriodKeys       period.Keys `json:"periodKeys"`
	Today            PeriodState `json:"today"`
	Week             PeriodState `json:"week"`
	Month            PeriodState `json:"month"`
}

// RangeStats is the outward-facing view of one window.
type RangeStats struct {
	Count        int              `json:"count"`
	ByDifficulty DifficultyCounts `json:"byDifficulty"`
}

func rangeStats(state PeriodState) RangeStats {
	return RangeStats{Count: state.Count, ByDifficulty: state.ByDifficulty}
}

// uniqueNonEmpty deduplicates slugs preserving first-seen order and dropping
// empties. Order matters: the persisted form is compared byte-for-byte to
// skip redundant writes.
func uniqueNonEmpty(slugs []string) []string {
	out := make([]string, 0, len(slugs))
	seen := make(map[string]struct{}, len(slugs))
	for _, slug := range slugs {
		if slug == "" {
			continue
		}
		if _, ok := seen[slug]; ok {
			continue
		}
		seen[slug] = struct{}{}
		out = append(out, slug)
	}
	return out
}

func slugSet(slugs []string) map[string]struct{} {
	set := make(map[string]struct{}, len(slugs))
	for _, slug := range slugs {
		set[slug] = struct{}{}
	}
	return set
}
