package tracker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"example.com/leetgoal/internal/period"
)

const (
	statsCacheVersion = 3
	statsCachePrefix  = "statsCache:"
)

func statsCacheKey(username string) string {
	return statsCachePrefix + username
}

func freshCache(username string, now time.Time) StatsCache {
	return StatsCache{
		Version:    statsCacheVersion,
		Username:   username,
		PeriodKeys: period.KeysAt(now),
		Today:      newPeriodState(),
		Week:       newPeriodState(),
		Month:      newPeriodState(),
	}
}

// loadStatsCache fetches and normalizes the persisted aggregate. A missing
// record, a version bump, or a username mismatch yields a fresh cache and
// resetMonth=true. Otherwise each window whose calendar key rolled is
// replaced with an empty one; a month roll additionally clears the baseline
// marker so the orchestrator re-baselines. The returned before bytes are the
// loaded-and-normalized serialized form used to skip redundant writes.
func loadStatsCache(ctx context.Context, kv KV, username string, now time.Time) (cache StatsCache, before []byte, resetMonth bool, err error) {
	raw, ok, err := kv.Get(ctx, statsCacheKey(username))
	if err != nil {
		return StatsCache{}, nil, false, fmt.Errorf("load stats cache: %w", err)
	}

	cache, resetMonth = normalizeStatsCache(raw, ok, username, now)
	before, err = json.Marshal(cache)
	if err != nil {
		return StatsCache{}, nil, false, fmt.Errorf("marshal stats cache: %w", err)
	}
	return cache, before, resetMonth, nil
}

func normalizeStatsCache(raw json.RawMessage, present bool, username string, now time.Time) (StatsCache, bool) {
	fresh := freshCache(username, now)
	if !present {
		return fresh, true
	}

	var stored StatsCache
	if err := json.Unmarshal(raw, &stored); err != nil {
		// Schema drift is a silent full reset, not an error.
		return fresh, true
	}
	if stored.Version != statsCacheVersion || stored.Username != username {
		return fresh, true
	}

	currentKeys := period.KeysAt(now)
	previousKeys := stored.PeriodKeys

	cache := StatsCache{
		Version:          statsCacheVersion,
		Username:         username,
		LastCheckedTs:    stored.LastCheckedTs,
		MonthBaselineKey: stored.MonthBaselineKey,
		PeriodKeys:       currentKeys,
		Today:            normalizePeriodState(stored.Today),
		Week:             normalizePeriodState(stored.Week),
		Month:            normalizePeriodState(stored.Month),
	}

	resetMonth := previousKeys.MonthKey != currentKeys.MonthKey
	if previousKeys.DayKey != currentKeys.DayKey {
		cache.Today = newPeriodState()
	}
	if previousKeys.WeekKey != currentKeys.WeekKey {
		cache.Week = newPeriodState()
	}
	if resetMonth {
		cache.Month = newPeriodState()
		cache.MonthBaselineKey = ""
	}

	return cache, resetMonth
}

func normalizePeriodState(state PeriodState) PeriodState {
	seen := uniqueNonEmpty(state.SeenSlugs)
	return PeriodState{
		Count:        state.Count,
		ByDifficulty: state.ByDifficulty,
		SeenSlugs:    seen,
	}
}

// persistStatsCache writes the aggregate back only when its serialized form
// differs from what was loaded, so pure cache-hit builds stay read-only.
func persistStatsCache(ctx context.Context, kv KV, cache StatsCache, before []byte) (bool, error) {
	after, err := json.Marshal(cache)
	if err != nil {
		return false, fmt.Errorf("marshal stats cache: %w", err)
	}
	if string(after) == string(before) {
		return false, nil
	}
	if err := kv.Set(ctx, statsCacheKey(cache.Username), after); err != nil {
		return false, fmt.Errorf("persist stats cache: %w", err)
	}
	return true, nil
}
