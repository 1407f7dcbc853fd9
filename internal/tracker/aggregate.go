package tracker

import (
	"time"

	"example.com/leetgoal/internal/period"
)

// applyAccepted folds accepted events into the cache's three windows. Each
// window counts an event iff its timestamp falls inside the window's span
// ending at now and its slug is not already in that window's ledger. The
// watermark advances to the maximum event timestamp seen and never moves
// backwards here; baseline rebuilds pre-set it before calling.
func applyAccepted(cache *StatsCache, events []AcceptedEvent, now, weekStart, monthStart time.Time, difficultyOf func(slug string) string) {
	if len(events) == 0 {
		return
	}

	todaySeen := slugSet(cache.Today.SeenSlugs)
	weekSeen := slugSet(cache.Week.SeenSlugs)
	monthSeen := slugSet(cache.Month.SeenSlugs)

	newestTs := cache.LastCheckedTs

	for _, event := range events {
		if event.Timestamp > newestTs {
			newestTs = event.Timestamp
		}
		if event.Slug == "" {
			continue
		}

		difficulty := difficultyOf(event.Slug)

		if period.InRange(event.Timestamp, monthStart, now) {
			if _, ok := monthSeen[event.Slug]; !ok {
				monthSeen[event.Slug] = struct{}{}
				cache.Month.SeenSlugs = append(cache.Month.SeenSlugs, event.Slug)
				cache.Month.Count++
				cache.Month.ByDifficulty.Add(difficulty)
			}
		}

		if period.InRange(event.Timestamp, weekStart, now) {
			if _, ok := weekSeen[event.Slug]; !ok {
				weekSeen[event.Slug] = struct{}{}
				cache.Week.SeenSlugs = append(cache.Week.SeenSlugs, event.Slug)
				cache.Week.Count++
				cache.Week.ByDifficulty.Add(difficulty)
			}
		}

		if period.SameLocalDay(event.Timestamp, now) {
			if _, ok := todaySeen[event.Slug]; !ok {
				todaySeen[event.Slug] = struct{}{}
				cache.Today.SeenSlugs = append(cache.Today.SeenSlugs, event.Slug)
				cache.Today.Count++
				cache.Today.ByDifficulty.Add(difficulty)
			}
		}
	}

	cache.LastCheckedTs = newestTs
}
