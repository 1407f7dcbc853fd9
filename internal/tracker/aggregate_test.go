package tracker

import (
	"testing"
	"time"

	"example.com/leetgoal/internal/period"
)

func fixedDifficulties(m map[string]string) func(string) string {
	return func(slug string) string {
		if d, ok := m[slug]; ok {
			return d
		}
		return DifficultyUnknown
	}
}

func checkWindowInvariant(t *testing.T, name string, state PeriodState) {
	t.Helper()
	if state.Count != state.ByDifficulty.Total() {
		t.Errorf("%s: count %d != difficulty total %d", name, state.Count, state.ByDifficulty.Total())
	}
	if state.Count != len(state.SeenSlugs) {
		t.Errorf("%s: count %d != seen slugs %d", name, state.Count, len(state.SeenSlugs))
	}
}

func TestApplyAcceptedWindowMembership(t *testing.T) {
	now := time.Date(2024, 6, 5, 14, 30, 0, 0, time.Local) // Wednesday
	weekStart := period.WeekStart(now)                     // Monday June 3rd
	monthStart := period.MonthStart(now)                   // June 1st

	events := []AcceptedEvent{
		{Slug: "two-sum", Timestamp: now.Add(-time.Hour).Unix()},                                           // today
		{Slug: "add-two-numbers", Timestamp: time.Date(2024, 6, 4, 10, 0, 0, 0, time.Local).Unix()},        // this week, not today
		{Slug: "median-of-two-sorted-arrays", Timestamp: time.Date(2024, 6, 1, 9, 0, 0, 0, time.Local).Unix()}, // this month, last week
		{Slug: "longest-substring", Timestamp: time.Date(2024, 5, 20, 9, 0, 0, 0, time.Local).Unix()},      // prior month, counted nowhere
	}
	difficulties := fixedDifficulties(map[string]string{
		"two-sum":                     DifficultyEasy,
		"add-two-numbers":             DifficultyMedium,
		"median-of-two-sorted-arrays": DifficultyHard,
	})

	cache := freshCache("alice", now)
	applyAccepted(&cache, events, now, weekStart, monthStart, difficulties)

	if cache.Today.Count != 1 {
		t.Errorf("today count = %d, want 1", cache.Today.Count)
	}
	if cache.Week.Count != 2 {
		t.Errorf("week count = %d, want 2", cache.Week.Count)
	}
	if cache.Month.Count != 3 {
		t.Errorf("month count = %d, want 3", cache.Month.Count)
	}
	if cache.Month.ByDifficulty != (DifficultyCounts{Easy: 1, Medium: 1, Hard: 1}) {
		t.Errorf("month difficulties = %+v", cache.Month.ByDifficulty)
	}
	checkWindowInvariant(t, "today", cache.Today)
	checkWindowInvariant(t, "week", cache.Week)
	checkWindowInvariant(t, "month", cache.Month)

	if want := events[0].Timestamp; cache.LastCheckedTs != want {
		t.Errorf("lastCheckedTs = %d, want %d", cache.LastCheckedTs, want)
	}
}

func TestApplyAcceptedIsIdempotent(t *testing.T) {
	now := time.Date(2024, 6, 5, 14, 30, 0, 0, time.Local)
	weekStart := period.WeekStart(now)
	monthStart := period.MonthStart(now)

	events := []AcceptedEvent{
		{Slug: "two-sum", Timestamp: now.Add(-time.Hour).Unix()},
		{Slug: "add-two-numbers", Timestamp: now.Add(-2 * time.Hour).Unix()},
	}
	difficulties := fixedDifficulties(map[string]string{
		"two-sum":         DifficultyEasy,
		"add-two-numbers": DifficultyMedium,
	})

	cache := freshCache("alice", now)
	applyAccepted(&cache, events, now, weekStart, monthStart, difficulties)
	first := cache
	applyAccepted(&cache, events, now, weekStart, monthStart, difficulties)

	if cache.Today.Count != first.Today.Count ||
		cache.Week.Count != first.Week.Count ||
		cache.Month.Count != first.Month.Count {
		t.Fatalf("reapplying events changed counts: %+v vs %+v", cache, first)
	}
	if cache.LastCheckedTs != first.LastCheckedTs {
		t.Fatalf("reapplying events moved watermark: %d vs %d", cache.LastCheckedTs, first.LastCheckedTs)
	}
}

func TestApplyAcceptedDedupsSameSlugPerWindow(t *testing.T) {
	now := time.Date(2024, 6, 5, 14, 30, 0, 0, time.Local)
	weekStart := period.WeekStart(now)
	monthStart := period.MonthStart(now)

	// Same problem re-solved three times today still counts once per window.
	events := []AcceptedEvent{
		{Slug: "two-sum", Timestamp: now.Add(-3 * time.Hour).Unix()},
		{Slug: "two-sum", Timestamp: now.Add(-2 * time.Hour).Unix()},
		{Slug: "two-sum", Timestamp: now.Add(-time.Hour).Unix()},
	}
	difficulties := fixedDifficulties(map[string]string{"two-sum": DifficultyEasy})

	cache := freshCache("alice", now)
	applyAccepted(&cache, events, now, weekStart, monthStart, difficulties)

	for name, state := range map[string]PeriodState{
		"today": cache.Today,
		"week":  cache.Week,
		"month": cache.Month,
	} {
		if state.Count != 1 {
			t.Errorf("%s count = %d, want 1", name, state.Count)
		}
		checkWindowInvariant(t, name, state)
	}
	if want := events[2].Timestamp; cache.LastCheckedTs != want {
		t.Errorf("lastCheckedTs = %d, want %d", cache.LastCheckedTs, want)
	}
}

func TestApplyAcceptedEmptySlugAdvancesWatermarkOnly(t *testing.T) {
	now := time.Date(2024, 6, 5, 14, 30, 0, 0, time.Local)
	events := []AcceptedEvent{{Slug: "", Timestamp: now.Add(-time.Minute).Unix()}}

	cache := freshCache("alice", now)
	applyAccepted(&cache, events, now, period.WeekStart(now), period.MonthStart(now), fixedDifficulties(nil))

	if cache.Today.Count != 0 || cache.Week.Count != 0 || cache.Month.Count != 0 {
		t.Fatalf("empty slug counted: %+v", cache)
	}
	if want := events[0].Timestamp; cache.LastCheckedTs != want {
		t.Fatalf("lastCheckedTs = %d, want %d", cache.LastCheckedTs, want)
	}
}

func TestApplyAcceptedUnknownDifficultyBucket(t *testing.T) {
	now := time.Date(2024, 6, 5, 14, 30, 0, 0, time.Local)
	events := []AcceptedEvent{{Slug: "shiny-new-problem", Timestamp: now.Add(-time.Minute).Unix()}}

	cache := freshCache("alice", now)
	applyAccepted(&cache, events, now, period.WeekStart(now), period.MonthStart(now), fixedDifficulties(nil))

	if cache.Month.ByDifficulty.Unknown != 1 {
		t.Fatalf("unknown bucket = %d, want 1", cache.Month.ByDifficulty.Unknown)
	}
	checkWindowInvariant(t, "month", cache.Month)
}
