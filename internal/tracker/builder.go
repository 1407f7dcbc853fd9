package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"example.com/leetgoal/internal/leetcode"
	"example.com/leetgoal/internal/period"
)

// Builder runs one incremental build per request: decide baseline versus
// delta, fetch new accepted submissions through the adapter chain, resolve
// difficulties, fold into the windows, and persist if anything changed.
type Builder struct {
	kv           KV
	client       sourceClient
	difficulties *DifficultyResolver
	logger       *slog.Logger

	// At most one in-flight build per username; concurrent callers share
	// the same result instead of racing load-modify-persist.
	group singleflight.Group

	now func() time.Time
}

// NewBuilder wires the engine against its collaborators.
func NewBuilder(kv KV, client sourceClient, difficulties *DifficultyResolver, logger *slog.Logger) *Builder {
	return &Builder{
		kv:           kv,
		client:       client,
		difficulties: difficulties,
		logger:       logger,
		now:          time.Now,
	}
}

// WeekStats is the week window plus its start boundary.
type WeekStats struct {
	RangeStats
	WeekStartISO string `json:"weekStartISO"`
}

// MonthStats is the month window plus its start boundary.
type MonthStats struct {
	RangeStats
	MonthStartISO string `json:"monthStartISO"`
}

// Debug carries build diagnostics for the response payload.
type Debug struct {
	BuildID                string      `json:"buildId"`
	Source                 string      `json:"source"`
	AcceptedFetchedCount   int         `json:"acceptedFetchedCount"`
	EarliestFetchedTs      int64       `json:"earliestFetchedTs"`
	SinceTs                int64       `json:"sinceTs"`
	LastCheckedBefore      int64       `json:"lastCheckedBefore"`
	LastCheckedAfter       int64       `json:"lastCheckedAfter"`
	PeriodKeys             period.Keys `json:"periodKeys"`
	PageLimitReached       bool        `json:"pageLimitReached"`
	FallbackReason         string      `json:"fallbackReason,omitempty"`
	BaselinePerformed      bool        `json:"baselinePerformed"`
	BaselineSource         string      `json:"baselineSource,omitempty"`
	BaselineFallbackReason string      `json:"baselineFallbackReason,omitempty"`
}

// Result is the outcome of one build.
type Result struct {
	Today   RangeStats `json:"today"`
	Week    WeekStats  `json:"week"`
	Month   MonthStats `json:"month"`
	Warning string     `json:"warning,omitempty"`
	Debug   Debug      `json:"debug"`
}

// Build runs (or joins) the incremental build for username.
func (b *Builder) Build(ctx context.Context, username string) (*Result, error) {
	if username == "" {
		return nil, leetcode.ErrNoUsername
	}
	v, err, _ := b.group.Do(username, func() (any, error) {
		return b.build(ctx, username)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Result), nil
}

func (b *Builder) build(ctx context.Context, username string) (*Result, error) {
	now := b.now()
	weekStart := period.WeekStart(now)
	monthStart := period.MonthStart(now)

	cache, before, resetMonth, err := loadStatsCache(ctx, b.kv, username, now)
	if err != nil {
		return nil, err
	}

	// Opportunistic and best-effort; a failed compaction never aborts a build.
	if err := b.difficulties.CompactIfDue(ctx, cache.Month.SeenSlugs); err != nil {
		b.logger.Warn("difficulty cache compaction failed", "username", username, "error", err)
	}

	sinceTs := cache.LastCheckedTs
	lastCheckedBefore := sinceTs
	monthBoundaryTs := monthStart.Unix() - 1
	if sinceTs == 0 || resetMonth {
		sinceTs = monthBoundaryTs
		cache.LastCheckedTs = sinceTs
	}

	monthKey := cache.PeriodKeys.MonthKey
	needsBaseline := cache.MonthBaselineKey != monthKey

	var fetch fetchResult
	if needsBaseline {
		// The incremental delta cannot reconstruct a month total from a cold
		// or stale cache; only a from-scratch scan over the month is
		// authoritative.
		fetch, err = b.fetchAcceptedSince(ctx, username, monthBoundaryTs)
		if err != nil {
			return nil, err
		}
		cache.Today = newPeriodState()
		cache.Week = newPeriodState()
		cache.Month = newPeriodState()
		cache.LastCheckedTs = monthBoundaryTs
		sinceTs = monthBoundaryTs
	} else {
		fetch, err = b.fetchAcceptedSince(ctx, username, sinceTs)
		if err != nil {
			return nil, err
		}
	}

	difficultyBySlug := map[string]string{}
	if len(fetch.accepted) > 0 {
		slugs := make([]string, 0, len(fetch.accepted))
		for _, event := range fetch.accepted {
			slugs = append(slugs, event.Slug)
		}
		difficultyBySlug, err = b.difficulties.Resolve(ctx, slugs)
		if err != nil {
			return nil, err
		}
	}
	difficultyOf := func(slug string) string {
		if difficulty, ok := difficultyBySlug[slug]; ok {
			return difficulty
		}
		return DifficultyUnknown
	}

	applyAccepted(&cache, fetch.accepted, now, weekStart, monthStart, difficultyOf)
	if needsBaseline {
		cache.MonthBaselineKey = monthKey
	}

	persisted, err := persistStatsCache(ctx, b.kv, cache, before)
	if err != nil {
		return nil, err
	}

	var earliestFetchedTs int64
	for _, event := range fetch.accepted {
		if event.Timestamp <= 0 {
			continue
		}
		if earliestFetchedTs == 0 || event.Timestamp < earliestFetchedTs {
			earliestFetchedTs = event.Timestamp
		}
	}

	result := &Result{
		Today:   rangeStats(cache.Today),
		Week:    WeekStats{RangeStats: rangeStats(cache.Week), WeekStartISO: weekStart.Format(time.RFC3339)},
		Month:   MonthStats{RangeStats: rangeStats(cache.Month), MonthStartISO: monthStart.Format(time.RFC3339)},
		Warning: buildFetchWarning(fetch.source, fetch.pageLimitReached, needsBaseline),
		Debug: Debug{
			BuildID:              uuid.NewString(),
			Source:               fetch.source,
			AcceptedFetchedCount: len(fetch.accepted),
			EarliestFetchedTs:    earliestFetchedTs,
			SinceTs:              sinceTs,
			LastCheckedBefore:    lastCheckedBefore,
			LastCheckedAfter:     cache.LastCheckedTs,
			PeriodKeys:           cache.PeriodKeys,
			PageLimitReached:     fetch.pageLimitReached,
			FallbackReason:       fetch.fallbackReason,
			BaselinePerformed:    needsBaseline,
		},
	}
	if needsBaseline {
		result.Debug.BaselineSource = fetch.source
		result.Debug.BaselineFallbackReason = fetch.fallbackReason
	}

	b.logger.Info("stats build completed",
		"username", username,
		"build_id", result.Debug.BuildID,
		"source", fetch.source,
		"fetched", len(fetch.accepted),
		"baseline", needsBaseline,
		"persisted", persisted,
		"page_limit_reached", fetch.pageLimitReached,
	)
	return result, nil
}

// fetchAcceptedSince runs the adapter chain: the dump endpoint first, the
// GraphQL paginated path when the dump rejects the session, and the short
// unpaginated recent list when the paginated GraphQL path errors outright.
// Non-auth dump failures propagate unchanged.
func (b *Builder) fetchAcceptedSince(ctx context.Context, username string, sinceTs int64) (fetchResult, error) {
	result, err := drive(ctx, newDumpAdapter(b.client), sinceTs)
	if err == nil {
		return result, nil
	}
	if !leetcode.IsAuthError(err) {
		return fetchResult{}, err
	}
	b.logger.Info("submissions dump rejected session, switching to graphql", "username", username, "error", err)

	result, gqlErr := drive(ctx, newGraphQLAdapter(b.client, username), sinceTs)
	if gqlErr == nil {
		return result, nil
	}

	accepted, fallbackErr := b.recentAccepted(ctx, username, sinceTs)
	if fallbackErr != nil {
		return fetchResult{}, fmt.Errorf("recent accepted fallback: %w", errors.Join(gqlErr, fallbackErr))
	}
	return fetchResult{
		accepted:         accepted,
		source:           sourceGraphQLRecent,
		fallbackReason:   gqlErr.Error(),
		pageLimitReached: true,
	}, nil
}

func (b *Builder) recentAccepted(ctx context.Context, username string, sinceTs int64) ([]AcceptedEvent, error) {
	submissions, err := b.client.RecentAccepted(ctx, username)
	if err != nil {
		return nil, err
	}
	var accepted []AcceptedEvent
	seen := make(map[eventKey]struct{})
	for _, submission := range submissions {
		ts := int64(submission.Timestamp)
		if ts <= 0 || ts <= sinceTs {
			continue
		}
		slug := submission.Slug()
		if slug == "" {
			continue
		}
		key := eventKey{slug: slug, ts: ts}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		accepted = append(accepted, AcceptedEvent{Slug: slug, Timestamp: ts})
	}
	return accepted, nil
}

// buildFetchWarning produces the user-facing completeness warning. The
// wording names the month when a baseline rebuild ran, since that is the
// window a truncated fetch leaves incomplete.
func buildFetchWarning(source string, pageLimitReached, baselinePerformed bool) string {
	if source == sourceGraphQLRecent {
		if baselinePerformed {
			return "This month may be incomplete because LeetCode fallback only returned recent accepted submissions."
		}
		return "Stats may be incomplete because LeetCode fallback only returned recent accepted submissions."
	}
	if !pageLimitReached {
		return ""
	}
	if baselinePerformed {
		return "This month may be incomplete due to API pagination limits."
	}
	return "Stats may be incomplete due to API pagination limits."
}
