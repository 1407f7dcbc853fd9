package tracker

import "context"

// fetchResult is the outcome of driving one adapter (or the degraded
// fallback) to exhaustion.
type fetchResult struct {
	accepted         []AcceptedEvent
	source           string
	pageLimitReached bool
	fallbackReason   string
}

type eventKey struct {
	slug string
	ts   int64
}

// drive repeatedly lists pages from the adapter until it reports done,
// returns no continuation, or the page cap is hit. Events are deduplicated
// by (slug, timestamp) to guard against items reappearing across
// overlapping pages. The first page's source becomes sticky for reporting.
func drive(ctx context.Context, a adapter, sinceTs int64) (fetchResult, error) {
	var accepted []AcceptedEvent
	seen := make(map[eventKey]struct{})
	cursor := a.initialCursor()
	resolvedSource := a.source()

	for pageNum := 0; pageNum < a.maxPages(); pageNum++ {
		result, err := a.list(ctx, sinceTs, cursor)
		if err != nil {
			return fetchResult{}, err
		}
		if result.source != "" && (pageNum == 0 || resolvedSource == a.source()) {
			resolvedSource = result.source
		}

		for _, event := range result.events {
			if event.Slug == "" || event.Timestamp <= 0 {
				continue
			}
			key := eventKey{slug: event.Slug, ts: event.Timestamp}
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			accepted = append(accepted, event)
		}

		if result.done || result.next == nil {
			return fetchResult{accepted: accepted, source: resolvedSource}, nil
		}
		cursor = *result.next
	}

	return fetchResult{accepted: accepted, source: resolvedSource, pageLimitReached: true}, nil
}
