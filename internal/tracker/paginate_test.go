package tracker

import (
	"context"
	"errors"
	"testing"
)

// scriptedAdapter replays a fixed sequence of pages.
type scriptedAdapter struct {
	name  string
	cap   int
	pages []page
	errAt int // 1-based page index that fails, 0 for never
	calls int
}

func (a *scriptedAdapter) source() string        { return a.name }
func (a *scriptedAdapter) maxPages() int         { return a.cap }
func (a *scriptedAdapter) initialCursor() Cursor { return Cursor{} }

func (a *scriptedAdapter) list(context.Context, int64, Cursor) (page, error) {
	a.calls++
	if a.errAt != 0 && a.calls == a.errAt {
		return page{}, errors.New("scripted failure")
	}
	if a.calls > len(a.pages) {
		return page{done: true, source: a.name}, nil
	}
	result := a.pages[a.calls-1]
	if result.source == "" {
		result.source = a.name
	}
	if !result.done && result.next == nil {
		result.next = &Cursor{Offset: a.calls * dumpPageSize}
	}
	return result, nil
}

func TestDriveCollectsUntilDone(t *testing.T) {
	a := &scriptedAdapter{name: "test", cap: 10, pages: []page{
		{events: []AcceptedEvent{{Slug: "two-sum", Timestamp: 1000}}},
		{events: []AcceptedEvent{{Slug: "add-two-numbers", Timestamp: 900}}, done: true},
	}}

	result, err := drive(context.Background(), a, 0)
	if err != nil {
		t.Fatalf("drive: %v", err)
	}
	if len(result.accepted) != 2 {
		t.Fatalf("accepted = %v", result.accepted)
	}
	if result.pageLimitReached {
		t.Fatal("pageLimitReached set on a completed session")
	}
	if a.calls != 2 {
		t.Fatalf("adapter called %d times, want 2", a.calls)
	}
}

func TestDrivePageCapSetsPageLimitReached(t *testing.T) {
	pages := make([]page, 5)
	for i := range pages {
		pages[i] = page{events: []AcceptedEvent{{Slug: "problem", Timestamp: int64(1000 - i)}}}
	}
	a := &scriptedAdapter{name: "test", cap: 3, pages: pages}

	result, err := drive(context.Background(), a, 0)
	if err != nil {
		t.Fatalf("drive: %v", err)
	}
	if !result.pageLimitReached {
		t.Fatal("pageLimitReached = false, want true at the cap")
	}
	if a.calls != 3 {
		t.Fatalf("adapter called %d times, want the cap of 3", a.calls)
	}
	if len(result.accepted) != 3 {
		t.Fatalf("accepted = %v", result.accepted)
	}
}

func TestDriveDedupsAcrossPages(t *testing.T) {
	// The same (slug, timestamp) pair reappearing on an overlapping page
	// counts once; a re-solve at a different timestamp stays.
	a := &scriptedAdapter{name: "test", cap: 10, pages: []page{
		{events: []AcceptedEvent{
			{Slug: "two-sum", Timestamp: 1000},
			{Slug: "add-two-numbers", Timestamp: 950},
		}},
		{events: []AcceptedEvent{
			{Slug: "two-sum", Timestamp: 1000},
			{Slug: "two-sum", Timestamp: 800},
		}, done: true},
	}}

	result, err := drive(context.Background(), a, 0)
	if err != nil {
		t.Fatalf("drive: %v", err)
	}
	if len(result.accepted) != 3 {
		t.Fatalf("accepted = %v, want 3 distinct events", result.accepted)
	}
}

func TestDrivePropagatesListError(t *testing.T) {
	a := &scriptedAdapter{name: "test", cap: 10, errAt: 2, pages: []page{
		{events: []AcceptedEvent{{Slug: "two-sum", Timestamp: 1000}}},
	}}

	if _, err := drive(context.Background(), a, 0); err == nil {
		t.Fatal("expected the page error to propagate")
	}
}

func TestDriveStickySource(t *testing.T) {
	// The first page answers with a more specific variant name; later pages
	// must not flip the reported source back and forth.
	a := &scriptedAdapter{name: sourceGraphQLList, cap: 10, pages: []page{
		{events: []AcceptedEvent{{Slug: "two-sum", Timestamp: 1000}}, source: "graphql_submission_list_username"},
		{events: []AcceptedEvent{{Slug: "add-two-numbers", Timestamp: 900}}, source: "graphql_submission_list_default", done: true},
	}}

	result, err := drive(context.Background(), a, 0)
	if err != nil {
		t.Fatalf("drive: %v", err)
	}
	if result.source != "graphql_submission_list_username" {
		t.Fatalf("source = %q, want the first page's variant", result.source)
	}
}

func TestDriveSkipsMalformedEvents(t *testing.T) {
	a := &scriptedAdapter{name: "test", cap: 10, pages: []page{
		{events: []AcceptedEvent{
			{Slug: "", Timestamp: 1000},
			{Slug: "two-sum", Timestamp: 0},
			{Slug: "two-sum", Timestamp: 900},
		}, done: true},
	}}

	result, err := drive(context.Background(), a, 0)
	if err != nil {
		t.Fatalf("drive: %v", err)
	}
	if len(result.accepted) != 1 || result.accepted[0].Slug != "two-sum" {
		t.Fatalf("accepted = %v", result.accepted)
	}
}
