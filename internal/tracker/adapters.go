package tracker

import (
	"context"

	"example.com/leetgoal/internal/leetcode"
)

const (
	dumpPageSize = 20
	dumpMaxPages = 40

	graphqlPageSize = 20
	graphqlMaxPages = 120

	acceptedStatus = "Accepted"
)

const (
	sourceSubmissionsAPI = "submissions_api"
	sourceGraphQLList    = "graphql_submission_list"
	sourceGraphQLRecent  = "graphql_recent_ac_submission_list"
)

// sourceClient is the slice of the upstream client the adapters need.
type sourceClient interface {
	SubmissionsPage(ctx context.Context, offset, limit int) (leetcode.SubmissionsDump, error)
	SubmissionList(ctx context.Context, username string, offset, limit int, lastKey string) (leetcode.SubmissionListPage, string, error)
	RecentAccepted(ctx context.Context, username string) ([]leetcode.GraphQLSubmission, error)
}

// Cursor carries one fetch session's continuation state: a page offset, an
// opaque continuation key when the server supplies one, and the set of keys
// already seen this session (the cycle guard). Never persisted.
type Cursor struct {
	Offset   int
	LastKey  string
	seenKeys map[string]struct{}
}

// page is the uniform result of one adapter List call. Upstream feeds are
// reverse-chronological, so an adapter reports done as soon as it observes
// an event at or before the caller's watermark.
type page struct {
	events []AcceptedEvent
	done   bool
	next   *Cursor
	source string
}

type adapter interface {
	source() string
	maxPages() int
	initialCursor() Cursor
	list(ctx context.Context, sinceTs int64, cursor Cursor) (page, error)
}

// dumpAdapter pages through the offset-based submissions dump endpoint.
type dumpAdapter struct {
	client sourceClient
}

func newDumpAdapter(client sourceClient) *dumpAdapter {
	return &dumpAdapter{client: client}
}

func (a *dumpAdapter) source() string        { return sourceSubmissionsAPI }
func (a *dumpAdapter) maxPages() int         { return dumpMaxPages }
func (a *dumpAdapter) initialCursor() Cursor { return Cursor{} }

func (a *dumpAdapter) list(ctx context.Context, sinceTs int64, cursor Cursor) (page, error) {
	dump, err := a.client.SubmissionsPage(ctx, cursor.Offset, dumpPageSize)
	if err != nil {
		return page{}, err
	}
	if len(dump.Submissions) == 0 {
		return page{done: true, source: sourceSubmissionsAPI}, nil
	}

	var events []AcceptedEvent
	reachedOld := false
	for _, submission := range dump.Submissions {
		ts := int64(submission.Timestamp)
		if ts <= 0 {
			continue
		}
		if ts <= sinceTs {
			reachedOld = true
			break
		}
		if submission.StatusDisplay != acceptedStatus {
			continue
		}
		slug := submission.Slug()
		if slug == "" {
			continue
		}
		events = append(events, AcceptedEvent{Slug: slug, Timestamp: ts})
	}

	done := reachedOld || !dump.HasNext || len(dump.Submissions) < dumpPageSize
	result := page{events: events, done: done, source: sourceSubmissionsAPI}
	if !done {
		result.next = &Cursor{Offset: cursor.Offset + dumpPageSize}
	}
	return result, nil
}

// graphqlAdapter pages through the GraphQL submissionList query, preferring
// the server's opaque continuation key over the numeric offset.
type graphqlAdapter struct {
	client   sourceClient
	username string
}

func newGraphQLAdapter(client sourceClient, username string) *graphqlAdapter {
	return &graphqlAdapter{client: client, username: username}
}

func (a *graphqlAdapter) source() string { return sourceGraphQLList }
func (a *graphqlAdapter) maxPages() int  { return graphqlMaxPages }

func (a *graphqlAdapter) initialCursor() Cursor {
	return Cursor{seenKeys: make(map[string]struct{})}
}

func (a *graphqlAdapter) list(ctx context.Context, sinceTs int64, cursor Cursor) (page, error) {
	pageData, source, err := a.client.SubmissionList(ctx, a.username, cursor.Offset, graphqlPageSize, cursor.LastKey)
	if err != nil {
		return page{}, err
	}
	if len(pageData.Submissions) == 0 {
		return page{done: true, source: source}, nil
	}

	var events []AcceptedEvent
	reachedOld := false
	for _, submission := range pageData.Submissions {
		ts := int64(submission.Timestamp)
		if ts <= 0 {
			continue
		}
		if ts <= sinceTs {
			reachedOld = true
			break
		}
		if submission.Status() != acceptedStatus {
			continue
		}
		slug := submission.Slug()
		if slug == "" {
			continue
		}
		events = append(events, AcceptedEvent{Slug: slug, Timestamp: ts})
	}

	if reachedOld {
		return page{events: events, done: true, source: source}, nil
	}
	if !pageData.HasNext && pageData.LastKey == "" {
		return page{events: events, done: true, source: source}, nil
	}

	// Cursor-first pagination: prefer the opaque key, fall back to offset.
	// A repeated or previously seen key means the server is cycling; treat
	// the session as exhausted rather than looping.
	if pageData.LastKey != "" {
		if pageData.LastKey == cursor.LastKey {
			return page{events: events, done: true, source: source}, nil
		}
		if _, seen := cursor.seenKeys[pageData.LastKey]; seen {
			return page{events: events, done: true, source: source}, nil
		}
		cursor.seenKeys[pageData.LastKey] = struct{}{}
		next := Cursor{Offset: cursor.Offset, LastKey: pageData.LastKey, seenKeys: cursor.seenKeys}
		return page{events: events, next: &next, source: source}, nil
	}

	next := Cursor{Offset: cursor.Offset + graphqlPageSize, seenKeys: cursor.seenKeys}
	return page{events: events, next: &next, source: source}, nil
}
