package tracker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"example.com/leetgoal/internal/leetcode"
)

const (
	difficultyCacheKey             = "difficultyMapCache"
	difficultyCacheMaxEntries      = 1000
	difficultyCacheCompactInterval = time.Hour
)

// catalogSource is the slice of the upstream client the resolver needs.
type catalogSource interface {
	ProblemCatalog(ctx context.Context) ([]leetcode.CatalogEntry, error)
}

// DifficultyResolver maps problem slugs to difficulty labels through a
// bounded, lazily back-filled cache. The process-wide table lives in the
// record store; the compaction limiter is instance state so concurrent or
// test resolvers do not share hidden globals.
type DifficultyResolver struct {
	kv         KV
	catalog    catalogSource
	limiter    *rate.Limiter
	maxEntries int
}

type difficultyCacheRecord struct {
	CachedAt int64             `json:"cachedAt"`
	Values   map[string]string `json:"values"`
}

// NewDifficultyResolver wires a resolver against the record store and the
// problem catalog.
func NewDifficultyResolver(kv KV, catalog catalogSource) *DifficultyResolver {
	return &DifficultyResolver{
		kv:      kv,
		catalog: catalog,
		// One compaction attempt per interval, regardless of how far over
		// the bound the table is.
		limiter:    rate.NewLimiter(rate.Every(difficultyCacheCompactInterval), 1),
		maxEntries: difficultyCacheMaxEntries,
	}
}

func levelToDifficulty(level int) string {
	switch level {
	case 1:
		return DifficultyEasy
	case 2:
		return DifficultyMedium
	case 3:
		return DifficultyHard
	default:
		return DifficultyUnknown
	}
}

func (r *DifficultyResolver) loadRecord(ctx context.Context) (difficultyCacheRecord, error) {
	raw, ok, err := r.kv.Get(ctx, difficultyCacheKey)
	if err != nil {
		return difficultyCacheRecord{}, fmt.Errorf("load difficulty cache: %w", err)
	}
	record := difficultyCacheRecord{Values: map[string]string{}}
	if !ok {
		return record, nil
	}
	if err := json.Unmarshal(raw, &record); err != nil || record.Values == nil {
		// Drifted record, start over.
		return difficultyCacheRecord{Values: map[string]string{}}, nil
	}
	return record, nil
}

func (r *DifficultyResolver) saveRecord(ctx context.Context, values map[string]string) error {
	raw, err := json.Marshal(difficultyCacheRecord{
		CachedAt: time.Now().Unix(),
		Values:   values,
	})
	if err != nil {
		return fmt.Errorf("marshal difficulty cache: %w", err)
	}
	if err := r.kv.Set(ctx, difficultyCacheKey, raw); err != nil {
		return fmt.Errorf("persist difficulty cache: %w", err)
	}
	return nil
}

// Resolve returns the difficulty for each requested slug it can determine.
// Slugs missing from the cache trigger one bulk catalog fetch; a catalog
// failure fails the whole call. Slugs the catalog itself does not know stay
// absent from the result and callers treat them as Unknown.
func (r *DifficultyResolver) Resolve(ctx context.Context, slugs []string) (map[string]string, error) {
	needed := uniqueNonEmpty(slugs)
	if len(needed) == 0 {
		return map[string]string{}, nil
	}

	record, err := r.loadRecord(ctx)
	if err != nil {
		return nil, err
	}
	values := make(map[string]string, len(record.Values))
	for slug, difficulty := range record.Values {
		values[slug] = difficulty
	}

	var missing []string
	for _, slug := range needed {
		if values[slug] == "" {
			missing = append(missing, slug)
		}
	}

	if len(missing) > 0 {
		entries, err := r.catalog.ProblemCatalog(ctx)
		if err != nil {
			return nil, fmt.Errorf("fetch problem catalog: %w", err)
		}
		missingSet := slugSet(missing)
		remaining := len(missingSet)
		for _, entry := range entries {
			if _, ok := missingSet[entry.Slug]; !ok {
				continue
			}
			values[entry.Slug] = levelToDifficulty(entry.Level)
			delete(missingSet, entry.Slug)
			remaining--
			if remaining == 0 {
				break
			}
		}

		compacted, changed := compactDifficultyValues(values, needed, r.maxEntries)
		if changed {
			values = compacted
		}
		if err := r.saveRecord(ctx, values); err != nil {
			return nil, err
		}
	}

	resolved := make(map[string]string, len(needed))
	for _, slug := range needed {
		if difficulty := values[slug]; difficulty != "" {
			resolved[slug] = difficulty
		}
	}
	return resolved, nil
}

// CompactIfDue runs an opportunistic compaction pass, preferring to retain
// the preserve set. At most one attempt per interval; an attempt consumes
// the slot even when the table turns out to be within bounds.
func (r *DifficultyResolver) CompactIfDue(ctx context.Context, preserve []string) error {
	if !r.limiter.Allow() {
		return nil
	}

	record, err := r.loadRecord(ctx)
	if err != nil {
		return err
	}
	if len(record.Values) == 0 {
		return nil
	}

	compacted, changed := compactDifficultyValues(record.Values, preserve, r.maxEntries)
	if !changed {
		return nil
	}
	return r.saveRecord(ctx, compacted)
}

// compactDifficultyValues rebuilds an oversized table: preserve-set slugs
// first, then arbitrary old entries up to the bound, dropping the rest.
func compactDifficultyValues(values map[string]string, preserve []string, maxEntries int) (map[string]string, bool) {
	if len(values) <= maxEntries {
		return values, false
	}

	compacted := make(map[string]string, maxEntries)
	for _, slug := range uniqueNonEmpty(preserve) {
		if difficulty := values[slug]; difficulty != "" {
			compacted[slug] = difficulty
			if len(compacted) >= maxEntries {
				return compacted, true
			}
		}
	}
	for slug, difficulty := range values {
		if _, ok := compacted[slug]; ok {
			continue
		}
		compacted[slug] = difficulty
		if len(compacted) >= maxEntries {
			break
		}
	}
	return compacted, true
}
