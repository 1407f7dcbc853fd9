package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"example.com/leetgoal/internal/period"
	"example.com/leetgoal/internal/tracker"
)

const badgeRecordKey = "lastBadgeStats"

// badgeRecord is the last successful build's counts together with the
// period keys they were computed under, so a later read can tell which
// windows have rolled over since.
type badgeRecord struct {
	Today     int    `json:"today"`
	Week      int    `json:"week"`
	Month     int    `json:"month"`
	DayKey    string `json:"dayKey"`
	WeekKey   string `json:"weekKey"`
	MonthKey  string `json:"monthKey"`
	UpdatedAt int64  `json:"updatedAt"`
}

func (s *Server) saveBadgeRecord(ctx context.Context, result *tracker.Result) {
	keys := period.KeysAt(time.Now())
	record := badgeRecord{
		Today:     result.Today.Count,
		Week:      result.Week.Count,
		Month:     result.Month.Count,
		DayKey:    keys.DayKey,
		WeekKey:   keys.WeekKey,
		MonthKey:  keys.MonthKey,
		UpdatedAt: time.Now().Unix(),
	}
	value, err := json.Marshal(record)
	if err != nil {
		s.logger.Warn("marshal badge record", "error", err)
		return
	}
	if err := s.kv.Set(ctx, badgeRecordKey, value); err != nil {
		s.logger.Warn("save badge record", "error", err)
	}
}

// normalizeBadgeRecord zeroes any window whose period key no longer matches
// the current one. A stale day count must never show on the badge.
func normalizeBadgeRecord(record badgeRecord, now time.Time) badgeRecord {
	keys := period.KeysAt(now)
	if record.DayKey != keys.DayKey {
		record.Today = 0
		record.DayKey = keys.DayKey
	}
	if record.WeekKey != keys.WeekKey {
		record.Week = 0
		record.WeekKey = keys.WeekKey
	}
	if record.MonthKey != keys.MonthKey {
		record.Month = 0
		record.MonthKey = keys.MonthKey
	}
	return record
}

// badgeText renders the day count for the badge, capped at "999+".
func badgeText(count int) string {
	if count <= 0 {
		return ""
	}
	if count > 999 {
		return "999+"
	}
	return fmt.Sprintf("%d", count)
}

func badgeTitle(record badgeRecord) string {
	return fmt.Sprintf("Today: %d | Week: %d | Month: %d", record.Today, record.Week, record.Month)
}

func (s *Server) handleBadge(w http.ResponseWriter, r *http.Request) {
	raw, ok, err := s.kv.Get(r.Context(), badgeRecordKey)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "load badge record: %v", err)
		return
	}

	record := badgeRecord{}
	if ok {
		if err := json.Unmarshal(raw, &record); err != nil {
			record = badgeRecord{}
		}
	}
	record = normalizeBadgeRecord(record, time.Now())

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":    true,
		"text":  badgeText(record.Today),
		"title": badgeTitle(record),
		"stats": record,
	})
}
