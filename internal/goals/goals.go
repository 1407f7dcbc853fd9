// Package goals stores per-period solve targets and derives progress and
// pace from the current counts.
package goals

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"example.com/leetgoal/internal/period"
)

const goalsKey = "leetcodeGoals"

// Per-period upper bounds on what a goal may be set to.
const (
	MaxDaily   = 50
	MaxWeekly  = 300
	MaxMonthly = 1000
)

// KV is the record store slice this package needs.
type KV interface {
	Get(ctx context.Context, key string) (json.RawMessage, bool, error)
	Set(ctx context.Context, key string, value json.RawMessage) error
}

// Goals holds the caps the user set per window. Zero means no goal.
type Goals struct {
	Daily   int `json:"daily"`
	Weekly  int `json:"weekly"`
	Monthly int `json:"monthly"`
}

// ValidationError reports a rejected goal field. Each violation carries its
// own message and nothing gets partially saved.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// Load reads the stored goals, treating drifted or negative values as unset.
func Load(ctx context.Context, kv KV) (Goals, error) {
	raw, ok, err := kv.Get(ctx, goalsKey)
	if err != nil {
		return Goals{}, fmt.Errorf("load goals: %w", err)
	}
	if !ok {
		return Goals{}, nil
	}
	var stored Goals
	if err := json.Unmarshal(raw, &stored); err != nil {
		return Goals{}, nil
	}
	return Goals{
		Daily:   normalizeGoal(stored.Daily),
		Weekly:  normalizeGoal(stored.Weekly),
		Monthly: normalizeGoal(stored.Monthly),
	}, nil
}

// Save validates and persists the goals. The first invalid field rejects the
// whole update.
func Save(ctx context.Context, kv KV, g Goals) error {
	if err := Validate(g); err != nil {
		return err
	}
	raw, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("marshal goals: %w", err)
	}
	if err := kv.Set(ctx, goalsKey, raw); err != nil {
		return fmt.Errorf("persist goals: %w", err)
	}
	return nil
}

// Validate checks every field against its bound.
func Validate(g Goals) error {
	if err := validateField("daily", "Daily goal", g.Daily, MaxDaily); err != nil {
		return err
	}
	if err := validateField("weekly", "Weekly goal", g.Weekly, MaxWeekly); err != nil {
		return err
	}
	return validateField("monthly", "Monthly goal", g.Monthly, MaxMonthly)
}

func validateField(field, label string, value, maxValue int) error {
	if value < 0 {
		return &ValidationError{Field: field, Message: fmt.Sprintf("%s must be greater than or equal to 0.", label)}
	}
	if value > maxValue {
		return &ValidationError{Field: field, Message: fmt.Sprintf("%s must be less than or equal to %d.", label, maxValue)}
	}
	return nil
}

// ParseField interprets one raw goal input. Blank means no goal; anything
// else must be a non-negative integer within the field's bound. Each
// violation gets its own message.
func ParseField(field, label, text string, maxValue int) (int, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return 0, nil
	}
	value, err := strconv.ParseFloat(trimmed, 64)
	if err != nil || value != math.Trunc(value) {
		return 0, &ValidationError{Field: field, Message: fmt.Sprintf("%s must be an integer.", label)}
	}
	n := int(value)
	if err := validateField(field, label, n, maxValue); err != nil {
		return 0, err
	}
	return n, nil
}

func normalizeGoal(value int) int {
	if value < 0 {
		return 0
	}
	return value
}

// Pace labels for a window given its goal and elapsed time.
const (
	PaceNoGoal   = "No Goal"
	PaceAchieved = "Achieved"
	PaceOnTrack  = "On Track"
	PaceBehind   = "Behind"
)

// Period names accepted by the progress helpers.
const (
	PeriodDaily   = "daily"
	PeriodWeekly  = "weekly"
	PeriodMonthly = "monthly"
)

// Progress is the rendered state of one window against its goal.
type Progress struct {
	Count   int    `json:"count"`
	Goal    int    `json:"goal"`
	Percent int    `json:"percent"`
	Label   string `json:"label"`
	Pace    string `json:"pace"`
}

// ProgressFor computes completion and pace for one window at now.
func ProgressFor(periodName string, count, goal int, now time.Time) Progress {
	p := Progress{Count: count, Goal: goal, Pace: paceStatus(periodName, count, goal, now)}
	if goal <= 0 {
		p.Label = "Goal not set"
		return p
	}
	ratio := math.Min(float64(count)/float64(goal), 1)
	p.Percent = int(math.Round(ratio * 100))
	p.Label = fmt.Sprintf("%d/%d (%d%%)", count, goal, p.Percent)
	return p
}

func paceStatus(periodName string, count, goal int, now time.Time) string {
	if goal <= 0 {
		return PaceNoGoal
	}
	if count >= goal {
		return PaceAchieved
	}
	expected := float64(goal) * elapsedRatio(periodName, now)
	if float64(count) >= expected {
		return PaceOnTrack
	}
	return PaceBehind
}

// elapsedRatio is the fraction of the window that has passed at now,
// clamped to [0, 1].
func elapsedRatio(periodName string, now time.Time) float64 {
	var start, end time.Time
	switch periodName {
	case PeriodDaily:
		start = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		end = start.AddDate(0, 0, 1)
	case PeriodWeekly:
		start = period.WeekStart(now)
		end = start.AddDate(0, 0, 7)
	default:
		start = period.MonthStart(now)
		end = start.AddDate(0, 1, 0)
	}

	total := end.Sub(start)
	if total <= 0 {
		return 0
	}
	ratio := float64(now.Sub(start)) / float64(total)
	return math.Max(0, math.Min(ratio, 1))
}
