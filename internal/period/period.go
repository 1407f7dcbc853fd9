// Package period turns timestamps into calendar window keys and boundaries.
// Keys are compared for string equality only; rollover detection never does
// arithmetic on them.
package period

import "time"

// Keys identifies the calendar day, week, and month containing a point in
// time. The week key is the date of the Monday on or before it.
type Keys struct {
	DayKey   string `json:"dayKey"`
	WeekKey  string `json:"weekKey"`
	MonthKey string `json:"monthKey"`
}

// KeysAt computes the period keys for now in its own location.
func KeysAt(now time.Time) Keys {
	return Keys{
		DayKey:   now.Format("2006-01-02"),
		WeekKey:  WeekStart(now).Format("2006-01-02"),
		MonthKey: now.Format("2006-01"),
	}
}

// WeekStart returns midnight of the Monday on or before t.
func WeekStart(t time.Time) time.Time {
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	diffToMonday := int(midnight.Weekday()) - int(time.Monday)
	if diffToMonday < 0 {
		diffToMonday = 6 // Sunday
	}
	return midnight.AddDate(0, 0, -diffToMonday)
}

// MonthStart returns midnight of the first day of t's month.
func MonthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// SameLocalDay reports whether the unix timestamp falls on the same calendar
// day as target, in target's location.
func SameLocalDay(unixSeconds int64, target time.Time) bool {
	d := time.Unix(unixSeconds, 0).In(target.Location())
	return d.Year() == target.Year() && d.Month() == target.Month() && d.Day() == target.Day()
}

// InRange reports whether the unix timestamp lies in [start, now].
func InRange(unixSeconds int64, start, now time.Time) bool {
	t := time.Unix(unixSeconds, 0)
	return !t.Before(start) && !t.After(now)
}
