package plan

import (
	"fmt"
	"sort"
	"strconv"
	"time"
)

// DayKey identifies one calendar day of a plan.
//
// The key is the Unix millisecond timestamp of local midnight in the order's
// time zone, rendered in decimal. Keys sort chronologically by numeric value.
type DayKey string

// DayKeyOf returns the key of the day containing t in loc.
func DayKeyOf(t time.Time, loc *time.Location) DayKey {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return DayKey(strconv.FormatInt(midnight.UnixMilli(), 10))
}

// ParseDayKey validates s as a day key.
func ParseDayKey(s string) (DayKey, error) {
	if _, err := strconv.ParseInt(s, 10, 64); err != nil {
		return "", fmt.Errorf("invalid day key %q: %w", s, err)
	}
	return DayKey(s), nil
}

// Millis returns the key as Unix milliseconds. Invalid keys return 0.
func (d DayKey) Millis() int64 {
	ms, err := strconv.ParseInt(string(d), 10, 64)
	if err != nil {
		return 0
	}
	return ms
}

// Time returns the instant the day starts.
func (d DayKey) Time() time.Time {
	return time.UnixMilli(d.Millis())
}

// Date formats the day as YYYY-MM-DD in loc.
func (d DayKey) Date(loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return d.Time().In(loc).Format(time.DateOnly)
}

// DaysBetween returns the day keys from start to end inclusive, in loc.
// Returns nil if end is before start.
func DaysBetween(start, end time.Time, loc *time.Location) []DayKey {
	if loc == nil {
		loc = time.UTC
	}
	s := start.In(loc)
	e := end.In(loc)
	cur := time.Date(s.Year(), s.Month(), s.Day(), 0, 0, 0, 0, loc)
	last := time.Date(e.Year(), e.Month(), e.Day(), 0, 0, 0, 0, loc)

	var days []DayKey
	for !cur.After(last) {
		days = append(days, DayKey(strconv.FormatInt(cur.UnixMilli(), 10)))
		cur = cur.AddDate(0, 0, 1)
	}
	return days
}

// SortDays sorts keys chronologically in place.
func SortDays(days []DayKey) {
	sort.Slice(days, func(i, j int) bool {
		return days[i].Millis() < days[j].Millis()
	})
}
