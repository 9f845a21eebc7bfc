package domain

import (
	"fmt"
	"time"
)

// Range selects a reporting window aligned to the caller's local calendar.
type Range string

const (
	RangeDay   Range = "day"
	RangeWeek  Range = "week"
	RangeMonth Range = "month"
	RangeYear  Range = "year"
	RangeAll   Range = "all"
)

// allTimeFloorYear anchors the "all" range; no activities predate it.
const allTimeFloorYear = 2020

// ParseRange validates a raw range token, defaulting empty to "all".
func ParseRange(raw string) (Range, error) {
	if raw == "" {
		return RangeAll, nil
	}
	switch r := Range(raw); r {
	case RangeDay, RangeWeek, RangeMonth, RangeYear, RangeAll:
		return r, nil
	default:
		return "", &ValidationError{Field: "range", Reason: fmt.Sprintf("unknown range %q", raw)}
	}
}

// Window resolves the range to explicit [start, end) instants around now.
// Week starts on Sunday, matching the dashboard's calendar.
func (r Range) Window(now time.Time) (time.Time, time.Time) {
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	switch r {
	case RangeDay:
		return midnight, midnight.AddDate(0, 0, 1)
	case RangeWeek:
		start := midnight.AddDate(0, 0, -int(now.Weekday()))
		return start, start.AddDate(0, 0, 7)
	case RangeMonth:
		start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		return start, start.AddDate(0, 1, 0)
	case RangeYear:
		start := time.Date(now.Year(), 1, 1, 0, 0, 0, 0, now.Location())
		return start, start.AddDate(1, 0, 0)
	default:
		start := time.Date(allTimeFloorYear, 1, 1, 0, 0, 0, 0, now.Location())
		return start, now
	}
}
