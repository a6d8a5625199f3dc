package recurrence

import (
	"time"

	"github.com/jinzhu/now"
)

// DateLayout is the canonical calendar date format.
const DateLayout = "2006-01-02"

// Day strips the time of day, keeping the calendar date as UTC midnight.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD string into a calendar date.
func ParseDate(raw string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, raw, time.UTC)
	if err != nil {
		return time.Time{}, err
	}
	return t, nil
}

// DateKey is the map key for a calendar date.
func DateKey(t time.Time) string {
	return t.Format(DateLayout)
}

// AddDays moves a calendar date by n days.
func AddDays(t time.Time, n int) time.Time {
	return Day(t).AddDate(0, 0, n)
}

// AddMonthsClamped moves a date by n months. When the day of month does not
// exist in the target month the result is that month's last day, so
// Jan 31 + 1 month is Feb 28 (or 29), never Mar 2/3.
func AddMonthsClamped(t time.Time, n int) time.Time {
	t = Day(t)
	first := time.Date(t.Year(), t.Month()+time.Month(n), 1, 0, 0, 0, 0, time.UTC)
	last := now.With(first).EndOfMonth().Day()
	day := t.Day()
	if day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, time.UTC)
}

// MinDate returns the earlier of a and b; a nil b means unbounded.
func MinDate(a time.Time, b *time.Time) time.Time {
	if b != nil && b.Before(a) {
		return Day(*b)
	}
	return a
}

// DateSet is a set of calendar dates.
type DateSet map[string]struct{}

func NewDateSet(dates ...time.Time) DateSet {
	set := make(DateSet, len(dates))
	for _, d := range dates {
		set.Add(d)
	}
	return set
}

func (s DateSet) Add(t time.Time) {
	s[DateKey(t)] = struct{}{}
}

func (s DateSet) Has(t time.Time) bool {
	_, ok := s[DateKey(t)]
	return ok
}
