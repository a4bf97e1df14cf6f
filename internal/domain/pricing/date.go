package pricing

import (
	"fmt"
	"time"
)

// DateLayout is the wire format for calendar days
const DateLayout = "2006-01-02"

// MaxBreakdownDays bounds the ranges reported day by day
const MaxBreakdownDays = 366

// Day returns the calendar day of t as UTC midnight. The day is taken in
// t's own location so a local 23:30 stays on its local date.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Date builds a normalized calendar day
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// ParseDay parses a YYYY-MM-DD string
func ParseDay(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse day %q: %w", s, err)
	}
	return t, nil
}

// DateRange is an inclusive range of calendar days
type DateRange struct {
	Start time.Time
	End   time.Time
}

// NewDateRange normalizes both bounds and rejects end < start
func NewDateRange(start, end time.Time) (DateRange, error) {
	r := DateRange{Start: Day(start), End: Day(end)}
	if r.End.Before(r.Start) {
		return DateRange{}, ErrInvalidRange
	}
	return r, nil
}

// SingleDay is the range covering one day
func SingleDay(day time.Time) DateRange {
	d := Day(day)
	return DateRange{Start: d, End: d}
}

// Contains reports whether day lies within the range
func (r DateRange) Contains(day time.Time) bool {
	d := Day(day)
	return !d.Before(r.Start) && !d.After(r.End)
}

// Days is the number of calendar days in the range, bounds included
func (r DateRange) Days() int {
	if r.End.Before(r.Start) {
		return 0
	}
	// time.Duration saturates past ~292 years
	return int((r.End.Unix()-r.Start.Unix())/86400) + 1
}

// CheckBreakdown rejects ranges too long to be listed day by day
func (r DateRange) CheckBreakdown() error {
	if r.Days() > MaxBreakdownDays {
		return ErrRangeTooLong
	}
	return nil
}

// Overlap returns the intersection of both ranges
func (r DateRange) Overlap(other DateRange) (DateRange, bool) {
	start := r.Start
	if other.Start.After(start) {
		start = other.Start
	}
	end := r.End
	if other.End.Before(end) {
		end = other.End
	}
	if end.Before(start) {
		return DateRange{}, false
	}
	return DateRange{Start: start, End: end}, true
}

// EachDay lists every day in the range in order
func (r DateRange) EachDay() []time.Time {
	days := make([]time.Time, 0, r.Days())
	for d := r.Start; !d.After(r.End); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

func (r DateRange) String() string {
	return r.Start.Format(DateLayout) + ".." + r.End.Format(DateLayout)
}
