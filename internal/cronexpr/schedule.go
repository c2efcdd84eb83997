package cronexpr

import (
	"fmt"
	"time"
)

// Enumerate returns every firing instant f of s such that start <= f <= end,
// in strictly ascending order with no duplicates. loc is the time zone the
// expression is evaluated in; a nil loc means time.Local.
//
// robfig/cron/v3's Schedule.Next(t) is defined as the first activation
// strictly after t. Probing one second before start turns that into a
// closed lower bound, so a firing landing exactly on start is still
// reported, matching spec.md's worked closed-interval example.
func (s *Schedule) Enumerate(loc *time.Location, start, end time.Time) ([]time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	if end.Before(start) {
		return nil, fmt.Errorf("invalid window: end %v before start %v", end, start)
	}

	startLocal := start.In(loc)
	endLocal := end.In(loc)

	var out []time.Time
	cursor := startLocal.Add(-time.Second)
	for {
		next := s.sched.Next(cursor)
		if next.IsZero() || next.After(endLocal) {
			break
		}
		cursor = next
		// Next rounds a fractional cursor up to the whole second, which can
		// land before a fractional start.
		if next.Before(startLocal) {
			continue
		}
		// A DST fall-back repeats a wall-clock time; report it only once.
		if n := len(out); n > 0 && out[n-1].Format("2006-01-02 15:04:05") == next.Format("2006-01-02 15:04:05") {
			continue
		}
		out = append(out, next)
	}
	return out, nil
}

// NextAfter returns the first firing strictly after after, or false if the
// underlying schedule's search horizon (robfig/cron/v3 gives up after five
// years with no match) finds none.
func (s *Schedule) NextAfter(loc *time.Location, after time.Time) (time.Time, bool) {
	if loc == nil {
		loc = time.Local
	}
	next := s.sched.Next(after.In(loc))
	if next.IsZero() {
		return time.Time{}, false
	}
	return next, true
}
