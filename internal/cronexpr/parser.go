// Package cronexpr parses 5-field cron expressions and enumerates the
// firing instants they produce inside a bounded time interval.
//
// Parsing and next-activation computation are delegated to
// github.com/robfig/cron/v3, the same cron-expression library
// internal/jobs/scheduler/scheduler.go constructs via
// cron.NewParser(cron.Minute|cron.Hour|cron.Dom|cron.Month|cron.Dow); this
// package layers the closed-interval Enumerate semantics and the
// ErrInvalidExpression wrapping the dispatch algorithm needs on top of it.
package cronexpr

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/robfig/cron/v3"
)

// standardParser accepts the five standard cron fields plus the
// "@daily"/"@hourly"-style descriptor shorthands.
var standardParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Schedule is a parsed cron expression ready for enumeration.
type Schedule struct {
	sched cron.Schedule
	raw   string
}

// Parse parses a 5-field cron expression (or one of the @-aliases) into a
// Schedule. It returns an error wrapping ErrInvalidExpression on any
// malformed input.
func Parse(expr string) (*Schedule, error) {
	raw := strings.TrimSpace(expr)
	if strings.HasPrefix(raw, "@") {
		// robfig/cron matches descriptors case-sensitively.
		raw = strings.ToLower(raw)
	}
	sched, err := standardParser.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidExpression, expr, err)
	}
	// robfig/cron accepts a step wider than its field (e.g. "*/61" for
	// minutes) and fires once; such a step is rejected here instead.
	if fields := strings.Fields(raw); len(fields) == 5 {
		spans := [5]int{60, 24, 31, 12, 7}
		for i, field := range fields {
			for _, part := range strings.Split(field, ",") {
				if _, stepText, ok := strings.Cut(part, "/"); ok {
					if step, convErr := strconv.Atoi(stepText); convErr == nil && step > spans[i] {
						return nil, fmt.Errorf("%w: %q: step %d exceeds the field's range", ErrInvalidExpression, expr, step)
					}
				}
			}
		}
	}
	return &Schedule{sched: sched, raw: expr}, nil
}

// String returns the original expression text, for logging.
func (s *Schedule) String() string {
	return s.raw
}
