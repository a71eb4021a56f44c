package service

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// cronParser accepts standard five-field expressions only; descriptors like
// @hourly are rejected.
var cronParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow,
)

// validateCron checks the expression and timezone without computing anything.
func validateCron(expr, tz string) error {
	if _, err := cronParser.Parse(expr); err != nil {
		return fmt.Errorf("parse cron expression %q: %w", expr, err)
	}
	if tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return fmt.Errorf("load timezone %q: %w", tz, err)
		}
	}
	return nil
}

// computeNextRun returns the first firing strictly after the given instant,
// evaluated in the schedule's timezone. The result is normalized to UTC for
// storage.
func computeNextRun(expr, tz string, after time.Time) (time.Time, error) {
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse cron expression %q: %w", expr, err)
	}
	loc := time.UTC
	if tz != "" {
		loc, err = time.LoadLocation(tz)
		if err != nil {
			return time.Time{}, fmt.Errorf("load timezone %q: %w", tz, err)
		}
	}
	return sched.Next(after.In(loc)).UTC(), nil
}
