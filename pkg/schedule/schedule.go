// Package schedule decides when the next reconciliation cycle starts.
package schedule

import (
	"fmt"
	"time"

	"github.com/adhocore/gronx"
)

// Schedule yields the start time of the cycle following after.
type Schedule interface {
	Next(after time.Time) time.Time
	String() string
}

// Every returns a fixed-period schedule.
func Every(d time.Duration) Schedule {
	if d <= 0 {
		d = time.Minute
	}
	return every(d)
}

type every time.Duration

func (e every) Next(after time.Time) time.Time { return after.Add(time.Duration(e)) }
func (e every) String() string                 { return "every " + time.Duration(e).String() }

// Cron parses a standard five-field cron expression (six with seconds).
func Cron(expr string) (Schedule, error) {
	if !gronx.New().IsValid(expr) {
		return nil, fmt.Errorf("invalid cron expression %q", expr)
	}
	return cron(expr), nil
}

type cron string

// Next returns the first matching tick strictly after the given time. If
// the expression can never fire, it falls back to one hour later.
func (c cron) Next(after time.Time) time.Time {
	next, err := gronx.NextTickAfter(string(c), after, false)
	if err != nil || !next.After(after) {
		return after.Add(time.Hour)
	}
	return next
}

func (c cron) String() string { return "cron " + string(c) }

// FromConfig prefers a cron expression and falls back to the interval.
func FromConfig(cronExpr string, interval time.Duration) (Schedule, error) {
	if cronExpr != "" {
		return Cron(cronExpr)
	}
	return Every(interval), nil
}

// Delay returns how long to wait from now until the next start.
func Delay(s Schedule, now time.Time) time.Duration {
	d := s.Next(now).Sub(now)
	if d < 0 {
		return 0
	}
	return d
}
