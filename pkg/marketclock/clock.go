// Package marketclock answers whether the domestic stock market is in its
// regular trading session, so callers can decide between trusting a fresh
// quote and serving the last known value.
package marketclock

import (
	"fmt"
	"time"
)

// TimeOfDay is a wall-clock minute within a day.
type TimeOfDay struct {
	Hour   int
	Minute int
}

func (t TimeOfDay) minutes() int { return t.Hour*60 + t.Minute }

// ParseTimeOfDay parses "HH:MM".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return TimeOfDay{}, fmt.Errorf("parse time of day %q: %w", s, err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return TimeOfDay{}, fmt.Errorf("time of day %q out of range", s)
	}
	return TimeOfDay{Hour: h, Minute: m}, nil
}

// Clock holds the session window. The zero value is not useful; use Default
// or build one from config.
type Clock struct {
	Open  TimeOfDay
	Close TimeOfDay
}

// Default is the regular KRX session: weekdays 09:00-15:30.
func Default() Clock {
	return Clock{Open: TimeOfDay{9, 0}, Close: TimeOfDay{15, 30}}
}

// IsOpen reports whether now falls on a business day (Mon-Fri) within the
// open/close window, inclusive on both ends.
func (c Clock) IsOpen(now time.Time) bool {
	switch now.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	cur := now.Hour()*3600 + now.Minute()*60 + now.Second()
	return cur >= c.Open.minutes()*60 && cur <= c.Close.minutes()*60
}
