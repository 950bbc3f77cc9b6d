package marketclock

import (
	"testing"
	"time"
)

// 2025-06-02 is a Monday.
func at(day int, hour, min, sec int) time.Time {
	return time.Date(2025, 6, day, hour, min, sec, 0, time.Local)
}

func TestIsOpen_Window(t *testing.T) {
	c := Default()

	cases := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"before open", at(2, 8, 59, 59), false},
		{"at open", at(2, 9, 0, 0), true},
		{"midday", at(2, 12, 30, 0), true},
		{"at close", at(2, 15, 30, 0), true},
		{"second after close", at(2, 15, 30, 1), false},
		{"after close", at(2, 15, 31, 0), false},
		{"saturday midday", at(7, 12, 0, 0), false},
		{"sunday midday", at(8, 12, 0, 0), false},
	}

	for _, tc := range cases {
		if got := c.IsOpen(tc.now); got != tc.want {
			t.Errorf("%s: IsOpen(%v) = %v, want %v", tc.name, tc.now, got, tc.want)
		}
	}
}

func TestParseTimeOfDay(t *testing.T) {
	tod, err := ParseTimeOfDay("09:00")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if tod.Hour != 9 || tod.Minute != 0 {
		t.Errorf("got %+v", tod)
	}

	if _, err := ParseTimeOfDay("25:00"); err == nil {
		t.Error("expected error for hour out of range")
	}
	if _, err := ParseTimeOfDay("late"); err == nil {
		t.Error("expected error for garbage input")
	}
}
