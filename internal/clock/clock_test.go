package clock

import (
	"testing"
	"time"
)

func TestDaysBetween(t *testing.T) {
	base := time.Date(2026, 3, 15, 23, 30, 0, 0, time.UTC)

	testCases := []struct {
		name     string
		a        time.Time
		b        time.Time
		expected int
	}{
		{"Same instant", base, base, 0},
		{"Same day, different hours", base, time.Date(2026, 3, 15, 0, 5, 0, 0, time.UTC), 0},
		{"Next day just after midnight", base, time.Date(2026, 3, 16, 0, 5, 0, 0, time.UTC), 1},
		{"Three weeks apart", base, base.AddDate(0, 0, 21), 21},
		{"Backwards", base, base.AddDate(0, 0, -2), -2},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := DaysBetween(tc.a, tc.b)
			if got != tc.expected {
				t.Errorf("Expected %d days, but got %d", tc.expected, got)
			}
		})
	}
}

func TestFixedClock(t *testing.T) {
	start := time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC)
	clk := NewFixed(start)
	if !clk.Now().Equal(start) {
		t.Errorf("Expected %v, but got %v", start, clk.Now())
	}
	clk.Advance(25 * time.Hour)
	if !clk.Now().Equal(start.Add(25 * time.Hour)) {
		t.Errorf("Expected the clock to advance, but got %v", clk.Now())
	}
}
