package db_test

import (
	"testing"
	"time"

	"github.com/Spok95/drillcert/internal/db"
)

func TestStatsWindows(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*3600)
	// среда 2025-03-12 01:30 по loc, но ещё вторник в UTC
	now := time.Date(2025, 3, 11, 22, 30, 0, 0, time.UTC)

	day, week, last := db.StatsWindows(now, loc)
	if want := time.Date(2025, 3, 12, 0, 0, 0, 0, loc); !day.Equal(want) {
		t.Fatalf("day start = %v, want %v", day, want)
	}
	if want := time.Date(2025, 3, 10, 0, 0, 0, 0, loc); !week.Equal(want) {
		t.Fatalf("week start = %v, want %v", week, want)
	}
	if want := time.Date(2025, 3, 3, 0, 0, 0, 0, loc); !last.Equal(want) {
		t.Fatalf("last week start = %v, want %v", last, want)
	}
}

func TestStatsWindows_SundayBelongsToPreviousWeek(t *testing.T) {
	now := time.Date(2025, 3, 16, 12, 0, 0, 0, time.UTC)
	_, week, _ := db.StatsWindows(now, nil)
	if want := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC); !week.Equal(want) {
		t.Fatalf("week start = %v, want %v", week, want)
	}
}

func TestWeekTrend(t *testing.T) {
	cases := []struct {
		this, last int
		want       float64
	}{
		{0, 0, 0},
		{3, 0, 100},
		{6, 4, 50},
		{2, 4, -50},
		{4, 4, 0},
	}
	for _, c := range cases {
		if got := db.WeekTrend(c.this, c.last); got != c.want {
			t.Fatalf("WeekTrend(%d, %d) = %v, want %v", c.this, c.last, got, c.want)
		}
	}
}
