package clock

import (
	"testing"
	"time"
)

func TestFormatDateUsesUTC(t *testing.T) {
	loc := time.FixedZone("PKT", 5*3600)
	at := time.Date(2025, 1, 6, 2, 0, 0, 0, loc)
	if got := FormatDate(at); got != "2025-01-05" {
		t.Fatalf("expected 2025-01-05, got %s", got)
	}
}

func TestLocalTimeUsesClockLocation(t *testing.T) {
	c := &Fixed{At: time.Date(2025, 1, 5, 10, 30, 0, 0, time.UTC), Loc: time.FixedZone("PKT", 5*3600)}
	if got := LocalTime(c); got != "15:30" {
		t.Fatalf("expected 15:30, got %s", got)
	}
}

func TestDaysBetweenIsMidnightToMidnight(t *testing.T) {
	a := time.Date(2025, 1, 1, 23, 59, 0, 0, time.UTC)
	b := time.Date(2025, 1, 2, 0, 1, 0, 0, time.UTC)
	if got := DaysBetween(a, b); got != 1 {
		t.Fatalf("expected 1 day, got %d", got)
	}
	if got := DaysBetween(b, b); got != 0 {
		t.Fatalf("expected 0 days, got %d", got)
	}
}

func TestParseDateRejectsGarbage(t *testing.T) {
	if _, err := ParseDate("05/01/2025"); err == nil {
		t.Fatalf("expected error for non ISO date")
	}
	if !ValidTime("09:05") || ValidTime("9am") {
		t.Fatalf("unexpected time validation result")
	}
}
