package clock

import (
	"fmt"
	"time"
)

const DateLayout = "2006-01-02"

type Clock interface {
	Now() time.Time
	Location() *time.Location
}

type systemClock struct {
	loc *time.Location
}

// System returns the wall clock. loc is used only for local HH:MM capture.
func System(loc *time.Location) Clock {
	if loc == nil {
		loc = time.Local
	}
	return systemClock{loc: loc}
}

func (c systemClock) Now() time.Time           { return time.Now().UTC() }
func (c systemClock) Location() *time.Location { return c.loc }

// Fixed is a clock frozen at a given instant; Set moves it.
type Fixed struct {
	At  time.Time
	Loc *time.Location
}

func (f *Fixed) Now() time.Time { return f.At.UTC() }

func (f *Fixed) Location() *time.Location {
	if f.Loc == nil {
		return time.UTC
	}
	return f.Loc
}

func (f *Fixed) Set(t time.Time) { f.At = t }

func (f *Fixed) Advance(d time.Duration) { f.At = f.At.Add(d) }

// FormatDate renders the UTC calendar date of t.
func FormatDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

func Today(c Clock) string {
	return FormatDate(c.Now())
}

// LocalTime renders HH:MM in the clock's location.
func LocalTime(c Clock) string {
	return c.Now().In(c.Location()).Format("15:04")
}

func ParseDate(value string) (time.Time, error) {
	parsed, err := time.Parse(DateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", value)
	}
	return parsed.UTC(), nil
}

func ValidTime(value string) bool {
	_, err := time.Parse("15:04", value)
	return err == nil
}

// Midnight truncates t to the start of its UTC day.
func Midnight(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// DaysBetween is the floor of whole days from the midnight of a to the midnight of b.
func DaysBetween(a, b time.Time) int {
	return int(Midnight(b).Sub(Midnight(a)).Hours() / 24)
}
