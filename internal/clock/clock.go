// Package clock abstracts time so lifecycle logic can be tested against a
// fixed instant, and centralizes the local-calendar math used for day
// bucketing and end-of-day expiry.
package clock

import "time"

// Clock supplies the current instant. Core packages take a Clock instead
// of calling time.Now so tests can pin the wall clock.
type Clock interface {
	Now() time.Time
}

// System is the real wall clock.
type System struct{}

func (System) Now() time.Time { return time.Now() }

// Fixed always reports the same instant.
type Fixed struct{ T time.Time }

func (f Fixed) Now() time.Time { return f.T }

// Func adapts a function to the Clock interface.
type Func func() time.Time

func (f Func) Now() time.Time { return f() }

// Day returns t's calendar day in loc, formatted YYYY-MM-DD.
func Day(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("2006-01-02")
}

// EndOfDay returns the last whole second of t's calendar day in loc.
func EndOfDay(t time.Time, loc *time.Location) time.Time {
	lt := t.In(loc)
	y, m, d := lt.Date()
	return time.Date(y, m, d, 23, 59, 59, 0, loc)
}

// NextMidnight returns the first instant of the next calendar day in loc.
// DST transitions are handled by the location's rules.
func NextMidnight(t time.Time, loc *time.Location) time.Time {
	lt := t.In(loc)
	y, m, d := lt.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, loc)
}

// UntilMidnight returns the positive duration from t until the next local
// midnight. Used as the TTL for per-day markers.
func UntilMidnight(t time.Time, loc *time.Location) time.Duration {
	return NextMidnight(t, loc).Sub(t)
}

// SameDay reports whether a and b fall on the same calendar day in loc.
func SameDay(a, b time.Time, loc *time.Location) bool {
	return Day(a, loc) == Day(b, loc)
}
