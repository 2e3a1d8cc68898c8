// Package clock anchors every "today"/"yesterday" boundary to one fixed
// named timezone so due dates and streaks behave the same regardless of
// where the server or client happens to run.
package clock

import (
	"fmt"
	"time"
)

// DefaultTimezone is the family-local timezone used when none is configured.
const DefaultTimezone = "America/New_York"

// Clock resolves local dates and midnight boundaries in a single location.
// The zero value is not usable; construct with New.
type Clock struct {
	loc *time.Location
	// now is overridable in tests
	now func() time.Time
}

// New loads the named timezone and returns a Clock anchored to it.
func New(tzName string) (*Clock, error) {
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", tzName, err)
	}
	return &Clock{loc: loc, now: time.Now}, nil
}

// NewFixed returns a Clock whose Now always reports the given instant.
// Test helper.
func NewFixed(tzName string, at time.Time) (*Clock, error) {
	c, err := New(tzName)
	if err != nil {
		return nil, err
	}
	c.now = func() time.Time { return at }
	return c, nil
}

// Location returns the anchored timezone.
func (c *Clock) Location() *time.Location { return c.loc }

// Now returns the current instant in the anchored timezone.
func (c *Clock) Now() time.Time { return c.now().In(c.loc) }

// Today returns local midnight of the current local date.
func (c *Clock) Today() time.Time { return c.StartOfDay(c.Now()) }

// Yesterday returns local midnight of the previous local date.
func (c *Clock) Yesterday() time.Time { return c.Today().AddDate(0, 0, -1) }

// StartOfDay returns local midnight of t's local date.
func (c *Clock) StartOfDay(t time.Time) time.Time {
	lt := t.In(c.loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, c.loc)
}

// LocalDate formats t's local calendar date as YYYY-MM-DD.
func (c *Clock) LocalDate(t time.Time) string {
	return t.In(c.loc).Format("2006-01-02")
}

// SameLocalDay reports whether a and b fall on the same local calendar date.
func (c *Clock) SameLocalDay(a, b time.Time) bool {
	return c.LocalDate(a) == c.LocalDate(b)
}

// ParseDate parses a YYYY-MM-DD string into local midnight of that date.
func (c *Clock) ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", s, c.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}
