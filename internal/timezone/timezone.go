// Package timezone resolves IANA zone names and converts between UTC
// instants and a user's local calendar. All scheduling state is stored
// as UTC instants; this package is the only place local calendar dates
// and wall-clock times are computed.
package timezone

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ErrInvalidZone is returned for names the IANA database cannot resolve.
var ErrInvalidZone = errors.New("invalid timezone")

// Resolver resolves IANA zone names into Converters, caching the
// underlying locations. Safe for concurrent use.
type Resolver struct {
	mu    sync.RWMutex
	cache map[string]*time.Location
}

// NewResolver creates an empty Resolver.
func NewResolver() *Resolver {
	return &Resolver{cache: make(map[string]*time.Location)}
}

// Resolve returns a Converter for the zone name, or ErrInvalidZone.
func (r *Resolver) Resolve(name string) (*Converter, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: empty name", ErrInvalidZone)
	}

	r.mu.RLock()
	loc, ok := r.cache[name]
	r.mu.RUnlock()
	if ok {
		return &Converter{loc: loc}, nil
	}

	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidZone, name)
	}

	r.mu.Lock()
	r.cache[name] = loc
	r.mu.Unlock()

	return &Converter{loc: loc}, nil
}

// Converter converts instants to and from one location's calendar.
type Converter struct {
	loc *time.Location
}

// Location exposes the underlying *time.Location.
func (c *Converter) Location() *time.Location { return c.loc }

// ToLocal splits an instant into its local calendar date and wall clock.
func (c *Converter) ToLocal(t time.Time) (Date, WallClock) {
	local := t.In(c.loc)
	year, month, day := local.Date()
	return Date{Year: year, Month: month, Day: day},
		WallClock{Hour: local.Hour(), Minute: local.Minute()}
}

// Today returns the local calendar date containing the instant.
func (c *Converter) Today(t time.Time) Date {
	d, _ := c.ToLocal(t)
	return d
}

// DayBounds returns the UTC instants [start, end) spanning the local
// calendar date. time.Date normalizes day+1, so the span is exactly the
// local day even when a DST transition makes it 23 or 25 hours long.
func (c *Converter) DayBounds(d Date) (start, end time.Time) {
	start = time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, c.loc)
	end = time.Date(d.Year, d.Month, d.Day+1, 0, 0, 0, 0, c.loc)
	return start.UTC(), end.UTC()
}

// At returns the UTC instant of the wall clock on the local date.
func (c *Converter) At(d Date, w WallClock) time.Time {
	return time.Date(d.Year, d.Month, d.Day, w.Hour, w.Minute, 0, 0, c.loc).UTC()
}

// Date is a calendar date in some location.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// String renders the date as an ISO key, e.g. "2026-03-10". Used as
// the digest dedupe subject.
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// WallClock is a local time of day with minute precision.
type WallClock struct {
	Hour   int
	Minute int
}

// ParseWallClock parses a 24-hour "HH:MM" value.
func ParseWallClock(s string) (WallClock, error) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) != 2 {
		return WallClock{}, fmt.Errorf("invalid time %q: want HH:MM", s)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return WallClock{}, fmt.Errorf("invalid hour in %q", s)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return WallClock{}, fmt.Errorf("invalid minute in %q", s)
	}
	return WallClock{Hour: hour, Minute: minute}, nil
}

// String renders the wall clock as "HH:MM".
func (w WallClock) String() string {
	return fmt.Sprintf("%02d:%02d", w.Hour, w.Minute)
}

// Minutes returns the wall clock as minutes since local midnight.
func (w WallClock) Minutes() int { return w.Hour*60 + w.Minute }

// AtOrAfter reports whether the wall clock w has been reached at or
// after the other wall clock.
func (w WallClock) AtOrAfter(other WallClock) bool {
	return w.Minutes() >= other.Minutes()
}

// defaultDueHour is assumed when a due input carries no time of day.
const defaultDueHour = 18

var dueLayouts = []struct {
	layout   string
	dateOnly bool
}{
	{"2006-01-02 15:04", false},
	{"2006-01-02", true},
	{"02.01.2006 15:04", false},
	{"02.01.2006", true},
}

// ParseDueInput parses a user-entered deadline in the location and
// returns the UTC instant. Date-only inputs are due at 18:00 local.
func (c *Converter) ParseDueInput(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, candidate := range dueLayouts {
		parsed, err := time.ParseInLocation(candidate.layout, s, c.loc)
		if err != nil {
			continue
		}
		if candidate.dateOnly {
			parsed = time.Date(parsed.Year(), parsed.Month(), parsed.Day(),
				defaultDueHour, 0, 0, 0, c.loc)
		}
		return parsed.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q: want YYYY-MM-DD [HH:MM] or DD.MM.YYYY [HH:MM]", s)
}

// FormatLocal renders an instant for display in the location.
func (c *Converter) FormatLocal(t time.Time) string {
	return t.In(c.loc).Format("02.01.2006 15:04")
}
