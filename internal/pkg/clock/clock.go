package clock

import (
	"fmt"
	"regexp"
	"time"
)

// DefaultOffsetMinutes is UTC+5:30.
const DefaultOffsetMinutes = 330

const DateLayout = "2006-01-02"

var bareDateRegex = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
}

// Resolver maps instants onto school calendar days. Every attendance date in the
// system is produced here: midnight UTC of the regional calendar day.
type Resolver struct {
	Location *time.Location
	Now      func() time.Time
}

func NewResolver(offsetMinutes int) *Resolver {
	return &Resolver{
		Location: time.FixedZone(zoneName(offsetMinutes), offsetMinutes*60),
		Now:      time.Now,
	}
}

func zoneName(offsetMinutes int) string {
	if offsetMinutes == DefaultOffsetMinutes {
		return "IST"
	}
	sign := "+"
	if offsetMinutes < 0 {
		sign = "-"
		offsetMinutes = -offsetMinutes
	}
	return fmt.Sprintf("UTC%s%02d:%02d", sign, offsetMinutes/60, offsetMinutes%60)
}

// Today returns the current regional calendar day.
func (r *Resolver) Today() time.Time {
	return r.DayOf(r.Now())
}

// DayOf truncates an instant to its regional calendar day.
func (r *Resolver) DayOf(t time.Time) time.Time {
	local := t.In(r.Location)
	return midnightUTC(local.Year(), local.Month(), local.Day())
}

// ResolveDate resolves an optional client supplied date. An empty input means today,
// a bare YYYY-MM-DD is taken literally and anything else is parsed as a timestamp whose
// own wall-clock date is kept.
func (r *Resolver) ResolveDate(input string) (time.Time, error) {
	if input == "" {
		return r.Today(), nil
	}

	if bareDateRegex.MatchString(input) {
		d, err := time.Parse(DateLayout, input)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid date %q: %w", input, err)
		}
		return d, nil
	}

	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, input); err == nil {
			return midnightUTC(t.Year(), t.Month(), t.Day()), nil
		}
	}

	return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD or an ISO8601 timestamp", input)
}

// At returns the instant of a HH:MM wall-clock time on the given calendar day in the
// regional zone.
func (r *Resolver) At(day time.Time, hhmm string) (time.Time, error) {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time of day %q: %w", hhmm, err)
	}
	return time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), 0, 0, r.Location), nil
}

// MonthBounds returns the first and last calendar day of a month.
func MonthBounds(year, month int) (time.Time, time.Time) {
	start := midnightUTC(year, time.Month(month), 1)
	return start, start.AddDate(0, 1, -1)
}

func midnightUTC(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
