package gantt

import (
	"fmt"
	"math"
	"strings"
	"time"
)

const (
	// ServerDatetimeLayout is how the host stores datetimes, always in UTC.
	ServerDatetimeLayout = "2006-01-02 15:04:05"
	// ServerDateLayout is how the host stores plain dates.
	ServerDateLayout = "2006-01-02"
)

var datetimeLayouts = []string{
	ServerDatetimeLayout,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
}

// parseDate reads a date field value. Server datetimes are UTC and are
// converted to loc; plain dates are midnight in loc. With dateOnly the time
// part is dropped before parsing.
func parseDate(v any, loc *time.Location, dateOnly bool) (time.Time, error) {
	switch x := v.(type) {
	case time.Time:
		if dateOnly {
			l := x.In(loc)
			return time.Date(l.Year(), l.Month(), l.Day(), 0, 0, 0, 0, loc), nil
		}
		return x.In(loc), nil
	case *time.Time:
		if x == nil {
			return time.Time{}, fmt.Errorf("nil time")
		}
		return parseDate(*x, loc, dateOnly)
	case string:
		return parseDateString(strings.TrimSpace(x), loc, dateOnly)
	}
	return time.Time{}, fmt.Errorf("unsupported date value %v (%T)", v, v)
}

func parseDateString(s string, loc *time.Location, dateOnly bool) (time.Time, error) {
	if dateOnly {
		if i := strings.IndexAny(s, " T"); i >= 0 {
			s = s[:i]
		}
		t, err := time.ParseInLocation(ServerDateLayout, s, loc)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
		}
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.In(loc), nil
	}
	for _, layout := range datetimeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.In(loc), nil
		}
	}
	t, err := time.ParseInLocation(ServerDateLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid datetime %q", s)
	}
	return t, nil
}

// formatDate renders t the way the host expects for a field of type ft.
func formatDate(t time.Time, ft FieldType, loc *time.Location) string {
	if ft == FieldDate {
		return t.In(loc).Format(ServerDateLayout)
	}
	return t.UTC().Format(ServerDatetimeLayout)
}

// maxHours is the longest duration time.Duration holds, in hours.
const maxHours = float64(math.MaxInt64 / int64(time.Hour))

// hours converts a duration in hours, rounded to the second. ok is false
// when h does not fit a time.Duration.
func hours(h float64) (d time.Duration, ok bool) {
	if math.IsNaN(h) || math.Abs(h) > maxHours {
		return 0, false
	}
	return time.Duration(h * float64(time.Hour)).Round(time.Second), true
}

// ParseServerDate parses a stored value of a field of type ft.
func ParseServerDate(v any, ft FieldType) (time.Time, error) {
	return parseDate(v, time.UTC, ft == FieldDate)
}

// Format renders t for storage in field, using the field's declared type.
func (m *FieldMapping) Format(field string, t time.Time) string {
	return formatDate(t, m.fieldType(field), m.location())
}
