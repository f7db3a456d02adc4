package chart

import (
	"fmt"
	"strings"
	"time"

	"github.com/kazz187/taskgantt/pkg/cerr"
)

// Scale is the width of one chart column.
type Scale int

const (
	QuarterDay Scale = iota
	HalfDay
	Day
	Week
	Month
	Year
)

var scaleNames = [...]string{
	QuarterDay: "Quarter Day",
	HalfDay:    "Half Day",
	Day:        "Day",
	Week:       "Week",
	Month:      "Month",
	Year:       "Year",
}

func (s Scale) String() string {
	if s < 0 || int(s) >= len(scaleNames) {
		return "Day"
	}
	return scaleNames[s]
}

// ParseScale accepts the toolbar names ("Quarter Day", "Week", ...) in any
// case, with spaces, underscores or dashes. Empty means Day.
func ParseScale(name string) (Scale, error) {
	if name == "" {
		return Day, nil
	}
	norm := strings.NewReplacer("_", "", "-", "", " ", "").Replace(strings.ToLower(name))
	for i, n := range scaleNames {
		if strings.ToLower(strings.ReplaceAll(n, " ", "")) == norm {
			return Scale(i), nil
		}
	}
	return Day, cerr.NewError(cerr.InvalidArgument, fmt.Sprintf("unknown scale %q", name), nil).
		AddDetail("scale", "one of Quarter Day, Half Day, Day, Week, Month, Year")
}

// floor returns the start of the column containing t.
func (s Scale) floor(t time.Time) time.Time {
	y, m, d := t.Date()
	loc := t.Location()
	switch s {
	case QuarterDay:
		return time.Date(y, m, d, t.Hour()/6*6, 0, 0, 0, loc)
	case HalfDay:
		return time.Date(y, m, d, t.Hour()/12*12, 0, 0, 0, loc)
	case Week:
		offset := (int(t.Weekday()) + 6) % 7
		return time.Date(y, m, d-offset, 0, 0, 0, 0, loc)
	case Month:
		return time.Date(y, m, 1, 0, 0, 0, 0, loc)
	case Year:
		return time.Date(y, 1, 1, 0, 0, 0, 0, loc)
	}
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// next returns the start of the column after the one starting at t.
func (s Scale) next(t time.Time) time.Time {
	y, m, d := t.Date()
	loc := t.Location()
	switch s {
	case QuarterDay:
		return time.Date(y, m, d, t.Hour()+6, 0, 0, 0, loc)
	case HalfDay:
		return time.Date(y, m, d, t.Hour()+12, 0, 0, 0, loc)
	case Week:
		return time.Date(y, m, d+7, 0, 0, 0, 0, loc)
	case Month:
		return time.Date(y, m+1, 1, 0, 0, 0, 0, loc)
	case Year:
		return time.Date(y+1, 1, 1, 0, 0, 0, 0, loc)
	}
	return time.Date(y, m, d+1, 0, 0, 0, 0, loc)
}

// label is the per-column header.
func (s Scale) label(t time.Time) string {
	switch s {
	case QuarterDay:
		return fmt.Sprintf("%02dh", t.Hour())
	case HalfDay:
		if t.Hour() < 12 {
			return "AM"
		}
		return "PM"
	case Week:
		_, w := t.ISOWeek()
		return fmt.Sprintf("W%02d", w)
	case Month:
		return t.Format("Jan")
	case Year:
		return t.Format("2006")
	}
	return t.Format("02")
}

// period is the header above the column labels, shown where it changes.
func (s Scale) period(t time.Time) string {
	switch s {
	case QuarterDay, HalfDay:
		return t.Format("Jan 02")
	case Day, Week:
		return t.Format("Jan 2006")
	case Month:
		return t.Format("2006")
	}
	return ""
}

func (s Scale) width() int {
	return len(s.label(time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC))) + 1
}
