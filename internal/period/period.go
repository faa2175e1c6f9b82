package period

import (
	"fmt"
	"strings"
	"time"
)

// Period selects a trailing window ending at "now". All covers the
// wallet's entire history.
type Period int32

const (
	All Period = iota
	Month
	Week
	Day
)

func (p Period) String() string {
	switch p {
	case All:
		return "all"
	case Month:
		return "1m"
	case Week:
		return "1w"
	case Day:
		return "1d"
	default:
		return fmt.Sprintf("period(%d)", int32(p))
	}
}

// Standard is the set of periods a background refresh computes together.
func Standard() []Period {
	return []Period{All, Month, Week, Day}
}

// Parse maps the wire label ("all", "1m", "1w", "1d") to a Period.
func Parse(s string) (Period, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "all", "":
		return All, nil
	case "1m", "month":
		return Month, nil
	case "1w", "week":
		return Week, nil
	case "1d", "day":
		return Day, nil
	default:
		return All, fmt.Errorf("unknown period %q", s)
	}
}

// Range is a half-open window (Start, End]. A zero Start means
// unbounded history.
type Range struct {
	Start time.Time
	End   time.Time
}

// Window returns the trailing range a period denotes at the given
// reference time.
func (p Period) Window(now time.Time) Range {
	now = now.UTC()
	switch p {
	case Month:
		return Range{Start: now.AddDate(0, -1, 0), End: now}
	case Week:
		return Range{Start: now.AddDate(0, 0, -7), End: now}
	case Day:
		return Range{Start: now.AddDate(0, 0, -1), End: now}
	default:
		return Range{End: now}
	}
}

// Contains reports whether a unix timestamp falls inside the range.
func (r Range) Contains(ts int64) bool {
	t := time.Unix(ts, 0).UTC()
	if !r.Start.IsZero() && !t.After(r.Start) {
		return false
	}
	return !t.After(r.End)
}

// TouchesNow reports whether the range's end boundary reaches the
// reference time. Unrealized PnL is only meaningful for such windows;
// historical ranges carry realized movement only.
func (r Range) TouchesNow(now time.Time) bool {
	return !r.End.Before(now.UTC())
}
