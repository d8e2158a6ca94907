package catalog

import (
	"fmt"
	"time"
)

// =============================================================================
// DAY - Date-granularity time value
// =============================================================================

// Day is a calendar date. All price dates, discount windows and as-of
// reference dates in the catalog operate at day granularity; Day normalizes
// to UTC midnight so values compare cleanly regardless of source timezone.
type Day struct {
	Time time.Time
}

const dayFormat = "2006-01-02"

// Constructors

func NewDay(year int, month time.Month, day int) Day {
	return Day{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DayOf truncates an arbitrary time to its calendar date.
func DayOf(t time.Time) Day {
	return NewDay(t.Year(), t.Month(), t.Day())
}

func Today() Day {
	return DayOf(time.Now())
}

// ParseDay parses a yyyy-MM-dd date string.
func ParseDay(s string) (Day, error) {
	t, err := time.Parse(dayFormat, s)
	if err != nil {
		return Day{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return DayOf(t), nil
}

// Comparison

func (d Day) Before(other Day) bool { return d.Time.Before(other.Time) }
func (d Day) After(other Day) bool  { return d.Time.After(other.Time) }
func (d Day) Equal(other Day) bool  { return d.Time.Equal(other.Time) }
func (d Day) IsZero() bool          { return d.Time.IsZero() }

// Arithmetic

func (d Day) AddDays(n int) Day { return DayOf(d.Time.AddDate(0, 0, n)) }

func (d Day) String() string { return d.Time.Format(dayFormat) }
