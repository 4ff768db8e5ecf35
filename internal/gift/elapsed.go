package gift

import (
	"strings"
	"time"
)

// Span is a calendar difference as shown by the "time together" counter.
type Span struct {
	Years  int `json:"years"`
	Months int `json:"months"`
	Days   int `json:"days"`
}

func (s Span) IsZero() bool {
	return s.Years == 0 && s.Months == 0 && s.Days == 0
}

// ParseDate accepts YYYY-MM-DD and RFC 3339 timestamps. Timestamps are read in loc.
func ParseDate(value string, loc *time.Location) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.UTC
	}
	if t, err := time.ParseInLocation(dateLayout, value, loc); err == nil {
		return t, true
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.In(loc), true
		}
	}
	return time.Time{}, false
}

// Elapsed returns the years, months and days from start to now, borrowing days from
// the months preceding now's month. Future dates yield a zero span; the boolean is
// false when start is not a date.
func Elapsed(start string, now time.Time) (Span, bool) {
	from, ok := ParseDate(start, now.Location())
	if !ok {
		return Span{}, false
	}
	return Between(from, now), true
}

// Between computes the calendar difference between two instants using their local dates.
func Between(from, now time.Time) Span {
	from = from.In(now.Location())
	years := now.Year() - from.Year()
	months := int(now.Month()) - int(from.Month())
	days := now.Day() - from.Day()

	// A start late in a long month can need a second borrow when the month before
	// now is shorter, e.g. Jan 31 to Mar 1.
	for borrow := 0; days < 0; borrow++ {
		months--
		days += time.Date(now.Year(), now.Month()-time.Month(borrow), 0, 0, 0, 0, 0, now.Location()).Day()
	}
	if months < 0 {
		years--
		months += 12
	}
	if years < 0 || months < 0 || days < 0 {
		return Span{}
	}
	return Span{Years: years, Months: months, Days: days}
}
