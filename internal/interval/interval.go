package interval

import "time"

// DateLayout is the wire format for DATE values across the API.
const DateLayout = "2006-01-02"

// Validate reports whether a temporal interval is well ordered.
// A nil end means the interval is still open, which is always valid.
// Equal start and end dates are valid (same-day return).
func Validate(start time.Time, end *time.Time) bool {
	if end == nil {
		return true
	}
	return !end.Before(start)
}

// ParseDate parses a "YYYY-MM-DD" string in UTC.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, time.UTC)
}
