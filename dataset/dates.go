package dataset

import (
	"regexp"
	"time"

	"github.com/araddon/dateparse"
)

// ============================================================================
// DATES — Lenient date parsing shared by detection and coercion
// ============================================================================
// Month-first wins when a value reads both ways ("03/04/2024" is March 4).
// A value that only makes sense day-first ("15/03/2024") is read day-first.
// Dotted and dashed numeric forms ("31.12.2023", "15-03-2024") are treated
// like their slashed equivalent. Values without a zone are read as UTC; an
// explicit offset is kept on the returned time.
// ============================================================================

var numericDate = regexp.MustCompile(`^(\d{1,2})[.\-](\d{1,2})[.\-](\d{2}|\d{4})\b`)

// ParseDate parses s as a date or timestamp.
func ParseDate(s string) (time.Time, error) {
	s = numericDate.ReplaceAllString(s, "$1/$2/$3")

	t, err := dateparse.ParseIn(s, time.UTC)
	if err == nil {
		return t, nil
	}
	if dt, dayErr := dateparse.ParseIn(s, time.UTC, dateparse.PreferMonthFirst(false)); dayErr == nil {
		return dt, nil
	}
	return time.Time{}, err
}
