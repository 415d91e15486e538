package validate

import (
	"fmt"
	"strings"
	"time"
)

// Duration parses a Go duration string, treating empty or whitespace input as
// zero. Errors carry the field path so callers can surface them verbatim.
func Duration(field, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", field, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", field)
	}
	return d, nil
}

// DurationOrDefault is Duration with a fallback for empty or zero input.
func DurationOrDefault(field, raw string, def time.Duration) (time.Duration, error) {
	d, err := Duration(field, raw)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return def, nil
	}
	return d, nil
}

// Timestamp parses an RFC 3339 timestamp, treating empty input as the zero
// time.
func Timestamp(field, raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: invalid timestamp %q: %w", field, raw, err)
	}
	return t, nil
}
