package cli

import (
	"fmt"
	"strings"
	"time"
)

// parseTime parses:
// - YYYY-MM-DD (local midnight)
// - YYYY-MM-DD HH:MM or YYYY-MM-DDTHH:MM (local)
// - RFC3339 / RFC3339Nano (timezone-aware)
func parseTime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty datetime")
	}
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range []string{time.DateOnly, "2006-01-02 15:04", "2006-01-02T15:04", "2006-01-02 15:04:05"} {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid datetime %q (expected YYYY-MM-DD, YYYY-MM-DD HH:MM, or RFC3339)", s)
}

// parseRange parses optional --from/--to values. A date-only --to covers the
// whole day.
func parseRange(from, to string) (*time.Time, *time.Time, error) {
	var start, end *time.Time
	if strings.TrimSpace(from) != "" {
		t, err := parseTime(from, time.Local)
		if err != nil {
			return nil, nil, fmt.Errorf("--from: %w", err)
		}
		start = &t
	}
	if v := strings.TrimSpace(to); v != "" {
		t, err := parseTime(v, time.Local)
		if err != nil {
			return nil, nil, fmt.Errorf("--to: %w", err)
		}
		if len(v) == len(time.DateOnly) {
			t = t.AddDate(0, 0, 1).Add(-time.Nanosecond)
		}
		end = &t
	}
	if start != nil && end != nil && end.Before(*start) {
		return nil, nil, fmt.Errorf("--to is before --from")
	}
	return start, end, nil
}
