package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// parseSince turns the --since value into a cutoff. It accepts a Go duration
// ("72h"), a number of days ("7d") or a date ("2025-03-01"). An empty value
// means no cutoff.
func parseSince(raw string, now time.Time) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}

	if days, ok := strings.CutSuffix(raw, "d"); ok {
		n, err := strconv.Atoi(days)
		if err == nil {
			if n < 0 {
				return time.Time{}, fmt.Errorf("negative since value %q", raw)
			}
			return now.AddDate(0, 0, -n), nil
		}
	}

	if d, err := time.ParseDuration(raw); err == nil {
		if d < 0 {
			return time.Time{}, fmt.Errorf("negative since value %q", raw)
		}
		return now.Add(-d), nil
	}

	date, err := time.ParseInLocation(time.DateOnly, raw, now.Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("since must be a duration, a number of days or a date, got %q", raw)
	}
	if date.After(now) {
		return time.Time{}, fmt.Errorf("since date %s is in the future", raw)
	}

	return date, nil
}
