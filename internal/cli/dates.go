// Package cli holds small parsing helpers shared by patchctl commands.
package cli

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the calendar date format the API expects.
const DateLayout = "2006-01-02"

// Matches: "1d ago", "2w ago", "3mo ago"
var daysAgoRegex = regexp.MustCompile(`^(\d+)\s*(mo|w|d)\s*ago$`)

// ParseDate turns a human date expression into YYYY-MM-DD, relative to now.
// Supports "today", "yesterday", "3d ago", "2w ago", "1mo ago", weekday
// names ("mon", "last fri") which resolve to the most recent such day, and
// literal YYYY-MM-DD or RFC3339 values.
func ParseDate(s string, now time.Time) (string, error) {
	t, err := parseDay(s, now)
	if err != nil {
		return "", err
	}
	return t.Format(DateLayout), nil
}

func parseDay(s string, now time.Time) (time.Time, error) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	input := strings.ToLower(raw)
	today := startOfDay(now)

	switch input {
	case "today":
		return today, nil
	case "yesterday":
		return today.AddDate(0, 0, -1), nil
	}

	if t, ok := lastWeekday(input, today); ok {
		return t, nil
	}

	if m := daysAgoRegex.FindStringSubmatch(input); len(m) == 3 {
		n, err := strconv.Atoi(m[1])
		if err != nil || n < 1 {
			return time.Time{}, fmt.Errorf("invalid date %q", raw)
		}
		switch m[2] {
		case "mo":
			return today.AddDate(0, -n, 0), nil
		case "w":
			return today.AddDate(0, 0, -7*n), nil
		default:
			return today.AddDate(0, 0, -n), nil
		}
	}

	if t, err := time.ParseInLocation(DateLayout, raw, now.Location()); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return startOfDay(t.In(now.Location())), nil
	}
	return time.Time{}, fmt.Errorf("invalid date %q (use YYYY-MM-DD, today, yesterday, 3d ago or a weekday)", raw)
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// lastWeekday resolves "fri" or "last fri" to the most recent Friday. A bare
// weekday equal to today is today; "last" always goes back at least one day.
func lastWeekday(expr string, today time.Time) (time.Time, bool) {
	last := false
	if rest, ok := strings.CutPrefix(expr, "last "); ok {
		last = true
		expr = strings.TrimSpace(rest)
	}
	weekday, ok := weekdays[expr]
	if !ok {
		return time.Time{}, false
	}
	delta := (int(today.Weekday()) - int(weekday) + 7) % 7
	if last && delta == 0 {
		delta = 7
	}
	return today.AddDate(0, 0, -delta), true
}

var weekdays = map[string]time.Weekday{
	"sun": time.Sunday, "sunday": time.Sunday,
	"mon": time.Monday, "monday": time.Monday,
	"tue": time.Tuesday, "tues": time.Tuesday, "tuesday": time.Tuesday,
	"wed": time.Wednesday, "wednesday": time.Wednesday,
	"thu": time.Thursday, "thurs": time.Thursday, "thursday": time.Thursday,
	"fri": time.Friday, "friday": time.Friday,
	"sat": time.Saturday, "saturday": time.Saturday,
}
