// Package timewindow resolves the time references accepted by query
// tools (RFC3339 timestamps, relative durations, and symbolic references
// like "today" or "since 2pm") into concrete UTC instants and ranges.
package timewindow

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const defaultLookback = 30 * time.Minute

// Window is a resolved, half-open UTC time range.
type Window struct {
	Start time.Time
	End   time.Time
}

// Default returns the default 30-minute lookback window ending at end.
func Default(end time.Time) Window {
	return Window{Start: end.Add(-defaultLookback), End: end}
}

// LoadLocation validates and loads an IANA timezone name, such as
// "America/New_York".
func LoadLocation(name string) (*time.Location, error) {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", name, err)
	}
	return loc, nil
}

// ParseRelativeDuration parses a duration string such as "5m" or "250ms"
// into a time.Duration. The amount must be a positive integer; the unit
// must be one of ms, s, m, h, d.
func ParseRelativeDuration(input string) (time.Duration, error) {
	value, unit, err := splitValueAndUnit(input)
	if err != nil {
		return 0, err
	}

	amount, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration value: %s", value)
	}
	if amount <= 0 {
		return 0, fmt.Errorf("duration must be greater than zero")
	}

	switch strings.ToLower(unit) {
	case "ms":
		return time.Duration(amount) * time.Millisecond, nil
	case "s":
		return time.Duration(amount) * time.Second, nil
	case "m":
		return time.Duration(amount) * time.Minute, nil
	case "h":
		return time.Duration(amount) * time.Hour, nil
	case "d":
		return time.Duration(amount) * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("unsupported duration unit: %s", strings.ToLower(unit))
	}
}

// ParseStdDuration parses a duration string the same way as
// ParseRelativeDuration, but allows zero and is used for plain config-level
// durations (timeouts, cache TTLs) rather than time-window offsets.
func ParseStdDuration(input string) (time.Duration, error) {
	value, unit, err := splitValueAndUnit(input)
	if err != nil {
		return 0, err
	}

	amount, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration value: %s", value)
	}
	if amount == 0 {
		return 0, nil
	}

	switch strings.ToLower(unit) {
	case "ms":
		return time.Duration(amount) * time.Millisecond, nil
	case "s":
		return time.Duration(amount) * time.Second, nil
	case "m":
		return time.Duration(amount) * time.Minute, nil
	case "h":
		return time.Duration(amount) * time.Hour, nil
	case "d":
		return time.Duration(amount) * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("unsupported duration unit: %s", strings.ToLower(unit))
	}
}

// ParseTimeReference resolves a single time reference — an RFC3339
// timestamp, "now", "today", "yesterday", "since <time-of-day>", or a
// relative duration subtracted from now — into a concrete UTC instant.
func ParseTimeReference(input string, loc *time.Location, now time.Time) (time.Time, error) {
	normalized := strings.TrimSpace(input)
	if normalized == "" {
		return time.Time{}, fmt.Errorf("time reference must not be empty")
	}

	if parsed, err := time.Parse(time.RFC3339, normalized); err == nil {
		return parsed.UTC(), nil
	}

	lower := strings.ToLower(normalized)

	switch lower {
	case "now":
		return now, nil
	case "today":
		today := now.In(loc)
		return localMidnightToUTC(loc, today), nil
	case "yesterday":
		yesterday := now.In(loc).AddDate(0, 0, -1)
		return localMidnightToUTC(loc, yesterday), nil
	}

	if since, ok := strings.CutPrefix(lower, "since "); ok {
		hour, minute, err := parseTimeOfDay(since)
		if err != nil {
			return time.Time{}, err
		}
		localNow := now.In(loc)
		date := localNow
		parsed := localTimeToUTC(loc, date, hour, minute)

		if parsed.After(now) {
			date = date.AddDate(0, 0, -1)
			parsed = localTimeToUTC(loc, date, hour, minute)
		}

		return parsed, nil
	}

	duration, err := ParseRelativeDuration(lower)
	if err != nil {
		return time.Time{}, err
	}
	return now.Add(-duration), nil
}

// ResolveRange resolves optional start/end references into a concrete
// window. A missing end defaults to now; a missing start defaults to the
// 30-minute lookback window ending at the resolved end.
func ResolveRange(start, end *string, loc *time.Location, now time.Time) (Window, error) {
	var endTime time.Time
	if end != nil {
		resolved, err := ParseTimeReference(*end, loc, now)
		if err != nil {
			return Window{}, err
		}
		endTime = resolved
	} else {
		endTime = now
	}

	var startTime time.Time
	if start != nil {
		resolved, err := ParseTimeReference(*start, loc, endTime)
		if err != nil {
			return Window{}, err
		}
		startTime = resolved
	} else {
		startTime = Default(endTime).Start
	}

	if startTime.After(endTime) {
		return Window{}, fmt.Errorf("start time must be less than or equal to end time")
	}

	return Window{Start: startTime, End: endTime}, nil
}

func splitValueAndUnit(input string) (value, unit string, err error) {
	var b strings.Builder
	for _, r := range input {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			continue
		}
		b.WriteRune(r)
	}
	compact := b.String()
	if compact == "" {
		return "", "", fmt.Errorf("duration must not be empty")
	}

	splitIndex := -1
	for i, r := range compact {
		if r < '0' || r > '9' {
			splitIndex = i
			break
		}
	}
	if splitIndex == -1 {
		return "", "", fmt.Errorf("duration must include a unit suffix")
	}

	value = compact[:splitIndex]
	unit = compact[splitIndex:]
	if value == "" || unit == "" {
		return "", "", fmt.Errorf("duration must include a numeric value and a unit suffix")
	}
	return value, unit, nil
}

// parseTimeOfDay accepts "2pm", "2:30pm", "14:30", or "14" and returns the
// hour (0-23) and minute.
func parseTimeOfDay(input string) (hour, minute int, err error) {
	compact := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(input), " ", ""))

	if strings.HasSuffix(compact, "am") || strings.HasSuffix(compact, "pm") {
		if len(compact) < 2 {
			return 0, 0, fmt.Errorf("unsupported time-of-day format: %s", input)
		}
		meridiemIndex := len(compact) - 2
		timePart, meridiem := compact[:meridiemIndex], compact[meridiemIndex:]

		hourText, minuteText := timePart, "0"
		if idx := strings.Index(timePart, ":"); idx >= 0 {
			hourText, minuteText = timePart[:idx], timePart[idx+1:]
		}

		hour12, err := strconv.Atoi(hourText)
		if err != nil {
			return 0, 0, fmt.Errorf("unsupported time-of-day format: %s", input)
		}
		minute, err = strconv.Atoi(minuteText)
		if err != nil {
			return 0, 0, fmt.Errorf("unsupported time-of-day format: %s", input)
		}

		if hour12 < 1 || hour12 > 12 || minute > 59 {
			return 0, 0, fmt.Errorf("unsupported time-of-day format: %s", input)
		}

		hour = hour12 % 12
		if meridiem == "pm" {
			hour += 12
		}
		return hour, minute, nil
	}

	if idx := strings.Index(compact, ":"); idx >= 0 {
		h, err1 := strconv.Atoi(compact[:idx])
		m, err2 := strconv.Atoi(compact[idx+1:])
		if err1 == nil && err2 == nil && h >= 0 && h <= 23 && m >= 0 && m <= 59 {
			return h, m, nil
		}
		return 0, 0, fmt.Errorf("unsupported time-of-day format: %s", input)
	}

	if h, err := strconv.Atoi(compact); err == nil && h >= 0 && h <= 23 {
		return h, 0, nil
	}

	return 0, 0, fmt.Errorf("unsupported time-of-day format: %s", input)
}

func localMidnightToUTC(loc *time.Location, local time.Time) time.Time {
	y, m, d := local.Date()
	return resolveLocal(loc, y, m, d, 0, 0, 0)
}

func localTimeToUTC(loc *time.Location, local time.Time, hour, minute int) time.Time {
	y, m, d := local.Date()
	return resolveLocal(loc, y, m, d, hour, minute, 0)
}

// resolveLocal constructs a local wall-clock instant in loc. For
// DST-ambiguous times (the wall clock occurs twice), Go's time.Date already
// resolves to one consistent offset; we follow that without further
// disambiguation since Go does not expose the earlier/later choice
// directly. Nonexistent times (spring-forward gaps) are normalized forward
// by the standard library's wall-clock arithmetic.
func resolveLocal(loc *time.Location, year int, month time.Month, day, hour, minute, sec int) time.Time {
	return time.Date(year, month, day, hour, minute, sec, 0, loc).UTC()
}
