package util

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	durationDatePart = regexp.MustCompile(`(\d+)([WD])`)
	durationTimePart = regexp.MustCompile(`(\d+)([HMS])`)
)

// ParseDuration parses ISO 8601 durations such as PT1H30M, P1D or P1DT2H.
// Weeks and days are taken as 7x24h and 24h.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return 0, nil
	}
	if len(s) < 2 || s[0] != 'P' {
		return 0, fmt.Errorf("invalid ISO 8601 duration format: %s", s)
	}

	datePart, timePart, hasTime := strings.Cut(s[1:], "T")
	if hasTime && timePart == "" {
		return 0, fmt.Errorf("invalid ISO 8601 duration (empty time part): %s", s)
	}

	var total time.Duration
	for _, match := range durationDatePart.FindAllStringSubmatch(datePart, -1) {
		value, _ := strconv.Atoi(match[1])
		switch match[2] {
		case "W":
			total += time.Duration(value) * 7 * 24 * time.Hour
		case "D":
			total += time.Duration(value) * 24 * time.Hour
		}
	}
	for _, match := range durationTimePart.FindAllStringSubmatch(timePart, -1) {
		value, _ := strconv.Atoi(match[1])
		switch match[2] {
		case "H":
			total += time.Duration(value) * time.Hour
		case "M":
			total += time.Duration(value) * time.Minute
		case "S":
			total += time.Duration(value) * time.Second
		}
	}

	if total == 0 {
		return 0, fmt.Errorf("invalid ISO 8601 duration: %s", s)
	}
	return total, nil
}

// FormatUntil renders a remaining duration as "1d 4h", "3h 20m" or "45m".
// Negative durations render as "overdue".
func FormatUntil(d time.Duration) string {
	if d < 0 {
		return "overdue"
	}
	d = d.Round(time.Minute)
	days := int(d / (24 * time.Hour))
	hours := int(d % (24 * time.Hour) / time.Hour)
	minutes := int(d % time.Hour / time.Minute)

	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh", days, hours)
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	default:
		return fmt.Sprintf("%dm", minutes)
	}
}

// Truncate shortens s to limit bytes and notes how much was dropped.
func Truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + fmt.Sprintf("... <truncated %d chars>", len(s)-limit)
}
