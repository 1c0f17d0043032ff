package models

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseClock converts "HH:MM" into minutes since midnight.
func ParseClock(s string) (int, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok || len(hh) != 2 || len(mm) != 2 {
		return 0, fmt.Errorf("invalid clock %q: expected HH:MM", s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 24 {
		return 0, fmt.Errorf("invalid clock %q: bad hour", s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid clock %q: bad minute", s)
	}
	total := h*60 + m
	if total > 24*60 {
		return 0, fmt.Errorf("invalid clock %q: past midnight", s)
	}
	return total, nil
}

// FormatClock renders minutes since midnight as zero-padded "HH:MM".
func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}
