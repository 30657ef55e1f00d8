package models

import (
	"fmt"
	"strconv"
	"strings"
)

// FormatTimeLimit renders whole seconds as the "MM:SS" string the local
// store keeps for class time limits, e.g. 180 -> "03:00".
func FormatTimeLimit(seconds int) string {
	if seconds <= 0 {
		return ""
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

// ParseTimeLimit converts a "MM:SS" string back to whole seconds.
// An empty string means no limit and parses to 0.
func ParseTimeLimit(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid time limit %q: want MM:SS", s)
	}
	mins, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid time limit %q: %w", s, err)
	}
	secs, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("invalid time limit %q: %w", s, err)
	}
	if mins < 0 || secs < 0 || secs > 59 {
		return 0, fmt.Errorf("invalid time limit %q: out of range", s)
	}
	return mins*60 + secs, nil
}
