package utils

import (
	"fmt"
	"time"
)

// ParseDate accepts RFC 3339 timestamps or plain YYYY-MM-DD dates, which is
// what the mobile clients send for delivery estimates.
func ParseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("unrecognized date format: %q", s)
}
