package core

import (
	"fmt"
	"strings"
	"time"
)

// ParseAge parses a retention age. It accepts Go durations ("36h", "90m") plus day and
// week suffixes ("30d", "2w").
func ParseAge(value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("empty age")
	}

	unit := strings.ToLower(value[len(value)-1:])
	var multiplier time.Duration
	switch unit {
	case "d":
		multiplier = 24 * time.Hour
	case "w":
		multiplier = 7 * 24 * time.Hour
	default:
		d, err := time.ParseDuration(value)
		if err != nil {
			return 0, fmt.Errorf("invalid age %q: %w", value, err)
		}
		if d <= 0 {
			return 0, fmt.Errorf("age must be positive: %q", value)
		}
		return d, nil
	}

	amountStr := value[:len(value)-1]
	if amountStr == "" {
		return 0, fmt.Errorf("invalid age %q", value)
	}
	var amount int64
	for _, r := range amountStr {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("invalid age %q", value)
		}
		amount = amount*10 + int64(r-'0')
	}
	if amount == 0 {
		return 0, fmt.Errorf("age must be positive: %q", value)
	}
	return time.Duration(amount) * multiplier, nil
}
