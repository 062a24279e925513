package utils

import (
	"fmt"
	"strings"
)

// FormatBytes formats bytes as a human-readable string.
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}

	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}

	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// ParseBytes parses a human-readable byte string such as "64MB" or "1.5G".
func ParseBytes(s string) (int64, error) {
	if strings.TrimSpace(s) == "" {
		return 0, fmt.Errorf("empty byte size")
	}

	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.TrimSuffix(s, "B")

	var multiplier int64 = 1
	numStr := s
	if len(s) > 0 {
		switch s[len(s)-1] {
		case 'K':
			multiplier = 1 << 10
			numStr = s[:len(s)-1]
		case 'M':
			multiplier = 1 << 20
			numStr = s[:len(s)-1]
		case 'G':
			multiplier = 1 << 30
			numStr = s[:len(s)-1]
		case 'T':
			multiplier = 1 << 40
			numStr = s[:len(s)-1]
		}
	}

	var num float64
	if _, err := fmt.Sscanf(numStr, "%f", &num); err != nil {
		return 0, fmt.Errorf("invalid byte size: %s", s)
	}
	if num < 0 {
		return 0, fmt.Errorf("negative byte size: %s", s)
	}

	return int64(num * float64(multiplier)), nil
}
