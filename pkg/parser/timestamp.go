package parser

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseTimestamp converts a "ddd.ddd" uptime literal to an integer by
// deleting the decimal point. JVM logs print three decimals, so the result
// is in milliseconds without any floating point rounding.
func ParseTimestamp(literal string) (int64, error) {
	whole, frac, ok := strings.Cut(literal, ".")
	if !ok || !isDigits(whole) || !isDigits(frac) {
		return 0, fmt.Errorf("timestamp %q is not of the form digits.digits", literal)
	}

	ts, err := strconv.ParseInt(whole+frac, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing timestamp %q: %w", literal, err)
	}

	return ts, nil
}

// FormatTimestamp renders a millisecond timestamp the way the JVM prints it.
func FormatTimestamp(ms int64) string {
	return fmt.Sprintf("%d.%03d", ms/1000, ms%1000)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
