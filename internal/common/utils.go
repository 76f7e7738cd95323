// Package common holds parsing helpers shared by the source adapters.
package common

import (
	"strconv"
	"strings"
)

// HasAny reports whether s contains any of subs.
func HasAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// ParseDegrees parses a decimal angle such as "123.4" or " 123.4° ".
func ParseDegrees(s string) (float64, error) {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "°"))
	return strconv.ParseFloat(s, 64)
}

// OptionalDegrees is ParseDegrees for table cells; blanks and markers like
// "n.a." give nil.
func OptionalDegrees(s string) *float64 {
	v, err := ParseDegrees(s)
	if err != nil {
		return nil
	}
	return &v
}
