package validation

import (
	"regexp"
	"strings"
)

var (
	dateTimePattern = regexp.MustCompile(`\d{4}-\d{2}-\d{2}\s+\d{2}:\d{2}:\d{2}`)
	digitsPattern   = regexp.MustCompile(`\d+`)
)

// placeholder replaces volatile fragments such as timestamps and counters
const placeholder = "*"

// Normalize replaces date-times and then digit runs with a placeholder so that
// output differing only in volatile numbers compares equal.
func Normalize(text string) string {
	text = dateTimePattern.ReplaceAllString(text, placeholder)
	return digitsPattern.ReplaceAllString(text, placeholder)
}

// FuzzyMatch reports whether actual contains expected, or whether both are equal after normalization.
func FuzzyMatch(actual, expected string) bool {
	if strings.Contains(actual, expected) {
		return true
	}
	return Normalize(actual) == Normalize(expected)
}
