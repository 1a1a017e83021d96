package textutil

import (
	"regexp"
	"strings"
	"unicode"
)

var whitespaceRegex = regexp.MustCompile(`\s+`)

// NormalizeWhitespace trims a string and collapses every run of whitespace
// (including non-breaking spaces and the literal "&nbsp;" entity) into one space.
func NormalizeWhitespace(s string) string {
	s = strings.ReplaceAll(s, "&nbsp;", " ")
	s = strings.ReplaceAll(s, "\u00a0", " ")
	s = whitespaceRegex.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Digits keeps only the decimal digits of s.
func Digits(s string) string {
	var b strings.Builder
	for _, c := range s {
		if unicode.IsDigit(c) {
			b.WriteRune(c)
		}
	}
	return b.String()
}

// NormalizeLabel lowercases a label and strips everything but letters and
// digits so "Power Units:" and "power units" compare equal.
func NormalizeLabel(label string) string {
	var b strings.Builder
	for _, c := range strings.ToLower(label) {
		if unicode.IsLetter(c) || unicode.IsDigit(c) {
			b.WriteRune(c)
		}
	}
	return b.String()
}
