// Package textparse extracts business fields from unstructured OCR text.
// Every parser is a pure function of its input.
package textparse

import (
	"regexp"
	"strings"
)

// phonePattern matches North American digit groupings with an optional
// leading country code: (555) 123-4567, 555.123.4567, +1 555 123 4567.
// The outer groups keep it from matching inside longer digit runs.
var phonePattern = regexp.MustCompile(`(?:^|[^\d])((?:\+?1[\s.-]?)?\(?\d{3}\)?[\s.-]?\d{3}[\s.-]?\d{4})(?:[^\d]|$)`)

// ParsePhone returns the first phone number in text, normalized to
// ###-###-####, or "" if none is found.
func ParsePhone(text string) string {
	for _, m := range phonePattern.FindAllStringSubmatch(text, -1) {
		if p := NormalizePhone(m[1]); p != "" {
			return p
		}
	}
	return ""
}

// NormalizePhone formats a 10-digit number, or an 11-digit number with a
// leading 1, as ###-###-####. Anything else returns "".
func NormalizePhone(raw string) string {
	d := Digits(raw)
	if len(d) == 11 && d[0] == '1' {
		d = d[1:]
	}
	if len(d) != 10 {
		return ""
	}
	return d[:3] + "-" + d[3:6] + "-" + d[6:]
}

// Digits strips everything but ASCII digits.
func Digits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
