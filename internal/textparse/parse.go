package textparse

import (
	"strings"
	"unicode"

	"github.com/sells-group/fieldsnap/internal/model"
)

const maxNameLen = 80

// ParseBusinessName returns the first line that reads like a name: it
// has at least two letters and is not a phone, email, website or address.
func ParseBusinessName(text string) string {
	for _, line := range splitLines(text) {
		if !looksLikeName(line) {
			continue
		}
		name := strings.Trim(line, " \t-–|•*:;,.")
		if r := []rune(name); len(r) > maxNameLen {
			name = strings.TrimSpace(string(r[:maxNameLen]))
		}
		if name != "" {
			return name
		}
	}
	return ""
}

func looksLikeName(line string) bool {
	letters := 0
	for _, r := range line {
		if unicode.IsLetter(r) {
			letters++
		}
	}
	if letters < 2 {
		return false
	}
	if ParsePhone(line) != "" || ParseEmail(line) != "" || ParseAddress(line) != "" {
		return false
	}
	if websitePattern.MatchString(line) {
		return false
	}
	return true
}

// ParseOCR parses every business field from raw extracted text.
func ParseOCR(text string) model.OcrFacts {
	return model.OcrFacts{
		BusinessName: ParseBusinessName(text),
		PhoneNumber:  ParsePhone(text),
		Email:        ParseEmail(text),
		Website:      ParseWebsite(text),
		Address:      ParseAddress(text),
		Services:     ParseServices(text),
		RawText:      text,
	}
}
