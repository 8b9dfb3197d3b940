package textparse

import (
	"net/url"
	"regexp"
	"strings"
)

var emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)

// strictEmailPattern anchors the same shape to the whole string.
var strictEmailPattern = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9-]+(?:\.[A-Za-z0-9-]+)*\.[A-Za-z]{2,}$`)

// ParseEmail returns the first email address in text, lowercased.
func ParseEmail(text string) string {
	m := emailPattern.FindString(text)
	return strings.ToLower(strings.TrimRight(m, "."))
}

// IsEmail reports whether s is exactly one well-formed email address.
func IsEmail(s string) bool {
	return strictEmailPattern.MatchString(strings.TrimSpace(s))
}

var websitePattern = regexp.MustCompile(`(?i)\b((?:https?://)?(?:www\.)?[a-z0-9](?:[a-z0-9-]*[a-z0-9])?(?:\.[a-z0-9](?:[a-z0-9-]*[a-z0-9])?)*\.(?:com|net|org|biz|info|us|co|io|ca|pro|services|business)\b(?:/[^\s]*)?)`)

// ParseWebsite returns the first website-looking domain in text with an
// https:// prefix when no scheme is present. Domains inside email
// addresses are ignored.
func ParseWebsite(text string) string {
	stripped := emailPattern.ReplaceAllString(text, " ")
	m := websitePattern.FindString(stripped)
	if m == "" {
		return ""
	}
	return NormalizeWebsite(m)
}

// NormalizeWebsite adds https:// when the value has no scheme, lowercases
// the host and drops trailing punctuation.
func NormalizeWebsite(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimRight(s, ".,;:!)")
	if s == "" {
		return ""
	}
	lower := strings.ToLower(s)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return s
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	return u.String()
}

// IsWebsite reports whether s parses as an absolute http(s) URL with a
// dotted host.
func IsWebsite(s string) bool {
	u, err := url.Parse(strings.TrimSpace(s))
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	host := u.Hostname()
	return strings.Contains(host, ".") && !strings.HasPrefix(host, ".") && !strings.HasSuffix(host, ".")
}

var streetSuffix = `(?:Street|St|Avenue|Ave|Road|Rd|Drive|Dr|Boulevard|Blvd|Lane|Ln|Way|Court|Ct|Place|Pl|Parkway|Pkwy|Highway|Hwy|Circle|Cir|Terrace|Ter|Trail|Trl)`

var addressPattern = regexp.MustCompile(`(?i)\b\d{1,6}\s+(?:[A-Za-z0-9.'-]+\s+){0,5}` + streetSuffix + `\b\.?(?:[,\s]+(?:Suite|Ste|Unit|Apt|#)\s*[A-Za-z0-9-]+)?`)

// cityStatePattern matches a trailing "City, ST 12345" fragment.
var cityStatePattern = regexp.MustCompile(`^[,\s]*([A-Za-z .'-]+,\s*[A-Z]{2}(?:\s+\d{5}(?:-\d{4})?)?)`)

// ParseAddress returns the first street address in text. A city/state
// fragment following the street on the same or next line is included.
func ParseAddress(text string) string {
	lines := splitLines(text)
	for i, line := range lines {
		loc := addressPattern.FindStringIndex(line)
		if loc == nil {
			continue
		}
		addr := strings.TrimSpace(line[loc[0]:loc[1]])
		rest := line[loc[1]:]
		if m := cityStatePattern.FindStringSubmatch(rest); m != nil {
			return addr + ", " + strings.TrimSpace(m[1])
		}
		if i+1 < len(lines) {
			if m := cityStatePattern.FindStringSubmatch(lines[i+1]); m != nil && strings.TrimSpace(m[1]) == strings.TrimSpace(lines[i+1]) {
				return addr + ", " + strings.TrimSpace(m[1])
			}
		}
		return addr
	}
	return ""
}

func splitLines(text string) []string {
	raw := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(raw))
	for _, l := range raw {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}
