package textparse

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestParsePhone(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		want string
	}{
		{"parenthesised", "Call (555) 123-4567 today", "555-123-4567"},
		{"dotted", "555.123.4567", "555-123-4567"},
		{"spaced", "555 123 4567", "555-123-4567"},
		{"bare ten digits", "5551234567", "555-123-4567"},
		{"country code", "+1 555 123 4567", "555-123-4567"},
		{"eleven digits leading one", "1-800-555-1234", "800-555-1234"},
		{"inside longer digit run", "Order #123555123456789", ""},
		{"too short", "555-1234", ""},
		{"none", "ABC Plumbing", ""},
		{"first of two", "Office 555-111-2222 Cell 555-333-4444", "555-111-2222"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ParsePhone(tt.text))
		})
	}
}

func TestNormalizePhone(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "555-123-4567", NormalizePhone("(555) 123-4567"))
	assert.Equal(t, "555-123-4567", NormalizePhone("15551234567"))
	assert.Equal(t, "", NormalizePhone("25551234567"))
	assert.Equal(t, "", NormalizePhone("555123456"))
	assert.Equal(t, "", NormalizePhone(""))
}

func TestParseEmail(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "info@abc.com", ParseEmail("Email: Info@ABC.com."))
	assert.Equal(t, "j.doe+quotes@mail.acme-co.net", ParseEmail("j.doe+quotes@mail.acme-co.net"))
	assert.Equal(t, "", ParseEmail("no email here @ all"))
}

func TestIsEmail(t *testing.T) {
	t.Parallel()

	assert.True(t, IsEmail("info@abc.com"))
	assert.True(t, IsEmail(" sales@acme.co.uk "))
	assert.False(t, IsEmail("info@abc"))
	assert.False(t, IsEmail("call info@abc.com"))
	assert.False(t, IsEmail(""))
}

func TestParseWebsite(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		want string
	}{
		{"bare domain", "Visit abcplumbing.com", "https://abcplumbing.com"},
		{"www", "www.ABCPlumbing.com", "https://www.abcplumbing.com"},
		{"keeps scheme", "http://acme.net/quote", "http://acme.net/quote"},
		{"ignores email domain", "info@abc.com", ""},
		{"email and site", "info@abc.com | abc-services.org", "https://abc-services.org"},
		{"trailing punctuation", "See acme.io.", "https://acme.io"},
		{"no tld match", "Best in town", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ParseWebsite(tt.text))
		})
	}
}

func TestIsWebsite(t *testing.T) {
	t.Parallel()

	assert.True(t, IsWebsite("https://abc.com"))
	assert.True(t, IsWebsite("http://www.abc.com/path"))
	assert.False(t, IsWebsite("abc.com"))
	assert.False(t, IsWebsite("https://localhost"))
	assert.False(t, IsWebsite("ftp://abc.com"))
	assert.False(t, IsWebsite(""))
}

func TestParseAddress(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		want string
	}{
		{"street", "123 Main Street", "123 Main Street"},
		{"abbreviation", "Shop at 45 Oak Ave.", "45 Oak Ave."},
		{"with suite", "900 Commerce Blvd Suite 200", "900 Commerce Blvd Suite 200"},
		{"city on same line", "12 Elm Rd, Springfield, IL 62704", "12 Elm Rd, Springfield, IL 62704"},
		{"city on next line", "ABC Plumbing\n77 Lake Drive\nAustin, TX 78701", "77 Lake Drive, Austin, TX 78701"},
		{"none", "ABC Plumbing\n555-123-4567", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ParseAddress(tt.text))
		})
	}
}

func TestParseServices(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"Plumbing"}, ParseServices("ABC Plumbing"))
	assert.Equal(t, []string{"HVAC", "Electrical"}, ParseServices("Heating & Cooling - Licensed Electricians"))
	assert.Empty(t, ParseServices("Joe's Diner"))

	many := "roofing painting plumbing fencing gutters concrete solar towing"
	got := ParseServices(many)
	assert.Len(t, got, MaxOCRServices)
	assert.Equal(t, []string{"Roofing", "Painting", "Plumbing", "Fencing", "Gutters"}, got)
}

func TestServiceName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Plumbing", ServiceName("plumbing"))
	assert.Equal(t, "HVAC", ServiceName(" hvac "))
	assert.Equal(t, "Dog Grooming", ServiceName("Dog Grooming"))
}

func TestParseBusinessName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "ABC Plumbing", ParseBusinessName("ABC Plumbing\n(555) 123-4567\ninfo@abc.com"))
	assert.Equal(t, "Acme Roofing", ParseBusinessName("555-123-4567\n\n  Acme Roofing  \nacme.com"))
	assert.Equal(t, "", ParseBusinessName("555-123-4567\nwww.acme.com\n#1"))
}

func TestParseBusinessName_TruncatesOnRunes(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("A", 79) + "éé Plumbing"
	got := ParseBusinessName(long)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, maxNameLen, utf8.RuneCountInString(got))
	assert.Equal(t, strings.Repeat("A", 79)+"é", got)
}

func TestParseOCR_Scenario(t *testing.T) {
	t.Parallel()

	facts := ParseOCR("ABC Plumbing\n(555) 123-4567\ninfo@abc.com")
	assert.Equal(t, "555-123-4567", facts.PhoneNumber)
	assert.Equal(t, "info@abc.com", facts.Email)
	assert.Equal(t, "ABC Plumbing", facts.BusinessName)
	assert.Equal(t, "", facts.Website)
	assert.Equal(t, []string{"Plumbing"}, facts.Services)
	assert.Equal(t, "ABC Plumbing\n(555) 123-4567\ninfo@abc.com", facts.RawText)
}
