package utils

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Tidy a user-supplied summary: strip surrounding spaces, drop a
// trailing period, uppercase the first letter. The rest of the text is
// left exactly as the user typed it.
func CleanupString(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, ".")
	if s == "" {
		return s
	}
	first, size := utf8.DecodeRuneInString(s)
	return cases.Upper(language.English).String(string(first)) + s[size:]
}
