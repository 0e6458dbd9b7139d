package utils

import "strings"

// Wrap a writer so that content lines longer than 75 characters are
// folded onto space-prefixed continuation lines (RFC 5545 section 3.1).
// The incoming string must be one full content line ending with "\n".
// Example:
//
//	var sb strings.Builder
//	writer := Split75wrapper(sb.WriteString)
//	writer("DESCRIPTION:" + veryLongText + "\n")
func Split75wrapper(writer func(string) (int, error)) func(string) {
	return func(str string) {
		line := strings.TrimSuffix(str, "\n")
		if len(line) <= 75 {
			_, _ = writer(str)
			return
		}

		_, _ = writer(line[:75] + "\n")
		line = line[75:]
		// continuation lines carry a leading space, so 74 payload chars
		for len(line) > 74 {
			_, _ = writer(" " + line[:74] + "\n")
			line = line[74:]
		}
		_, _ = writer(" " + line + "\n")
	}
}

// Undo line folding: a line starting with a space continues the
// previous one. Used by tests and kept symmetric with Split75wrapper;
// the parser itself merges lines on the fly.
func Unfold(text string) string {
	return strings.ReplaceAll(strings.ReplaceAll(text, "\r\n ", ""), "\n ", "")
}
