// Package sanitize cleans problem names before they are stored in the run
// database and echoed back in listings. Names arrive from YAML problem files
// and from MCP clients, so they are reduced to a safe identifier alphabet.
package sanitize

import (
	"regexp"
	"strings"
)

// MaxNameLength is the maximum allowed length for problem names.
const MaxNameLength = 80

var (
	// reRepeatedHyphens matches 2 or more consecutive hyphens.
	reRepeatedHyphens = regexp.MustCompile(`-{2,}`)

	// reRepeatedUnderscores matches 2 or more consecutive underscores.
	reRepeatedUnderscores = regexp.MustCompile(`_{2,}`)
)

// ProblemName keeps only [a-zA-Z0-9-_./], turns whitespace into hyphens,
// collapses repeated hyphens and underscores, and truncates to MaxNameLength.
// Leading and trailing separators are trimmed.
func ProblemName(input string) string {
	if input == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(input))
	for _, r := range stripControlChars(input) {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
		case r == '-' || r == '_' || r == '.' || r == '/':
			b.WriteRune(r)
		case r == ' ' || r == '\t':
			b.WriteRune('-')
		}
	}
	s := b.String()

	s = reRepeatedHyphens.ReplaceAllString(s, "-")
	s = reRepeatedUnderscores.ReplaceAllString(s, "_")
	s = strings.Trim(s, "-_./")

	if len(s) > MaxNameLength {
		s = s[:MaxNameLength]
	}

	return s
}

// stripControlChars removes ASCII control characters (0x00-0x1F) except tab.
func stripControlChars(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r < 0x20 && r != '\t' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
