package textutil

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var whitespaceRegex = regexp.MustCompile(`\s+`)

func NormalizeWhitespace(s string) string {
	s = strings.Trim(s, " \n\t")
	return whitespaceRegex.ReplaceAllString(s, " ")
}

// ComposeSections joins non-empty fragments with blank lines, used to build
// human-readable descriptions out of separate upstream metadata fields.
func ComposeSections(sections ...string) string {
	var kept []string
	for _, s := range sections {
		s = strings.TrimSpace(s)
		if s != "" {
			kept = append(kept, s)
		}
	}
	return strings.Join(kept, "\n\n")
}

func Truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	// back up to a rune boundary so the cut never splits a multi-byte rune
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	cut := s[:max]
	if i := strings.LastIndex(cut, " "); i > 0 {
		cut = cut[:i]
	}
	return cut + "…"
}
