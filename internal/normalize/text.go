package normalize

import (
	"strings"
	"unicode"
)

const (
	maxTitleLen       = 200
	maxDescriptionLen = 1000
)

// cleanText collapses whitespace, strips non-printable and non-ASCII
// runes, and truncates at a word boundary with an ellipsis.
func cleanText(s string, max int) string {
	var b strings.Builder
	b.Grow(len(s))
	lastSpace := true
	for _, r := range s {
		if r > unicode.MaxASCII || !unicode.IsPrint(r) {
			continue
		}
		if unicode.IsSpace(r) {
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
			continue
		}
		b.WriteRune(r)
		lastSpace = false
	}
	out := strings.TrimSpace(b.String())
	if len(out) <= max {
		return out
	}
	return truncateAtWord(out, max)
}

// truncateAtWord cuts to max chars including the trailing ellipsis,
// backing up to the last full word when one exists.
func truncateAtWord(s string, max int) string {
	cut := s[:max-3]
	if idx := strings.LastIndexByte(cut, ' '); idx > 0 {
		cut = cut[:idx]
	}
	return cut + "..."
}

// normalizeToken lowercases and trims a comparison token.
func normalizeToken(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
