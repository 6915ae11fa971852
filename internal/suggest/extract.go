// Package suggest turns free-text agent output into discrete suggestions.
package suggest

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// MinLength is the shortest suggestion kept; anything shorter is noise.
const MinLength = 3

var (
	bulletPrefix     = regexp.MustCompile(`^[-•*]\s*`)
	enumeratorPrefix = regexp.MustCompile(`^\d+[.)]\s*`)
)

// Extract splits text into one suggestion per line, stripping a leading
// bullet or enumerator. When no line survives, the whole trimmed text is the
// single suggestion. Empty input yields nil.
func Extract(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if loc := bulletPrefix.FindStringIndex(line); loc != nil {
			line = line[loc[1]:]
		} else if loc := enumeratorPrefix.FindStringIndex(line); loc != nil {
			line = line[loc[1]:]
		}
		line = strings.TrimSpace(line)
		if utf8.RuneCountInString(line) < MinLength {
			continue
		}
		out = append(out, line)
	}

	if len(out) == 0 {
		if whole := strings.TrimSpace(text); whole != "" {
			return []string{whole}
		}
	}
	return out
}
