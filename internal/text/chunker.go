package text

import (
	"regexp"
	"strings"
)

const (
	DefaultMaxChars = 1200
	DefaultOverlap  = 200
)

var (
	trailingSpaceRe = regexp.MustCompile(`[ \t]+\n`)
	blankRunRe      = regexp.MustCompile(`\n{3,}`)
)

// Normalize unifies line endings, strips trailing whitespace before
// newlines, collapses runs of blank lines to a single blank line and trims
// the result.
func Normalize(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = trailingSpaceRe.ReplaceAllString(s, "\n")
	s = blankRunRe.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// Chunk splits text into windows of at most maxChars characters, each
// starting overlapChars characters before the end of the previous one.
// Windows that are blank after trimming are dropped. Empty input yields no
// chunks.
func Chunk(text string, maxChars, overlapChars int) []string {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	if overlapChars < 0 {
		overlapChars = 0
	}
	if overlapChars >= maxChars {
		overlapChars = maxChars - 1
	}

	runes := []rune(Normalize(text))
	if len(runes) == 0 {
		return nil
	}

	var chunks []string
	for start := 0; start < len(runes); {
		end := min(start+maxChars, len(runes))

		if window := strings.TrimSpace(string(runes[start:end])); window != "" {
			chunks = append(chunks, window)
		}
		if end == len(runes) {
			break
		}
		start = end - overlapChars
	}
	return chunks
}
