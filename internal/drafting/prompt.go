package drafting

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"prospectus/internal/index"
)

const (
	SentinelStart = "<<<SECTION_START>>>"
	SentinelEnd   = "<<<SECTION_END>>>"

	DefaultMaxContextChars = 15000
	DefaultTemperature     = 0.2
)

func InsufficientEvidence(title string) string {
	return fmt.Sprintf("[%s]\n\nInsufficient evidence: no indexed passages were found for this section. Manual draft required.", title)
}

func NoUsableContent(title string) string {
	return fmt.Sprintf("[%s]\n\nThe model produced no usable content for this section. Manual draft required.", title)
}

// BuildContext joins chunk texts with blank lines, adding chunks while the
// total stays within maxChars runes. A first chunk that is already too long
// is truncated rather than dropped.
func BuildContext(chunks []index.Chunk, maxChars int) string {
	if maxChars <= 0 {
		maxChars = DefaultMaxContextChars
	}

	var sb strings.Builder
	used := 0
	for _, c := range chunks {
		t := strings.TrimSpace(c.Text)
		if t == "" {
			continue
		}
		n := utf8.RuneCountInString(t)

		sep := 0
		if used > 0 {
			sep = 2
		}
		if used+sep+n > maxChars {
			if used == 0 {
				sb.WriteString(string([]rune(t)[:maxChars]))
			}
			break
		}
		if sep > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(t)
		used += sep + n
	}
	return sb.String()
}

func systemPrompt(title string) string {
	return "You are drafting the \"" + title + "\" section of a prospectus. " +
		"Follow the requirements exactly. Use only the provided context and do not invent data. " +
		"Output only the section content.\n" +
		"Return ONLY between " + SentinelStart + " and " + SentinelEnd + "."
}

func userPrompt(title, requirements, context string) string {
	return "Section: " + title + "\n\n" +
		"Requirements:\n" + requirements + "\n\n" +
		"Context:\n" + context + "\n"
}
