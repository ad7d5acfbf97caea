package drafting

import (
	"regexp"
	"strings"
)

// Model-specific markers that open the assistant turn in a raw completion.
var turnDelimiters = []string{
	"<|im_start|>assistant",
	"<|assistant|>",
	"[/INST]",
}

// Markers that close the assistant turn.
var endOfTurn = []string{"<|im_end|>", "<|end|>", "<|eot_id|>", "</s>"}

const echoedPlaceholder = "<SECTION_CONTENT>"

// ExtractBody isolates the section text in a raw completion. It first keeps
// only what follows the last assistant-turn delimiter, then, if both
// sentinels are present in order, the text strictly between the last pair.
// Otherwise the whole text is returned trimmed.
func ExtractBody(raw string) string {
	text := raw

	cut := -1
	cutLen := 0
	for _, d := range turnDelimiters {
		if i := strings.LastIndex(text, d); i > cut {
			cut, cutLen = i, len(d)
		}
	}
	if cut >= 0 {
		text = text[cut+cutLen:]
		for _, e := range endOfTurn {
			if i := strings.Index(text, e); i >= 0 {
				text = text[:i]
			}
		}
	}

	start := strings.LastIndex(text, SentinelStart)
	end := strings.LastIndex(text, SentinelEnd)
	if start >= 0 && end > start {
		body := strings.TrimSpace(text[start+len(SentinelStart) : end])
		if body == echoedPlaceholder {
			return ""
		}
		return body
	}
	return strings.TrimSpace(text)
}

var (
	leadingCitationRe = regexp.MustCompile(`^(\s*)(\[\d+\]\s*)+`)
	roleMarkerRe      = regexp.MustCompile(`(?i)(^|\s)(system|user|assistant):`)
	templateTokenRe   = regexp.MustCompile(`<\|[^|>]*\|>|\[/?INST\]`)
	tagLineRe         = regexp.MustCompile(`^\s*</?[A-Za-z_]+>\s*$`)
	labelLineRe       = regexp.MustCompile(`(?i)^\s*(requirements|context from company documents|context|instructions|section content)\s*:`)
	citationFooterRe  = regexp.MustCompile(`(?i)^\s*\(?\s*(sources?|references)\s*:`)
)

// Sanitize removes prompt artifacts a model may leak into its answer. It is
// idempotent.
func Sanitize(body string) string {
	lines := strings.Split(strings.ReplaceAll(body, "\r\n", "\n"), "\n")

	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		line = cleanLine(line)
		if dropLine(line) {
			continue
		}
		kept = append(kept, strings.TrimRight(line, " \t"))
	}

	for len(kept) > 0 && strings.TrimSpace(kept[0]) == "" {
		kept = kept[1:]
	}
	for len(kept) > 0 && strings.TrimSpace(kept[len(kept)-1]) == "" {
		kept = kept[:len(kept)-1]
	}
	return strings.Join(kept, "\n")
}

// cleanLine strips sentinels and leading citation markers until neither
// rule changes the line.
func cleanLine(line string) string {
	for {
		next := strings.ReplaceAll(line, SentinelStart, "")
		next = strings.ReplaceAll(next, SentinelEnd, "")
		next = leadingCitationRe.ReplaceAllString(next, "$1")
		if next == line {
			return line
		}
		line = next
	}
}

func dropLine(line string) bool {
	if strings.TrimSpace(line) == "" {
		return false
	}
	return roleMarkerRe.MatchString(line) ||
		templateTokenRe.MatchString(line) ||
		tagLineRe.MatchString(line) ||
		labelLineRe.MatchString(line) ||
		citationFooterRe.MatchString(line)
}
