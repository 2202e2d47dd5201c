package narration

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var sentenceRe = regexp.MustCompile(`[^.!?]+[.!?]+`)

// Chunk segments text into pieces no longer than max characters, preferring
// sentence boundaries, then clause boundaries (commas and semicolons), then
// word boundaries. A single word longer than the budget forms its own chunk,
// unsplit; mid-word splits never happen.
func Chunk(text string, max int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var chunks []string
	for _, sentence := range sentences(text) {
		sentence = strings.TrimSpace(sentence)
		if sentence == "" {
			continue
		}
		if utf8.RuneCountInString(sentence) <= max {
			chunks = append(chunks, sentence)
			continue
		}
		chunks = append(chunks, splitClauses(sentence, max)...)
	}
	return chunks
}

func sentences(text string) []string {
	matches := sentenceRe.FindAllStringIndex(text, -1)
	if len(matches) == 0 {
		return []string{text}
	}
	var out []string
	last := 0
	for _, m := range matches {
		out = append(out, text[m[0]:m[1]])
		last = m[1]
	}
	if rest := strings.TrimSpace(text[last:]); rest != "" {
		out = append(out, rest)
	}
	return out
}

// splitClauses breaks an overlong sentence at commas and semicolons. Each
// clause keeps its own trailing separator, so recombining clauses under the
// budget preserves the original punctuation.
func splitClauses(sentence string, max int) []string {
	var parts []string
	start := 0
	for i, r := range sentence {
		if r == ',' || r == ';' {
			parts = append(parts, sentence[start:i+1])
			start = i + 1
		}
	}
	if rest := sentence[start:]; strings.TrimSpace(rest) != "" {
		parts = append(parts, rest)
	}

	var chunks []string
	var current string
	flush := func() {
		current = strings.TrimRight(strings.TrimSpace(current), ",;")
		if current == "" {
			return
		}
		if utf8.RuneCountInString(current) > max {
			chunks = append(chunks, splitWords(current, max)...)
		} else {
			chunks = append(chunks, current)
		}
		current = ""
	}

	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		candidate := part
		if current != "" {
			candidate = current + " " + part
		}
		if utf8.RuneCountInString(candidate) > max && current != "" {
			flush()
			current = part
		} else {
			current = candidate
		}
	}
	flush()
	return chunks
}

func splitWords(text string, max int) []string {
	var chunks []string
	var current string
	for _, word := range strings.Fields(text) {
		candidate := word
		if current != "" {
			candidate = current + " " + word
		}
		if utf8.RuneCountInString(candidate) > max && current != "" {
			chunks = append(chunks, current)
			current = word
		} else {
			current = candidate
		}
	}
	if current != "" {
		chunks = append(chunks, current)
	}
	return chunks
}
