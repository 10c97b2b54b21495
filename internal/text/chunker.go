package text

import (
	"regexp"
	"strings"
)

// Approximate characters per token; good enough for sizing chunks against
// an embedding model's context window.
const charsPerToken = 4

var headerRe = regexp.MustCompile(`(?m)^#{1,6}\s`)

// SplitMarkdown splits markdown (or plain text) into embedding-sized
// fragments, preferring structural boundaries: sections by header, then
// paragraphs, then lines. Order follows the document. Fragments never
// exceed maxTokens*4 characters except for a single indivisible line.
func SplitMarkdown(input string, maxTokens int) []string {
	maxChars := maxTokens * charsPerToken
	if maxChars < charsPerToken {
		maxChars = charsPerToken
	}

	var out []string
	for _, section := range splitSections(input) {
		section = strings.TrimSpace(section)
		if section == "" {
			continue
		}
		if len(section) <= maxChars {
			out = append(out, section)
			continue
		}
		out = append(out, splitParagraphs(section, maxChars)...)
	}
	return out
}

func splitSections(input string) []string {
	locs := headerRe.FindAllStringIndex(input, -1)
	if len(locs) == 0 {
		return []string{input}
	}

	var sections []string
	last := 0
	for _, loc := range locs {
		if loc[0] > last {
			sections = append(sections, input[last:loc[0]])
		}
		last = loc[0]
	}
	sections = append(sections, input[last:])
	return sections
}

func splitParagraphs(section string, maxChars int) []string {
	var out []string
	var cur strings.Builder

	flush := func() {
		if cur.Len() > 0 {
			out = append(out, cur.String())
			cur.Reset()
		}
	}

	for _, para := range strings.Split(section, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}

		if len(para) > maxChars {
			flush()
			out = append(out, splitLines(para, maxChars)...)
			continue
		}

		if cur.Len()+len(para)+2 > maxChars {
			flush()
		}
		if cur.Len() > 0 {
			cur.WriteString("\n\n")
		}
		cur.WriteString(para)
	}
	flush()
	return out
}

func splitLines(para string, maxChars int) []string {
	var out []string
	var cur strings.Builder

	for _, line := range strings.Split(para, "\n") {
		if cur.Len() > 0 && cur.Len()+len(line)+1 > maxChars {
			out = append(out, cur.String())
			cur.Reset()
		}
		if cur.Len() > 0 {
			cur.WriteString("\n")
		}
		cur.WriteString(line)
	}
	if cur.Len() > 0 {
		out = append(out, cur.String())
	}
	return out
}
