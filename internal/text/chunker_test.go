package text

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitMarkdown_ShortDocument(t *testing.T) {
	got := SplitMarkdown("Just one short paragraph.", 100)
	require.Len(t, got, 1)
	assert.Equal(t, "Just one short paragraph.", got[0])
}

func TestSplitMarkdown_SectionsByHeader(t *testing.T) {
	doc := "# Intro\n\nFirst part.\n\n## Details\n\nSecond part.\n"
	got := SplitMarkdown(doc, 100)
	require.Len(t, got, 2)
	assert.True(t, strings.HasPrefix(got[0], "# Intro"))
	assert.True(t, strings.HasPrefix(got[1], "## Details"))
}

func TestSplitMarkdown_LargeSectionSplitsByParagraph(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("# Big\n\n")
	for i := range 20 {
		fmt.Fprintf(&sb, "Paragraph %d with a reasonable amount of text in it.\n\n", i)
	}

	maxTokens := 40 // 160 chars
	got := SplitMarkdown(sb.String(), maxTokens)
	require.Greater(t, len(got), 1)

	for _, frag := range got {
		assert.LessOrEqual(t, len(frag), maxTokens*4)
		assert.NotEmpty(t, strings.TrimSpace(frag))
	}

	// Order preserved across fragments.
	joined := strings.Join(got, "\n")
	assert.Less(t, strings.Index(joined, "Paragraph 0"), strings.Index(joined, "Paragraph 19"))
}

func TestSplitMarkdown_EmptyInput(t *testing.T) {
	assert.Empty(t, SplitMarkdown("", 100))
	assert.Empty(t, SplitMarkdown("   \n\n  ", 100))
}

func TestSplitMarkdown_LongParagraphFallsBackToLines(t *testing.T) {
	lines := make([]string, 30)
	for i := range lines {
		lines[i] = fmt.Sprintf("line %02d of an oversized paragraph", i)
	}
	para := strings.Join(lines, "\n")

	got := SplitMarkdown(para, 30) // 120 chars
	require.Greater(t, len(got), 1)
	for _, frag := range got {
		assert.NotEmpty(t, frag)
	}
}
