package binder

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

// runeWidth measures one unit per rune.
func runeWidth(s string) float64 { return float64(utf8.RuneCountInString(s)) }

func TestWrapText(t *testing.T) {
	tests := []struct {
		name string
		text string
		max  float64
		want []string
	}{
		{"fits", "short line", 20, []string{"short line"}},
		{"greedy", "the quick brown fox jumps", 10, []string{"the quick", "brown fox", "jumps"}},
		{"paragraph break kept", "first para\n\nsecond", 20, []string{"first para", "", "second"}},
		{"two blank lines", "a\n\n\nb", 20, []string{"a", "", "", "b"}},
		{"source lines stay separate", "one\ntwo", 20, []string{"one", "two"}},
		{"collapses inner spaces", "a    b", 20, []string{"a b"}},
		{"long word split", "abcdefghij xy", 4, []string{"abcd", "efgh", "ij", "xy"}},
		{"trailing newlines dropped", "end\n\n\n", 20, []string{"end"}},
		{"crlf", "x\r\n\r\ny", 20, []string{"x", "", "y"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, wrapText(tt.text, tt.max, runeWidth))
		})
	}
}

func TestWrapText_NoLineExceedsWidth(t *testing.T) {
	text := strings.Repeat("lorem ipsum dolor sit amet consectetur ", 40) + "\n\n" + strings.Repeat("z", 95)
	for _, l := range wrapText(text, 17, runeWidth) {
		assert.LessOrEqual(t, runeWidth(l), 17.0, l)
	}
}

func TestFitText(t *testing.T) {
	assert.Equal(t, "short", fitText("short", 10, runeWidth))
	assert.Equal(t, "a long...", fitText("a long label", 9, runeWidth))
	assert.Equal(t, "...", fitText("abc", 2, runeWidth))
}

func TestRenderIndex_FullPageStaysInsideMargins(t *testing.T) {
	entries := make([]IndexEntry, 2*MaxLinesPerIndexPage)
	for i := range entries {
		entries[i] = IndexEntry{Kind: EntryDocument, Label: fmt.Sprintf("exhibit-%02d.pdf", i), Pages: 1, StartPage: i + 4}
	}
	s := newSheet("index")
	fm := frontMatter{entries: entries, indexPages: 2, linesPerPage: MaxLinesPerIndexPage}
	fm.renderIndex(s)

	assert.Equal(t, 2, s.pdf.PageCount())
	assert.LessOrEqual(t, s.pdf.GetY(), s.bottom())
	// One more line would run into the bottom margin.
	assert.Greater(t, indexTop+float64(MaxLinesPerIndexPage+1)*indexLineH, s.bottom())
}
