package binder

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Lllllllleong/casebinder/internal/models"
)

func docEntries(pages ...int) []IndexEntry {
	out := make([]IndexEntry, len(pages))
	for i, p := range pages {
		out[i] = IndexEntry{Kind: EntryDocument, Pages: p}
	}
	return out
}

func TestIndexPageCount(t *testing.T) {
	tests := []struct {
		name    string
		entries []IndexEntry
		lines   int
		want    int
	}{
		{"empty", nil, 30, 0},
		{"one entry", docEntries(4), 30, 1},
		{"exactly full", docEntries(make([]int, 30)...), 30, 1},
		{"one over", docEntries(make([]int, 31)...), 30, 2},
		{"section header takes two lines", append([]IndexEntry{{Kind: EntrySection}}, docEntries(make([]int, 28)...)...), 30, 1},
		{"section header tips over", append([]IndexEntry{{Kind: EntrySection}}, docEntries(make([]int, 29)...)...), 30, 2},
		{"default capacity", docEntries(make([]int, 61)...), 0, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IndexPageCount(tt.entries, tt.lines))
		})
	}
}

func TestAssignStartPages(t *testing.T) {
	pages := []int{3, 1, 7, 2, 1}
	for _, l := range []int{1, 2, 3, 30} {
		entries := append([]IndexEntry{{Kind: EntrySection, Pages: 1}}, docEntries(pages...)...)
		indexPages := IndexPageCount(entries, l)
		n, sections := len(entries), 1
		assert.Equal(t, (n+sections+l-1)/l, indexPages)

		total := AssignStartPages(entries, indexPages)

		assert.Equal(t, 1+indexPages+1, entries[0].StartPage)
		for i := 1; i < len(entries); i++ {
			assert.Equal(t, entries[i-1].StartPage+entries[i-1].Pages, entries[i].StartPage)
		}
		last := entries[len(entries)-1]
		assert.Equal(t, last.StartPage+last.Pages-1, total)
		assert.Equal(t, 1+indexPages+1+3+1+7+2+1, total)
	}
}

func TestEstimate_UsesRecordedPageCounts(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	docs := []models.Document{
		{ID: "b", Filename: "b.pdf", PageCount: 12, UploadedAt: base.Add(time.Hour)},
		{ID: "a", Filename: "a.txt", UploadedAt: base},
	}
	entries, indexPages, total := Estimate(docs, nil, 30)

	assert.Equal(t, 1, indexPages)
	assert.Equal(t, "a.txt", entries[0].Label)
	assert.Equal(t, 3, entries[0].StartPage)
	assert.Equal(t, 4, entries[1].StartPage)
	assert.Equal(t, 15, total)
}

func TestBoundLines(t *testing.T) {
	tests := []struct {
		name string
		in   int
		want int
	}{
		{"unset", 0, DefaultLinesPerIndexPage},
		{"negative", -3, DefaultLinesPerIndexPage},
		{"small", 4, 4},
		{"exact max", MaxLinesPerIndexPage, MaxLinesPerIndexPage},
		{"too many", 50, MaxLinesPerIndexPage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, boundLines(tt.in))
		})
	}
	assert.Equal(t, 35, MaxLinesPerIndexPage)
}

func TestNew_ClampsLinesPerIndexPage(t *testing.T) {
	c := New(nil, nil, Options{LinesPerIndexPage: 50}, nil)
	assert.Equal(t, MaxLinesPerIndexPage, c.opts.LinesPerIndexPage)

	docs := make([]models.Document, 40)
	for i := range docs {
		docs[i] = models.Document{ID: string(rune('a' + i))}
	}
	_, indexPages, _ := Estimate(docs, nil, 50)
	assert.Equal(t, 2, indexPages)
}
