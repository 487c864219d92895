package binder

import (
	"math"
	"time"

	"github.com/Lllllllleong/casebinder/internal/models"
)

// DefaultLinesPerIndexPage is how many index lines go on one index page.
const DefaultLinesPerIndexPage = 30

// MaxLinesPerIndexPage is the most index lines that fit between the index
// heading and the bottom margin of an A4 page.
var MaxLinesPerIndexPage = int(math.Floor((a4Height - pageMargin - indexTop) / indexLineH))

// boundLines maps a requested lines-per-page value onto one the index
// layout can honor.
func boundLines(l int) int {
	switch {
	case l <= 0:
		return DefaultLinesPerIndexPage
	case l > MaxLinesPerIndexPage:
		return MaxLinesPerIndexPage
	}
	return l
}

type EntryKind int

const (
	EntrySection EntryKind = iota
	EntryDocument
)

// IndexEntry describes one laid-out item. It only lives for the duration of
// a compile.
type IndexEntry struct {
	Kind      EntryKind
	Label     string
	Pages     int
	Date      time.Time
	StartPage int
	// Failed is set when the item was replaced by a placeholder page.
	Failed bool
}

// lines is the vertical space the entry takes in the index. Section headers
// are preceded by a spacer line.
func (e IndexEntry) lines() int {
	if e.Kind == EntrySection {
		return 2
	}
	return 1
}

// IndexPageCount returns ceil((len(entries) + sections) / linesPerPage): one
// line per entry plus one extra line per section header.
func IndexPageCount(entries []IndexEntry, linesPerPage int) int {
	if linesPerPage <= 0 {
		linesPerPage = DefaultLinesPerIndexPage
	}
	total := 0
	for _, e := range entries {
		total += e.lines()
	}
	return (total + linesPerPage - 1) / linesPerPage
}

// AssignStartPages sets StartPage on every entry, starting right after the
// cover and the index, and returns the total page count of the binder.
func AssignStartPages(entries []IndexEntry, indexPages int) int {
	next := 1 + indexPages + 1
	for i := range entries {
		entries[i].StartPage = next
		next += entries[i].Pages
	}
	return next - 1
}

// Estimate projects the index without laying anything out, using each
// document's recorded page count (default 1) and one page per section.
func Estimate(docs []models.Document, sections []models.Section, linesPerPage int) (entries []IndexEntry, indexPages, totalPages int) {
	linesPerPage = boundLines(linesPerPage)
	for _, it := range Order(docs, sections) {
		if it.IsSection() {
			entries = append(entries, IndexEntry{Kind: EntrySection, Label: it.Section.Name, Pages: 1})
			continue
		}
		d := it.Document
		entries = append(entries, IndexEntry{Kind: EntryDocument, Label: d.Filename, Pages: d.PageCountOrDefault(), Date: d.UploadedAt})
	}
	indexPages = IndexPageCount(entries, linesPerPage)
	totalPages = AssignStartPages(entries, indexPages)
	return entries, indexPages, totalPages
}
