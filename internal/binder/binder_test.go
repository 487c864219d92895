package binder

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"
	"time"

	"github.com/jung-kurt/gofpdf/v2"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/casebinder/internal/extract"
	"github.com/Lllllllleong/casebinder/internal/models"
)

// mapSource serves document bytes by id.
type mapSource map[string][]byte

func (m mapSource) Open(_ context.Context, d models.Document) ([]byte, error) {
	data, ok := m[d.ID]
	if !ok {
		return nil, fmt.Errorf("object for %s not found", d.ID)
	}
	return data, nil
}

func makePDF(t *testing.T, pages int) []byte {
	t.Helper()
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Helvetica", "", 12)
	for i := 1; i <= pages; i++ {
		pdf.AddPage()
		pdf.CellFormat(0, 10, fmt.Sprintf("Exhibit page %d", i), "", 1, "L", false, 0, "")
	}
	var buf bytes.Buffer
	require.NoError(t, pdf.Output(&buf))
	return buf.Bytes()
}

func makePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func text(s string) *string { return &s }

func pageCount(t *testing.T, data []byte) int {
	t.Helper()
	n, err := extract.PageCount(data)
	require.NoError(t, err)
	return n
}

// stamps returns the decoded content of every form XObject in data, which
// is where page stamps are drawn.
func stamps(t *testing.T, data []byte) string {
	t.Helper()
	ctx, err := api.ReadAndValidate(bytes.NewReader(data), extract.NewConfig())
	require.NoError(t, err)
	var sb strings.Builder
	for _, entry := range ctx.XRefTable.Table {
		if entry == nil || entry.Free || entry.Object == nil {
			continue
		}
		sd, ok := entry.Object.(types.StreamDict)
		if !ok {
			continue
		}
		if st := sd.Dict.Subtype(); st == nil || *st != "Form" {
			continue
		}
		require.NoError(t, sd.Decode())
		sb.Write(sd.Content)
		sb.WriteByte('\n')
	}
	return sb.String()
}

func newCompiler(src ContentSource, opts Options) *Compiler {
	c := New(src, extract.NewPDFSanitizer(nil), opts, nil)
	c.now = func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) }
	return c
}

func TestCompile_ScenarioC(t *testing.T) {
	base := time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)
	long := strings.Repeat("The respondent failed to follow the documented procedure. ", 120)
	docs := []models.Document{
		{ID: "d1", Filename: "dismissal.pdf", ContentType: models.ContentPDF, UploadedAt: base},
		{ID: "d2", Filename: "notes.txt", ContentType: models.ContentText, Text: text("Meeting notes\n\nManager present."), UploadedAt: base.Add(time.Hour)},
		{ID: "d3", Filename: "photo.png", ContentType: models.ContentImage, MimeType: "image/png", UploadedAt: base.Add(2 * time.Hour)},
		{ID: "d4", Filename: "statement.docx", ContentType: models.ContentWord, Text: text(long), UploadedAt: base.Add(3 * time.Hour)},
		{ID: "d5", Filename: "call.m4a", ContentType: models.ContentAudio, Text: text("Speaker 1: hello"), UploadedAt: base.Add(4 * time.Hour)},
	}
	cs := models.Case{
		ID:        "case-c",
		Name:      "Smith v Acme",
		Documents: docs,
		Sections: []models.Section{
			{Name: "Correspondence", Summary: "Letters exchanged.", DocumentIDs: []string{"d1", "ghost-1"}},
			{Name: "Evidence", DocumentIDs: []string{"d2", "d3", "ghost-2"}},
			{Name: "Statements", DocumentIDs: []string{"d4", "ghost-3", "d5"}},
		},
	}
	src := mapSource{"d1": makePDF(t, 3), "d3": makePNG(t, 40, 30)}

	b, err := newCompiler(src, Options{}).Compile(context.Background(), cs)
	require.NoError(t, err)

	sections := 0
	for _, e := range b.Entries {
		if e.Kind == EntrySection {
			sections++
			assert.Equal(t, 1, e.Pages)
		}
		assert.False(t, e.Failed, e.Label)
	}
	assert.Equal(t, 3, sections)
	assert.Equal(t, 5, b.Documents())
	assert.Equal(t, 1, b.IndexPages)

	sum := 0
	for _, e := range b.Entries {
		sum += e.Pages
	}
	assert.Equal(t, 1+b.IndexPages+sum, b.TotalPages)
	assert.Equal(t, b.TotalPages, pageCount(t, b.PDF))

	drawn := stamps(t, b.PDF)
	assert.Contains(t, drawn, fmt.Sprintf("(Page 1 of %d)", b.TotalPages))
	assert.Contains(t, drawn, fmt.Sprintf("(Page %d of %d)", b.TotalPages, b.TotalPages))
	assert.NotContains(t, drawn, fmt.Sprintf("(Page %d of", b.TotalPages+1))

	byLabel := map[string]IndexEntry{}
	for _, e := range b.Entries {
		byLabel[e.Label] = e
	}
	assert.Equal(t, 3, byLabel["dismissal.pdf"].Pages)
	assert.Equal(t, 1, byLabel["photo.png"].Pages)
	assert.Greater(t, byLabel["statement.docx"].Pages, 1)
	assert.Equal(t, 3, b.Entries[0].StartPage)
}

func TestCompile_FailedItemsBecomePlaceholders(t *testing.T) {
	docs := []models.Document{
		{ID: "ok", Filename: "ok.txt", ContentType: models.ContentText, Text: text("fine")},
		{ID: "corrupt", Filename: "corrupt.pdf", ContentType: models.ContentPDF, Status: models.StatusError},
		{ID: "missing", Filename: "missing.png", ContentType: models.ContentImage},
		{ID: "odd", Filename: "archive.zip", MimeType: "application/zip", Status: models.StatusError},
	}
	src := mapSource{"corrupt": []byte("%PDF-1.4 not really")}

	b, err := newCompiler(src, Options{}).Compile(context.Background(), models.Case{ID: "c", Documents: docs})
	require.NoError(t, err)

	failed := 0
	for _, e := range b.Entries {
		if e.Failed {
			failed++
			assert.Equal(t, 1, e.Pages)
		}
	}
	assert.Equal(t, 3, failed)
	assert.Equal(t, 1+1+4, b.TotalPages)
	assert.Equal(t, b.TotalPages, pageCount(t, b.PDF))
}

func TestCompile_MultiPageIndex(t *testing.T) {
	var docs []models.Document
	base := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 11; i++ {
		docs = append(docs, models.Document{
			ID:          fmt.Sprintf("d%02d", i),
			Filename:    fmt.Sprintf("note-%02d.txt", i),
			ContentType: models.ContentText,
			Text:        text(fmt.Sprintf("note %d", i)),
			UploadedAt:  base.Add(time.Duration(i) * time.Minute),
		})
	}
	cs := models.Case{ID: "big", Documents: docs, Sections: []models.Section{
		{Name: "First", DocumentIDs: []string{"d00", "d01", "d02", "d03", "d04"}},
		{Name: "Second", DocumentIDs: []string{"d05", "d06", "d07", "d08", "d09", "d10"}},
	}}

	b, err := newCompiler(nil, Options{LinesPerIndexPage: 4}).Compile(context.Background(), cs)
	require.NoError(t, err)

	// 11 documents + 2 headers, each header one extra line: 15 lines.
	assert.Equal(t, 4, b.IndexPages)
	assert.Equal(t, 1+4+2+11, b.TotalPages)
	assert.Equal(t, 6, b.Entries[0].StartPage)
	assert.Equal(t, b.TotalPages, pageCount(t, b.PDF))
}

func TestCompile_EmptyCase(t *testing.T) {
	b, err := newCompiler(nil, Options{}).Compile(context.Background(), models.Case{ID: "empty"})
	require.NoError(t, err)
	assert.Zero(t, b.IndexPages)
	assert.Equal(t, 1, b.TotalPages)
	assert.Equal(t, 1, pageCount(t, b.PDF))
}

func TestStampPages_KeepsPageCount(t *testing.T) {
	in := makePDF(t, 3)
	out, err := stampPages(in)
	require.NoError(t, err)
	assert.Equal(t, 3, pageCount(t, out))

	drawn := stamps(t, out)
	for i := 1; i <= 3; i++ {
		assert.Contains(t, drawn, fmt.Sprintf("(Page %d of 3)", i))
	}
	assert.NotContains(t, stamps(t, in), "Page")
}
