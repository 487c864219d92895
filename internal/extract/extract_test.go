package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jung-kurt/gofpdf/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/casebinder/internal/models"
	"github.com/Lllllllleong/casebinder/internal/oracle"
)

type fakeOracle struct {
	extractCalls    int
	transcribeCalls int
	text            string
	err             error
}

func (f *fakeOracle) Analyze(context.Context, oracle.Content) (*oracle.Analysis, error) {
	return &oracle.Analysis{}, nil
}

func (f *fakeOracle) Transcribe(_ context.Context, _ []byte, _ string) (string, error) {
	f.transcribeCalls++
	return f.text, f.err
}

func (f *fakeOracle) ExtractText(context.Context, oracle.Content) (string, error) {
	f.extractCalls++
	return f.text, f.err
}

type failingSanitizer struct{}

func (failingSanitizer) Sanitize([]byte) ([]byte, error) {
	return nil, fmt.Errorf("%w: encrypted", ErrUnrecoverablePDF)
}

func makePDF(t *testing.T, pages int) []byte {
	t.Helper()
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Helvetica", "", 12)
	for i := 1; i <= pages; i++ {
		pdf.AddPage()
		pdf.CellFormat(0, 10, fmt.Sprintf("Page body %d", i), "", 1, "L", false, 0, "")
	}
	var buf bytes.Buffer
	require.NoError(t, pdf.Output(&buf))
	return buf.Bytes()
}

func makeDocx(t *testing.T, body string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?>` +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
		body + `</w:body></w:document>`))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestResolve_DispatchTable(t *testing.T) {
	x := New(Env{})
	tests := []struct {
		name     string
		filename string
		mimeType string
		data     []byte
		want     models.ContentType
	}{
		{"voice memo declared as video", "memo.m4a", "video/mp4", nil, models.ContentAudio},
		{"webm declared as octet-stream", "call.webm", "application/octet-stream", nil, models.ContentAudio},
		{"declared audio", "call", "audio/mpeg", nil, models.ContentAudio},
		{"pdf by type", "scan", "application/pdf", nil, models.ContentPDF},
		{"pdf by extension", "scan.PDF", "", nil, models.ContentPDF},
		{"image with charset noise", "photo", "image/jpeg; q=1", nil, models.ContentImage},
		{"image by extension", "photo.png", "", nil, models.ContentImage},
		{"docx", "letter.docx", "", nil, models.ContentWord},
		{"plain text", "notes.txt", "text/plain; charset=utf-8", nil, models.ContentText},
		{"sniffed text", "notes", "application/octet-stream", []byte("hello there"), models.ContentText},
		{"sniffed pdf", "upload", "", []byte("%PDF-1.4\n"), models.ContentPDF},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule, _, ok := x.Resolve(Input{Filename: tt.filename, MIMEType: tt.mimeType, Data: tt.data})
			require.True(t, ok)
			assert.Equal(t, tt.want, rule.Type)
		})
	}
}

func TestExtract_UnsupportedType(t *testing.T) {
	x := New(Env{})
	_, err := x.Extract(context.Background(), Input{Filename: "archive.zip", MIMEType: "application/zip"})
	assert.ErrorIs(t, err, ErrUnsupportedType)
	assert.Equal(t, models.ContentType(""), ResolveType("archive.zip", "application/zip"))
}

func TestExtract_PlainText(t *testing.T) {
	x := New(Env{})
	res, err := x.Extract(context.Background(), Input{Filename: "notes.txt", MIMEType: "text/plain", Data: []byte("\xef\xbb\xbfline one\r\n\r\nline two")})
	require.NoError(t, err)
	assert.Equal(t, models.ContentText, res.ContentType)
	assert.Equal(t, "line one\n\nline two", res.Text)
	assert.Equal(t, res.Text, res.Payload.Text)
	assert.False(t, res.Payload.HasBlob())
}

func TestExtract_Word(t *testing.T) {
	data := makeDocx(t, `<w:p><w:r><w:t>Dear Sam,</w:t></w:r></w:p>`+
		`<w:p></w:p>`+
		`<w:p><w:r><w:t xml:space="preserve">You are </w:t></w:r><w:r><w:t>dismissed.</w:t></w:r></w:p>`)
	x := New(Env{})
	res, err := x.Extract(context.Background(), Input{Filename: "letter.docx", Data: data})
	require.NoError(t, err)
	assert.Equal(t, models.ContentWord, res.ContentType)
	assert.Equal(t, "Dear Sam,\n\nYou are dismissed.", res.Text)
}

func TestExtract_WordCorruptIsExtractionError(t *testing.T) {
	x := New(Env{})
	_, err := x.Extract(context.Background(), Input{Filename: "letter.docx", Data: []byte("not a zip")})
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrPayloadTooLarge))
	assert.False(t, errors.Is(err, ErrUnsupportedType))
}

func TestExtract_AudioCeiling(t *testing.T) {
	o := &fakeOracle{text: "transcript"}
	x := New(Env{Oracle: o, MaxAudioBytes: 4})

	_, err := x.Extract(context.Background(), Input{Filename: "call.mp3", Data: []byte("12345")})
	assert.ErrorIs(t, err, ErrPayloadTooLarge)
	assert.Zero(t, o.transcribeCalls)

	res, err := x.Extract(context.Background(), Input{Filename: "call.mp3", Data: []byte("1234")})
	require.NoError(t, err)
	assert.Equal(t, "transcript", res.Text)
	assert.Equal(t, "audio/mpeg", res.MIMEType)
	assert.Equal(t, 1, o.transcribeCalls)
}

func TestExtract_ImageUsesOCR(t *testing.T) {
	o := &fakeOracle{text: "Signed J. Smith"}
	x := New(Env{Oracle: o})
	res, err := x.Extract(context.Background(), Input{Filename: "sig.png", Data: []byte{0x89, 'P', 'N', 'G'}})
	require.NoError(t, err)
	assert.Equal(t, "Signed J. Smith", res.Text)
	assert.Equal(t, "image/png", res.Payload.MIMEType)
	assert.True(t, res.Payload.HasBlob())
}

func TestExtract_PDFSanitizeFailureSkipsOracle(t *testing.T) {
	o := &fakeOracle{}
	x := New(Env{Oracle: o, Sanitizer: failingSanitizer{}})
	_, err := x.Extract(context.Background(), Input{Filename: "locked.pdf", Data: []byte("%PDF-1.7 junk")})
	assert.ErrorIs(t, err, ErrUnrecoverablePDF)
	assert.Zero(t, o.extractCalls)
}

func TestExtract_PDFTextFailureIsNotFatal(t *testing.T) {
	o := &fakeOracle{err: oracle.Retriable("extractText", errors.New("timeout"))}
	x := New(Env{Oracle: o, Sanitizer: NewPDFSanitizer(nil)})
	res, err := x.Extract(context.Background(), Input{Filename: "report.pdf", MIMEType: "application/pdf", Data: makePDF(t, 2)})
	require.NoError(t, err)
	assert.Equal(t, 2, res.PageCount)
	assert.Empty(t, res.Text)
	assert.True(t, res.Payload.HasBlob())
}

func TestPDFSanitizer(t *testing.T) {
	s := NewPDFSanitizer(nil)

	out, err := s.Sanitize(makePDF(t, 3))
	require.NoError(t, err)
	n, err := PageCount(out)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	_, err = s.Sanitize([]byte("this is not a pdf"))
	assert.ErrorIs(t, err, ErrUnrecoverablePDF)

	_, err = s.Sanitize(nil)
	assert.ErrorIs(t, err, ErrUnrecoverablePDF)
}
