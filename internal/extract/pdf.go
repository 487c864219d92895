package extract

import (
	"bytes"
	"fmt"
	"log/slog"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// Sanitizer repairs PDF bytes before they are analyzed or bound.
type Sanitizer interface {
	Sanitize(data []byte) ([]byte, error)
}

// PDFSanitizer rebuilds PDFs with pdfcpu. A deep rebuild copies every page
// into a fresh document, dropping the original xref and metadata. When that
// fails the loaded document is simply written back out.
type PDFSanitizer struct {
	logger *slog.Logger
}

var _ Sanitizer = (*PDFSanitizer)(nil)

func NewPDFSanitizer(logger *slog.Logger) *PDFSanitizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &PDFSanitizer{logger: logger}
}

// NewConfig returns a relaxed pdfcpu configuration. pdfcpu mutates the
// configuration it is handed, so every operation gets its own.
func NewConfig() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

func (s *PDFSanitizer) Sanitize(data []byte) ([]byte, error) {
	out, err := s.deep(data)
	if err != nil {
		s.logger.Warn("Deep PDF reconstruction failed; trying shallow rewrite.", "error", err)
		out, err = s.shallow(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnrecoverablePDF, err)
		}
	}
	pages, err := PageCount(out)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnrecoverablePDF, err)
	}
	if pages == 0 {
		return nil, fmt.Errorf("%w: document has no pages", ErrUnrecoverablePDF)
	}
	return out, nil
}

func (s *PDFSanitizer) deep(data []byte) (out []byte, err error) {
	defer recoverInto(&err)
	var buf bytes.Buffer
	if err := api.Collect(bytes.NewReader(data), &buf, []string{"1-"}, NewConfig()); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *PDFSanitizer) shallow(data []byte) (out []byte, err error) {
	defer recoverInto(&err)
	ctx, err := api.ReadContext(bytes.NewReader(data), NewConfig())
	if err != nil {
		return nil, err
	}
	if ctx.PageCount == 0 {
		return nil, fmt.Errorf("document has no pages")
	}
	var buf bytes.Buffer
	if err := api.WriteContext(ctx, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// PageCount returns the number of pages in a PDF.
func PageCount(data []byte) (n int, err error) {
	defer recoverInto(&err)
	return api.PageCount(bytes.NewReader(data), NewConfig())
}

// recoverInto turns a pdfcpu panic on malformed input into an error.
func recoverInto(err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("pdfcpu panic: %v", r)
	}
}
