// Package binder compiles a case into one paginated, indexed PDF.
//
// Compilation is two-pass. Pass 1 lays every item out on its own into a
// scratch arena and records how many pages it took. Pass 2 sizes the index
// from the entry count, assigns start pages, renders the cover and index,
// appends the arena verbatim and finally stamps "Page X of N" on every page.
package binder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/Lllllllleong/casebinder/internal/extract"
	"github.com/Lllllllleong/casebinder/internal/models"
)

const (
	DefaultTitle = "Case Binder"

	stampText = "Page %p of %P"
	stampDesc = "fontname:Helvetica, points:9, position:br, offset:-20 12, scalefactor:1 abs, rotation:0, fillcolor:#333333"
)

// ContentSource returns the original bytes of a document.
type ContentSource interface {
	Open(ctx context.Context, doc models.Document) ([]byte, error)
}

type Options struct {
	Title             string
	LinesPerIndexPage int
}

type Compiler struct {
	source    ContentSource
	sanitizer extract.Sanitizer
	opts      Options
	logger    *slog.Logger
	now       func() time.Time
}

func New(source ContentSource, sanitizer extract.Sanitizer, opts Options, logger *slog.Logger) *Compiler {
	if opts.Title == "" {
		opts.Title = DefaultTitle
	}
	if logger == nil {
		logger = slog.Default()
	}
	lines := boundLines(opts.LinesPerIndexPage)
	if opts.LinesPerIndexPage > lines {
		logger.Warn("Index lines per page exceeds what fits on a page. Clamping.", "requested", opts.LinesPerIndexPage, "max", lines)
	}
	opts.LinesPerIndexPage = lines
	return &Compiler{source: source, sanitizer: sanitizer, opts: opts, logger: logger, now: time.Now}
}

// Binder is a compiled binder.
type Binder struct {
	PDF        []byte
	Entries    []IndexEntry
	IndexPages int
	TotalPages int
}

// Documents returns the number of document entries in the index.
func (b *Binder) Documents() int {
	n := 0
	for _, e := range b.Entries {
		if e.Kind == EntryDocument {
			n++
		}
	}
	return n
}

// Compile builds the binder for c. Per-item failures become placeholder
// pages; an error is returned only when assembly itself fails.
func (c *Compiler) Compile(ctx context.Context, cs models.Case) (*Binder, error) {
	logCtx := c.logger.With("caseId", cs.ID)
	items := Order(cs.Documents, cs.Sections)
	logCtx.Info("Starting binder compilation.", "items", len(items), "sections", len(cs.Sections))

	// Pass 1: lay out every item and record its page count.
	arena := make([][]byte, len(items))
	entries := make([]IndexEntry, len(items))
	documents := 0
	for i, it := range items {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var err error
		arena[i], entries[i], err = c.layout(ctx, logCtx, it)
		if err != nil {
			return nil, err
		}
		if !it.IsSection() {
			documents++
		}
	}

	// Pass 2: size the index, number the entries, assemble and stamp.
	indexPages := IndexPageCount(entries, c.opts.LinesPerIndexPage)
	total := AssignStartPages(entries, indexPages)
	front, frontPages, err := frontMatter{
		title:        c.opts.Title,
		caseName:     cs.Name,
		generated:    c.now(),
		documents:    documents,
		totalPages:   total,
		entries:      entries,
		indexPages:   indexPages,
		linesPerPage: c.opts.LinesPerIndexPage,
	}.render()
	if err != nil {
		return nil, fmt.Errorf("render cover and index: %w", err)
	}
	if frontPages != 1+indexPages {
		return nil, fmt.Errorf("cover and index took %d pages, expected %d", frontPages, 1+indexPages)
	}

	merged, err := mergePDFs(append([][]byte{front}, arena...))
	if err != nil {
		return nil, fmt.Errorf("assemble binder: %w", err)
	}
	stamped, err := stampPages(merged)
	if err != nil {
		return nil, fmt.Errorf("stamp pages: %w", err)
	}
	pages, err := extract.PageCount(stamped)
	if err != nil {
		return nil, fmt.Errorf("count binder pages: %w", err)
	}
	if pages != total {
		return nil, fmt.Errorf("binder has %d pages, index expects %d", pages, total)
	}

	logCtx.Info("Binder compiled.", "indexPages", indexPages, "totalPages", total, "documents", documents)
	return &Binder{PDF: stamped, Entries: entries, IndexPages: indexPages, TotalPages: total}, nil
}

// layout renders one item, substituting a single placeholder page when the
// item cannot be rendered.
func (c *Compiler) layout(ctx context.Context, logCtx *slog.Logger, it Item) ([]byte, IndexEntry, error) {
	if it.IsSection() {
		entry := IndexEntry{Kind: EntrySection, Label: it.Section.Name}
		body, pages, err := guarded(func() ([]byte, int, error) {
			return renderSection(it.Section.Name, it.Section.Summary)
		})
		if err != nil {
			logCtx.Warn("Failed to render section header; using placeholder.", "section", it.Section.Name, "error", err)
			if body, err = placeholderPage(it.Section.Name); err != nil {
				return nil, entry, err
			}
			pages = 1
			entry.Failed = true
		}
		entry.Pages = pages
		return body, entry, nil
	}

	d := *it.Document
	entry := IndexEntry{Kind: EntryDocument, Label: d.Filename, Date: d.UploadedAt}
	body, pages, err := guarded(func() ([]byte, int, error) {
		return c.renderDocument(ctx, d)
	})
	if err == nil && pages < 1 {
		err = errors.New("document rendered no pages")
	}
	if err != nil {
		logCtx.Warn("Failed to lay out document; using placeholder.", "documentId", d.ID, "filename", d.Filename, "error", err)
		if body, err = placeholderPage(d.Filename); err != nil {
			return nil, entry, err
		}
		pages = 1
		entry.Failed = true
	}
	entry.Pages = pages
	return body, entry, nil
}

func (c *Compiler) renderDocument(ctx context.Context, d models.Document) ([]byte, int, error) {
	switch contentType(d) {
	case models.ContentPDF:
		data, err := c.open(ctx, d)
		if err != nil {
			return nil, 0, err
		}
		if c.sanitizer == nil {
			return nil, 0, errors.New("no sanitizer configured")
		}
		clean, err := c.sanitizer.Sanitize(data)
		if err != nil {
			return nil, 0, err
		}
		pages, err := extract.PageCount(clean)
		if err != nil {
			return nil, 0, err
		}
		return clean, pages, nil
	case models.ContentImage:
		data, err := c.open(ctx, d)
		if err != nil {
			return nil, 0, err
		}
		return renderImage(d.Filename, imageMIME(d), data)
	case models.ContentText, models.ContentWord, models.ContentAudio:
		text, err := c.documentText(ctx, d)
		if err != nil {
			return nil, 0, err
		}
		return renderText(d.Filename, text)
	}
	return nil, 0, fmt.Errorf("%s: %w", d.Filename, extract.ErrUnsupportedType)
}

// documentText prefers the text recorded at ingestion and falls back to
// converting the source for text and word files.
func (c *Compiler) documentText(ctx context.Context, d models.Document) (string, error) {
	if d.Text != nil {
		return *d.Text, nil
	}
	switch contentType(d) {
	case models.ContentText:
		data, err := c.open(ctx, d)
		if err != nil {
			return "", err
		}
		return string(data), nil
	case models.ContentWord:
		data, err := c.open(ctx, d)
		if err != nil {
			return "", err
		}
		return extract.DocxText(data)
	}
	// An empty document still gets a page.
	if d.Status == models.StatusReady {
		return "", nil
	}
	return "", fmt.Errorf("no transcript recorded for %s", d.Filename)
}

func (c *Compiler) open(ctx context.Context, d models.Document) ([]byte, error) {
	if c.source == nil {
		return nil, errors.New("no content source configured")
	}
	return c.source.Open(ctx, d)
}

func contentType(d models.Document) models.ContentType {
	if d.ContentType != models.ContentUnknown {
		return d.ContentType
	}
	return extract.ResolveType(d.Filename, d.MimeType)
}

func imageMIME(d models.Document) string {
	mt := strings.ToLower(strings.TrimSpace(d.MimeType))
	if _, ok := imageTypes[mt]; ok {
		return mt
	}
	switch {
	case strings.HasSuffix(strings.ToLower(d.Filename), ".png"):
		return "image/png"
	case strings.HasSuffix(strings.ToLower(d.Filename), ".gif"):
		return "image/gif"
	case strings.HasSuffix(strings.ToLower(d.Filename), ".jpg"), strings.HasSuffix(strings.ToLower(d.Filename), ".jpeg"):
		return "image/jpeg"
	}
	return mt
}

// guarded runs a layout step, converting a panic into an error.
func guarded(step func() ([]byte, int, error)) (body []byte, pages int, err error) {
	defer func() {
		if r := recover(); r != nil {
			body, pages, err = nil, 0, fmt.Errorf("layout panic: %v", r)
		}
	}()
	return step()
}

func placeholderPage(name string) ([]byte, error) {
	body, _, err := renderPlaceholder(name)
	if err != nil {
		return nil, fmt.Errorf("render placeholder for %s: %w", name, err)
	}
	return body, nil
}

func mergePDFs(parts [][]byte) (out []byte, err error) {
	if len(parts) == 1 {
		return parts[0], nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdfcpu panic: %v", r)
		}
	}()
	rsc := make([]io.ReadSeeker, len(parts))
	for i, p := range parts {
		rsc[i] = bytes.NewReader(p)
	}
	var buf bytes.Buffer
	if err := api.MergeRaw(rsc, &buf, false, extract.NewConfig()); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// stampPages writes "Page X of N" in the bottom right corner of every page.
func stampPages(in []byte) (out []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdfcpu panic: %v", r)
		}
	}()
	wm, err := api.TextWatermark(stampText, stampDesc, true, false, types.POINTS)
	if err != nil {
		return nil, fmt.Errorf("parse stamp: %w", err)
	}
	var buf bytes.Buffer
	if err := api.AddWatermarks(bytes.NewReader(in), &buf, nil, wm, extract.NewConfig()); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
