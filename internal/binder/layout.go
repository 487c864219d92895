package binder

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf/v2"
)

// Page geometry in millimetres (A4 portrait).
const (
	pageMargin  = 20.0
	fontFamily  = "Helvetica"
	bodySize    = 11.0
	bodyLineH   = 5.5
	headingSize = 13.0
	headingH    = 9.0
	indexLineH  = 7.0
	indexGap    = 2.0
	a4Height    = 297.0

	// indexTop is where the first index line starts below the index heading.
	indexTop = pageMargin + headingH + indexGap
	placeholder = "Error loading file: %s"
	emptyText   = "(No text content)"
)

// sheet wraps a gofpdf document with the cp1252 translator its core fonts need.
type sheet struct {
	pdf *gofpdf.Fpdf
	tr  func(string) string
}

func newSheet(title string) *sheet {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(false, pageMargin)
	pdf.SetTitle(title, true)
	pdf.SetCreator("casebinder", false)
	return &sheet{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}
}

func (s *sheet) width(text string) float64 {
	return s.pdf.GetStringWidth(s.tr(text))
}

func (s *sheet) contentWidth() float64 {
	w, _ := s.pdf.GetPageSize()
	left, _, right, _ := s.pdf.GetMargins()
	return w - left - right
}

func (s *sheet) bottom() float64 {
	_, h := s.pdf.GetPageSize()
	return h - pageMargin
}

func (s *sheet) heading(text string) {
	s.pdf.SetFont(fontFamily, "B", headingSize)
	s.pdf.CellFormat(0, headingH, s.tr(fitText(text, s.contentWidth(), s.width)), "", 1, "L", false, 0, "")
	s.pdf.SetFont(fontFamily, "", bodySize)
}

// line writes one line of body text, starting a new page when the current
// one is full.
func (s *sheet) line(text string) {
	if s.pdf.GetY()+bodyLineH > s.bottom() {
		s.pdf.AddPage()
	}
	s.pdf.CellFormat(0, bodyLineH, s.tr(text), "", 1, "L", false, 0, "")
}

// bytes finalizes the document and returns it with its page count.
func (s *sheet) bytes() ([]byte, int, error) {
	var buf bytes.Buffer
	if err := s.pdf.Output(&buf); err != nil {
		return nil, 0, err
	}
	return buf.Bytes(), s.pdf.PageCount(), nil
}

// wrapText breaks text into lines no wider than maxWidth using a greedy
// fill. Source lines stay separate and blank source lines come out as
// blank lines. Words wider than a line are split.
func wrapText(text string, maxWidth float64, width func(string) float64) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.TrimRight(text, " \t\n")
	var out []string
	for _, raw := range strings.Split(text, "\n") {
		words := strings.Fields(raw)
		if len(words) == 0 {
			out = append(out, "")
			continue
		}
		cur := ""
		for _, w := range words {
			for width(w) > maxWidth {
				if cur != "" {
					out = append(out, cur)
					cur = ""
				}
				var head string
				head, w = splitToFit(w, maxWidth, width)
				out = append(out, head)
			}
			switch {
			case cur == "":
				cur = w
			case width(cur+" "+w) <= maxWidth:
				cur += " " + w
			default:
				out = append(out, cur)
				cur = w
			}
		}
		if cur != "" {
			out = append(out, cur)
		}
	}
	return out
}

// splitToFit returns the longest prefix of word (at least one rune) that fits.
func splitToFit(word string, maxWidth float64, width func(string) float64) (string, string) {
	runes := []rune(word)
	n := 1
	for n < len(runes) && width(string(runes[:n+1])) <= maxWidth {
		n++
	}
	return string(runes[:n]), string(runes[n:])
}

// fitText truncates text with an ellipsis so it fits maxWidth.
func fitText(text string, maxWidth float64, width func(string) float64) string {
	if width(text) <= maxWidth {
		return text
	}
	runes := []rune(text)
	for n := len(runes) - 1; n > 0; n-- {
		if t := string(runes[:n]) + "..."; width(t) <= maxWidth {
			return t
		}
	}
	return "..."
}

func renderSection(name, summary string) ([]byte, int, error) {
	s := newSheet(name)
	s.pdf.AddPage()
	_, h := s.pdf.GetPageSize()
	s.pdf.SetY(h / 3)
	s.pdf.SetFont(fontFamily, "B", 22)
	s.pdf.CellFormat(0, 12, s.tr(fitText(name, s.contentWidth(), s.width)), "", 1, "C", false, 0, "")
	s.pdf.SetFont(fontFamily, "I", bodySize)
	s.pdf.Ln(4)
	// A section header is exactly one page; a long summary is cut off.
	for _, l := range wrapText(summary, s.contentWidth(), s.width) {
		if s.pdf.GetY()+bodyLineH > s.bottom() {
			break
		}
		s.pdf.CellFormat(0, bodyLineH, s.tr(l), "", 1, "C", false, 0, "")
	}
	return s.bytes()
}

func renderText(filename, text string) ([]byte, int, error) {
	s := newSheet(filename)
	s.pdf.AddPage()
	s.heading(filename)
	if strings.TrimSpace(text) == "" {
		text = emptyText
	}
	for _, l := range wrapText(text, s.contentWidth(), s.width) {
		s.line(l)
	}
	return s.bytes()
}

// imageTypes maps MIME types to the image formats gofpdf can embed.
var imageTypes = map[string]string{
	"image/png":  "PNG",
	"image/jpeg": "JPG",
	"image/jpg":  "JPG",
	"image/gif":  "GIF",
}

// renderImage places the image on a single page, scaled to the area below
// the heading while keeping its aspect ratio.
func renderImage(filename, mimeType string, data []byte) ([]byte, int, error) {
	imageType, ok := imageTypes[mimeType]
	if !ok {
		return nil, 0, fmt.Errorf("image type %q cannot be embedded", mimeType)
	}
	s := newSheet(filename)
	s.pdf.AddPage()
	s.heading(filename)

	opts := gofpdf.ImageOptions{ImageType: imageType}
	info := s.pdf.RegisterImageOptionsReader(filename, opts, bytes.NewReader(data))
	if info == nil || s.pdf.Err() {
		return nil, 0, fmt.Errorf("register image: %w", s.pdf.Error())
	}
	w, h := info.Width(), info.Height()
	if w <= 0 || h <= 0 {
		return nil, 0, fmt.Errorf("image %s has no size", filename)
	}
	top := s.pdf.GetY()
	maxW, maxH := s.contentWidth(), s.bottom()-top
	scale := min(maxW/w, maxH/h)
	w, h = w*scale, h*scale
	x := pageMargin + (maxW-w)/2
	s.pdf.ImageOptions(filename, x, top, w, h, false, opts, 0, "")
	return s.bytes()
}

func renderPlaceholder(filename string) ([]byte, int, error) {
	s := newSheet(filename)
	s.pdf.AddPage()
	_, h := s.pdf.GetPageSize()
	s.pdf.SetY(h / 2)
	s.pdf.SetFont(fontFamily, "B", 14)
	s.pdf.SetTextColor(160, 0, 0)
	msg := fmt.Sprintf(placeholder, filename)
	s.pdf.CellFormat(0, 10, s.tr(fitText(msg, s.contentWidth(), s.width)), "", 1, "C", false, 0, "")
	return s.bytes()
}

// frontMatter is the cover and index, rendered as one document.
type frontMatter struct {
	title        string
	caseName     string
	generated    time.Time
	documents    int
	totalPages   int
	entries      []IndexEntry
	indexPages   int
	linesPerPage int
}

func (fm frontMatter) render() ([]byte, int, error) {
	s := newSheet(fm.title)

	s.pdf.AddPage()
	_, h := s.pdf.GetPageSize()
	s.pdf.SetY(h / 3)
	s.pdf.SetFont(fontFamily, "B", 26)
	s.pdf.CellFormat(0, 14, s.tr(fitText(fm.title, s.contentWidth(), s.width)), "", 1, "C", false, 0, "")
	s.pdf.SetFont(fontFamily, "", 14)
	if fm.caseName != "" {
		s.pdf.CellFormat(0, 9, s.tr(fitText(fm.caseName, s.contentWidth(), s.width)), "", 1, "C", false, 0, "")
	}
	s.pdf.Ln(6)
	s.pdf.SetFont(fontFamily, "", bodySize)
	for _, l := range []string{
		"Generated " + fm.generated.Format("2 January 2006"),
		fmt.Sprintf("%d documents, %d pages", fm.documents, fm.totalPages),
	} {
		s.pdf.CellFormat(0, bodyLineH+1, s.tr(l), "", 1, "C", false, 0, "")
	}

	fm.renderIndex(s)
	return s.bytes()
}

// renderIndex writes the entries as a stream of lines, linesPerPage to a
// page. A section header is a blank spacer line followed by its title, and
// the two may land on different pages, matching IndexPageCount.
func (fm frontMatter) renderIndex(s *sheet) {
	const (
		dateW = 32.0
		pageW = 22.0
	)
	labelW := s.contentWidth() - dateW - pageW
	lineNo := 0
	emit := func(write func()) {
		if lineNo%fm.linesPerPage == 0 {
			s.pdf.AddPage()
			s.pdf.SetFont(fontFamily, "B", headingSize)
			title := "Index"
			if page := lineNo/fm.linesPerPage + 1; fm.indexPages > 1 {
				title = fmt.Sprintf("Index (%d of %d)", page, fm.indexPages)
			}
			s.pdf.CellFormat(0, headingH, s.tr(title), "", 1, "L", false, 0, "")
			s.pdf.Ln(indexGap)
		}
		write()
		lineNo++
	}
	for _, e := range fm.entries {
		if e.Kind == EntrySection {
			emit(func() { s.pdf.Ln(indexLineH) })
			emit(func() {
				s.pdf.SetFont(fontFamily, "B", bodySize)
				s.pdf.CellFormat(labelW+dateW, indexLineH, s.tr(fitText(e.Label, labelW+dateW, s.width)), "", 0, "L", false, 0, "")
				s.pdf.CellFormat(pageW, indexLineH, fmt.Sprint(e.StartPage), "", 1, "R", false, 0, "")
			})
			continue
		}
		emit(func() {
			s.pdf.SetFont(fontFamily, "", bodySize)
			label := "    " + e.Label
			if e.Failed {
				label += " (unavailable)"
			}
			date := ""
			if !e.Date.IsZero() {
				date = e.Date.Format("2006-01-02")
			}
			s.pdf.CellFormat(labelW, indexLineH, s.tr(fitText(label, labelW, s.width)), "", 0, "L", false, 0, "")
			s.pdf.CellFormat(dateW, indexLineH, date, "", 0, "L", false, 0, "")
			s.pdf.CellFormat(pageW, indexLineH, fmt.Sprint(e.StartPage), "", 1, "R", false, 0, "")
		})
	}
}
