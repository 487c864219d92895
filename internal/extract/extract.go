// Package extract turns raw evidence bytes into text and analysis payloads.
// Each content type has a Strategy; an ordered table of Rules decides which
// one applies to a given file.
package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/Lllllllleong/casebinder/internal/models"
	"github.com/Lllllllleong/casebinder/internal/oracle"
)

var (
	ErrPayloadTooLarge  = errors.New("payload exceeds size limit")
	ErrUnsupportedType  = errors.New("unsupported content type")
	ErrUnrecoverablePDF = errors.New("pdf could not be repaired")
)

// Input is one evidence file as uploaded.
type Input struct {
	Filename string
	MIMEType string
	Data     []byte
}

// Ext returns the lower-cased filename extension including the dot.
func (in Input) Ext() string {
	return strings.ToLower(filepath.Ext(in.Filename))
}

// Result is what a strategy produced for one file.
type Result struct {
	ContentType models.ContentType
	MIMEType    string
	// Text is the extracted text used downstream (search, chat, binder
	// layout). It may be empty for PDFs and images.
	Text string
	// Payload is what gets submitted for analysis.
	Payload oracle.Content
	// Body holds the bytes the binder lays out: sanitized PDF bytes or the
	// original image bytes. Nil for text-like content.
	Body []byte
	// PageCount is the measured page count, 0 when unknown.
	PageCount int
}

// Env carries the collaborators strategies may call.
type Env struct {
	Oracle        oracle.Oracle
	Sanitizer     Sanitizer
	MaxAudioBytes int64
	Logger        *slog.Logger
}

// Strategy extracts content for one resolved content type.
type Strategy func(ctx context.Context, env *Env, in Input) (*Result, error)

// Rule pairs a predicate with the strategy used when it matches.
type Rule struct {
	Name     string
	Type     models.ContentType
	Match    func(Input) bool
	Strategy Strategy
}

// audioMIMEByExt lists containers whose declared type is often wrong
// (video/mp4 for voice memos, application/octet-stream from browsers).
var audioMIMEByExt = map[string]string{
	".m4a":  "audio/mp4",
	".webm": "audio/webm",
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".ogg":  "audio/ogg",
	".aac":  "audio/aac",
}

var imageMIMEByExt = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
}

const docxMIME = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

var textExts = map[string]bool{".txt": true, ".md": true, ".csv": true, ".log": true, ".eml": true, ".json": true}

// DefaultRules is the dispatch table, consulted in order. Extension
// overrides for audio come first so they beat an unreliable declared type.
func DefaultRules() []Rule {
	return []Rule{
		{Name: "audio-extension", Type: models.ContentAudio, Strategy: extractAudio, Match: func(in Input) bool {
			_, ok := audioMIMEByExt[in.Ext()]
			return ok
		}},
		{Name: "pdf", Type: models.ContentPDF, Strategy: extractPDF, Match: func(in Input) bool {
			return mediaType(in.MIMEType) == "application/pdf" || in.Ext() == ".pdf"
		}},
		{Name: "image", Type: models.ContentImage, Strategy: extractImage, Match: func(in Input) bool {
			_, ok := imageMIMEByExt[in.Ext()]
			return ok || strings.HasPrefix(mediaType(in.MIMEType), "image/")
		}},
		{Name: "word", Type: models.ContentWord, Strategy: extractWord, Match: func(in Input) bool {
			return mediaType(in.MIMEType) == docxMIME || in.Ext() == ".docx"
		}},
		{Name: "audio", Type: models.ContentAudio, Strategy: extractAudio, Match: func(in Input) bool {
			return strings.HasPrefix(mediaType(in.MIMEType), "audio/")
		}},
		{Name: "text", Type: models.ContentText, Strategy: extractText, Match: func(in Input) bool {
			return strings.HasPrefix(mediaType(in.MIMEType), "text/") || textExts[in.Ext()]
		}},
	}
}

// Extractor resolves a file against its rule table and runs the strategy.
type Extractor struct {
	rules []Rule
	env   Env
}

// New builds an Extractor. With no rules, DefaultRules is used.
func New(env Env, rules ...Rule) *Extractor {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	if env.Logger == nil {
		env.Logger = slog.Default()
	}
	return &Extractor{rules: rules, env: env}
}

// Resolve returns the first rule matching in. Files without a usable
// declared type are sniffed first.
func (x *Extractor) Resolve(in Input) (Rule, Input, bool) {
	in = withSniffedType(in)
	for _, r := range x.rules {
		if r.Match(in) {
			return r, in, true
		}
	}
	return Rule{}, in, false
}

// Extract resolves in and runs the matching strategy.
func (x *Extractor) Extract(ctx context.Context, in Input) (*Result, error) {
	rule, in, ok := x.Resolve(in)
	if !ok {
		return nil, fmt.Errorf("%s (%s): %w", in.Filename, in.MIMEType, ErrUnsupportedType)
	}
	x.env.Logger.Debug("Resolved content type.", "filename", in.Filename, "rule", rule.Name, "contentType", rule.Type)
	res, err := rule.Strategy(ctx, &x.env, in)
	if err != nil {
		return nil, err
	}
	res.ContentType = rule.Type
	return res, nil
}

// ResolveType reports the content type the default table assigns to a file,
// or "" when nothing matches.
func ResolveType(filename, mimeType string) models.ContentType {
	in := withSniffedType(Input{Filename: filename, MIMEType: mimeType})
	for _, r := range DefaultRules() {
		if r.Match(in) {
			return r.Type
		}
	}
	return ""
}

func withSniffedType(in Input) Input {
	mt := mediaType(in.MIMEType)
	if (mt == "" || mt == "application/octet-stream") && len(in.Data) > 0 {
		in.MIMEType = http.DetectContentType(in.Data)
	}
	return in
}

// mediaType strips parameters such as charset and lower-cases the type.
func mediaType(mimeType string) string {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if idx := strings.Index(mimeType, ";"); idx != -1 {
		mimeType = strings.TrimSpace(mimeType[:idx])
	}
	return mimeType
}
