package extract

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/Lllllllleong/casebinder/internal/oracle"
)

// extractPDF sanitizes first so no oracle call is spent on a file that
// cannot be repaired. Raw text extraction is best effort.
func extractPDF(ctx context.Context, env *Env, in Input) (*Result, error) {
	if env.Sanitizer == nil {
		return nil, fmt.Errorf("sanitize %s: no sanitizer configured", in.Filename)
	}
	clean, err := env.Sanitizer.Sanitize(in.Data)
	if err != nil {
		return nil, fmt.Errorf("sanitize %s: %w", in.Filename, err)
	}
	pages, err := PageCount(clean)
	if err != nil {
		pages = 0
	}
	res := &Result{
		MIMEType:  "application/pdf",
		Body:      clean,
		PageCount: pages,
		Payload:   oracle.Content{Blob: clean, MIMEType: "application/pdf", Filename: in.Filename},
	}
	text, err := env.Oracle.ExtractText(ctx, res.Payload)
	if err != nil {
		env.Logger.Warn("Raw text extraction failed; continuing without text.", "filename", in.Filename, "error", err)
		return res, nil
	}
	res.Text = text
	return res, nil
}

func extractImage(ctx context.Context, env *Env, in Input) (*Result, error) {
	mimeType := mediaType(in.MIMEType)
	if m, ok := imageMIMEByExt[in.Ext()]; ok && !strings.HasPrefix(mimeType, "image/") {
		mimeType = m
	}
	payload := oracle.Content{Blob: in.Data, MIMEType: mimeType, Filename: in.Filename}
	text, err := env.Oracle.ExtractText(ctx, payload)
	if err != nil {
		return nil, fmt.Errorf("ocr %s: %w", in.Filename, err)
	}
	return &Result{
		MIMEType:  mimeType,
		Text:      text,
		Payload:   payload,
		Body:      in.Data,
		PageCount: 1,
	}, nil
}

func extractWord(_ context.Context, _ *Env, in Input) (*Result, error) {
	text, err := DocxText(in.Data)
	if err != nil {
		return nil, fmt.Errorf("convert %s: %w", in.Filename, err)
	}
	return textResult(docxMIME, in.Filename, text), nil
}

func extractAudio(ctx context.Context, env *Env, in Input) (*Result, error) {
	if env.MaxAudioBytes > 0 && int64(len(in.Data)) > env.MaxAudioBytes {
		return nil, fmt.Errorf("audio %s is %d bytes, limit %d: %w", in.Filename, len(in.Data), env.MaxAudioBytes, ErrPayloadTooLarge)
	}
	mimeType := mediaType(in.MIMEType)
	if m, ok := audioMIMEByExt[in.Ext()]; ok {
		mimeType = m
	}
	text, err := env.Oracle.Transcribe(ctx, in.Data, mimeType)
	if err != nil {
		return nil, fmt.Errorf("transcribe %s: %w", in.Filename, err)
	}
	res := textResult(mimeType, in.Filename, text)
	return res, nil
}

func extractText(_ context.Context, _ *Env, in Input) (*Result, error) {
	data := bytes.TrimPrefix(in.Data, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(data) {
		data = bytes.ToValidUTF8(data, []byte("�"))
	}
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return textResult("text/plain", in.Filename, text), nil
}

func textResult(mimeType, filename, text string) *Result {
	return &Result{
		MIMEType: mimeType,
		Text:     text,
		Payload:  oracle.Content{Text: text, MIMEType: "text/plain", Filename: filename},
	}
}
