// Package ingest runs evidence files through extraction and analysis on a
// bounded, self-replenishing pool of workers.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Lllllllleong/casebinder/internal/extract"
	"github.com/Lllllllleong/casebinder/internal/models"
	"github.com/Lllllllleong/casebinder/internal/oracle"
)

const (
	DefaultConcurrency  = 3
	DefaultMaxFileBytes = 50 << 20

	// EmptyContentSummary is recorded for documents with no text to analyze.
	EmptyContentSummary = "No readable content was found in this file."
	// AbsentAnalysisSummary is recorded when the analysis response was unusable.
	AbsentAnalysisSummary = "Analysis unavailable for this file."
)

// Item is one file waiting to be ingested. Load is called at most once, from
// the worker that processes the item.
type Item struct {
	ID         string
	Filename   string
	MIMEType   string
	Tag        string
	Size       int64
	SourceURI  string
	UploadedAt time.Time
	Load       func(ctx context.Context) ([]byte, error)
}

// BytesItem wraps in-memory content as an Item.
func BytesItem(filename, mimeType, tag string, data []byte) Item {
	return Item{
		Filename: filename,
		MIMEType: mimeType,
		Tag:      tag,
		Size:     int64(len(data)),
		Load: func(context.Context) ([]byte, error) {
			return data, nil
		},
	}
}

type Config struct {
	Concurrency  int
	MaxFileBytes int64
}

// Pipeline processes Items into completion Events.
type Pipeline struct {
	extractor *extract.Extractor
	oracle    oracle.Oracle
	config    Config
	logger    *slog.Logger
	now       func() time.Time
}

func New(extractor *extract.Extractor, o oracle.Oracle, config Config, logger *slog.Logger) *Pipeline {
	if config.Concurrency <= 0 {
		config.Concurrency = DefaultConcurrency
	}
	if config.MaxFileBytes <= 0 {
		config.MaxFileBytes = DefaultMaxFileBytes
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{extractor: extractor, oracle: o, config: config, logger: logger, now: time.Now}
}

// Run processes every item and sends its events to out. A Queued event is
// sent for every item before any work starts; after that each item emits
// Started and then exactly one of Completed or Failed. At most
// config.Concurrency items are in flight at once, and a finishing item
// immediately frees its slot for the next one in FIFO order. Run returns
// once every item has reached a terminal event. The caller must keep
// draining out; Run does not close it.
func (p *Pipeline) Run(ctx context.Context, items []Item, out chan<- Event) {
	docs := make([]models.Document, len(items))
	for i, item := range items {
		docs[i] = p.queued(item)
		out <- Event{Kind: EventQueued, Document: docs[i]}
	}
	p.logger.Info("Starting ingestion.", "items", len(items), "concurrency", p.config.Concurrency)

	var g errgroup.Group
	g.SetLimit(p.config.Concurrency)
	for i := range items {
		item, doc := items[i], docs[i]
		// Go blocks until a slot is free.
		g.Go(func() error {
			p.process(ctx, item, doc, out)
			return nil
		})
	}
	_ = g.Wait()
	p.logger.Info("Ingestion finished.", "items", len(items))
}

func (p *Pipeline) queued(item Item) models.Document {
	id := item.ID
	if id == "" {
		id = uuid.NewString()
	}
	uploadedAt := item.UploadedAt
	if uploadedAt.IsZero() {
		uploadedAt = p.now().UTC()
	}
	return models.Document{
		ID:         id,
		Filename:   item.Filename,
		MimeType:   item.MIMEType,
		Status:     models.StatusQueued,
		Size:       item.Size,
		SourceURI:  item.SourceURI,
		Tag:        item.Tag,
		UploadedAt: uploadedAt,
	}
}

// process never returns an error: every failure is attributed to doc.
func (p *Pipeline) process(ctx context.Context, item Item, doc models.Document, out chan<- Event) {
	logCtx := p.logger.With("documentId", doc.ID, "filename", doc.Filename)

	doc.Status = models.StatusProcessing
	out <- Event{Kind: EventStarted, Document: doc}

	fail := func(kind models.FailureKind, msg string, err error) {
		logCtx.Error(msg, "failureKind", kind, "error", err)
		doc.Status = models.StatusError
		doc.FailureKind = kind
		doc.ErrorDetails = fmt.Sprintf("%s: %v", msg, err)
		out <- Event{Kind: EventFailed, Document: doc}
	}

	if item.Size > p.config.MaxFileBytes {
		fail(models.FailureValidation, "file exceeds size limit", fmt.Errorf("%d bytes > %d: %w", item.Size, p.config.MaxFileBytes, extract.ErrPayloadTooLarge))
		return
	}
	data, err := item.Load(ctx)
	if err != nil {
		fail(models.FailureExtraction, "failed to read file", err)
		return
	}
	doc.Size = int64(len(data))
	if doc.Size > p.config.MaxFileBytes {
		fail(models.FailureValidation, "file exceeds size limit", fmt.Errorf("%d bytes > %d: %w", doc.Size, p.config.MaxFileBytes, extract.ErrPayloadTooLarge))
		return
	}
	sum := sha256.Sum256(data)
	doc.FileHash = hex.EncodeToString(sum[:])

	res, err := p.extractor.Extract(ctx, extract.Input{Filename: item.Filename, MIMEType: item.MIMEType, Data: data})
	if err != nil {
		fail(failureKind(err), "extraction failed", err)
		return
	}
	doc.ContentType = res.ContentType
	doc.MimeType = res.MIMEType
	if res.PageCount > 0 {
		doc.PageCount = res.PageCount
	}
	if res.Text != "" {
		text := res.Text
		doc.Text = &text
	}

	if !res.Payload.HasBlob() && strings.TrimSpace(res.Text) == "" {
		logCtx.Warn("No text extracted; skipping analysis.")
		doc.Status = models.StatusReady
		doc.Summary = EmptyContentSummary
		out <- Event{Kind: EventCompleted, Document: doc}
		return
	}

	logCtx.Info("Starting analysis.", "contentType", doc.ContentType)
	analysis, err := p.oracle.Analyze(ctx, res.Payload)
	if err != nil {
		fail(models.FailureOracle, "analysis failed", err)
		return
	}
	doc.Status = models.StatusReady
	doc.Summary = analysis.Summary
	if analysis.Absent || strings.TrimSpace(doc.Summary) == "" {
		doc.Summary = AbsentAnalysisSummary
	}
	doc.Stats = analysis.Stats()
	events := analysis.Events(doc.ID)
	doc.Stats.Events = len(events)
	logCtx.Info("Document ready.", "events", len(events))
	out <- Event{Kind: EventCompleted, Document: doc, Timeline: events}
}

// failureKind maps an extraction error onto the failure taxonomy.
func failureKind(err error) models.FailureKind {
	var oe *oracle.Error
	switch {
	case errors.Is(err, extract.ErrPayloadTooLarge), errors.Is(err, extract.ErrUnsupportedType):
		return models.FailureValidation
	case errors.As(err, &oe):
		return models.FailureOracle
	default:
		return models.FailureExtraction
	}
}
