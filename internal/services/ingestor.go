package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/storage"
	executions "cloud.google.com/go/workflows/executions/apiv1"

	"github.com/Lllllllleong/casebinder/internal/extract"
	"github.com/Lllllllleong/casebinder/internal/gcp"
	"github.com/Lllllllleong/casebinder/internal/ingest"
	"github.com/Lllllllleong/casebinder/internal/models"
	"github.com/Lllllllleong/casebinder/internal/oracle"
	"github.com/Lllllllleong/casebinder/internal/registry"
	"github.com/Lllllllleong/casebinder/internal/store"
	"github.com/Lllllllleong/casebinder/internal/timeline"
)

type IngestorConfig struct {
	ProjectID        string
	Region           string
	Model            string
	EvidenceBucket   string
	CollectionName   string
	Concurrency      int
	MaxFileBytes     int64
	MaxAudioBytes    int64
	DedupPrefixLen   int
	WorkflowID       string
	WorkflowLocation string
}

type IngestorFunction struct {
	storageClient    *storage.Client
	firestoreClient  *firestore.Client
	executionsClient *executions.Client
	vertexClient     *gcp.VertexClient
	store            store.CaseStore
	source           *gcp.BucketSource
	extractor        *extract.Extractor
	oracle           oracle.Oracle
	pipeline         *ingest.Pipeline
	config           IngestorConfig
}

func loadIngestorConfig() (IngestorConfig, error) {
	projectID := gcp.GetEnv("PROJECT_ID", "")
	if projectID == "" {
		return IngestorConfig{}, fmt.Errorf("PROJECT_ID environment variable must be set")
	}
	config := IngestorConfig{
		ProjectID:        projectID,
		Region:           gcp.GetEnv("VERTEX_AI_REGION", "us-central1"),
		Model:            gcp.GetEnv("GEMINI_MODEL", gcp.DefaultModel),
		EvidenceBucket:   gcp.GetEnv("EVIDENCE_BUCKET", ""),
		CollectionName:   gcp.GetEnv("FIRESTORE_COLLECTION", "cases"),
		Concurrency:      gcp.GetEnvInt("INGEST_CONCURRENCY", ingest.DefaultConcurrency),
		MaxFileBytes:     int64(gcp.GetEnvInt("MAX_FILE_MB", 50)) << 20,
		MaxAudioBytes:    int64(gcp.GetEnvInt("MAX_AUDIO_MB", 20)) << 20,
		DedupPrefixLen:   gcp.GetEnvInt("DEDUP_PREFIX_LEN", timeline.DefaultPrefixLen),
		WorkflowID:       gcp.GetEnv("WORKFLOW_ID", ""),
		WorkflowLocation: gcp.GetEnv("WORKFLOW_LOCATION", "us-central1"),
	}
	if config.EvidenceBucket == "" {
		return IngestorConfig{}, fmt.Errorf("EVIDENCE_BUCKET environment variable must be set")
	}
	return config, nil
}

func NewIngestor(ctx context.Context) (*IngestorFunction, error) {
	config, err := loadIngestorConfig()
	if err != nil {
		return nil, err
	}

	caseStore, firestoreClient, err := gcp.NewCaseStore(ctx, config.ProjectID, config.CollectionName)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	storageClient, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Storage client: %w", err)
	}
	vertexClient, err := gcp.NewVertexClient(ctx, config.ProjectID, config.Region, config.Model)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vertex AI client: %w", err)
	}
	var executionsClient *executions.Client
	if config.WorkflowID != "" {
		executionsClient, err = executions.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create Workflows Executions client: %w", err)
		}
	}

	logger := slog.Default()
	o := vertexClient.Oracle(logger)
	extractor := extract.New(extract.Env{
		Oracle:        o,
		Sanitizer:     extract.NewPDFSanitizer(logger),
		MaxAudioBytes: config.MaxAudioBytes,
		Logger:        logger,
	})
	pipeline := ingest.New(extractor, o, ingest.Config{
		Concurrency:  config.Concurrency,
		MaxFileBytes: config.MaxFileBytes,
	}, logger)

	f := &IngestorFunction{
		storageClient:    storageClient,
		firestoreClient:  firestoreClient,
		executionsClient: executionsClient,
		vertexClient:     vertexClient,
		store:            caseStore,
		source:           gcp.NewBucketSource(storageClient, config.EvidenceBucket),
		extractor:        extractor,
		oracle:           o,
		pipeline:         pipeline,
		config:           config,
	}
	slog.Info("Case ingestor initialized.", "bucket", config.EvidenceBucket, "concurrency", config.Concurrency, "workflowId", config.WorkflowID)
	return f, nil
}

func (f *IngestorFunction) timelineOptions() timeline.Options {
	return timeline.Options{PrefixLen: f.config.DedupPrefixLen}
}

// ProcessObject ingests one newly uploaded evidence object into its case.
func (f *IngestorFunction) ProcessObject(ctx context.Context, e GCSEvent) error {
	logCtx := slog.With("gcsBucket", e.Bucket, "gcsObject", e.Name)
	caseID, tag, ok := caseFromObject(e.Name)
	if !ok {
		logCtx.Warn("Object is not under a case prefix. Skipping.")
		return nil
	}
	logCtx = logCtx.With("caseId", caseID)
	logCtx.Info("Processing new evidence object.")

	attrs, err := f.source.Attrs(ctx, e.Name)
	if err != nil {
		logCtx.Error("Failed to stat evidence object", "error", err)
		return err
	}
	item := f.source.Item(attrs, tag)

	existing, err := f.store.Load(ctx, caseID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		existing = &models.Case{ID: caseID}
	case err != nil:
		logCtx.Error("Failed to load case", "error", err)
		return err
	}
	reg := registry.FromCase(existing, f.timelineOptions(), logCtx)
	if doc, ok := alreadyIngested(reg, item.SourceURI); ok {
		logCtx.Info("Object already ingested. Skipping.", "documentId", doc.ID, "status", doc.Status)
		return nil
	}

	// Read small files up front so duplicate uploads are caught before any
	// analysis is spent on them.
	if item.Size <= f.config.MaxFileBytes {
		data, err := item.Load(ctx)
		if err != nil {
			logCtx.Error("Failed to read evidence object", "error", err)
			return err
		}
		if doc, ok := reg.ByHash(fileHash(data)); ok {
			logCtx.Info("Duplicate file detected. Skipping.", "existingDocId", doc.ID)
			return nil
		}
		item.Load = func(context.Context) ([]byte, error) { return data, nil }
	}

	events := collect(ctx, f.pipeline, []ingest.Item{item})
	saved, err := persistEvents(ctx, f.store, caseID, events, f.timelineOptions(), logCtx)
	if err != nil {
		logCtx.Error("Failed to save case", "error", err)
		return err
	}
	ready, failed, timelineEvents := tally(events)
	logCtx.Info("Evidence object processed.", "ready", ready, "failed", failed, "events", timelineEvents, "caseTimeline", len(saved.Timeline))
	return nil
}

// ProcessBatch ingests every object under a case prefix that has not been
// ingested yet, then optionally hands the case to the compile workflow.
func (f *IngestorFunction) ProcessBatch(ctx context.Context, req *models.IngestCaseRequest) (*models.IngestCaseResponse, error) {
	logCtx := slog.With("caseId", req.CaseID, "executionId", req.ExecutionID)
	if req.CaseID == "" {
		return nil, fmt.Errorf("caseId must be set")
	}
	logCtx.Info("Starting batch ingestion.")

	items, err := f.source.List(ctx, req.CaseID+"/"+req.Prefix, req.Tag)
	if err != nil {
		logCtx.Error("Failed to list evidence objects", "error", err)
		return nil, err
	}

	existing, err := f.store.Load(ctx, req.CaseID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		existing = &models.Case{ID: req.CaseID}
	case err != nil:
		logCtx.Error("Failed to load case", "error", err)
		return nil, err
	}
	reg := registry.FromCase(existing, f.timelineOptions(), logCtx)

	pending, skipped := filterPending(reg, items)
	logCtx.Info("Found evidence objects.", "total", len(items), "pending", len(pending), "skipped", skipped)

	pipeline := f.pipeline
	if req.Concurrency > 0 && req.Concurrency != f.config.Concurrency {
		pipeline = f.pipelineWithConcurrency(req.Concurrency)
	}
	events := collect(ctx, pipeline, pending)
	if _, err := persistEvents(ctx, f.store, req.CaseID, events, f.timelineOptions(), logCtx); err != nil {
		logCtx.Error("Failed to save case", "error", err)
		return nil, err
	}
	ready, failed, timelineEvents := tally(events)

	if f.executionsClient != nil && len(pending) > 0 {
		payload := map[string]interface{}{"caseId": req.CaseID}
		if err := triggerWorkflow(ctx, f.executionsClient, f.config.ProjectID, f.config.WorkflowLocation, f.config.WorkflowID, payload); err != nil {
			// Ingestion results are already saved; the compile can be rerun.
			logCtx.Error("Failed to hand off to workflow", "error", err)
		} else {
			logCtx.Info("Hand-off to workflow complete.", "workflowId", f.config.WorkflowID)
		}
	}

	logCtx.Info("Batch ingestion complete.", "ready", ready, "failed", failed, "events", timelineEvents)
	return &models.IngestCaseResponse{
		Status:  "success",
		Ready:   ready,
		Failed:  failed,
		Events:  timelineEvents,
		Skipped: skipped,
	}, nil
}

func (f *IngestorFunction) pipelineWithConcurrency(n int) *ingest.Pipeline {
	return ingest.New(f.extractor, f.oracle, ingest.Config{Concurrency: n, MaxFileBytes: f.config.MaxFileBytes}, slog.Default())
}

// filterPending drops items whose object was already ingested into the case.
// Untagged items take the tag of the folder they sit in.
func filterPending(reg *registry.Registry, items []ingest.Item) ([]ingest.Item, int) {
	var pending []ingest.Item
	skipped := 0
	for _, item := range items {
		if _, ok := alreadyIngested(reg, item.SourceURI); ok {
			skipped++
			continue
		}
		if item.Tag == "" {
			if _, object, err := gcp.ParseGSURI(item.SourceURI); err == nil {
				_, item.Tag, _ = caseFromObject(object)
			}
		}
		item.UploadedAt = item.UploadedAt.UTC()
		pending = append(pending, item)
	}
	return pending, skipped
}

// alreadyIngested finds a document that came from the same object and is
// not stuck mid-flight from a crashed invocation.
func alreadyIngested(reg *registry.Registry, sourceURI string) (models.Document, bool) {
	for _, d := range reg.Documents() {
		if d.SourceURI == sourceURI && d.Status.Terminal() {
			return d, true
		}
	}
	return models.Document{}, false
}

// Close releases the function's clients.
func (f *IngestorFunction) Close() error {
	var errs []error
	if f.vertexClient != nil {
		errs = append(errs, f.vertexClient.Close())
	}
	if f.executionsClient != nil {
		errs = append(errs, f.executionsClient.Close())
	}
	if f.storageClient != nil {
		errs = append(errs, f.storageClient.Close())
	}
	if f.firestoreClient != nil {
		errs = append(errs, f.firestoreClient.Close())
	}
	return errors.Join(errs...)
}
