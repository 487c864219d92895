package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/storage"

	"github.com/Lllllllleong/casebinder/internal/binder"
	"github.com/Lllllllleong/casebinder/internal/extract"
	"github.com/Lllllllleong/casebinder/internal/gcp"
	"github.com/Lllllllleong/casebinder/internal/models"
	"github.com/Lllllllleong/casebinder/internal/store"
)

type CompilerConfig struct {
	ProjectID         string
	EvidenceBucket    string
	BinderBucket      string
	CollectionName    string
	Title             string
	LinesPerIndexPage int
}

type CompilerFunction struct {
	storageClient   *storage.Client
	firestoreClient *firestore.Client
	store           store.CaseStore
	compiler        *binder.Compiler
	options         binder.Options
	config          CompilerConfig
}

func NewCompiler(ctx context.Context) (*CompilerFunction, error) {
	config := CompilerConfig{
		ProjectID:         gcp.GetEnv("PROJECT_ID", ""),
		EvidenceBucket:    gcp.GetEnv("EVIDENCE_BUCKET", ""),
		BinderBucket:      gcp.GetEnv("BINDER_BUCKET", ""),
		CollectionName:    gcp.GetEnv("FIRESTORE_COLLECTION", "cases"),
		Title:             gcp.GetEnv("BINDER_TITLE", binder.DefaultTitle),
		LinesPerIndexPage: gcp.GetEnvInt("INDEX_LINES_PER_PAGE", binder.DefaultLinesPerIndexPage),
	}
	if config.ProjectID == "" || config.EvidenceBucket == "" || config.BinderBucket == "" {
		return nil, fmt.Errorf("PROJECT_ID, EVIDENCE_BUCKET, and BINDER_BUCKET environment variables must be set")
	}

	caseStore, firestoreClient, err := gcp.NewCaseStore(ctx, config.ProjectID, config.CollectionName)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	storageClient, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Storage client: %w", err)
	}

	logger := slog.Default()
	options := binder.Options{Title: config.Title, LinesPerIndexPage: config.LinesPerIndexPage}
	compiler := binder.New(
		gcp.NewBucketSource(storageClient, config.EvidenceBucket),
		extract.NewPDFSanitizer(logger),
		options,
		logger,
	)
	return &CompilerFunction{
		storageClient:   storageClient,
		firestoreClient: firestoreClient,
		store:           caseStore,
		compiler:        compiler,
		options:         options,
		config:          config,
	}, nil
}

// Process compiles the binder for a case and writes it to the binder bucket.
func (f *CompilerFunction) Process(ctx context.Context, req *models.CompileBinderRequest) (*models.CompileBinderResponse, error) {
	logCtx := slog.With("caseId", req.CaseID, "executionId", req.ExecutionID)
	if req.CaseID == "" {
		return nil, fmt.Errorf("caseId must be set")
	}

	cs, err := f.store.Load(ctx, req.CaseID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			logCtx.Warn("Case not found.")
		} else {
			logCtx.Error("Failed to load case", "error", err)
		}
		return nil, err
	}

	b, err := f.compiler.Compile(ctx, *cs)
	if err != nil {
		logCtx.Error("Failed to compile binder", "error", err)
		return nil, err
	}

	objectName, err := binderObjectName(*cs, f.options)
	if err != nil {
		logCtx.Error("Failed to name binder", "error", err)
		return nil, err
	}
	written, err := gcp.SaveToGCSAtomically(ctx, f.storageClient.Bucket(f.config.BinderBucket), objectName, "application/pdf", b.PDF)
	if err != nil {
		logCtx.Error("Failed to write binder", "error", err, "object", objectName)
		return nil, err
	}
	if !written {
		logCtx.Info("Identical binder already exists.", "object", objectName)
	}

	uri := gcp.GSURI(f.config.BinderBucket, objectName)
	logCtx.Info("Binder written.", "binderUri", uri, "totalPages", b.TotalPages)
	return &models.CompileBinderResponse{
		Status:     "success",
		BinderURI:  uri,
		TotalPages: b.TotalPages,
		IndexPages: b.IndexPages,
		Entries:    b.Documents(),
	}, nil
}

func (f *CompilerFunction) Close() error {
	return errors.Join(f.storageClient.Close(), f.firestoreClient.Close())
}
