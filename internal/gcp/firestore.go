package gcp

import (
	"context"
	"fmt"
	"os"

	"cloud.google.com/go/firestore"

	"github.com/Lllllllleong/casebinder/internal/store"
)

// NewFirestoreClient creates a Firestore client for the given project ID.
// Against the emulator the project may be left empty.
func NewFirestoreClient(ctx context.Context, projectID string) (*firestore.Client, error) {
	if projectID == "" {
		if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
			return nil, fmt.Errorf("projectID must be provided to create a firestore client")
		}
		projectID = firestore.DetectProjectID
	}

	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}

	return client, nil
}

// NewCaseStore opens the Firestore-backed case store. The caller owns the
// returned client and must close it.
func NewCaseStore(ctx context.Context, projectID, collection string) (*store.FirestoreStore, *firestore.Client, error) {
	client, err := NewFirestoreClient(ctx, projectID)
	if err != nil {
		return nil, nil, err
	}
	return store.NewFirestoreStore(client, collection), client, nil
}
