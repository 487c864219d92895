package store

import (
	"context"
	"os"
	"testing"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/casebinder/internal/models"
)

// These tests need the Firestore emulator (gcloud emulators firestore start).
func newEmulatorStore(t *testing.T) *FirestoreStore {
	t.Helper()
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}
	client, err := firestore.NewClient(context.Background(), "casebinder-test")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return NewFirestoreStore(client, "cases-"+uuid.NewString())
}

func TestFirestoreStore_SaveLoadUpdate(t *testing.T) {
	s := newEmulatorStore(t)
	ctx := context.Background()

	_, err := s.Load(ctx, "case-1")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Save(ctx, sampleCase()))
	got, err := s.Load(ctx, "case-1")
	require.NoError(t, err)
	assert.Equal(t, "Smith v Acme", got.Name)
	require.Len(t, got.Documents, 1)
	assert.Equal(t, "hello", got.Documents[0].ExtractedText())
	assert.Len(t, got.Timeline, 1)

	err = s.Update(ctx, "case-1", func(c *models.Case) error {
		c.Documents = append(c.Documents, models.Document{ID: "d2", Filename: "b.txt", Status: models.StatusQueued})
		return nil
	})
	require.NoError(t, err)
	got, err = s.Load(ctx, "case-1")
	require.NoError(t, err)
	assert.Len(t, got.Documents, 2)
}
