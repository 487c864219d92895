package store

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"reflect"
	"slices"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Lllllllleong/casebinder/internal/models"
)

var _ CaseStore = (*FirestoreStore)(nil)

const documentsCollection = "documents"

// FirestoreStore keeps a case in collection/{caseId} with one subcollection
// entry per document, which keeps each Firestore document under the size
// limit as extracted text accumulates.
type FirestoreStore struct {
	client     *firestore.Client
	collection string
}

func NewFirestoreStore(client *firestore.Client, collection string) *FirestoreStore {
	return &FirestoreStore{client: client, collection: collection}
}

func (s *FirestoreStore) caseRef(id string) *firestore.DocumentRef {
	return s.client.Collection(s.collection).Doc(id)
}

func (s *FirestoreStore) Load(ctx context.Context, id string) (*models.Case, error) {
	snap, err := s.caseRef(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get case %s: %w", id, err)
	}
	var cs models.Case
	if err := snap.DataTo(&cs); err != nil {
		return nil, fmt.Errorf("failed to decode case %s: %w", id, err)
	}
	docs, err := readDocuments(s.caseRef(id).Collection(documentsCollection).Documents(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to read documents of case %s: %w", id, err)
	}
	cs.ID = id
	cs.Documents = docs
	return &cs, nil
}

func readDocuments(it *firestore.DocumentIterator) ([]models.Document, error) {
	defer it.Stop()
	var docs []models.Document
	for {
		snap, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, err
		}
		var d models.Document
		if err := snap.DataTo(&d); err != nil {
			return nil, fmt.Errorf("decode document %s: %w", snap.Ref.ID, err)
		}
		docs = append(docs, d)
	}
	slices.SortStableFunc(docs, func(a, b models.Document) int {
		if c := a.UploadedAt.Compare(b.UploadedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return docs, nil
}

func (s *FirestoreStore) Save(ctx context.Context, c *models.Case) error {
	if c.ID == "" {
		return errors.New("case id must be set")
	}
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		return s.write(tx, c, nil)
	})
	if err != nil {
		return fmt.Errorf("failed to save case %s: %w", c.ID, err)
	}
	return nil
}

func (s *FirestoreStore) Update(ctx context.Context, id string, fn func(c *models.Case) error) error {
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref := s.caseRef(id)
		cs := &models.Case{ID: id}
		snap, err := tx.Get(ref)
		switch {
		case status.Code(err) == codes.NotFound:
		case err != nil:
			return err
		default:
			if err := snap.DataTo(cs); err != nil {
				return err
			}
		}
		docs, err := readDocuments(tx.Documents(ref.Collection(documentsCollection)))
		if err != nil {
			return err
		}
		cs.ID = id
		cs.Documents = docs
		before := make(map[string]models.Document, len(docs))
		for _, d := range docs {
			before[d.ID] = d
		}
		if err := fn(cs); err != nil {
			return err
		}
		cs.ID = id
		return s.write(tx, cs, before)
	})
	if err != nil {
		return fmt.Errorf("failed to update case %s: %w", id, err)
	}
	return nil
}

// write stores the case record and every document that differs from before.
func (s *FirestoreStore) write(tx *firestore.Transaction, c *models.Case, before map[string]models.Document) error {
	ref := s.caseRef(c.ID)
	if err := tx.Set(ref, c); err != nil {
		return err
	}
	for _, d := range c.Documents {
		if old, ok := before[d.ID]; ok && reflect.DeepEqual(old, d) {
			continue
		}
		if err := tx.Set(ref.Collection(documentsCollection).Doc(d.ID), d); err != nil {
			return err
		}
	}
	return nil
}
