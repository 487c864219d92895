// Package store persists whole-case snapshots.
package store

import (
	"context"
	"errors"

	"github.com/Lllllllleong/casebinder/internal/models"
)

var ErrNotFound = errors.New("case not found")

// CaseStore loads and saves case snapshots by id.
type CaseStore interface {
	// Load returns ErrNotFound when no case with id exists.
	Load(ctx context.Context, id string) (*models.Case, error)
	Save(ctx context.Context, c *models.Case) error
	// Update applies fn to the stored case atomically, starting from an
	// empty case when none exists yet. Concurrent updates are retried.
	Update(ctx context.Context, id string, fn func(c *models.Case) error) error
}
