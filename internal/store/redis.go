package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/redis/go-redis/v9"

	"github.com/Lllllllleong/casebinder/internal/models"
)

var _ CaseStore = (*RedisStore)(nil)

const (
	casePrefix = "casebinder:case:"
	caseIndex  = "casebinder:cases"

	maxUpdateAttempts = 5
)

// RedisStore keeps each case as one JSON value.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func caseKey(id string) string { return casePrefix + id }

func (s *RedisStore) Load(ctx context.Context, id string) (*models.Case, error) {
	return load(ctx, s.client, id)
}

// getter is satisfied by both *redis.Client and *redis.Tx.
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func load(ctx context.Context, c getter, id string) (*models.Case, error) {
	data, err := c.Get(ctx, caseKey(id)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get case %s: %w", id, err)
	}
	var cs models.Case
	if err := json.Unmarshal(data, &cs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal case %s: %w", id, err)
	}
	return &cs, nil
}

func (s *RedisStore) Save(ctx context.Context, c *models.Case) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		return save(ctx, pipe, c)
	})
	if err != nil {
		return fmt.Errorf("failed to save case %s: %w", c.ID, err)
	}
	return nil
}

func save(ctx context.Context, pipe redis.Pipeliner, c *models.Case) error {
	if c.ID == "" {
		return errors.New("case id must be set")
	}
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal case: %w", err)
	}
	pipe.Set(ctx, caseKey(c.ID), data, 0)
	pipe.SAdd(ctx, caseIndex, c.ID)
	return nil
}

// Update uses WATCH on the case key so a concurrent writer forces a retry.
func (s *RedisStore) Update(ctx context.Context, id string, fn func(c *models.Case) error) error {
	txf := func(tx *redis.Tx) error {
		cs, err := load(ctx, tx, id)
		if errors.Is(err, ErrNotFound) {
			cs = &models.Case{ID: id}
		} else if err != nil {
			return err
		}
		if err := fn(cs); err != nil {
			return err
		}
		cs.ID = id
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			return save(ctx, pipe, cs)
		})
		return err
	}
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		err := s.client.Watch(ctx, txf, caseKey(id))
		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to update case %s: %w", id, err)
		}
		return nil
	}
	return fmt.Errorf("failed to update case %s: too much contention", id)
}

// List returns the ids of every stored case, sorted.
func (s *RedisStore) List(ctx context.Context) ([]string, error) {
	ids, err := s.client.SMembers(ctx, caseIndex).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list cases: %w", err)
	}
	slices.Sort(ids)
	return ids, nil
}

// Delete removes a case. Deleting a missing case is not an error.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, caseKey(id))
		pipe.SRem(ctx, caseIndex, id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete case %s: %w", id, err)
	}
	return nil
}
