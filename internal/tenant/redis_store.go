package tenant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStore reads tenant records stored as JSON by the admin process.
type RedisStore struct {
	redis *redis.Client
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore creates a store on the given client.
func NewRedisStore(client *redis.Client) *RedisStore {
	if client == nil {
		panic("tenant: redis client cannot be nil")
	}
	return &RedisStore{redis: client}
}

func (s *RedisStore) key(id string) string {
	return fmt.Sprintf("tenant:record:%s", id)
}

// Name implements Store.
func (s *RedisStore) Name() Provenance { return ProvenanceRedis }

// Get returns ErrNotFound when the key is absent.
func (s *RedisStore) Get(ctx context.Context, id string) (*Record, error) {
	data, err := s.redis.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("tenant: redis get: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("tenant: unmarshal record: %w", err)
	}
	return &rec, nil
}

// Set writes rec. Used by seeding tools; request paths only read.
func (s *RedisStore) Set(ctx context.Context, rec *Record) error {
	if rec == nil || normalizeID(rec.ID) == "" {
		return errors.New("tenant: record id required")
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("tenant: marshal record: %w", err)
	}
	if err := s.redis.Set(ctx, s.key(normalizeID(rec.ID)), data, 0).Err(); err != nil {
		return fmt.Errorf("tenant: redis set: %w", err)
	}
	return nil
}
