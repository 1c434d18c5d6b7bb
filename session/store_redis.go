package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisKeyPrefix namespaces session keys so the store can share a database
// with other consumers.
const redisKeyPrefix = "websso:session:"

// RedisStore is a Redis-backed Store.  This is the recommended store for
// deployments with more than one instance, where sessions established on one
// instance must resolve on another.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore constructs a Redis-backed session store.  The client's
// lifecycle is managed by the caller.
func NewRedisStore(client *redis.Client) (*RedisStore, error) {
	if client == nil {
		return nil, errors.New("redis client is nil")
	}
	return &RedisStore{client: client}, nil
}

// Put implements Store.  The key's TTL is set to the record's remaining
// lifetime so Redis reaps expired sessions on its own.
func (s *RedisStore) Put(ctx context.Context, id string, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal session record: %w", err)
	}
	ttl := time.Until(rec.ExpiresAt)
	if ttl <= 0 {
		// already expired; nothing worth storing
		return nil
	}
	return s.client.Set(ctx, redisKeyPrefix+id, data, ttl).Err()
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, id string) (Record, error) {
	data, err := s.client.Get(ctx, redisKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, err
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("unmarshal session record: %w", err)
	}
	return rec, nil
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	return s.client.Del(ctx, redisKeyPrefix+id).Err()
}
