package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps each generation's bucket in a Redis hash so several
// gateway instances can share one cache. Bucket ids are tracked in a set
// alongside the hashes.
type RedisStore struct {
	client redis.Cmdable
	prefix string
}

// NewRedisStore creates a Redis-backed store. All keys are placed under
// the given prefix; an empty prefix defaults to "habi:cache".
func NewRedisStore(client redis.Cmdable, prefix string) *RedisStore {
	normalized := strings.TrimSpace(prefix)
	if normalized == "" {
		normalized = "habi:cache"
	}
	return &RedisStore{client: client, prefix: normalized}
}

func (s *RedisStore) bucketKey(generation string) string {
	return s.prefix + ":gen:" + generation
}

func (s *RedisStore) indexKey() string {
	return s.prefix + ":generations"
}

// Put writes an entry into the given generation's bucket.
func (s *RedisStore) Put(ctx context.Context, generation, key string, entry Entry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("cache encode entry: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.SAdd(ctx, s.indexKey(), generation)
	pipe.HSet(ctx, s.bucketKey(generation), key, payload)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache put: %w", err)
	}
	return nil
}

// Get returns the entry stored under key in the given generation's bucket.
func (s *RedisStore) Get(ctx context.Context, generation, key string) (Entry, bool, error) {
	payload, err := s.client.HGet(ctx, s.bucketKey(generation), key).Bytes()
	if err == redis.Nil {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("cache get: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(payload, &entry); err != nil {
		return Entry{}, false, fmt.Errorf("cache decode entry: %w", err)
	}
	return entry, true, nil
}

// Generations lists the ids of all existing buckets.
func (s *RedisStore) Generations(ctx context.Context) ([]string, error) {
	ids, err := s.client.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("cache list generations: %w", err)
	}
	return ids, nil
}

// Drop deletes a generation's bucket and removes it from the index.
func (s *RedisStore) Drop(ctx context.Context, generation string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.bucketKey(generation))
	pipe.SRem(ctx, s.indexKey(), generation)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache drop generation: %w", err)
	}
	return nil
}
