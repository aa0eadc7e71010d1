// Package redis stores session values in Redis with native key expiry.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"sleep-better/internal/domain"
)

const defaultPrefix = "sleep-better:session:"

// KVStore is a domain.KVStore backed by Redis.
type KVStore struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewKVStore creates a Redis store using the default key prefix.
func NewKVStore(client redis.UniversalClient) *KVStore {
	return NewKVStoreWithPrefix(client, defaultPrefix)
}

// NewKVStoreWithPrefix creates a Redis store with a custom key prefix.
func NewKVStoreWithPrefix(client redis.UniversalClient, prefix string) *KVStore {
	return &KVStore{
		client: client,
		prefix: prefix,
		now:    time.Now,
	}
}

var _ domain.KVStore = (*KVStore)(nil)

func (s *KVStore) Get(ctx context.Context, key string) (domain.KVEntry, error) {
	k := s.prefix + key

	var get *redis.StringCmd
	var pttl *redis.DurationCmd
	_, err := s.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		get = p.Get(ctx, k)
		pttl = p.PTTL(ctx, k)
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return domain.KVEntry{}, fmt.Errorf("redis get: %w", err)
	}

	value, err := get.Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.KVEntry{}, domain.ErrKeyNotFound
		}
		return domain.KVEntry{}, fmt.Errorf("redis get: %w", err)
	}

	entry := domain.KVEntry{Value: value}
	// PTTL is negative when the key has no expiry or vanished in between.
	if ttl := pttl.Val(); ttl > 0 {
		entry.ExpiresAt = s.now().Add(ttl)
	}
	return entry, nil
}

// Set stores value for ttl. A non-positive ttl stores without expiry.
func (s *KVStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := s.client.Set(ctx, s.prefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (s *KVStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func (s *KVStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
