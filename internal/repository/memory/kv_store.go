// Package memory provides an in-process KV store with expiry, used for
// development and tests.
package memory

import (
	"context"
	"sync"
	"time"

	"sleep-better/internal/domain"
)

type entry struct {
	value     string
	expiresAt time.Time
}

// KVStore keeps values in a map and drops them lazily once expired.
type KVStore struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

// NewKVStore creates an empty store. A nil clock means time.Now.
func NewKVStore(now func() time.Time) *KVStore {
	if now == nil {
		now = time.Now
	}
	return &KVStore{
		entries: make(map[string]entry),
		now:     now,
	}
}

var _ domain.KVStore = (*KVStore)(nil)

func (s *KVStore) Get(_ context.Context, key string) (domain.KVEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return domain.KVEntry{}, domain.ErrKeyNotFound
	}
	if !e.expiresAt.IsZero() && !s.now().Before(e.expiresAt) {
		delete(s.entries, key)
		return domain.KVEntry{}, domain.ErrKeyNotFound
	}
	return domain.KVEntry{Value: e.value, ExpiresAt: e.expiresAt}, nil
}

// Set stores value for ttl. A non-positive ttl stores without expiry.
func (s *KVStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := entry{value: value}
	if ttl > 0 {
		e.expiresAt = s.now().Add(ttl)
	}
	s.entries[key] = e
	return nil
}

func (s *KVStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

// DeleteExpired removes every expired entry and returns how many were removed.
func (s *KVStore) DeleteExpired(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var n int64
	for k, e := range s.entries {
		if !e.expiresAt.IsZero() && !now.Before(e.expiresAt) {
			delete(s.entries, k)
			n++
		}
	}
	return n, nil
}

func (s *KVStore) Ping(context.Context) error {
	return nil
}

// Len returns the number of stored entries, expired or not.
func (s *KVStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
