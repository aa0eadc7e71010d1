// Package repository holds helpers shared by the KV store backends.
package repository

import (
	"context"
	"sync"
	"time"

	"sleep-better/internal/domain"
)

// ScopedStore prefixes every key with a namespace so that a single
// server-side backend can hold the sessions of many visitors.
type ScopedStore struct {
	backend domain.KVStore

	mu     sync.RWMutex
	prefix string
}

// NewScopedStore returns a view of backend limited to namespace.
func NewScopedStore(backend domain.KVStore, namespace string) *ScopedStore {
	return &ScopedStore{
		backend: backend,
		prefix:  namespace + ":",
	}
}

var _ domain.KVStore = (*ScopedStore)(nil)

// Rescope points the view at another namespace. Keys of the previous
// namespace are left in the backend.
func (s *ScopedStore) Rescope(namespace string) {
	s.mu.Lock()
	s.prefix = namespace + ":"
	s.mu.Unlock()
}

func (s *ScopedStore) key(key string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.prefix + key
}

func (s *ScopedStore) Get(ctx context.Context, key string) (domain.KVEntry, error) {
	return s.backend.Get(ctx, s.key(key))
}

func (s *ScopedStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.backend.Set(ctx, s.key(key), value, ttl)
}

func (s *ScopedStore) Delete(ctx context.Context, key string) error {
	return s.backend.Delete(ctx, s.key(key))
}
